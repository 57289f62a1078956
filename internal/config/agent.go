// Package config loads agent settings from flags, environment and the instances file.
package config

import (
	"flag"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/vshulcz/iischeck/internal/misc"
)

const (
	defaultInstancesFile = "instances.yaml"
	defaultPollInterval  = 15 * time.Second
	defaultQueryTimeout  = 10 * time.Second
	defaultRateLimit     = 4
	defaultMetricsAddr   = ":9182"
	defaultLogLevel      = "info"
)

// Source names the counter backend.
const (
	SourceWMI  = "wmi"
	SourceHTTP = "http"
)

type AgentConfig struct {
	InstancesFile string
	Source        string
	BridgeURL     string
	Address       string
	Key           string
	MetricsAddr   string
	LogLevel      string
	LogFile       string
	PollInterval  time.Duration
	QueryTimeout  time.Duration
	RateLimit     int
	Once          bool
	Catalog       bool
	Version       bool
}

// LoadAgentConfig resolves settings with ENV > CLI > defaults.
// Address is optional: an empty value disables remote publishing.
func LoadAgentConfig(args []string, out io.Writer) (AgentConfig, error) {
	if out == nil {
		out = io.Discard
	}

	fs := flag.NewFlagSet("agent", flag.ContinueOnError)
	fs.SetOutput(out)

	var (
		instOpt, srcOpt, bridgeOpt, addrOpt, keyOpt, metricsOpt string
		pollOpt, timeoutOpt                                     time.Duration
		limitOpt                                                int
		onceOpt, catalogOpt, versionOpt                         bool
	)
	fs.StringVar(&instOpt, "i", "", fmt.Sprintf("instances file, default: %s", defaultInstancesFile))
	fs.StringVar(&srcOpt, "s", "", "counter source: wmi or http, default: wmi")
	fs.StringVar(&bridgeOpt, "b", "", "counter bridge URL template for -s http, {host} is replaced per instance")
	fs.StringVar(&addrOpt, "a", "", "remote collector address (host:port or URL), empty disables publishing")
	fs.StringVar(&keyOpt, "k", "", "secret key for HashSHA256 header")
	fs.StringVar(&metricsOpt, "m", "", fmt.Sprintf("exposition listen address, default: %s, \"-\" disables", defaultMetricsAddr))
	fs.DurationVar(&pollOpt, "p", 0, fmt.Sprintf("poll interval, default: %s", defaultPollInterval))
	fs.DurationVar(&timeoutOpt, "t", 0, fmt.Sprintf("per-instance query timeout, default: %s", defaultQueryTimeout))
	fs.IntVar(&limitOpt, "l", 0, fmt.Sprintf("max concurrent instance passes and publisher workers, default: %d", defaultRateLimit))
	fs.BoolVar(&onceOpt, "once", false, "run a single pass and print samples as JSON lines")
	fs.BoolVar(&catalogOpt, "catalog", false, "print the metric catalog and exit")
	fs.BoolVar(&versionOpt, "version", false, "print build information and exit")

	if err := fs.Parse(args); err != nil {
		return AgentConfig{}, err
	}

	cfg := AgentConfig{
		InstancesFile: FromEnvOrFlag("INSTANCES_FILE", instOpt, defaultInstancesFile),
		Source:        strings.ToLower(FromEnvOrFlag("SOURCE", srcOpt, SourceWMI)),
		BridgeURL:     FromEnvOrFlag("BRIDGE_URL", bridgeOpt, ""),
		Key:           FromEnvOrFlag("KEY", keyOpt, ""),
		MetricsAddr:   FromEnvOrFlag("METRICS_ADDR", metricsOpt, defaultMetricsAddr),
		LogLevel:      strings.ToLower(misc.Getenv("LOG_LEVEL", defaultLogLevel)),
		LogFile:       misc.Getenv("LOG_FILE", ""),
		PollInterval:  FromEnvOrFlagDuration("POLL_INTERVAL", pollOpt, defaultPollInterval),
		QueryTimeout:  FromEnvOrFlagDuration("QUERY_TIMEOUT", timeoutOpt, defaultQueryTimeout),
		RateLimit:     FromEnvOrFlagInt("RATE_LIMIT", limitOpt, defaultRateLimit, 1),
		Once:          onceOpt,
		Catalog:       catalogOpt,
		Version:       versionOpt,
	}
	if cfg.MetricsAddr == "-" {
		cfg.MetricsAddr = ""
	}

	switch cfg.Source {
	case SourceWMI, SourceHTTP:
	default:
		return AgentConfig{}, fmt.Errorf("unknown source %q (want %s or %s)", cfg.Source, SourceWMI, SourceHTTP)
	}
	if cfg.PollInterval <= 0 {
		return AgentConfig{}, fmt.Errorf("poll interval must be > 0, got %v", cfg.PollInterval)
	}
	if cfg.QueryTimeout <= 0 {
		return AgentConfig{}, fmt.Errorf("query timeout must be > 0, got %v", cfg.QueryTimeout)
	}

	if addr := FromEnvOrFlag("ADDRESS", addrOpt, ""); addr != "" {
		addr = normalizeAddressURL(addr)
		if _, err := url.ParseRequestURI(addr); err != nil {
			return AgentConfig{}, fmt.Errorf("invalid server address: %q", addr)
		}
		cfg.Address = addr
	}
	return cfg, nil
}

func normalizeAddressURL(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		return s
	}
	if strings.HasPrefix(s, ":") {
		return "http://localhost" + s
	}
	return "http://" + s
}
