package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vshulcz/iischeck/internal/adapters/collector/host"
	"github.com/vshulcz/iischeck/internal/adapters/http/ginserver"
	"github.com/vshulcz/iischeck/internal/adapters/http/ginserver/middlewares"
	"github.com/vshulcz/iischeck/internal/adapters/publisher/httpjson"
	"github.com/vshulcz/iischeck/internal/adapters/sink/memory"
	"github.com/vshulcz/iischeck/internal/adapters/sink/prom"
	"github.com/vshulcz/iischeck/internal/adapters/source/bridge"
	"github.com/vshulcz/iischeck/internal/adapters/source/wmi"
	"github.com/vshulcz/iischeck/internal/config"
	"github.com/vshulcz/iischeck/internal/domain"
	"github.com/vshulcz/iischeck/internal/logger"
	"github.com/vshulcz/iischeck/internal/ports"
	agentsvc "github.com/vshulcz/iischeck/internal/services/agent"
	"github.com/vshulcz/iischeck/internal/services/collector"
	"github.com/vshulcz/iischeck/pkg/observer"
	"github.com/vshulcz/iischeck/pkg/util"
)

var errPassFailed = errors.New("collection pass failed")

func newConnector(cfg config.AgentConfig) ports.Connector {
	if cfg.Source == config.SourceHTTP {
		return bridge.New(cfg.BridgeURL, &http.Client{Timeout: cfg.QueryTimeout})
	}
	return wmi.New(cfg.QueryTimeout)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, connect func(config.AgentConfig) ports.Connector) error {
	cfg, err := config.LoadAgentConfig(args, stderr)
	if err != nil {
		return err
	}
	if cfg.Version {
		util.PrintBuildInfo(stdout, buildVersion, buildDate, buildCommit)
		return nil
	}
	if cfg.Catalog {
		return printCatalog(stdout, collector.WebServiceClass, collector.IISMetrics)
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	instances, err := config.LoadInstances(cfg.InstancesFile)
	if err != nil {
		return err
	}
	col := collector.New(log, collector.WebServiceClass, collector.IISMetrics)
	opts := agentsvc.Options{PollInterval: cfg.PollInterval, QueryTimeout: cfg.QueryTimeout, RateLimit: cfg.RateLimit}

	if cfg.Once {
		return runOnce(ctx, log, opts, col, connect(cfg), instances, stdout)
	}
	return runAgent(ctx, log, cfg, opts, col, connect(cfg), instances)
}

func runOnce(ctx context.Context, log *zap.Logger, opts agentsvc.Options, col *collector.Collector,
	conn ports.Connector, instances []config.Instance, stdout io.Writer,
) error {
	buf := memory.New(0)
	svc := agentsvc.New(log, opts, col, conn, buf, observer.NewSubject(agentsvc.PassLogger(log)))
	svc.SetInstances(instances)

	failed := 0
	reports := svc.RunOnce(ctx)
	for _, r := range reports {
		if r.Err != nil {
			failed++
		}
	}

	enc := json.NewEncoder(stdout)
	for _, s := range buf.Samples() {
		if err := enc.Encode(s); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d instances", errPassFailed, failed, len(reports))
	}
	return nil
}

func runAgent(ctx context.Context, log *zap.Logger, cfg config.AgentConfig, opts agentsvc.Options,
	col *collector.Collector, conn ports.Connector, instances []config.Instance,
) error {
	hostStats := host.New(false)
	if err := hostStats.Start(ctx, cfg.PollInterval); err != nil {
		return err
	}
	defer hostStats.Stop()

	promSink := prom.NewSink(seriesTTL(cfg.PollInterval, instances))
	pass := prom.NewPassMetrics()
	reg, err := prom.NewRegistry(promSink, pass, hostStats)
	if err != nil {
		return err
	}

	events := observer.NewSubject[domain.PassReport](agentsvc.PassLogger(log), pass)
	events.SetErrorHandler(func(err error) { log.Warn("pass observer failed", zap.Error(err)) })

	sinks := []ports.Sink{promSink}
	var buf *memory.Sink
	if cfg.Address != "" {
		buf = memory.New(0)
		sinks = append(sinks, buf)
	}
	svc := agentsvc.New(log, opts, col, conn, agentsvc.Tee(sinks...), events)
	if buf != nil {
		pub, err := httpjson.New(cfg.Address, &http.Client{Timeout: cfg.QueryTimeout}, cfg.Key)
		if err != nil {
			return err
		}
		svc.WithShipping(buf, pub)
	}
	svc.SetInstances(instances)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return svc.Run(gctx) })
	g.Go(func() error {
		if err := config.WatchInstances(gctx, log, cfg.InstancesFile, svc.SetInstances); err != nil {
			log.Warn("instances file not watched", zap.String("path", cfg.InstancesFile), zap.Error(err))
		}
		return nil
	})
	if cfg.MetricsAddr != "" {
		h := ginserver.NewHandler(reg, col.Class(), col.Table(), svc)
		r := ginserver.NewRouter(h, cfg.Key, middlewares.ZapLogger(log), middlewares.GzipResponse())
		g.Go(func() error { return ginserver.Serve(gctx, log, cfg.MetricsAddr, r) })
	}

	log.Info("agent started",
		zap.String("source", cfg.Source),
		zap.Int("instances", len(instances)),
		zap.Duration("poll", cfg.PollInterval),
		zap.String("metrics_addr", cfg.MetricsAddr),
		zap.String("publish_to", cfg.Address),
		zap.Int("limit", cfg.RateLimit))
	return g.Wait()
}

// seriesTTL keeps a series through two missed passes of the slowest instance.
func seriesTTL(poll time.Duration, instances []config.Instance) time.Duration {
	slowest := poll
	for _, in := range instances {
		slowest = max(slowest, in.Interval)
	}
	return 3 * slowest
}

func printCatalog(w io.Writer, class string, table []domain.Mapping) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "# %s\n", class)
	fmt.Fprintln(tw, "METRIC\tTYPE\tCOUNTER")
	for _, m := range table {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", m.Name, m.Kind, m.Counter)
	}
	return tw.Flush()
}
