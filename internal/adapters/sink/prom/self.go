package prom

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/vshulcz/iischeck/internal/domain"
	"github.com/vshulcz/iischeck/pkg/observer"
)

const namespace = "iischeck"

// PassMetrics counts collection passes and per-metric failures per instance host.
type PassMetrics struct {
	passes      *prometheus.CounterVec
	missing     *prometheus.CounterVec
	conversions *prometheus.CounterVec
	submitted   *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

var _ observer.Observer[domain.PassReport] = (*PassMetrics)(nil)

// NewPassMetrics builds the pass counters. Register them with Registry.
func NewPassMetrics() *PassMetrics {
	return &PassMetrics{
		passes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "passes_total",
			Help: "Collection passes by instance host and result.",
		}, []string{"host", "result"}),
		missing: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "missing_counters_total",
			Help: "Mapped counters absent on an entity record.",
		}, []string{"host"}),
		conversions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "conversion_failures_total",
			Help: "Counter values that could not be converted to float.",
		}, []string{"host"}),
		submitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "submitted_samples_total",
			Help: "Samples submitted to the sinks.",
		}, []string{"host"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "pass_duration_seconds",
			Help:    "Duration of a collection pass.",
			Buckets: prometheus.DefBuckets,
		}, []string{"host"}),
	}
}

// Notify records one pass report.
func (m *PassMetrics) Notify(_ context.Context, r domain.PassReport) error {
	host := r.Host
	if host == "" {
		host = "."
	}
	result := "ok"
	switch {
	case r.Err == nil:
	case errors.Is(r.Err, domain.ErrConnectivity) && !errors.Is(r.Err, domain.ErrQuery):
		result = "connectivity_error"
	default:
		result = "query_error"
	}
	m.passes.WithLabelValues(host, result).Inc()
	m.missing.WithLabelValues(host).Add(float64(r.Missing))
	m.conversions.WithLabelValues(host).Add(float64(r.Conversions))
	m.submitted.WithLabelValues(host).Add(float64(r.Submitted))
	m.duration.WithLabelValues(host).Observe(r.Duration.Seconds())
	return nil
}

func (m *PassMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{m.passes, m.missing, m.conversions, m.submitted, m.duration}
}

// HostSource exposes sampled host gauges, as provided by the host collector.
type HostSource interface {
	Snapshot() (map[string]float64, map[string]int64)
}

type hostCollector struct {
	src HostSource
}

func (hostCollector) Describe(chan<- *prometheus.Desc) {}

func (h hostCollector) Collect(ch chan<- prometheus.Metric) {
	g, c := h.src.Snapshot()
	for name, v := range g {
		desc := prometheus.NewDesc(namespace+"_host_"+sanitize(name), "Agent host gauge "+name+".", nil, nil)
		ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, v)
	}
	for name, v := range c {
		desc := prometheus.NewDesc(namespace+"_host_"+sanitize(name)+"_total", "Agent host counter "+name+".", nil, nil)
		ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(v))
	}
}

// NewRegistry returns a registry serving the sample sink, pass metrics, host gauges
// and the Go/process collectors. Nil arguments are skipped.
func NewRegistry(sink *Sink, pass *PassMetrics, host HostSource) (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	cs := []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	}
	if sink != nil {
		cs = append(cs, sink)
	}
	if pass != nil {
		cs = append(cs, pass.collectors()...)
	}
	if host != nil {
		cs = append(cs, hostCollector{src: host})
	}
	for _, c := range cs {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
