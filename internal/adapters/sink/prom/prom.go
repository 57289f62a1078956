// Package prom exposes submitted samples and agent self metrics in Prometheus format.
package prom

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vshulcz/iischeck/internal/domain"
	"github.com/vshulcz/iischeck/internal/ports"
)

// bareTagValue is the label value used for tags without a "key:" part.
const bareTagValue = "true"

// HostLabel carries the instance host on host-scoped series. A tag with the
// same key is kept as tag_host.
const HostLabel = "host"

type series struct {
	seen   time.Time
	labels map[string]string
	name   string
	kind   domain.MetricKind
	value  float64
}

// Sink keeps the latest value of every (metric, tags) series and serves it on scrape.
// Gauges are exported as gauges; rates are exported as counters so the scraper derives the rate.
type Sink struct {
	now    func() time.Time
	series map[string]*series
	ttl    time.Duration
	mu     sync.RWMutex
}

var (
	_ ports.Sink           = (*Sink)(nil)
	_ ports.HostScoper     = (*Sink)(nil)
	_ prometheus.Collector = (*Sink)(nil)
)

// NewSink returns a sink dropping series not refreshed within ttl. ttl<=0 keeps series forever.
func NewSink(ttl time.Duration) *Sink {
	return &Sink{series: make(map[string]*series), ttl: ttl, now: time.Now}
}

// Submit records the latest value of a series identified by its metric and labels.
func (s *Sink) Submit(name string, value float64, tags []string, kind domain.MetricKind) {
	s.record("", name, value, tags, kind)
}

// ForHost returns a view of s whose series carry a host label, so equal tag
// sets reported by different instances stay separate series.
func (s *Sink) ForHost(host string) ports.Sink {
	return hostView{s: s, host: host}
}

type hostView struct {
	s    *Sink
	host string
}

func (v hostView) Submit(name string, value float64, tags []string, kind domain.MetricKind) {
	v.s.record(v.host, name, value, tags, kind)
}

func (s *Sink) record(host, name string, value float64, tags []string, kind domain.MetricKind) {
	labels := TagsToLabels(tags)
	if host != "" {
		if v, ok := labels[HostLabel]; ok {
			labels["tag_"+HostLabel] = v
		}
		labels[HostLabel] = host
	}
	family := MetricName(name, kind)
	key := seriesKey(family, labels)
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.series[key]; ok {
		cur.value = value
		cur.seen = now
		return
	}
	s.series[key] = &series{
		name:   family,
		kind:   kind,
		labels: labels,
		value:  value,
		seen:   now,
	}
}

// Describe sends nothing: the sink is an unchecked collector whose series change with the sites.
func (*Sink) Describe(chan<- *prometheus.Desc) {}

// Collect emits one const metric per live series. Label sets inside a family are
// padded to the union of their names so every family stays consistent.
func (s *Sink) Collect(ch chan<- prometheus.Metric) {
	s.prune()

	s.mu.RLock()
	families := make(map[string][]series)
	for _, sr := range s.series {
		families[sr.name] = append(families[sr.name], *sr)
	}
	s.mu.RUnlock()

	for name, list := range families {
		keys := labelUnion(list)
		desc := prometheus.NewDesc(name, "IIS web service counter "+name, keys, nil)
		for _, sr := range list {
			vals := make([]string, len(keys))
			for i, k := range keys {
				vals[i] = sr.labels[k]
			}
			vt := prometheus.GaugeValue
			if sr.kind == domain.Rate {
				vt = prometheus.CounterValue
			}
			m, err := prometheus.NewConstMetric(desc, vt, sr.value, vals...)
			if err != nil {
				ch <- prometheus.NewInvalidMetric(desc, err)
				continue
			}
			ch <- m
		}
	}
}

// Len reports the number of live series.
func (s *Sink) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.series)
}

func (s *Sink) prune() {
	if s.ttl <= 0 {
		return
	}
	cutoff := s.now().Add(-s.ttl)
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, sr := range s.series {
		if sr.seen.Before(cutoff) {
			delete(s.series, k)
		}
	}
}

// seriesKey identifies a series by its exported family and label set, so two
// submissions that would expose the same series share one entry.
func seriesKey(family string, labels map[string]string) string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(family)
	for _, k := range keys {
		b.WriteByte(0xff)
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(labels[k])
	}
	return b.String()
}

func labelUnion(list []series) []string {
	set := make(map[string]struct{})
	for _, sr := range list {
		for k := range sr.labels {
			set[k] = struct{}{}
		}
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MetricName converts a dotted metric name to a Prometheus name; rates get the _total suffix.
func MetricName(name string, kind domain.MetricKind) string {
	n := sanitize(name)
	if kind == domain.Rate && !strings.HasSuffix(n, "_total") {
		n += "_total"
	}
	return n
}

// TagsToLabels turns "key:value" tags into labels. Bare tags map to "true".
// Values of a repeated key are joined with "," in tag order. Empty values
// are dropped, as Prometheus treats them as an absent label.
func TagsToLabels(tags []string) map[string]string {
	out := make(map[string]string, len(tags))
	for _, t := range tags {
		k, v, ok := strings.Cut(t, ":")
		if !ok {
			v = bareTagValue
		}
		k = sanitize(k)
		if k == "" || v == "" {
			continue
		}
		if prev, ok := out[k]; ok {
			v = prev + "," + v
		}
		out[k] = v
	}
	return out
}

func sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
