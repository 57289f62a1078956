// Package collector turns provider counter records into typed, tagged metric submissions.
package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vshulcz/iischeck/internal/domain"
	"github.com/vshulcz/iischeck/internal/ports"
)

// Collector maps the counters of one provider class onto a fixed metric table.
// It keeps no state between passes and may be shared across instances.
type Collector struct {
	log   *zap.Logger
	class string
	table []domain.Mapping
	now   func() time.Time
}

// New builds a Collector for class using table. A nil logger discards output.
func New(log *zap.Logger, class string, table []domain.Mapping) *Collector {
	if log == nil {
		log = zap.NewNop()
	}
	return &Collector{log: log, class: class, table: table, now: time.Now}
}

// Table returns the metric table the collector submits.
func (c *Collector) Table() []domain.Mapping { return c.table }

// Class returns the provider class the collector queries.
func (c *Collector) Class() string { return c.class }

// Collect runs one pass: query conn once, then submit every mapped counter of every
// non-aggregate entity to sink tagged with baseTags plus the entity's site tag.
// Only a failed or empty query aborts the pass; per-metric failures are logged and skipped.
func (c *Collector) Collect(ctx context.Context, conn ports.Conn, sink ports.Sink, host string, baseTags []string) domain.PassReport {
	start := c.now()
	rep := domain.PassReport{Host: host}

	records, err := c.query(ctx, conn)
	if err != nil {
		c.log.Error("unable to fetch provider class",
			zap.String("class", c.class),
			zap.String("host", host),
			zap.Error(err))
		rep.Err = err
		rep.Duration = c.now().Sub(start)
		return rep
	}

	for _, rec := range records {
		if rec.IsAggregate() {
			rep.Aggregates++
			continue
		}
		rep.Entities++

		tags := make([]string, 0, len(baseTags)+1)
		tags = append(tags, baseTags...)
		tags = append(tags, domain.SiteTagPrefix+rec.Name)

		for _, m := range c.table {
			raw, ok := rec.Counter(m.Counter)
			if !ok {
				rep.Missing++
				c.log.Error("unable to fetch metric",
					zap.String("metric", m.Name),
					zap.String("counter", m.Counter),
					zap.String("class", c.class),
					zap.String("site", rec.Name),
					zap.Error(domain.ErrMissingCounter))
				continue
			}
			v, err := domain.ToFloat(raw)
			if err != nil {
				rep.Conversions++
				c.log.Error("unable to convert counter value",
					zap.String("metric", m.Name),
					zap.String("counter", m.Counter),
					zap.String("site", rec.Name),
					zap.Error(err))
				continue
			}
			if err := submit(sink, m, v, tags); err != nil {
				c.log.Error("unable to submit metric",
					zap.String("metric", m.Name),
					zap.String("site", rec.Name),
					zap.Error(err))
				continue
			}
			rep.Submitted++
		}
	}

	rep.Duration = c.now().Sub(start)
	return rep
}

func (c *Collector) query(ctx context.Context, conn ports.Conn) ([]domain.EntityRecord, error) {
	if conn == nil {
		return nil, fmt.Errorf("fetch %s: %w: no connection", c.class, domain.ErrConnectivity)
	}
	records, err := conn.QueryEntities(ctx, c.class)
	if err != nil {
		if errors.Is(err, domain.ErrQuery) {
			return nil, fmt.Errorf("fetch %s: %w", c.class, err)
		}
		return nil, fmt.Errorf("fetch %s: %w: %w", c.class, domain.ErrQuery, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("fetch %s: %w: missing data", c.class, domain.ErrQuery)
	}
	return records, nil
}

func submit(sink ports.Sink, m domain.Mapping, v float64, tags []string) error {
	switch m.Kind {
	case domain.Gauge:
		sink.Submit(m.Name, v, tags, domain.Gauge)
	case domain.Rate:
		sink.Submit(m.Name, v, tags, domain.Rate)
	default:
		return fmt.Errorf("%w: %q", domain.ErrInvalidKind, m.Kind)
	}
	return nil
}

// ValidateTable rejects tables with empty names, empty counters, duplicate metric names or unknown kinds.
func ValidateTable(table []domain.Mapping) error {
	seen := make(map[string]struct{}, len(table))
	for i, m := range table {
		if m.Name == "" || m.Counter == "" {
			return fmt.Errorf("mapping %d: empty metric or counter name", i)
		}
		if _, err := domain.ParseMetricKind(string(m.Kind)); err != nil {
			return fmt.Errorf("mapping %s: %w", m.Name, err)
		}
		if _, dup := seen[m.Name]; dup {
			return fmt.Errorf("mapping %s: duplicate metric name", m.Name)
		}
		seen[m.Name] = struct{}{}
	}
	return nil
}
