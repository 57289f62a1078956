// Package agent schedules collection passes over the configured instances.
package agent

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vshulcz/iischeck/internal/config"
	"github.com/vshulcz/iischeck/internal/domain"
	"github.com/vshulcz/iischeck/internal/ports"
	"github.com/vshulcz/iischeck/internal/services/collector"
	"github.com/vshulcz/iischeck/pkg/observer"
)

// Drainer hands over buffered samples for shipping.
type Drainer interface {
	Drain() []domain.Sample
}

// Options tune the scheduling loop.
type Options struct {
	PollInterval time.Duration
	QueryTimeout time.Duration
	RateLimit    int
}

// Service runs one pass per due instance every poll interval and ships the results.
type Service struct {
	log       *zap.Logger
	collector *collector.Collector
	connector ports.Connector
	sink      ports.Sink
	events    observer.Publisher[domain.PassReport]
	buf       Drainer
	pub       ports.Publisher
	now       func() time.Time
	opts      Options

	mu        sync.RWMutex
	instances []config.Instance
	lastRun   map[string]time.Time
}

// New wires the collector to its source and sink. events, buf and pub are optional.
func New(log *zap.Logger, opts Options, c *collector.Collector, conn ports.Connector, sink ports.Sink, events observer.Publisher[domain.PassReport]) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.RateLimit < 1 {
		opts.RateLimit = 1
	}
	return &Service{
		log:       log,
		collector: c,
		connector: conn,
		sink:      sink,
		events:    events,
		now:       time.Now,
		opts:      opts,
		lastRun:   make(map[string]time.Time),
	}
}

// WithShipping drains buf into pub after every tick.
func (s *Service) WithShipping(buf Drainer, pub ports.Publisher) *Service {
	s.buf, s.pub = buf, pub
	return s
}

// SetInstances replaces the monitored set. Safe to call while running.
func (s *Service) SetInstances(list []config.Instance) {
	cp := append([]config.Instance(nil), list...)
	s.mu.Lock()
	s.instances = cp
	keep := make(map[string]time.Time, len(cp))
	for _, in := range cp {
		if t, ok := s.lastRun[instanceKey(in)]; ok {
			keep[instanceKey(in)] = t
		}
	}
	s.lastRun = keep
	s.mu.Unlock()
}

// Instances returns a copy of the monitored set.
func (s *Service) Instances() []config.Instance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]config.Instance(nil), s.instances...)
}

// Run ticks until ctx is done. The first pass starts immediately.
func (s *Service) Run(ctx context.Context) error {
	var sender *BatchPublisher
	if s.buf != nil && s.pub != nil {
		sender = NewBatchPublisher(s.log, s.pub, s.opts.RateLimit)
		sender.Start(ctx)
		defer sender.Stop()
	}

	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	for {
		s.RunOnce(ctx)
		if sender != nil {
			if batch := s.buf.Drain(); len(batch) > 0 {
				sender.Submit(batch)
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce runs a pass for every due instance, at most RateLimit at a time,
// and returns the reports in instance order.
func (s *Service) RunOnce(ctx context.Context) []domain.PassReport {
	due := s.due()
	reports := make([]domain.PassReport, len(due))

	var g errgroup.Group
	g.SetLimit(s.opts.RateLimit)
	for i, in := range due {
		g.Go(func() error {
			reports[i] = s.pass(ctx, in)
			return nil
		})
	}
	_ = g.Wait()
	return reports
}

func (s *Service) due() []config.Instance {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]config.Instance, 0, len(s.instances))
	for _, in := range s.instances {
		key := instanceKey(in)
		if last, ok := s.lastRun[key]; ok && in.Interval > 0 && now.Sub(last) < in.Interval {
			continue
		}
		s.lastRun[key] = now
		out = append(out, in)
	}
	return out
}

func (s *Service) pass(ctx context.Context, in config.Instance) domain.PassReport {
	ctx, cancel := context.WithTimeout(ctx, s.opts.QueryTimeout)
	defer cancel()

	target := in.Target()
	conn, err := s.connector.Connect(ctx, target)
	var rep domain.PassReport
	if err != nil {
		s.log.Error("unable to connect", zap.String("host", target.Host), zap.Error(err))
		rep = domain.PassReport{Host: target.Host, Err: err}
	} else {
		rep = s.collector.Collect(ctx, conn, forHost(s.sink, target.Host), target.Host, in.Tags)
		if cerr := conn.Close(); cerr != nil {
			s.log.Warn("close connection", zap.String("host", target.Host), zap.Error(cerr))
		}
	}
	if s.events != nil {
		s.events.Publish(ctx, rep)
	}
	return rep
}

func instanceKey(in config.Instance) string {
	return in.Name() + "\x00" + strings.Join(in.Tags, "\x00")
}
