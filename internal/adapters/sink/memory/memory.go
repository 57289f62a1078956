// Package memory implements an in-memory, order-preserving metric sink.
package memory

import (
	"slices"
	"sync"
	"time"

	"github.com/vshulcz/iischeck/internal/domain"
	"github.com/vshulcz/iischeck/internal/ports"
)

// DefaultLimit caps the buffer when New is given a non-positive limit.
const DefaultLimit = 50_000

// Sink buffers submissions in arrival order until drained.
// When full, the oldest samples are dropped.
type Sink struct {
	now     func() time.Time
	buf     []domain.Sample
	limit   int
	dropped int
	mu      sync.Mutex
}

var (
	_ ports.Sink       = (*Sink)(nil)
	_ ports.HostScoper = (*Sink)(nil)
)

// New returns an empty sink holding at most limit samples.
func New(limit int) *Sink {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Sink{limit: limit, now: time.Now}
}

// Submit appends a sample. Tags are copied; callers may reuse their slice.
func (s *Sink) Submit(name string, value float64, tags []string, kind domain.MetricKind) {
	s.add("", name, value, tags, kind)
}

// ForHost returns a view of s that stamps every sample with host.
func (s *Sink) ForHost(host string) ports.Sink {
	return hostView{s: s, host: host}
}

type hostView struct {
	s    *Sink
	host string
}

func (v hostView) Submit(name string, value float64, tags []string, kind domain.MetricKind) {
	v.s.add(v.host, name, value, tags, kind)
}

func (s *Sink) add(host, name string, value float64, tags []string, kind domain.MetricKind) {
	smp := domain.Sample{
		Host:  host,
		Name:  name,
		Value: value,
		Tags:  slices.Clone(tags),
		Kind:  kind,
		Time:  s.now(),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.buf) >= s.limit {
		over := len(s.buf) - s.limit + 1
		s.buf = s.buf[over:]
		s.dropped += over
	}
	s.buf = append(s.buf, smp)
}

// Drain returns buffered samples and empties the buffer.
func (s *Sink) Drain() []domain.Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.buf
	s.buf = nil
	return out
}

// Samples returns a copy of the buffered samples without draining them.
func (s *Sink) Samples() []domain.Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.buf)
}

// Len reports the number of buffered samples.
func (s *Sink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buf)
}

// Dropped reports how many samples were evicted because the buffer was full.
func (s *Sink) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}
