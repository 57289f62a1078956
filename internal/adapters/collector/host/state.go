package host

import (
	"maps"
	"sync/atomic"
)

// reading is one published host sample. It is never mutated after store.
type reading struct {
	gauges  map[string]float64
	samples int64
	errors  int64
}

type state struct {
	cur atomic.Pointer[reading]
}

func newState() *state {
	s := &state{}
	s.cur.Store(&reading{gauges: map[string]float64{}})
	return s
}

// next starts a reading from the last one so a failed source keeps its previous values.
func (s *state) next() *reading {
	prev := s.cur.Load()
	return &reading{
		gauges:  maps.Clone(prev.gauges),
		samples: prev.samples + 1,
		errors:  prev.errors,
	}
}

func (s *state) publish(r *reading) { s.cur.Store(r) }

func (s *state) snapshot() (map[string]float64, map[string]int64) {
	r := s.cur.Load()
	return maps.Clone(r.gauges), map[string]int64{Samples: r.samples, SampleErrors: r.errors}
}
