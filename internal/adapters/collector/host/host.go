// Package host samples CPU and memory usage of the machine running the agent.
package host

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Gauge names reported by Snapshot.
const (
	CPUPercent        = "cpu_percent"
	CPUCorePrefix     = "cpu_core_percent_"
	MemoryTotal       = "memory_total_bytes"
	MemoryUsed        = "memory_used_bytes"
	MemoryUsedPercent = "memory_used_percent"
	Samples           = "samples"
	SampleErrors      = "sample_errors"
)

// Collector periodically samples host CPU/RAM usage.
type Collector struct {
	st      *state
	stop    chan struct{}
	cpuPct  func(percpu bool) ([]float64, error)
	vmem    func() (*mem.VirtualMemoryStat, error)
	wg      sync.WaitGroup
	perCore bool
}

// New creates a Collector. perCore adds one gauge per logical CPU.
func New(perCore bool) *Collector {
	return &Collector{
		st:      newState(),
		stop:    make(chan struct{}),
		perCore: perCore,
		cpuPct: func(percpu bool) ([]float64, error) {
			return cpu.Percent(0, percpu)
		},
		vmem: mem.VirtualMemory,
	}
}

// Start samples once immediately, then on every interval until ctx is done or Stop is called.
func (c *Collector) Start(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("host sampling interval must be > 0, got %v", interval)
	}
	c.sample()

	t := time.NewTicker(interval)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.stop:
				return
			case <-t.C:
				c.sample()
			}
		}
	}()
	return nil
}

func (c *Collector) sample() {
	r := c.st.next()
	if vm, err := c.vmem(); err == nil && vm != nil {
		r.gauges[MemoryTotal] = float64(vm.Total)
		r.gauges[MemoryUsed] = float64(vm.Used)
		r.gauges[MemoryUsedPercent] = vm.UsedPercent
	} else {
		r.errors++
	}
	if pct, err := c.cpuPct(false); err == nil && len(pct) > 0 {
		r.gauges[CPUPercent] = pct[0]
	} else {
		r.errors++
	}
	if c.perCore {
		if pct, err := c.cpuPct(true); err == nil {
			for i, p := range pct {
				r.gauges[fmt.Sprintf("%s%d", CPUCorePrefix, i)] = p
			}
		}
	}
	c.st.publish(r)
}

// Stop signals the sampling goroutine to halt and waits for it.
func (c *Collector) Stop() {
	select {
	case <-c.stop:
	default:
		close(c.stop)
	}
	c.wg.Wait()
}

// Snapshot returns copies of the latest gauge and counter values.
func (c *Collector) Snapshot() (map[string]float64, map[string]int64) {
	return c.st.snapshot()
}
