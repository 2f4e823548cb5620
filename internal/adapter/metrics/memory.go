package metrics

import (
	"math"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/gantryio/gantry/internal/core/ports"
)

// MemoryRegistry keeps instrument values in-process. Tests read them back via
// CounterValue and GaugeValue.
type MemoryRegistry struct {
	counters *xsync.Map[string, *memValue]
	gauges   *xsync.Map[string, *memValue]
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		counters: xsync.NewMap[string, *memValue](),
		gauges:   xsync.NewMap[string, *memValue](),
	}
}

func (r *MemoryRegistry) Counter(name string, labels map[string]string) ports.Counter {
	v, _ := r.counters.LoadOrCompute(instrumentKey(name, labels), func() (*memValue, bool) {
		return &memValue{}, false
	})
	return v
}

func (r *MemoryRegistry) Gauge(name string, labels map[string]string) ports.Gauge {
	v, _ := r.gauges.LoadOrCompute(instrumentKey(name, labels), func() (*memValue, bool) {
		return &memValue{}, false
	})
	return v
}

func (r *MemoryRegistry) CounterValue(name string, labels map[string]string) float64 {
	if v, ok := r.counters.Load(instrumentKey(name, labels)); ok {
		return v.value()
	}
	return 0
}

func (r *MemoryRegistry) GaugeValue(name string, labels map[string]string) float64 {
	if v, ok := r.gauges.Load(instrumentKey(name, labels)); ok {
		return v.value()
	}
	return 0
}

// memValue stores a float64 as raw bits so updates stay lock-free.
type memValue struct {
	bits atomic.Uint64
}

func (m *memValue) value() float64 {
	return math.Float64frombits(m.bits.Load())
}

func (m *memValue) Inc() { m.Add(1) }
func (m *memValue) Dec() { m.Add(-1) }

func (m *memValue) Add(delta float64) {
	for {
		old := m.bits.Load()
		next := math.Float64bits(math.Float64frombits(old) + delta)
		if m.bits.CompareAndSwap(old, next) {
			return
		}
	}
}

func (m *memValue) Set(value float64) {
	m.bits.Store(math.Float64bits(value))
}
