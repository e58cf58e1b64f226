package metrics

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
)

// Gauge is a single series holding an instantaneous signed value, such as
// the number of requests currently in flight. Callers that use it as a
// count must pair every Inc with a Dec so the value never goes negative.
type Gauge struct {
	bits uint64
}

// Set replaces the gauge value.
func (g *Gauge) Set(v float64) {
	atomic.StoreUint64(&g.bits, math.Float64bits(v))
}

// Inc adds one to the gauge.
func (g *Gauge) Inc() {
	g.Add(1)
}

// Dec subtracts one from the gauge.
func (g *Gauge) Dec() {
	g.Add(-1)
}

// Add adjusts the gauge by v, which may be negative.
func (g *Gauge) Add(v float64) {
	for {
		old := atomic.LoadUint64(&g.bits)
		next := math.Float64bits(math.Float64frombits(old) + v)
		if atomic.CompareAndSwapUint64(&g.bits, old, next) {
			return
		}
	}
}

// Value returns the current gauge value.
func (g *Gauge) Value() float64 {
	return math.Float64frombits(atomic.LoadUint64(&g.bits))
}

// GaugeVec is a set of gauges partitioned by label values.
type GaugeVec struct {
	fam    *family
	mu     sync.RWMutex
	series map[string]*Gauge
}

// WithLabelValues returns the gauge for the given label values, creating it
// on first use. The number of values must match the registered label names;
// a mismatch is a programming error and panics.
func (v *GaugeVec) WithLabelValues(values ...string) *Gauge {
	if len(values) != len(v.fam.labelNames) {
		panic(fmt.Sprintf("metrics: %s expects %d label values, got %d",
			v.fam.name, len(v.fam.labelNames), len(values)))
	}
	key := seriesKey(values)

	v.mu.RLock()
	g, ok := v.series[key]
	v.mu.RUnlock()
	if ok {
		return g
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if g, ok = v.series[key]; ok {
		return g
	}
	g = &Gauge{}
	v.series[key] = g
	return g
}
