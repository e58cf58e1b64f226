package metrics

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
)

// Counter is a single monotonically non-decreasing series. It is only ever
// incremented; the value resets when the process restarts.
type Counter struct {
	bits uint64
}

// Inc adds one to the counter.
func (c *Counter) Inc() {
	c.Add(1)
}

// Add increments the counter by v. Negative deltas are a programming error
// and panic, matching the monotonicity contract.
func (c *Counter) Add(v float64) {
	if v < 0 {
		panic("metrics: counter cannot decrease")
	}
	for {
		old := atomic.LoadUint64(&c.bits)
		next := math.Float64bits(math.Float64frombits(old) + v)
		if atomic.CompareAndSwapUint64(&c.bits, old, next) {
			return
		}
	}
}

// Value returns the current counter value.
func (c *Counter) Value() float64 {
	return math.Float64frombits(atomic.LoadUint64(&c.bits))
}

// CounterVec is a set of counters partitioned by label values.
type CounterVec struct {
	fam    *family
	mu     sync.RWMutex
	series map[string]*Counter
}

// WithLabelValues returns the counter for the given label values, creating
// it on first use. Repeated calls with the same values return the same
// series instance. The number of values must match the registered label
// names; a mismatch is a programming error and panics.
func (v *CounterVec) WithLabelValues(values ...string) *Counter {
	if len(values) != len(v.fam.labelNames) {
		panic(fmt.Sprintf("metrics: %s expects %d label values, got %d",
			v.fam.name, len(v.fam.labelNames), len(values)))
	}
	key := seriesKey(values)

	v.mu.RLock()
	c, ok := v.series[key]
	v.mu.RUnlock()
	if ok {
		return c
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if c, ok = v.series[key]; ok {
		return c
	}
	c = &Counter{}
	v.series[key] = c
	return c
}
