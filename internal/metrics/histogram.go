package metrics

import (
	"fmt"
	"sort"
	"sync"
)

// DefBuckets are the default histogram upper bounds, tuned for request
// latencies in seconds.
var DefBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// Histogram is a single series of observations bucketed by fixed ascending
// upper bounds plus an implicit +Inf bucket. Buckets are immutable after
// registration.
type Histogram struct {
	bounds []float64 // shared with the family, read-only

	mu     sync.Mutex
	counts []uint64 // per-bucket (non-cumulative), len(bounds)+1, last is +Inf
	sum    float64
	count  uint64
}

// Observe records one value. Exactly one underlying bucket is incremented;
// the exposition renders cumulative counts.
func (h *Histogram) Observe(v float64) {
	idx := sort.SearchFloat64s(h.bounds, v)

	h.mu.Lock()
	h.counts[idx]++
	h.sum += v
	h.count++
	h.mu.Unlock()
}

// HistogramSnapshot is a point-in-time copy of one histogram series.
type HistogramSnapshot struct {
	Bounds []float64
	// Cumulative holds, for each bound in order and finally +Inf, the count
	// of observations less than or equal to that bound. Counts are
	// non-decreasing and the +Inf entry equals Count.
	Cumulative []uint64
	Sum        float64
	Count      uint64
}

// Snapshot copies the series' current state under its lock.
func (h *Histogram) Snapshot() HistogramSnapshot {
	h.mu.Lock()
	counts := append([]uint64(nil), h.counts...)
	sum := h.sum
	count := h.count
	h.mu.Unlock()

	cumulative := make([]uint64, len(counts))
	var running uint64
	for i, c := range counts {
		running += c
		cumulative[i] = running
	}
	return HistogramSnapshot{
		Bounds:     h.bounds,
		Cumulative: cumulative,
		Sum:        sum,
		Count:      count,
	}
}

// HistogramVec is a set of histograms partitioned by label values. Every
// series shares the vector's bucket layout.
type HistogramVec struct {
	fam    *family
	mu     sync.RWMutex
	series map[string]*Histogram
}

// WithLabelValues returns the histogram for the given label values,
// creating it on first use. The number of values must match the registered
// label names; a mismatch is a programming error and panics.
func (v *HistogramVec) WithLabelValues(values ...string) *Histogram {
	if len(values) != len(v.fam.labelNames) {
		panic(fmt.Sprintf("metrics: %s expects %d label values, got %d",
			v.fam.name, len(v.fam.labelNames), len(values)))
	}
	key := seriesKey(values)

	v.mu.RLock()
	h, ok := v.series[key]
	v.mu.RUnlock()
	if ok {
		return h
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if h, ok = v.series[key]; ok {
		return h
	}
	h = &Histogram{
		bounds: v.fam.buckets,
		counts: make([]uint64, len(v.fam.buckets)+1),
	}
	v.series[key] = h
	return h
}
