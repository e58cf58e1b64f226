package report

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/observerlab/observer/internal/dispatch"
)

// LiveCollector tracks in-flight run statistics for progress display. The
// final report is computed from the exact duration sample by the
// Aggregator; the collector trades exactness for constant memory so it can
// be read every second during very long runs.
type LiveCollector struct {
	mu        sync.Mutex
	hist      *hdrhistogram.Histogram
	successes int64
	failures  int64
	start     time.Time
}

// LiveStats is a snapshot of the running totals.
type LiveStats struct {
	Total          int64
	Successes      int64
	Failures       int64
	RequestsPerSec float64
	P50Latency     time.Duration
	P90Latency     time.Duration
	P99Latency     time.Duration
}

// NewLiveCollector creates a collector tracking latencies from 1µs to 60s
// at 3 significant figures.
func NewLiveCollector() *LiveCollector {
	return &LiveCollector{
		hist:  hdrhistogram.New(1, 60_000_000, 3),
		start: time.Now(),
	}
}

// Start marks the actual beginning of the run so rates reflect dispatch
// time rather than construction time.
func (c *LiveCollector) Start() {
	c.mu.Lock()
	c.start = time.Now()
	c.mu.Unlock()
}

// Record folds one outcome into the live view.
func (c *LiveCollector) Record(o dispatch.Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if o.Duration > 0 {
		us := o.Duration.Microseconds()
		if us < c.hist.LowestTrackableValue() {
			us = c.hist.LowestTrackableValue()
		}
		if us > c.hist.HighestTrackableValue() {
			us = c.hist.HighestTrackableValue()
		}
		_ = c.hist.RecordValue(us)
	}
	if o.Success() {
		c.successes++
	} else {
		c.failures++
	}
}

// Stats snapshots the current totals.
func (c *LiveCollector) Stats() LiveStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := LiveStats{
		Total:     c.successes + c.failures,
		Successes: c.successes,
		Failures:  c.failures,
	}
	if elapsed := time.Since(c.start); elapsed > 0 && stats.Total > 0 {
		stats.RequestsPerSec = float64(stats.Total) / elapsed.Seconds()
	}
	if c.hist.TotalCount() > 0 {
		stats.P50Latency = time.Duration(c.hist.ValueAtQuantile(50)) * time.Microsecond
		stats.P90Latency = time.Duration(c.hist.ValueAtQuantile(90)) * time.Microsecond
		stats.P99Latency = time.Duration(c.hist.ValueAtQuantile(99)) * time.Microsecond
	}
	return stats
}
