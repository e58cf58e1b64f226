package report

import (
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/observerlab/observer/internal/dispatch"
)

// EndpointStats is the per-endpoint slice of a run report.
type EndpointStats struct {
	Total     int64 `json:"total"`
	Successes int64 `json:"successes"`
}

// Report is the immutable summary of one completed load run.
type Report struct {
	RunID     string `json:"run_id"`
	Total     int64  `json:"total"`
	Successes int64  `json:"successes"`
	Failures  int64  `json:"failures"`

	Duration       time.Duration `json:"-"`
	RequestsPerSec float64       `json:"requests_per_sec"`

	MinLatency    time.Duration `json:"-"`
	MeanLatency   time.Duration `json:"-"`
	MedianLatency time.Duration `json:"-"`
	P95Latency    time.Duration `json:"-"`
	MaxLatency    time.Duration `json:"-"`

	// JSON-friendly millisecond fields.
	DurationMs      float64 `json:"duration_ms"`
	MinLatencyMs    float64 `json:"min_latency_ms"`
	MeanLatencyMs   float64 `json:"mean_latency_ms"`
	MedianLatencyMs float64 `json:"median_latency_ms"`
	P95LatencyMs    float64 `json:"p95_latency_ms"`
	MaxLatencyMs    float64 `json:"max_latency_ms"`

	MaxScheduleLagMs float64 `json:"max_schedule_lag_ms"`

	Classes   map[string]int64         `json:"classes,omitempty"`
	Endpoints map[string]EndpointStats `json:"endpoints,omitempty"`
}

// Aggregator accumulates dispatch outcomes into running totals. Record is
// safe for concurrent callers; completion order carries no meaning and none
// is assumed.
type Aggregator struct {
	mu         sync.Mutex
	durations  []time.Duration
	successes  int64
	failures   int64
	maxLag     time.Duration
	byClass    map[dispatch.Class]int64
	byEndpoint map[string]*EndpointStats
}

// NewAggregator creates an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		byClass:    map[dispatch.Class]int64{},
		byEndpoint: map[string]*EndpointStats{},
	}
}

// Record folds one outcome into the running totals.
func (a *Aggregator) Record(o dispatch.Outcome) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.durations = append(a.durations, o.Duration)
	if o.Success() {
		a.successes++
	} else {
		a.failures++
	}
	if o.Lag > a.maxLag {
		a.maxLag = o.Lag
	}
	a.byClass[o.Class]++

	ep := a.byEndpoint[o.Endpoint]
	if ep == nil {
		ep = &EndpointStats{}
		a.byEndpoint[o.Endpoint] = ep
	}
	ep.Total++
	if o.Success() {
		ep.Successes++
	}
}

// Finalize builds the immutable report. Safe to call with zero outcomes:
// every field is zero or empty, never an error.
func (a *Aggregator) Finalize(elapsed time.Duration) Report {
	a.mu.Lock()
	defer a.mu.Unlock()

	total := a.successes + a.failures
	r := Report{
		RunID:     ulid.MustNew(ulid.Timestamp(time.Now()), rand.New(rand.NewSource(time.Now().UnixNano()))).String(),
		Total:     total,
		Successes: a.successes,
		Failures:  a.failures,
		Duration:  elapsed,
		Classes:   map[string]int64{},
		Endpoints: map[string]EndpointStats{},
	}

	for class, n := range a.byClass {
		r.Classes[string(class)] = n
	}
	for endpoint, stats := range a.byEndpoint {
		r.Endpoints[endpoint] = *stats
	}

	if total > 0 && len(a.durations) > 0 {
		sorted := append([]time.Duration(nil), a.durations...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum time.Duration
		for _, d := range sorted {
			sum += d
		}
		r.MinLatency = sorted[0]
		r.MaxLatency = sorted[len(sorted)-1]
		r.MeanLatency = sum / time.Duration(len(sorted))
		r.MedianLatency = nearestRank(sorted, 50)
		r.P95Latency = nearestRank(sorted, 95)
	}

	if elapsed > 0 && total > 0 {
		r.RequestsPerSec = float64(total) / elapsed.Seconds()
	}

	r.DurationMs = toMs(elapsed)
	r.MinLatencyMs = toMs(r.MinLatency)
	r.MeanLatencyMs = toMs(r.MeanLatency)
	r.MedianLatencyMs = toMs(r.MedianLatency)
	r.P95LatencyMs = toMs(r.P95Latency)
	r.MaxLatencyMs = toMs(r.MaxLatency)
	r.MaxScheduleLagMs = toMs(a.maxLag)

	return r
}

// nearestRank picks the p-th percentile from an ascending sample using the
// nearest-rank method: the smallest value with at least p percent of the
// sample at or below it. A single-element sample degenerates to that value.
func nearestRank(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(math.Ceil(p / 100 * float64(len(sorted))))
	if rank < 1 {
		rank = 1
	}
	if rank > len(sorted) {
		rank = len(sorted)
	}
	return sorted[rank-1]
}

func toMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
