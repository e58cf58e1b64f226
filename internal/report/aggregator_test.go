package report_test

import (
	"bytes"
	"encoding/json"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/observerlab/observer/internal/dispatch"
	"github.com/observerlab/observer/internal/report"
)

func outcomeWithDuration(endpoint string, d time.Duration, class dispatch.Class) dispatch.Outcome {
	return dispatch.Outcome{Endpoint: endpoint, Class: class, Duration: d}
}

// TestPercentileShuffleInvariance verifies percentile computation is
// order-independent: shuffling the sample cannot change p95.
func TestPercentileShuffleInvariance(t *testing.T) {
	durations := make([]time.Duration, 100)
	for i := range durations {
		durations[i] = time.Duration(i+1) * time.Millisecond
	}

	finalize := func(ds []time.Duration) report.Report {
		agg := report.NewAggregator()
		for _, d := range ds {
			agg.Record(outcomeWithDuration("/x", d, dispatch.ClassSuccess))
		}
		return agg.Finalize(time.Second)
	}

	base := finalize(durations)

	rnd := rand.New(rand.NewSource(11))
	for trial := 0; trial < 5; trial++ {
		shuffled := append([]time.Duration(nil), durations...)
		rnd.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})
		got := finalize(shuffled)
		if got.P95Latency != base.P95Latency {
			t.Fatalf("p95 changed after shuffle: %s vs %s", got.P95Latency, base.P95Latency)
		}
		if got.MedianLatency != base.MedianLatency {
			t.Fatalf("median changed after shuffle: %s vs %s", got.MedianLatency, base.MedianLatency)
		}
	}

	// Nearest-rank on 1..100ms: p95 is the 95th value.
	if base.P95Latency != 95*time.Millisecond {
		t.Fatalf("expected p95 = 95ms, got %s", base.P95Latency)
	}
}

// TestFinalizeZeroOutcomes must produce a defined, empty report.
func TestFinalizeZeroOutcomes(t *testing.T) {
	r := report.NewAggregator().Finalize(0)
	if r.Total != 0 || r.Successes != 0 || r.Failures != 0 {
		t.Fatalf("expected zero totals, got %+v", r)
	}
	if r.MinLatency != 0 || r.P95Latency != 0 || r.MaxLatency != 0 {
		t.Fatalf("expected zero latency stats, got %+v", r)
	}
	if len(r.Endpoints) != 0 {
		t.Fatalf("expected empty breakdown, got %v", r.Endpoints)
	}
	if r.RunID == "" {
		t.Fatal("expected a run ID even for empty runs")
	}
}

// TestFinalizeSingleOutcome degenerates every percentile to that value.
func TestFinalizeSingleOutcome(t *testing.T) {
	agg := report.NewAggregator()
	agg.Record(outcomeWithDuration("/health", 42*time.Millisecond, dispatch.ClassSuccess))
	r := agg.Finalize(time.Second)

	for name, got := range map[string]time.Duration{
		"min":    r.MinLatency,
		"mean":   r.MeanLatency,
		"median": r.MedianLatency,
		"p95":    r.P95Latency,
		"max":    r.MaxLatency,
	} {
		if got != 42*time.Millisecond {
			t.Fatalf("%s: expected 42ms, got %s", name, got)
		}
	}
}

// TestNearestRankKnownValues pins the documented nearest-rank choice on a
// small even-sized sample.
func TestNearestRankKnownValues(t *testing.T) {
	agg := report.NewAggregator()
	for _, d := range []time.Duration{10, 20, 30, 40} {
		agg.Record(outcomeWithDuration("/x", d*time.Millisecond, dispatch.ClassSuccess))
	}
	r := agg.Finalize(time.Second)

	if r.MedianLatency != 20*time.Millisecond {
		t.Fatalf("median: expected 20ms (nearest rank), got %s", r.MedianLatency)
	}
	if r.P95Latency != 40*time.Millisecond {
		t.Fatalf("p95: expected 40ms, got %s", r.P95Latency)
	}
}

// TestBreakdownSumsToTotal verifies the per-endpoint invariant.
func TestBreakdownSumsToTotal(t *testing.T) {
	agg := report.NewAggregator()
	agg.Record(outcomeWithDuration("/a", time.Millisecond, dispatch.ClassSuccess))
	agg.Record(outcomeWithDuration("/a", time.Millisecond, dispatch.ClassServerError))
	agg.Record(outcomeWithDuration("/b", time.Millisecond, dispatch.ClassSuccess))
	agg.Record(outcomeWithDuration("/c", time.Millisecond, dispatch.ClassTransportError))
	r := agg.Finalize(time.Second)

	var sum, successSum int64
	for _, ep := range r.Endpoints {
		sum += ep.Total
		successSum += ep.Successes
	}
	if sum != r.Total {
		t.Fatalf("endpoint totals %d != report total %d", sum, r.Total)
	}
	if successSum != r.Successes {
		t.Fatalf("endpoint successes %d != report successes %d", successSum, r.Successes)
	}
	if r.Failures != 2 {
		t.Fatalf("expected 2 failures, got %d", r.Failures)
	}
	if r.Classes[string(dispatch.ClassTransportError)] != 1 {
		t.Fatalf("expected 1 transport error, got %v", r.Classes)
	}
}

func TestPrintReportContainsSummary(t *testing.T) {
	agg := report.NewAggregator()
	agg.Record(outcomeWithDuration("/simulate", 100*time.Millisecond, dispatch.ClassSuccess))
	agg.Record(outcomeWithDuration("/error", 5*time.Millisecond, dispatch.ClassServerError))
	r := agg.Finalize(2 * time.Second)

	var buf bytes.Buffer
	report.PrintReport(&buf, r)
	out := buf.String()

	for _, want := range []string{
		"Total Requests:    2",
		"Successful:        1 (50.0%)",
		"Errors:            1 (50.0%)",
		"Endpoint Breakdown:",
		"/simulate: 1 requests, 100.0% success",
		"/error: 1 requests, 0.0% success",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("summary missing %q in:\n%s", want, out)
		}
	}
}

func TestPrintJSONReportRoundTrips(t *testing.T) {
	agg := report.NewAggregator()
	agg.Record(outcomeWithDuration("/a", 10*time.Millisecond, dispatch.ClassSuccess))
	r := agg.Finalize(time.Second)

	var buf bytes.Buffer
	if err := report.PrintJSONReport(&buf, r); err != nil {
		t.Fatalf("print json: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded["total"].(float64) != 1 {
		t.Fatalf("unexpected total in JSON: %v", decoded["total"])
	}
}

// TestLiveCollectorStats sanity-checks the constant-memory live view.
func TestLiveCollectorStats(t *testing.T) {
	c := report.NewLiveCollector()
	c.Start()
	c.Record(outcomeWithDuration("/a", 10*time.Millisecond, dispatch.ClassSuccess))
	c.Record(outcomeWithDuration("/a", 20*time.Millisecond, dispatch.ClassServerError))

	stats := c.Stats()
	if stats.Total != 2 || stats.Successes != 1 || stats.Failures != 1 {
		t.Fatalf("unexpected live stats: %+v", stats)
	}
	if stats.P99Latency < 15*time.Millisecond {
		t.Fatalf("expected p99 near the slowest sample, got %s", stats.P99Latency)
	}
}
