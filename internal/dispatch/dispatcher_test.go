package dispatch_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/observerlab/observer/internal/dispatch"
	"github.com/observerlab/observer/internal/traffic"
)

func flatPlan(endpoint string, n int) []traffic.Descriptor {
	plan := make([]traffic.Descriptor, n)
	for i := range plan {
		plan[i] = traffic.Descriptor{Endpoint: endpoint}
	}
	return plan
}

// TestOneOutcomePerDescriptor verifies the exactly-N guarantee and the
// per-endpoint accounting the aggregator relies on.
func TestOneOutcomePerDescriptor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	plan := append(flatPlan("/health", 30), flatPlan("/simulate", 20)...)
	d := dispatch.New(dispatch.Options{BaseURL: srv.URL, Concurrency: 8, Timeout: time.Second})
	outcomes := d.Run(context.Background(), plan)

	if len(outcomes) != len(plan) {
		t.Fatalf("expected %d outcomes, got %d", len(plan), len(outcomes))
	}
	counts := map[string]int{}
	for _, o := range outcomes {
		if !o.Success() {
			t.Fatalf("unexpected outcome class %s (%v)", o.Class, o.Err)
		}
		counts[o.Endpoint]++
	}
	if counts["/health"] != 30 || counts["/simulate"] != 20 {
		t.Fatalf("per-endpoint counts wrong: %v", counts)
	}
}

// TestConcurrencyBound checks in-flight requests never exceed the limit.
func TestConcurrencyBound(t *testing.T) {
	var inflight, peak int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cur := atomic.AddInt64(&inflight, 1)
		for {
			old := atomic.LoadInt64(&peak)
			if cur <= old || atomic.CompareAndSwapInt64(&peak, old, cur) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt64(&inflight, -1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := dispatch.New(dispatch.Options{BaseURL: srv.URL, Concurrency: 4, Timeout: time.Second})
	outcomes := d.Run(context.Background(), flatPlan("/", 32))

	if len(outcomes) != 32 {
		t.Fatalf("expected 32 outcomes, got %d", len(outcomes))
	}
	if got := atomic.LoadInt64(&peak); got > 4 {
		t.Fatalf("concurrency bound exceeded: peak %d", got)
	}
}

// TestStatusClassification maps response codes onto outcome classes.
func TestStatusClassification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
		case "/boom":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer srv.Close()

	plan := []traffic.Descriptor{
		{Endpoint: "/"},
		{Endpoint: "/missing"},
		{Endpoint: "/boom"},
	}
	d := dispatch.New(dispatch.Options{BaseURL: srv.URL, Concurrency: 1, Timeout: time.Second})
	outcomes := d.Run(context.Background(), plan)

	want := []dispatch.Class{dispatch.ClassSuccess, dispatch.ClassClientError, dispatch.ClassServerError}
	for i, o := range outcomes {
		if o.Class != want[i] {
			t.Fatalf("outcome %d: expected %s, got %s (status %d)", i, want[i], o.Class, o.StatusCode)
		}
	}
}

// TestTimeoutBecomesTransportError ensures a slow target cannot hang the
// run; expiry is classified, not dropped.
func TestTimeoutBecomesTransportError(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	d := dispatch.New(dispatch.Options{BaseURL: srv.URL, Concurrency: 1, Timeout: 50 * time.Millisecond})
	outcomes := d.Run(context.Background(), flatPlan("/slow", 2))

	if len(outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(outcomes))
	}
	for _, o := range outcomes {
		if o.Class != dispatch.ClassTransportError {
			t.Fatalf("expected transport-error, got %s", o.Class)
		}
		if o.Err == nil {
			t.Fatal("expected a recorded error on timeout")
		}
	}
}

// TestRunDeadlineAbandonsPending verifies the run stops dispatching at the
// deadline and still accounts for every descriptor.
func TestRunDeadlineAbandonsPending(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	// Spread 40 descriptors over 4 seconds but cancel after 200ms.
	plan := make([]traffic.Descriptor, 40)
	for i := range plan {
		plan[i] = traffic.Descriptor{Endpoint: "/", Offset: time.Duration(i) * 100 * time.Millisecond}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	d := dispatch.New(dispatch.Options{BaseURL: srv.URL, Concurrency: 4, Timeout: time.Second})
	start := time.Now()
	outcomes := d.Run(ctx, plan)
	elapsed := time.Since(start)

	if len(outcomes) != len(plan) {
		t.Fatalf("expected %d outcomes, got %d", len(plan), len(outcomes))
	}
	if elapsed > 2*time.Second {
		t.Fatalf("run did not stop near its deadline: %s", elapsed)
	}

	var dispatched, abandoned int
	for _, o := range outcomes {
		if o.Class == dispatch.ClassTransportError {
			abandoned++
		} else {
			dispatched++
		}
	}
	if dispatched == 0 {
		t.Fatal("expected some descriptors dispatched before the deadline")
	}
	if abandoned == 0 {
		t.Fatal("expected pending descriptors abandoned as transport errors")
	}
}

// TestUnreachableTarget classifies every outcome as transport-error and
// completes within the run deadline.
func TestUnreachableTarget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close() // nothing listens here anymore

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	d := dispatch.New(dispatch.Options{BaseURL: base, Concurrency: 4, Timeout: 200 * time.Millisecond})
	outcomes := d.Run(ctx, flatPlan("/health", 10))

	if len(outcomes) != 10 {
		t.Fatalf("expected 10 outcomes, got %d", len(outcomes))
	}
	for _, o := range outcomes {
		if o.Class != dispatch.ClassTransportError {
			t.Fatalf("expected transport-error, got %s", o.Class)
		}
		if o.Success() {
			t.Fatal("unreachable target cannot succeed")
		}
	}
}

// TestHonorsScheduledOffsets ensures requests never fire meaningfully
// before their offset.
func TestHonorsScheduledOffsets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	plan := []traffic.Descriptor{
		{Endpoint: "/", Offset: 0},
		{Endpoint: "/", Offset: 150 * time.Millisecond},
	}
	d := dispatch.New(dispatch.Options{BaseURL: srv.URL, Concurrency: 2, Timeout: time.Second})

	start := time.Now()
	outcomes := d.Run(context.Background(), plan)
	elapsed := time.Since(start)

	if elapsed < 150*time.Millisecond {
		t.Fatalf("second descriptor fired early: run took %s", elapsed)
	}
	if got := outcomes[1].Start.Sub(start); got < 140*time.Millisecond {
		t.Fatalf("descriptor started %s after run start, expected >= ~150ms", got)
	}
}

// TestOnOutcomeHookSeesEveryOutcome exercises the live-collection hook.
func TestOnOutcomeHookSeesEveryOutcome(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	var seen int64
	d := dispatch.New(dispatch.Options{
		BaseURL:     srv.URL,
		Concurrency: 4,
		Timeout:     time.Second,
		OnOutcome:   func(dispatch.Outcome) { atomic.AddInt64(&seen, 1) },
	})
	outcomes := d.Run(context.Background(), flatPlan("/", 25))

	if len(outcomes) != 25 || atomic.LoadInt64(&seen) != 25 {
		t.Fatalf("expected 25 outcomes through the hook, got %d/%d", len(outcomes), seen)
	}
}
