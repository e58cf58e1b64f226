package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/observerlab/observer/internal/metrics"
)

// TestInstrumentSurvivesPanic exercises the one exit path the public
// handlers never take: the in-flight gauge must still be decremented and
// the request recorded as a 500.
func TestInstrumentSurvivesPanic(t *testing.T) {
	reg := metrics.NewRegistry()
	s, err := New(DefaultConfig(), zap.NewNop(), reg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	h := s.instrument(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 after panic, got %d", rec.Code)
	}
	if got := s.inst.inFlight.WithLabelValues().Value(); got != 0 {
		t.Fatalf("in-flight gauge not restored, got %g", got)
	}
	if got := s.inst.requests.WithLabelValues(http.MethodGet, "/boom", "500").Value(); got != 1 {
		t.Fatalf("panic request not counted, got %g", got)
	}
	if got := s.inst.errors.WithLabelValues("/boom").Value(); got != 1 {
		t.Fatalf("panic not counted as error, got %g", got)
	}
}
