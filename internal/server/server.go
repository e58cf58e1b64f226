package server

import (
	"math/rand"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/observerlab/observer/internal/metrics"
)

// Server is the instrumented target application.
type Server struct {
	cfg    Config
	log    *zap.Logger
	router *mux.Router
	inst   *instruments
	start  time.Time

	// randFloat drives fault injection and simulated work duration. Tests
	// inject a deterministic source.
	randFloat func() float64
}

// Option adjusts a Server at construction time.
type Option func(*Server)

// WithRandSource replaces the randomness behind fault injection and
// simulated delays.
func WithRandSource(f func() float64) Option {
	return func(s *Server) { s.randFloat = f }
}

// instruments bundles the service metrics. Registration conflicts surface
// as errors so a misconfigured binary fails at startup, not on first
// request.
type instruments struct {
	requests *metrics.CounterVec
	errors   *metrics.CounterVec
	inFlight *metrics.GaugeVec
	duration *metrics.HistogramVec
}

func newInstruments(reg *metrics.Registry) (*instruments, error) {
	requests, err := reg.Counter("http_requests_total",
		"Total HTTP requests processed, by method, endpoint and status.",
		"method", "endpoint", "status")
	if err != nil {
		return nil, err
	}
	errs, err := reg.Counter("http_errors_total",
		"Total HTTP responses with status 400 or above, by endpoint.",
		"endpoint")
	if err != nil {
		return nil, err
	}
	inFlight, err := reg.Gauge("active_connections",
		"Requests currently being handled.")
	if err != nil {
		return nil, err
	}
	duration, err := reg.Histogram("http_request_duration_seconds",
		"HTTP request latency in seconds, by endpoint.",
		metrics.DefBuckets, "endpoint")
	if err != nil {
		return nil, err
	}
	return &instruments{
		requests: requests,
		errors:   errs,
		inFlight: inFlight,
		duration: duration,
	}, nil
}

// New builds the service around the given registry. The registry's
// exposition is mounted at /metrics.
func New(cfg Config, log *zap.Logger, reg *metrics.Registry, opts ...Option) (*Server, error) {
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	inst, err := newInstruments(reg)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}

	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	s := &Server{
		cfg:       cfg,
		log:       log,
		inst:      inst,
		start:     time.Now(),
		randFloat: rnd.Float64,
	}
	for _, opt := range opts {
		opt(s)
	}

	r := mux.NewRouter()
	r.Use(s.instrument)
	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/simulate", s.handleSimulate).Methods(http.MethodGet)
	r.HandleFunc("/error", s.handleError).Methods(http.MethodGet)
	r.HandleFunc("/config", s.handleConfig).Methods(http.MethodGet)
	r.Handle("/metrics", reg.Handler()).Methods(http.MethodGet)
	s.router = r

	return s, nil
}

// Handler returns the fully instrumented HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}
