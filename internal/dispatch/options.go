package dispatch

import (
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// Options configure the Dispatcher.
type Options struct {
	BaseURL     string        // target service root, e.g. http://localhost:8000
	Concurrency int           // max in-flight requests (required bound, default 1)
	Timeout     time.Duration // per-request timeout (default 10s)

	// RateCap, when > 0, caps dispatch throughput regardless of the plan's
	// scheduled offsets. Protects the generator's own process under very
	// dense plans.
	RateCap float64

	// Client overrides the HTTP client; tests inject a stub transport.
	Client *http.Client

	// LimiterFactory allows tests to inject a deterministic limiter.
	LimiterFactory func(rps float64) *rate.Limiter

	// Tracer, when non-nil, opens one span per dispatched request.
	Tracer trace.Tracer

	// OnOutcome is invoked once per completed outcome, from the worker
	// goroutine that produced it. Used for live progress collection.
	OnOutcome func(Outcome)
}

func (o *Options) normalize() {
	if o.Concurrency <= 0 {
		o.Concurrency = 1
	}
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	if o.RateCap < 0 {
		o.RateCap = 0
	}
	if o.Client == nil {
		o.Client = NewClient()
	}
	if o.LimiterFactory == nil {
		o.LimiterFactory = func(rps float64) *rate.Limiter {
			if rps <= 0 {
				return rate.NewLimiter(rate.Inf, 0)
			}
			burst := int(rps)
			if burst < 1 {
				burst = 1
			}
			return rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// NewClient builds an HTTP client tuned for sustained concurrent load.
// The per-request timeout is applied through request contexts, not the
// client, so the run deadline can cut requests short.
func NewClient() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           dialer.DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          256,
			MaxIdleConnsPerHost:   32,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}
