package dispatch

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/observerlab/observer/internal/traffic"
)

// Dispatcher issues planned requests with bounded concurrency.
type Dispatcher struct {
	opt     Options
	limiter *rate.Limiter
}

// New creates a Dispatcher. Options are normalized; a zero Concurrency
// becomes 1.
func New(opt Options) *Dispatcher {
	opt.normalize()
	var limiter *rate.Limiter
	if opt.RateCap > 0 {
		limiter = opt.LimiterFactory(opt.RateCap)
	}
	return &Dispatcher{opt: opt, limiter: limiter}
}

// Run consumes the plan in order and returns one Outcome per descriptor.
// Descriptors fire no earlier than their scheduled offset. When ctx
// expires, descriptors not yet dispatched and requests still in flight are
// recorded as transport errors; Run always returns len(plan) outcomes.
func (d *Dispatcher) Run(ctx context.Context, plan []traffic.Descriptor) []Outcome {
	outcomes := make([]Outcome, len(plan))
	start := time.Now()

	// Permit semaphore: acquiring blocks when Concurrency requests are in
	// flight, back-pressuring the scheduler instead of dropping work.
	permits := make(chan struct{}, d.opt.Concurrency)
	var wg sync.WaitGroup

	record := func(i int, o Outcome) {
		outcomes[i] = o
		if d.opt.OnOutcome != nil {
			d.opt.OnOutcome(o)
		}
	}

	for i, desc := range plan {
		if err := d.waitUntil(ctx, start, desc.Offset); err != nil {
			record(i, abandoned(desc, err))
			continue
		}
		if d.limiter != nil {
			if err := d.limiter.Wait(ctx); err != nil {
				record(i, abandoned(desc, err))
				continue
			}
		}
		select {
		case permits <- struct{}{}:
		case <-ctx.Done():
			record(i, abandoned(desc, ctx.Err()))
			continue
		}

		wg.Add(1)
		go func(i int, desc traffic.Descriptor) {
			defer wg.Done()
			defer func() { <-permits }()
			record(i, d.execute(ctx, start, desc))
		}(i, desc)
	}

	wg.Wait()
	return outcomes
}

// waitUntil sleeps until the descriptor's offset has elapsed since run
// start, or the run context ends.
func (d *Dispatcher) waitUntil(ctx context.Context, start time.Time, offset time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	delay := offset - time.Since(start)
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (d *Dispatcher) execute(ctx context.Context, runStart time.Time, desc traffic.Descriptor) Outcome {
	reqCtx, cancel := context.WithTimeout(ctx, d.opt.Timeout)
	defer cancel()

	start := time.Now()
	lag := start.Sub(runStart) - desc.Offset
	if lag < 0 {
		lag = 0
	}

	var span trace.Span
	if d.opt.Tracer != nil {
		reqCtx, span = d.opt.Tracer.Start(reqCtx, "loadgen.request",
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(attribute.String("http.target", desc.Endpoint)))
		defer span.End()
	}

	outcome := Outcome{Endpoint: desc.Endpoint, Start: start, Lag: lag}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, joinURL(d.opt.BaseURL, desc.Endpoint), nil)
	if err != nil {
		outcome.Class = ClassTransportError
		outcome.Err = err
		outcome.Duration = time.Since(start)
		recordSpanError(span, err)
		return outcome
	}
	if span != nil {
		propagation.TraceContext{}.Inject(reqCtx, propagation.HeaderCarrier(req.Header))
	}

	resp, err := d.opt.Client.Do(req)
	outcome.Duration = time.Since(start)
	if err != nil {
		outcome.Class = ClassTransportError
		outcome.Err = err
		recordSpanError(span, err)
		return outcome
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	outcome.StatusCode = resp.StatusCode
	outcome.Class = classifyStatus(resp.StatusCode)
	if span != nil {
		span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
		if outcome.Class != ClassSuccess {
			span.SetStatus(codes.Error, string(outcome.Class))
		}
	}
	return outcome
}

func abandoned(desc traffic.Descriptor, err error) Outcome {
	return Outcome{
		Endpoint: desc.Endpoint,
		Class:    ClassTransportError,
		Start:    time.Now(),
		Err:      err,
	}
}

func recordSpanError(span trace.Span, err error) {
	if span == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func joinURL(base, endpoint string) string {
	return strings.TrimRight(base, "/") + endpoint
}
