package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/tidwall/gjson"

	"github.com/observerlab/observer/internal/config"
	"github.com/observerlab/observer/internal/dispatch"
	"github.com/observerlab/observer/internal/report"
	"github.com/observerlab/observer/internal/tracing"
	"github.com/observerlab/observer/internal/traffic"
)

const (
	progressInterval  = time.Second
	preflightTimeout  = 5 * time.Second
	maxHealthBodySize = 4096
)

type stderrFailureLogger struct {
	mu sync.Mutex
}

func (l *stderrFailureLogger) LogFailure(o dispatch.Outcome) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if o.Err != nil {
		fmt.Fprintf(os.Stderr, "[loadgen] %s failed: %v\n", o.Endpoint, o.Err)
		return
	}
	fmt.Fprintf(os.Stderr, "[loadgen] %s failed: status %d\n", o.Endpoint, o.StatusCode)
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	loader := config.NewLoader()
	cfg, err := loader.Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	provider, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = provider.Shutdown(shutdownCtx)
	}()

	client := dispatch.NewClient()
	preflight(ctx, client, cfg.Target)

	mode, err := traffic.ParseMode(cfg.Mode)
	if err != nil {
		return err
	}

	var rnd *rand.Rand
	if cfg.Seed != 0 {
		rnd = rand.New(rand.NewSource(cfg.Seed))
	}
	plan, err := traffic.Plan(traffic.Options{
		Mode:        mode,
		Duration:    cfg.Duration,
		Rate:        float64(cfg.Rate),
		ErrorRatio:  cfg.ErrorRatio,
		BurstFactor: cfg.BurstFactor,
		Rand:        rnd,
	})
	if err != nil {
		return err
	}

	collector := report.NewLiveCollector()
	aggregator := report.NewAggregator()
	var failureLog *stderrFailureLogger
	if cfg.LogErrors {
		failureLog = &stderrFailureLogger{}
	}

	dispatcher := dispatch.New(dispatch.Options{
		BaseURL:     cfg.Target,
		Concurrency: cfg.Concurrency,
		Timeout:     cfg.Timeout,
		RateCap:     float64(cfg.RateCap),
		Client:      client,
		Tracer:      provider.Tracer(),
		OnOutcome: func(o dispatch.Outcome) {
			aggregator.Record(o)
			collector.Record(o)
			if failureLog != nil && !o.Success() {
				failureLog.LogFailure(o)
			}
		},
	})

	var progress *report.ProgressReporter
	if !cfg.JSONOutput {
		progress = report.NewProgressReporter(collector, progressInterval, os.Stdout)
		progress.Start()
		defer func() {
			if progress != nil {
				progress.Stop()
				fmt.Fprintln(os.Stdout)
			}
		}()
	}

	// The run deadline covers the planned window plus one request timeout
	// so in-flight requests can drain.
	runCtx, runCancel := context.WithTimeout(ctx, cfg.Duration+cfg.Timeout)
	defer runCancel()

	collector.Start()
	start := time.Now()
	dispatcher.Run(runCtx, plan)
	elapsed := time.Since(start)

	if progress != nil {
		progress.Stop()
		fmt.Fprintln(os.Stdout)
		progress = nil
	}

	result := aggregator.Finalize(elapsed)
	if cfg.JSONOutput {
		return report.PrintJSONReport(os.Stdout, result)
	}
	report.PrintReport(os.Stdout, result)
	return nil
}

// preflight probes the target's health endpoint before the run. Problems
// are warnings only: an unhealthy or unreachable target still gets loaded,
// and the report tells the real story.
func preflight(ctx context.Context, client *http.Client, target string) {
	reqCtx, cancel := context.WithTimeout(ctx, preflightTimeout)
	defer cancel()

	url := strings.TrimRight(target, "/") + "/health"
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: health preflight skipped: %v\n", err)
		return
	}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: target health check failed: %v\n", err)
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxHealthBodySize))
	if err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: could not read health response: %v\n", err)
		return
	}
	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "WARNING: target reports status %d on /health\n", resp.StatusCode)
		return
	}
	if status := gjson.GetBytes(body, "status").String(); status != "healthy" {
		fmt.Fprintf(os.Stderr, "WARNING: target reports health status %q\n", status)
	}
}
