package report

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"
)

// ProgressReporter prints a one-line live status at a fixed interval while
// a run is active.
type ProgressReporter struct {
	collector *LiveCollector
	ticker    *time.Ticker
	done      chan struct{}
	finished  chan struct{}
	writer    io.Writer
	active    int32
}

// NewProgressReporter creates a reporter reading from the collector.
func NewProgressReporter(collector *LiveCollector, interval time.Duration, writer io.Writer) *ProgressReporter {
	if writer == nil {
		writer = io.Discard
	}
	return &ProgressReporter{
		collector: collector,
		ticker:    time.NewTicker(interval),
		done:      make(chan struct{}),
		finished:  make(chan struct{}),
		writer:    writer,
	}
}

// Start begins printing updates in a background goroutine.
func (p *ProgressReporter) Start() {
	if !atomic.CompareAndSwapInt32(&p.active, 0, 1) {
		return // already running
	}
	go p.run()
}

// Stop halts updates and waits for the final line to flush.
func (p *ProgressReporter) Stop() {
	if atomic.CompareAndSwapInt32(&p.active, 1, 0) {
		close(p.done)
		p.ticker.Stop()
		<-p.finished
	}
}

func (p *ProgressReporter) run() {
	defer close(p.finished)
	for {
		select {
		case <-p.ticker.C:
			p.print()
		case <-p.done:
			p.print()
			return
		}
	}
}

func (p *ProgressReporter) print() {
	stats := p.collector.Stats()
	fmt.Fprintf(p.writer, "\rRequests: %d | Successes: %d | Failures: %d | RPS: %.1f | P99: %s",
		stats.Total, stats.Successes, stats.Failures, stats.RequestsPerSec, stats.P99Latency)
}
