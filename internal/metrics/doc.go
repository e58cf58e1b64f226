// Package metrics implements the service's metric primitives: counters,
// gauges, and histograms with label dimensions, collected in an explicitly
// constructed Registry and rendered in the Prometheus text exposition format.
//
// A Registry lives for the lifetime of the process that creates it. All
// mutating operations are safe for unbounded concurrent callers: counters
// and gauges use lock-free atomic updates, histograms take a short
// per-series lock. Exporting never blocks a writer for longer than the time
// to copy one series' current value.
//
// Registering the same metric name twice with an identical configuration
// returns the existing vector. Registering it with a different help text,
// label set, or bucket layout is a configuration error and fails fast.
package metrics
