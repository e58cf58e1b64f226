// Package report turns dispatch outcomes into run statistics: an exact
// post-run summary with nearest-rank percentiles and a constant-memory live
// view for progress display.
package report
