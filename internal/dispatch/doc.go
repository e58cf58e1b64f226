// Package dispatch executes a traffic plan against a single HTTP target.
//
// The dispatcher honors each descriptor's scheduled offset (it never fires
// meaningfully early; lag under load is measured, not hidden), bounds the
// number of in-flight requests with a permit semaphore, and enforces a
// per-request timeout. Every descriptor consumed yields exactly one
// classified Outcome, including on timeout, transport failure, and run
// deadline expiry — abandoned descriptors are reported as transport errors
// rather than dropped.
package dispatch
