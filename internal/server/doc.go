// Package server implements the observer target service: a small HTTP app
// with simulated work and fault injection, instrumented with request
// counters, an in-flight gauge and a latency histogram exposed in
// Prometheus text format.
package server
