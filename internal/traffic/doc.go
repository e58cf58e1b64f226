// Package traffic produces finite, time-ordered request plans for a load
// run. A plan is a slice of immutable descriptors, each naming a target
// endpoint, a scheduled offset from run start, and whether the request is
// expected to fail. Offsets are monotonically non-decreasing in every mode.
//
// Planning is pure and fast: it never blocks, performs no I/O, and with a
// seeded random source is fully deterministic. Calling Plan twice yields
// independent sequences.
package traffic
