// Package marker owns the dispatch channel between callers and the single
// worker goroutine holding the stream outlet.
//
// Ownership boundary:
// - worker lifecycle (initialize once, bounded-grace shutdown)
// - readiness gating and the outlet/readiness mutex
// - FIFO hand-off of marker text and per-submission status reports
// - status report text formatting
//
// Known edge case: a forced termination during shutdown may abandon one
// in-flight push without its status report.
package marker
