// Package lsl owns the network-visible side of a marker stream.
//
// Ownership boundary:
// - stream metadata (StreamInfo) and its XML rendering
// - the sending outlet: one TCP feed listener plus consumer fan-out
// - UDP shortinfo discovery responses
// - sample payload encoding and the local monotonic clock
//
// The outlet is fire-and-forget: pushes succeed with zero consumers and a
// failing consumer is detached, never surfaced as a push error.
package lsl
