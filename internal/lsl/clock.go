package lsl

import "time"

var processEpoch = time.Now()

// LocalClock returns seconds elapsed on the local monotonic clock since
// process start. Sample timestamps and status reports share this domain so
// consumers can align markers without trusting wall-clock time.
func LocalClock() float64 {
	return time.Since(processEpoch).Seconds()
}
