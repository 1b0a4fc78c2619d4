package marker

import (
	"fmt"
	"time"

	"github.com/danmuck/markerctl/internal/lsl"
)

const humanTimeLayout = "2006-01-02 15:04:05.000"

// FormatTimestamp returns the wall-clock string (millisecond precision)
// and the LSL local clock value used in status reports.
func FormatTimestamp() (string, float64) {
	return time.Now().Format(humanTimeLayout), lsl.LocalClock()
}

// FormatStatus renders one status report line:
//
//	[2026-08-24 10:15:42.031 | LSL: 12.345] Sent marker: START
func FormatStatus(message string) string {
	human, clock := FormatTimestamp()
	return fmt.Sprintf("[%s | LSL: %.3f] %s", human, clock, message)
}
