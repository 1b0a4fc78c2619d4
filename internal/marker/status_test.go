package marker

import (
	"regexp"
	"testing"

	"github.com/danmuck/markerctl/internal/testutil/testlog"
)

var statusLine = regexp.MustCompile(`^\[\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\.\d{3} \| LSL: \d+\.\d{3}\] Sent marker: START$`)

func TestFormatStatusShape(t *testing.T) {
	testlog.Start(t)
	got := FormatStatus("Sent marker: START")
	if !statusLine.MatchString(got) {
		t.Fatalf("status line malformed: %q", got)
	}
}

func TestFormatTimestampClockAdvances(t *testing.T) {
	testlog.Start(t)
	_, a := FormatTimestamp()
	_, b := FormatTimestamp()
	if b < a {
		t.Fatalf("local clock went backwards: %f then %f", a, b)
	}
}
