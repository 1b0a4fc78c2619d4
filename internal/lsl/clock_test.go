package lsl

import (
	"testing"
	"time"

	"github.com/danmuck/markerctl/internal/testutil/testlog"
)

func TestLocalClockIsMonotonicNonDecreasing(t *testing.T) {
	testlog.Start(t)
	a := LocalClock()
	time.Sleep(5 * time.Millisecond)
	b := LocalClock()
	if a < 0 {
		t.Fatalf("clock went negative: %f", a)
	}
	if b <= a {
		t.Fatalf("clock did not advance: a=%f b=%f", a, b)
	}
}

func TestSamplePayloadRoundTrip(t *testing.T) {
	testlog.Start(t)
	in := Sample{Timestamp: 12.345, Marker: "START baseline"}
	got, err := DecodeSample(EncodeSample(in))
	if err != nil {
		t.Fatalf("decode sample: %v", err)
	}
	if got != in {
		t.Fatalf("sample mismatch: got=%+v want=%+v", got, in)
	}
}

func TestDecodeSampleRejectsShortPayload(t *testing.T) {
	testlog.Start(t)
	if _, err := DecodeSample([]byte{1, 2, 3}); err == nil {
		t.Fatalf("expected error for short payload")
	}
}
