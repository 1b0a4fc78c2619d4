package lsl

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var ErrInvalidSample = errors.New("lsl: invalid sample payload")

// Sample is one single-channel string record with its send-time timestamp
// on the local monotonic clock.
type Sample struct {
	Timestamp float64
	Marker    string
}

// EncodeSample lays out one sample payload: 8-byte big-endian IEEE 754
// timestamp followed by the marker text verbatim, no delimiter or envelope.
func EncodeSample(s Sample) []byte {
	out := make([]byte, 8+len(s.Marker))
	binary.BigEndian.PutUint64(out[:8], math.Float64bits(s.Timestamp))
	copy(out[8:], s.Marker)
	return out
}

func DecodeSample(b []byte) (Sample, error) {
	if len(b) < 8 {
		return Sample{}, fmt.Errorf("%w: %d bytes", ErrInvalidSample, len(b))
	}
	return Sample{
		Timestamp: math.Float64frombits(binary.BigEndian.Uint64(b[:8])),
		Marker:    string(b[8:]),
	}, nil
}
