package lsl

import (
	"errors"
	"testing"

	"github.com/danmuck/markerctl/internal/testutil/testlog"
)

func TestDefaultMarkerStreamIsValid(t *testing.T) {
	testlog.Start(t)
	si := DefaultMarkerStream()
	if err := si.Validate(); err != nil {
		t.Fatalf("default stream invalid: %v", err)
	}
	if si.Name != "MobiMarkerStream" || si.Type != "Markers" {
		t.Fatalf("unexpected descriptor: %+v", si)
	}
	if si.ChannelCount != 1 || si.NominalSRate != IrregularRate || si.ChannelFormat != FormatString {
		t.Fatalf("unexpected channel shape: %+v", si)
	}
	if si.SourceID != "mobi_marker_gui_v1" {
		t.Fatalf("unexpected source id: %q", si.SourceID)
	}
}

func TestStreamInfoValidateRejectsBadDescriptors(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		name   string
		mutate func(*StreamInfo)
	}{
		{"missing name", func(si *StreamInfo) { si.Name = " " }},
		{"missing type", func(si *StreamInfo) { si.Type = "" }},
		{"zero channels", func(si *StreamInfo) { si.ChannelCount = 0 }},
		{"negative rate", func(si *StreamInfo) { si.NominalSRate = -1 }},
		{"numeric format", func(si *StreamInfo) { si.ChannelFormat = "float32" }},
		{"missing source id", func(si *StreamInfo) { si.SourceID = "" }},
	}
	for _, tc := range cases {
		si := DefaultMarkerStream()
		tc.mutate(&si)
		if err := si.Validate(); !errors.Is(err, ErrInvalidStreamInfo) {
			t.Fatalf("%s: expected ErrInvalidStreamInfo, got %v", tc.name, err)
		}
	}
}

func TestStreamInfoXMLRoundTrip(t *testing.T) {
	testlog.Start(t)
	si := DefaultMarkerStream()
	doc, err := si.XML("127.0.0.1:16572")
	if err != nil {
		t.Fatalf("render xml: %v", err)
	}
	got, feedAddr, err := ParseInfoXML(doc)
	if err != nil {
		t.Fatalf("parse xml: %v", err)
	}
	if got != si {
		t.Fatalf("descriptor mismatch: got=%+v want=%+v", got, si)
	}
	if feedAddr != "127.0.0.1:16572" {
		t.Fatalf("unexpected feed addr: %q", feedAddr)
	}
}

func TestParseInfoXMLRejectsGarbage(t *testing.T) {
	testlog.Start(t)
	if _, _, err := ParseInfoXML([]byte("not xml")); !errors.Is(err, ErrInvalidStreamInfo) {
		t.Fatalf("expected ErrInvalidStreamInfo, got %v", err)
	}
}
