package lsl

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strings"
)

const (
	// FormatString is the only channel format the outlet transmits:
	// variable-length UTF-8 text, one element per channel.
	FormatString = "string"

	// IrregularRate advertises a stream with no nominal sampling rate.
	IrregularRate float64 = 0
)

var ErrInvalidStreamInfo = errors.New("lsl: invalid stream info")

// StreamInfo is the static metadata advertised for one outgoing stream.
// Immutable once handed to an outlet.
type StreamInfo struct {
	Name          string
	Type          string
	ChannelCount  int
	NominalSRate  float64
	ChannelFormat string
	SourceID      string
}

// DefaultMarkerStream returns the marker stream descriptor this tool
// advertises: one irregular-rate string channel.
func DefaultMarkerStream() StreamInfo {
	return StreamInfo{
		Name:          "MobiMarkerStream",
		Type:          "Markers",
		ChannelCount:  1,
		NominalSRate:  IrregularRate,
		ChannelFormat: FormatString,
		SourceID:      "mobi_marker_gui_v1",
	}
}

func (si StreamInfo) Validate() error {
	if strings.TrimSpace(si.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidStreamInfo)
	}
	if strings.TrimSpace(si.Type) == "" {
		return fmt.Errorf("%w: missing type", ErrInvalidStreamInfo)
	}
	if si.ChannelCount < 1 {
		return fmt.Errorf("%w: channel_count must be >= 1", ErrInvalidStreamInfo)
	}
	if si.NominalSRate < 0 {
		return fmt.Errorf("%w: negative nominal_srate", ErrInvalidStreamInfo)
	}
	if si.ChannelFormat != FormatString {
		return fmt.Errorf("%w: unsupported channel_format %q", ErrInvalidStreamInfo, si.ChannelFormat)
	}
	if strings.TrimSpace(si.SourceID) == "" {
		return fmt.Errorf("%w: missing source_id", ErrInvalidStreamInfo)
	}
	return nil
}

// infoXML mirrors the LSL <info> document shape for discovery replies and
// the feed's leading stream-info frame.
type infoXML struct {
	XMLName       xml.Name `xml:"info"`
	Name          string   `xml:"name"`
	Type          string   `xml:"type"`
	ChannelCount  int      `xml:"channel_count"`
	NominalSRate  float64  `xml:"nominal_srate"`
	ChannelFormat string   `xml:"channel_format"`
	SourceID      string   `xml:"source_id"`
	Version       int      `xml:"version"`
	FeedAddr      string   `xml:"v4address,omitempty"`
}

// XML renders the stream metadata document. feedAddr, when non-empty, tells
// a discovering consumer where the TCP feed listens.
func (si StreamInfo) XML(feedAddr string) ([]byte, error) {
	doc := infoXML{
		Name:          si.Name,
		Type:          si.Type,
		ChannelCount:  si.ChannelCount,
		NominalSRate:  si.NominalSRate,
		ChannelFormat: si.ChannelFormat,
		SourceID:      si.SourceID,
		Version:       1,
		FeedAddr:      feedAddr,
	}
	return xml.Marshal(doc)
}

// ParseInfoXML decodes a stream metadata document produced by XML.
func ParseInfoXML(data []byte) (StreamInfo, string, error) {
	var doc infoXML
	if err := xml.Unmarshal(data, &doc); err != nil {
		return StreamInfo{}, "", fmt.Errorf("%w: %v", ErrInvalidStreamInfo, err)
	}
	si := StreamInfo{
		Name:          doc.Name,
		Type:          doc.Type,
		ChannelCount:  doc.ChannelCount,
		NominalSRate:  doc.NominalSRate,
		ChannelFormat: doc.ChannelFormat,
		SourceID:      doc.SourceID,
	}
	if err := si.Validate(); err != nil {
		return StreamInfo{}, "", err
	}
	return si, doc.FeedAddr, nil
}
