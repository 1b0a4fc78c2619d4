package lsl

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/danmuck/markerctl/internal/lsl/frame"
	"github.com/danmuck/markerctl/internal/testutil/testlog"
)

func waitForConsumers(t *testing.T, o *Outlet, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for o.ConsumerCount() != want {
		if time.Now().After(deadline) {
			t.Fatalf("consumer count never reached %d (at %d)", want, o.ConsumerCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestOutletFeedsStreamInfoThenSamples(t *testing.T) {
	testlog.Start(t)
	o, err := Open(DefaultMarkerStream(), OutletConfig{})
	if err != nil {
		t.Fatalf("open outlet: %v", err)
	}
	defer o.Close()

	conn, err := net.Dial("tcp", o.FeedAddr())
	if err != nil {
		t.Fatalf("dial feed: %v", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	first, err := frame.ReadFrame(conn, frame.DefaultLimits())
	if err != nil {
		t.Fatalf("read stream-info frame: %v", err)
	}
	if first.Header.MessageType != frame.MsgStreamInfo {
		t.Fatalf("expected stream-info frame, got type %d", first.Header.MessageType)
	}
	si, feedAddr, err := ParseInfoXML(first.Payload)
	if err != nil {
		t.Fatalf("parse stream info: %v", err)
	}
	if si != DefaultMarkerStream() {
		t.Fatalf("unexpected stream info: %+v", si)
	}
	if feedAddr != o.FeedAddr() {
		t.Fatalf("feed addr mismatch: %q vs %q", feedAddr, o.FeedAddr())
	}

	waitForConsumers(t, o, 1)
	if err := o.Push(context.Background(), "START"); err != nil {
		t.Fatalf("push: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	second, err := frame.ReadFrame(conn, frame.DefaultLimits())
	if err != nil {
		t.Fatalf("read sample frame: %v", err)
	}
	if second.Header.MessageType != frame.MsgSample {
		t.Fatalf("expected sample frame, got type %d", second.Header.MessageType)
	}
	if second.Header.Flags&frame.FlagIrregularRate == 0 {
		t.Fatalf("expected irregular-rate flag")
	}
	sample, err := DecodeSample(second.Payload)
	if err != nil {
		t.Fatalf("decode sample: %v", err)
	}
	if sample.Marker != "START" {
		t.Fatalf("unexpected marker: %q", sample.Marker)
	}
	if sample.Timestamp < 0 {
		t.Fatalf("negative timestamp: %f", sample.Timestamp)
	}
}

func TestPushWithoutConsumersSucceeds(t *testing.T) {
	testlog.Start(t)
	o, err := Open(DefaultMarkerStream(), OutletConfig{})
	if err != nil {
		t.Fatalf("open outlet: %v", err)
	}
	defer o.Close()
	if err := o.Push(context.Background(), "solo"); err != nil {
		t.Fatalf("push without consumers: %v", err)
	}
}

func TestPushAfterCloseFails(t *testing.T) {
	testlog.Start(t)
	o, err := Open(DefaultMarkerStream(), OutletConfig{})
	if err != nil {
		t.Fatalf("open outlet: %v", err)
	}
	if err := o.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := o.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if err := o.Push(context.Background(), "late"); !errors.Is(err, ErrOutletClosed) {
		t.Fatalf("expected ErrOutletClosed, got %v", err)
	}
}

func TestPushHonorsCancelledContext(t *testing.T) {
	testlog.Start(t)
	o, err := Open(DefaultMarkerStream(), OutletConfig{})
	if err != nil {
		t.Fatalf("open outlet: %v", err)
	}
	defer o.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := o.Push(ctx, "aborted"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestOpenFailsWhenFeedAddrTaken(t *testing.T) {
	testlog.Start(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserve port: %v", err)
	}
	defer ln.Close()

	_, err = Open(DefaultMarkerStream(), OutletConfig{FeedListenAddr: ln.Addr().String()})
	if err == nil {
		t.Fatalf("expected open to fail on taken addr")
	}
}

func TestOpenRejectsInvalidStreamInfo(t *testing.T) {
	testlog.Start(t)
	si := DefaultMarkerStream()
	si.SourceID = ""
	if _, err := Open(si, OutletConfig{}); !errors.Is(err, ErrInvalidStreamInfo) {
		t.Fatalf("expected ErrInvalidStreamInfo, got %v", err)
	}
}

func TestDiscoveryAnswersShortinfoQueries(t *testing.T) {
	testlog.Start(t)
	o, err := Open(DefaultMarkerStream(), OutletConfig{DiscoveryListenAddr: "127.0.0.1:0"})
	if err != nil {
		t.Fatalf("open outlet: %v", err)
	}
	defer o.Close()

	conn, err := net.Dial("udp", o.DiscoveryAddr())
	if err != nil {
		t.Fatalf("dial discovery: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte(DiscoveryQuery + " type='Markers'")); err != nil {
		t.Fatalf("send query: %v", err)
	}
	buf := make([]byte, 1500)
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("read shortinfo reply: %v", err)
	}
	si, feedAddr, err := ParseInfoXML(buf[:n])
	if err != nil {
		t.Fatalf("parse shortinfo: %v", err)
	}
	if si.Name != "MobiMarkerStream" {
		t.Fatalf("unexpected stream name: %q", si.Name)
	}
	if feedAddr != o.FeedAddr() {
		t.Fatalf("feed addr mismatch: %q vs %q", feedAddr, o.FeedAddr())
	}
}

func TestConsumerWriteFailureDetachesNotFails(t *testing.T) {
	testlog.Start(t)
	o, err := Open(DefaultMarkerStream(), OutletConfig{})
	if err != nil {
		t.Fatalf("open outlet: %v", err)
	}
	defer o.Close()

	conn, err := net.Dial("tcp", o.FeedAddr())
	if err != nil {
		t.Fatalf("dial feed: %v", err)
	}
	waitForConsumers(t, o, 1)
	_ = conn.Close()
	waitForConsumers(t, o, 0)

	if err := o.Push(context.Background(), "after-detach"); err != nil {
		t.Fatalf("push after consumer loss: %v", err)
	}
}
