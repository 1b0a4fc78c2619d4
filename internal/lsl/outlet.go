package lsl

import (
	"bytes"
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/danmuck/markerctl/internal/lsl/frame"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// DiscoveryQuery is the datagram prefix a consumer sends to locate streams.
const DiscoveryQuery = "LSL:shortinfo"

var (
	ErrOutletClosed = errors.New("lsl: outlet closed")
)

// OutletConfig tunes the feed and discovery listeners.
type OutletConfig struct {
	// FeedListenAddr is the TCP address consumers connect to. An empty
	// value binds an ephemeral loopback port.
	FeedListenAddr string
	// DiscoveryListenAddr is the UDP address answering shortinfo queries.
	// Empty disables discovery.
	DiscoveryListenAddr string
	WriteTimeout        time.Duration
	Limits              frame.Limits
}

func (c OutletConfig) withDefaults() OutletConfig {
	if c.FeedListenAddr == "" {
		c.FeedListenAddr = "127.0.0.1:0"
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 2 * time.Second
	}
	if c.Limits.MaxPayloadBytes == 0 {
		c.Limits = frame.DefaultLimits()
	}
	return c
}

// Outlet is the sending endpoint for one stream. It owns exactly one TCP
// feed listener; each attached consumer receives a stream-info frame
// followed by sample frames in push order.
type Outlet struct {
	info StreamInfo
	cfg  OutletConfig

	ln     net.Listener
	disc   net.PacketConn
	cancel context.CancelFunc
	grp    *errgroup.Group

	mu        sync.Mutex
	consumers map[net.Conn]struct{}
	closed    bool
}

// Open validates the descriptor and brings the feed (and, if configured,
// the discovery responder) into existence. Any listener failure is
// returned to the caller; no partial outlet survives it.
func Open(info StreamInfo, cfg OutletConfig) (*Outlet, error) {
	if err := info.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	ln, err := net.Listen("tcp", cfg.FeedListenAddr)
	if err != nil {
		return nil, err
	}

	var disc net.PacketConn
	if cfg.DiscoveryListenAddr != "" {
		disc, err = net.ListenPacket("udp", cfg.DiscoveryListenAddr)
		if err != nil {
			_ = ln.Close()
			return nil, err
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	grp, gctx := errgroup.WithContext(ctx)

	o := &Outlet{
		info:      info,
		cfg:       cfg,
		ln:        ln,
		disc:      disc,
		cancel:    cancel,
		grp:       grp,
		consumers: make(map[net.Conn]struct{}),
	}

	grp.Go(func() error { return o.acceptLoop(gctx) })
	if disc != nil {
		grp.Go(func() error { return o.discoveryLoop(gctx) })
	}

	log.Info().
		Str("stream", info.Name).
		Str("feed_addr", o.FeedAddr()).
		Bool("discovery", disc != nil).
		Msg("lsl outlet open")
	return o, nil
}

// FeedAddr reports the bound TCP feed address.
func (o *Outlet) FeedAddr() string {
	return o.ln.Addr().String()
}

// DiscoveryAddr reports the bound UDP discovery address, empty when
// discovery is disabled.
func (o *Outlet) DiscoveryAddr() string {
	if o.disc == nil {
		return ""
	}
	return o.disc.LocalAddr().String()
}

// Info returns the advertised stream descriptor.
func (o *Outlet) Info() StreamInfo {
	return o.info
}

// Push transmits one single-channel string sample, stamped with the local
// clock at send time, to every attached consumer. A consumer write failure
// detaches that consumer and is not a push failure; pushing on a closed
// outlet or with a cancelled context is.
func (o *Outlet) Push(ctx context.Context, marker string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrOutletClosed
	}
	conns := make([]net.Conn, 0, len(o.consumers))
	for conn := range o.consumers {
		conns = append(conns, conn)
	}
	o.mu.Unlock()

	var buf bytes.Buffer
	err := frame.WriteFrame(&buf, frame.Frame{
		Header:  frame.Header{MessageType: frame.MsgSample, Flags: o.flags()},
		Payload: EncodeSample(Sample{Timestamp: LocalClock(), Marker: marker}),
	}, o.cfg.Limits)
	if err != nil {
		return err
	}

	for _, conn := range conns {
		if err := ctx.Err(); err != nil {
			return err
		}
		_ = conn.SetWriteDeadline(time.Now().Add(o.cfg.WriteTimeout))
		if _, err := conn.Write(buf.Bytes()); err != nil {
			log.Warn().
				Str("stream", o.info.Name).
				Str("consumer", conn.RemoteAddr().String()).
				Err(err).
				Msg("consumer write failed, detaching")
			o.detach(conn)
		}
	}
	return nil
}

// Close tears down both listeners and every consumer connection, then waits
// for the accept/discovery loops to drain. Safe to call more than once.
func (o *Outlet) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	conns := make([]net.Conn, 0, len(o.consumers))
	for conn := range o.consumers {
		conns = append(conns, conn)
	}
	o.consumers = make(map[net.Conn]struct{})
	o.mu.Unlock()

	o.cancel()
	_ = o.ln.Close()
	if o.disc != nil {
		_ = o.disc.Close()
	}
	for _, conn := range conns {
		_ = conn.Close()
	}
	_ = o.grp.Wait()

	log.Info().Str("stream", o.info.Name).Msg("lsl outlet closed")
	return nil
}

// ConsumerCount reports attached consumers; used by status surfaces.
func (o *Outlet) ConsumerCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.consumers)
}

func (o *Outlet) acceptLoop(ctx context.Context) error {
	for {
		conn, err := o.ln.Accept()
		if err != nil {
			if o.isClosed() || ctx.Err() != nil {
				return nil
			}
			return err
		}
		o.attach(conn)
	}
}

func (o *Outlet) attach(conn net.Conn) {
	infoDoc, err := o.info.XML(o.FeedAddr())
	if err != nil {
		_ = conn.Close()
		return
	}
	_ = conn.SetWriteDeadline(time.Now().Add(o.cfg.WriteTimeout))
	err = frame.WriteFrame(conn, frame.Frame{
		Header:  frame.Header{MessageType: frame.MsgStreamInfo, Flags: o.flags()},
		Payload: infoDoc,
	}, o.cfg.Limits)
	if err != nil {
		log.Warn().Err(err).Msg("stream-info handoff failed, dropping consumer")
		_ = conn.Close()
		return
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		_ = conn.Close()
		return
	}
	o.consumers[conn] = struct{}{}
	count := len(o.consumers)
	o.mu.Unlock()

	log.Info().
		Str("stream", o.info.Name).
		Str("consumer", conn.RemoteAddr().String()).
		Int("consumers", count).
		Msg("consumer attached")

	// The feed is one-way; a read unblocking means the consumer went away.
	go func() {
		buf := make([]byte, 256)
		for {
			if _, err := conn.Read(buf); err != nil {
				break
			}
		}
		o.detach(conn)
	}()
}

func (o *Outlet) detach(conn net.Conn) {
	o.mu.Lock()
	_, ok := o.consumers[conn]
	if ok {
		delete(o.consumers, conn)
	}
	o.mu.Unlock()
	if ok {
		_ = conn.Close()
		log.Info().
			Str("stream", o.info.Name).
			Str("consumer", conn.RemoteAddr().String()).
			Msg("consumer detached")
	}
}

func (o *Outlet) discoveryLoop(ctx context.Context) error {
	buf := make([]byte, 1500)
	for {
		n, addr, err := o.disc.ReadFrom(buf)
		if err != nil {
			if o.isClosed() || ctx.Err() != nil {
				return nil
			}
			return err
		}
		if !bytes.HasPrefix(buf[:n], []byte(DiscoveryQuery)) {
			continue
		}
		reply, err := o.info.XML(o.FeedAddr())
		if err != nil {
			continue
		}
		if _, err := o.disc.WriteTo(reply, addr); err != nil {
			log.Warn().Err(err).Msg("shortinfo reply failed")
		}
	}
}

func (o *Outlet) flags() uint32 {
	if o.info.NominalSRate == IrregularRate {
		return frame.FlagIrregularRate
	}
	return 0
}

func (o *Outlet) isClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}
