package marker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/markerctl/internal/lsl"
	"github.com/rs/zerolog/log"
)

const (
	DefaultQueueSize       = 64
	DefaultStopGracePeriod = 3000 * time.Millisecond
)

// Outlet is the sending handle the worker exclusively owns.
type Outlet interface {
	Push(ctx context.Context, marker string) error
	Close() error
}

// OpenOutlet constructs the network publication resource for a descriptor.
// It runs on the worker goroutine, exactly once per channel instance.
type OpenOutlet func(info lsl.StreamInfo) (Outlet, error)

// Listeners receive the channel's asynchronous outcomes. Ready fires
// exactly once per instance with the initialization outcome; Status
// receives every report, in order. Either callback may be nil.
type Listeners struct {
	Ready  func(ok bool)
	Status func(report string)
}

// Config tunes one dispatch channel instance.
type Config struct {
	Stream          lsl.StreamInfo
	QueueSize       int
	StopGracePeriod time.Duration
}

func (c Config) WithDefaults() Config {
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.StopGracePeriod <= 0 {
		c.StopGracePeriod = DefaultStopGracePeriod
	}
	return c
}

type markerEvent struct {
	text string
}

// Channel hands marker text from any goroutine to the single worker that
// owns the outlet. The outlet handle and the readiness flag are the only
// shared mutable state, guarded by one mutex that is never held across a
// network push.
type Channel struct {
	cfg       Config
	open      OpenOutlet
	listeners Listeners

	mu     sync.Mutex
	outlet Outlet
	ready  bool

	events chan markerEvent
	stop   chan struct{}
	done   chan struct{}

	workerCtx    context.Context
	workerCancel context.CancelFunc

	initOnce    sync.Once
	stopOnce    sync.Once
	initialized atomic.Bool
}

func New(cfg Config, open OpenOutlet, listeners Listeners) *Channel {
	cfg = cfg.WithDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Channel{
		cfg:          cfg,
		open:         open,
		listeners:    listeners,
		events:       make(chan markerEvent, cfg.QueueSize),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
		workerCtx:    ctx,
		workerCancel: cancel,
	}
}

// Initialize starts the worker. Only the first call has any effect.
func (c *Channel) Initialize() {
	c.initOnce.Do(func() {
		c.initialized.Store(true)
		go c.run()
	})
}

// Ready reports whether the outlet exists and is usable.
func (c *Channel) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

// Submit hands one marker to the worker. Callable from any goroutine;
// fire-and-forget. When the channel is not ready the submission is dropped
// after a single "not active" report. An accepted submission is never
// dropped and yields exactly one terminal report from the worker, in
// acceptance order.
func (c *Channel) Submit(text string) {
	c.mu.Lock()
	ready := c.ready
	c.mu.Unlock()
	if !ready {
		c.emitStatus("LSL stream not active")
		return
	}

	// Readiness is monotonically non-decreasing while the channel is
	// active, so the check above cannot race a readiness downgrade. The
	// stop case keeps a burst-blocked caller from hanging across shutdown.
	select {
	case c.events <- markerEvent{text: text}:
	case <-c.stop:
		c.emitStatus("LSL stream not active")
	}
}

// Shutdown stops the worker, waiting up to the configured grace period
// before cancelling the worker context and waiting it out. Idempotent. A
// push aborted by the forced cancellation loses its status report.
func (c *Channel) Shutdown() {
	if !c.initialized.Load() {
		return
	}
	c.stopOnce.Do(func() {
		close(c.stop)

		timer := time.NewTimer(c.cfg.StopGracePeriod)
		defer timer.Stop()
		select {
		case <-c.done:
		case <-timer.C:
			c.emitStatus(fmt.Sprintf(
				"LSL stream worker unresponsive after %s, forcing termination",
				c.cfg.StopGracePeriod,
			))
			c.workerCancel()
			<-c.done
		}
	})
}

// run is the worker: construct the outlet, flip readiness, then park on
// the event queue until stopped.
func (c *Channel) run() {
	defer close(c.done)
	defer c.workerCancel()

	outlet, err := c.open(c.cfg.Stream)
	if err != nil {
		c.emitStatus("Error starting LSL stream: " + err.Error())
		c.notifyReady(false)
		log.Error().Str("stream", c.cfg.Stream.Name).Err(err).Msg("marker worker failed to start")
		return
	}

	c.mu.Lock()
	c.outlet = outlet
	c.ready = true
	c.mu.Unlock()

	c.emitStatus("LSL stream started successfully")
	c.notifyReady(true)
	log.Debug().Str("stream", c.cfg.Stream.Name).Msg("marker worker ready")

	for {
		select {
		case ev := <-c.events:
			c.handle(ev)
		case <-c.stop:
			c.drain()
			c.mu.Lock()
			c.ready = false
			c.outlet = nil
			c.mu.Unlock()
			_ = outlet.Close()
			log.Debug().Str("stream", c.cfg.Stream.Name).Msg("marker worker stopped")
			return
		}
	}
}

// drain processes events accepted before the stop signal so their reports
// are not silently lost; forced cancellation still aborts mid-push.
func (c *Channel) drain() {
	for {
		select {
		case ev := <-c.events:
			c.handle(ev)
		default:
			return
		}
	}
}

func (c *Channel) handle(ev markerEvent) {
	c.mu.Lock()
	outlet := c.outlet
	c.mu.Unlock()

	if outlet == nil {
		c.emitStatus("LSL stream not active")
		return
	}
	if err := outlet.Push(c.workerCtx, ev.text); err != nil {
		c.emitStatus("Error sending marker: " + err.Error())
		return
	}
	c.emitStatus("Sent marker: " + ev.text)
}

func (c *Channel) emitStatus(message string) {
	if c.listeners.Status == nil {
		return
	}
	c.listeners.Status(FormatStatus(message))
}

func (c *Channel) notifyReady(ok bool) {
	if c.listeners.Ready == nil {
		return
	}
	c.listeners.Ready(ok)
}
