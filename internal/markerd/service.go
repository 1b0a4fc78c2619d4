// Package markerd owns the process lifecycle: it wires the marker
// dispatch channel, the LSL outlet, and the console surface together and
// supervises them until a shutdown signal arrives.
package markerd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/danmuck/markerctl/internal/console"
	"github.com/danmuck/markerctl/internal/lsl"
	"github.com/danmuck/markerctl/internal/marker"
	"github.com/danmuck/markerctl/internal/observability"
	"github.com/rs/zerolog/log"
)

var (
	ErrInvalidHeartbeatInterval = errors.New("markerd: invalid heartbeat interval")
	ErrConsoleAddrRequired      = errors.New("markerd: console listen address required")
)

// ServiceConfig configures the markerd standalone runtime.
type ServiceConfig struct {
	Stream            lsl.StreamInfo
	Outlet            lsl.OutletConfig
	Console           console.Config
	QueueSize         int
	StopGracePeriod   time.Duration
	HeartbeatInterval time.Duration
	StatusLogCapacity int
}

// Markerd runtime defaults for standalone operation.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Stream: lsl.DefaultMarkerStream(),
		Outlet: lsl.OutletConfig{
			FeedListenAddr:      "127.0.0.1:16571",
			DiscoveryListenAddr: "127.0.0.1:16572",
		},
		Console: console.Config{
			Addr: "127.0.0.1:8760",
		},
		QueueSize:         marker.DefaultQueueSize,
		StopGracePeriod:   marker.DefaultStopGracePeriod,
		HeartbeatInterval: 5 * time.Second,
		StatusLogCapacity: console.DefaultStatusLogCapacity,
	}
}

// Service runs the full marker pipeline as a standalone process.
type Service struct {
	cfg      ServiceConfig
	channel  *marker.Channel
	statuses *console.StatusLog
	console  *console.Server
	ready    atomic.Bool
}

func NewService() *Service {
	return NewServiceWithConfig(DefaultServiceConfig())
}

func NewServiceWithConfig(cfg ServiceConfig) *Service {
	s := &Service{
		cfg:      cfg,
		statuses: console.NewStatusLog(cfg.StatusLogCapacity),
	}

	open := func(info lsl.StreamInfo) (marker.Outlet, error) {
		return lsl.Open(info, cfg.Outlet)
	}
	s.channel = marker.New(marker.Config{
		Stream:          cfg.Stream,
		QueueSize:       cfg.QueueSize,
		StopGracePeriod: cfg.StopGracePeriod,
	}, open, marker.Listeners{
		Ready:  s.onReady,
		Status: s.onStatus,
	})

	s.console = console.Appear(cfg.Console, cfg.Stream, s.channel, s.statuses)
	return s
}

// Markerd runtime entrypoint that blocks until process signal shutdown.
func (s *Service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := s.bootstrap(); err != nil {
		return err
	}
	return s.serve(ctx)
}

// Channel exposes the dispatch channel for embedding callers and tests.
func (s *Service) Channel() *marker.Channel {
	return s.channel
}

func (s *Service) bootstrap() error {
	if s.cfg.HeartbeatInterval <= 0 {
		return ErrInvalidHeartbeatInterval
	}
	if strings.TrimSpace(s.cfg.Console.Addr) == "" {
		return ErrConsoleAddrRequired
	}
	if err := s.cfg.Stream.Validate(); err != nil {
		return err
	}

	s.channel.Initialize()
	log.Info().
		Str("stream", s.cfg.Stream.Name).
		Str("console", s.cfg.Console.Addr).
		Msg("markerd bootstrap complete")
	return nil
}

// serve runs the console HTTP server and the heartbeat until the signal
// context is cancelled, then tears down console first so no submission
// can arrive after the channel begins its shutdown.
func (s *Service) serve(ctx context.Context) error {
	httpSrv := s.console.HTTPServer()

	serveErr := make(chan error, 1)
	go func() {
		err := httpSrv.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		serveErr <- err
	}()

	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("markerd shutdown")
			s.shutdown(httpSrv)
			return nil
		case err := <-serveErr:
			s.channel.Shutdown()
			return err
		case <-ticker.C:
			log.Info().
				Str("stream", s.cfg.Stream.Name).
				Bool("ready", s.ready.Load()).
				Int("status_reports", s.statuses.Len()).
				Msg("markerd heartbeat")
		}
	}
}

func (s *Service) shutdown(httpSrv *http.Server) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("console shutdown incomplete, closing")
		_ = httpSrv.Close()
	}
	s.channel.Shutdown()
}

func (s *Service) onReady(ok bool) {
	s.ready.Store(ok)
	observability.SetStreamReady(s.cfg.Stream.Name, ok)
	log.Info().Str("stream", s.cfg.Stream.Name).Bool("ready", ok).Msg("stream readiness")
}

func (s *Service) onStatus(report string) {
	s.statuses.Append(report)
	observability.RecordStatusReport(s.cfg.Stream.Name)
	if outcome := pushOutcome(report); outcome != "" {
		observability.RecordMarkerPush(s.cfg.Stream.Name, outcome)
	}
	log.Info().Str("stream", s.cfg.Stream.Name).Msg(report)
}

// pushOutcome maps a status report onto a push outcome label, or ""
// for lifecycle reports.
func pushOutcome(report string) string {
	switch {
	case strings.Contains(report, "Sent marker: "):
		return "sent"
	case strings.Contains(report, "Error sending marker: "):
		return "error"
	case strings.Contains(report, "LSL stream not active"):
		return "dropped"
	default:
		return ""
	}
}
