package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/markerctl/internal/markerd"
	"github.com/google/uuid"
)

// markerctl config.toml key mapping to runtime settings.
type fileConfig struct {
	StreamName         string   `toml:"stream_name"`
	StreamType         string   `toml:"stream_type"`
	SourceID           string   `toml:"source_id"`
	FeedListenAddr     string   `toml:"feed_listen_addr"`
	DiscoveryAddr      string   `toml:"discovery_listen_addr"`
	ConsoleAddr        string   `toml:"console_listen_addr"`
	ConsoleCorsOrigins []string `toml:"console_cors_origins"`
	ConsoleAuthToken   string   `toml:"console_auth_token"`
	QueueSize          int      `toml:"queue_size"`
	StopGraceMS        int64    `toml:"stop_grace_ms"`
	HeartbeatInterval  string   `toml:"heartbeat_interval"`
	StatusLogCapacity  int      `toml:"status_log_capacity"`
}

// markerctl loader for TOML config with default overlay.
func loadServiceConfig(path string) (markerd.ServiceConfig, error) {
	cfg := markerd.DefaultServiceConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return markerd.ServiceConfig{}, fmt.Errorf("load markerctl config: %w", err)
	}

	if meta.IsDefined("stream_name") {
		name := strings.TrimSpace(raw.StreamName)
		if name != "" {
			cfg.Stream.Name = name
		}
	}
	if meta.IsDefined("stream_type") {
		cfg.Stream.Type = strings.TrimSpace(raw.StreamType)
	}
	if meta.IsDefined("source_id") {
		cfg.Stream.SourceID = strings.TrimSpace(raw.SourceID)
	}
	if strings.TrimSpace(cfg.Stream.SourceID) == "" {
		cfg.Stream.SourceID = generatedSourceID(cfg.Stream.Name)
	}

	if meta.IsDefined("feed_listen_addr") {
		cfg.Outlet.FeedListenAddr = strings.TrimSpace(raw.FeedListenAddr)
	}
	if meta.IsDefined("discovery_listen_addr") {
		cfg.Outlet.DiscoveryListenAddr = strings.TrimSpace(raw.DiscoveryAddr)
	}

	if meta.IsDefined("console_listen_addr") {
		cfg.Console.Addr = strings.TrimSpace(raw.ConsoleAddr)
	}
	if meta.IsDefined("console_cors_origins") {
		cfg.Console.CorsOrigins = normalizeOrigins(raw.ConsoleCorsOrigins)
	}
	if meta.IsDefined("console_auth_token") {
		cfg.Console.AuthToken = strings.TrimSpace(raw.ConsoleAuthToken)
	}

	if meta.IsDefined("queue_size") {
		if raw.QueueSize <= 0 {
			return markerd.ServiceConfig{}, fmt.Errorf("load markerctl config: queue_size must be positive, got %d", raw.QueueSize)
		}
		cfg.QueueSize = raw.QueueSize
	}
	if meta.IsDefined("stop_grace_ms") {
		if raw.StopGraceMS <= 0 {
			return markerd.ServiceConfig{}, fmt.Errorf("load markerctl config: stop_grace_ms must be positive, got %d", raw.StopGraceMS)
		}
		cfg.StopGracePeriod = time.Duration(raw.StopGraceMS) * time.Millisecond
	}
	if meta.IsDefined("heartbeat_interval") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.HeartbeatInterval))
		if err != nil {
			return markerd.ServiceConfig{}, fmt.Errorf("parse heartbeat_interval: %w", err)
		}
		cfg.HeartbeatInterval = d
	}
	if meta.IsDefined("status_log_capacity") {
		cfg.StatusLogCapacity = raw.StatusLogCapacity
	}

	if err := cfg.Stream.Validate(); err != nil {
		return markerd.ServiceConfig{}, fmt.Errorf("load markerctl config: %w", err)
	}
	return cfg, nil
}

// generatedSourceID makes each run a distinct source when the operator
// explicitly blanks source_id. A fixed source_id lets recorders resume
// the stream across restarts.
func generatedSourceID(streamName string) string {
	return fmt.Sprintf("%s_%s", streamName, uuid.NewString())
}

func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, raw := range origins {
		origin := strings.TrimSpace(raw)
		if origin == "" {
			continue
		}
		out = append(out, origin)
	}
	return out
}
