// Ferrex scancore
// Copyright 2026 The Ferrex Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads scancore's runtime configuration, grounded on the
// teacher's internal/config package: struct defaults, an optional YAML
// file, and environment variable overrides layered through koanf, in
// that order of precedence (env wins, then file, then the built-in
// defaults below).
//
// Unlike the teacher, which hand-rolls its own validateX() aggregation,
// scancore validates the loaded Config with go-playground/validator/v10
// struct tags — the same library the enqueue package already uses for
// its wire-shape checks (internal/scan/enqueue/validate.go), so the two
// validation paths in this module share one idiom instead of two.
package config

import (
	"time"

	"github.com/ferrex/scancore/internal/logging"
	"github.com/ferrex/scancore/internal/scan/job"
)

// LibraryConfig describes one scanned media library.
type LibraryConfig struct {
	ID                string         `koanf:"id" validate:"required"`
	Path              string         `koanf:"path" validate:"required"`
	Kind              job.FolderKind `koanf:"kind" validate:"required,oneof=movie series season"`
	AdminOnlyPriority bool           `koanf:"admin_only_priority"`
}

// DispatchConfig configures the Dispatcher's (C3) fair-share scheduling.
type DispatchConfig struct {
	// Weights maps a priority band name (P0..P3) to its fair-share
	// token weight. Empty uses the spec default (P0=8, P1=4, P2=2, P3=1).
	Weights    map[string]int `koanf:"weights"`
	LeaseTTL   time.Duration  `koanf:"lease_ttl" validate:"required"`
	Candidates int            `koanf:"candidates" validate:"required,min=1"`
}

// BackoffConfig configures the Lease Manager's (C4) retry backoff.
type BackoffConfig struct {
	Base   time.Duration `koanf:"base" validate:"required"`
	Max    time.Duration `koanf:"max" validate:"required,gtefield=Base"`
	Jitter float64       `koanf:"jitter" validate:"min=0,max=1"`
}

// LeaseConfig configures the Lease Manager (C4).
type LeaseConfig struct {
	MaxAttempts uint32        `koanf:"max_attempts" validate:"required,min=1"`
	Backoff     BackoffConfig `koanf:"backoff"`
}

// WatcherConfig configures the filesystem Watcher (C7).
type WatcherConfig struct {
	DebounceInterval time.Duration `koanf:"debounce_interval" validate:"required"`
	CoalesceTTL      time.Duration `koanf:"coalesce_ttl" validate:"required"`
	// CoalesceDBPath is the Badger directory backing the coalesce
	// window. Empty runs it in-memory, which is only appropriate for
	// a single-process development deployment.
	CoalesceDBPath string `koanf:"coalesce_db_path"`
}

// DatabaseConfig configures the DuckDB-backed job store (C1/C2).
type DatabaseConfig struct {
	Path      string `koanf:"path" validate:"required"`
	MaxMemory string `koanf:"max_memory" validate:"required"`
	Threads   int    `koanf:"threads" validate:"min=0"`
}

// NATSMirrorConfig toggles the optional NATS mirror for the job event
// bus (C9). Resolved Open Question: this is a runtime toggle, not a
// build tag, so a single scancore binary serves both modes.
type NATSMirrorConfig struct {
	Enabled bool   `koanf:"enabled"`
	URL     string `koanf:"url"`
	Subject string `koanf:"subject"`
}

// EventsConfig configures the job event bus (C9).
type EventsConfig struct {
	NATSMirror     NATSMirrorConfig `koanf:"nats_mirror"`
	ThroughputTick time.Duration    `koanf:"throughput_tick" validate:"required"`
}

// ServerConfig configures the admin HTTP surface.
type ServerConfig struct {
	BindAddr        string        `koanf:"bind_addr" validate:"required"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"required"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"required"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"required"`
	// RateLimitPerMinute bounds requests per client IP on the admin API.
	RateLimitPerMinute int `koanf:"rate_limit_per_minute" validate:"required,min=1"`
	// CORSOrigins lists allowed origins for the admin API. Empty means
	// same-origin only.
	CORSOrigins []string `koanf:"cors_origins"`
}

// LoggingConfig mirrors internal/logging.Config for koanf layering;
// ToLogging converts it.
type LoggingConfig struct {
	Level     string `koanf:"level" validate:"required,oneof=trace debug info warn error fatal panic"`
	Format    string `koanf:"format" validate:"required,oneof=json console"`
	Caller    bool   `koanf:"caller"`
	Timestamp bool   `koanf:"timestamp"`
}

// ToLogging converts LoggingConfig into internal/logging.Config.
func (c LoggingConfig) ToLogging() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = c.Level
	cfg.Format = c.Format
	cfg.Caller = c.Caller
	cfg.Timestamp = c.Timestamp
	return cfg
}

// MediaConfig configures the pipeline's external-tool collaborators: the
// ffprobe-backed prober, the metadata provider, and the image cache.
type MediaConfig struct {
	FFProbePath         string        `koanf:"ffprobe_path" validate:"required"`
	FFProbeTimeout      time.Duration `koanf:"ffprobe_timeout" validate:"required"`
	MetadataProviderURL string        `koanf:"metadata_provider_url"`
	MetadataAPIKey      string        `koanf:"metadata_api_key"`
	MetadataTimeout     time.Duration `koanf:"metadata_timeout" validate:"required"`
	ImageCacheDir       string        `koanf:"image_cache_dir" validate:"required"`
	ImageProviderURL    string        `koanf:"image_provider_url"`
	ProbeConcurrency    int64         `koanf:"probe_concurrency" validate:"required,min=1"`
	TranscodeURL        string        `koanf:"transcode_url"`
	MetadataRatePerSec  float64       `koanf:"metadata_rate_per_sec" validate:"required,gt=0"`
}

// Config is scancore's top-level runtime configuration.
type Config struct {
	Libraries []LibraryConfig `koanf:"libraries" validate:"dive"`
	Dispatch  DispatchConfig  `koanf:"dispatch"`
	Lease     LeaseConfig     `koanf:"lease"`
	Watcher   WatcherConfig   `koanf:"watcher"`
	Database  DatabaseConfig  `koanf:"database"`
	Events    EventsConfig    `koanf:"events"`
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
	Media     MediaConfig     `koanf:"media"`
}

// LibraryByID returns the library with the given ID, or false if none
// matches. Implements enqueue.LibraryPolicy via AdminOnlyPriority below.
func (c *Config) LibraryByID(id string) (LibraryConfig, bool) {
	for _, lib := range c.Libraries {
		if lib.ID == id {
			return lib, true
		}
	}
	return LibraryConfig{}, false
}

// AdminOnlyPriority implements enqueue.LibraryPolicy.
func (c *Config) AdminOnlyPriority(libraryID string) bool {
	lib, ok := c.LibraryByID(libraryID)
	return ok && lib.AdminOnlyPriority
}
