// Ferrex scancore
// Copyright 2026 The Ferrex Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import "time"

// defaultConfig returns scancore's built-in configuration defaults,
// applied before any config file or environment variable layer. Mirrors
// teacher's defaultConfig() builder in internal/config/koanf.go.
func defaultConfig() *Config {
	return &Config{
		Libraries: nil,
		Dispatch: DispatchConfig{
			Weights:    map[string]int{"P0": 8, "P1": 4, "P2": 2, "P3": 1},
			LeaseTTL:   5 * time.Minute,
			Candidates: 256,
		},
		Lease: LeaseConfig{
			MaxAttempts: 8,
			Backoff: BackoffConfig{
				Base:   2 * time.Second,
				Max:    30 * time.Minute,
				Jitter: 0.25,
			},
		},
		Watcher: WatcherConfig{
			DebounceInterval: 2 * time.Second,
			CoalesceTTL:      2 * time.Second,
			CoalesceDBPath:   "",
		},
		Database: DatabaseConfig{
			Path:      "scancore.duckdb",
			MaxMemory: "2GB",
			Threads:   0,
		},
		Events: EventsConfig{
			NATSMirror: NATSMirrorConfig{
				Enabled: false,
				URL:     "",
				Subject: "scancore.job-events",
			},
			ThroughputTick: 30 * time.Second,
		},
		Server: ServerConfig{
			BindAddr:           "127.0.0.1:8420",
			ReadTimeout:        10 * time.Second,
			WriteTimeout:       10 * time.Second,
			ShutdownTimeout:    15 * time.Second,
			RateLimitPerMinute: 120,
			CORSOrigins:        nil,
		},
		Logging: LoggingConfig{
			Level:     "info",
			Format:    "json",
			Caller:    false,
			Timestamp: true,
		},
		Media: MediaConfig{
			FFProbePath:        "ffprobe",
			FFProbeTimeout:     20 * time.Second,
			MetadataTimeout:    10 * time.Second,
			ImageCacheDir:      "scancore-images",
			ProbeConcurrency:   4,
			MetadataRatePerSec: 5,
		},
	}
}
