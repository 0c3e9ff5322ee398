// Ferrex scancore
// Copyright 2026 The Ferrex Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths searched for a config file, in
// priority order. The first one found is used.
var DefaultConfigPaths = []string{
	"scancore.yaml",
	"scancore.yml",
	"/etc/scancore/config.yaml",
	"/etc/scancore/config.yml",
}

// ConfigPathEnvVar overrides the searched config file path.
const ConfigPathEnvVar = "SCANCORE_CONFIG_PATH"

// envPrefix is stripped from every SCANCORE_-prefixed environment
// variable before it's mapped to a koanf path.
const envPrefix = "SCANCORE_"

// Load builds a Config by layering, in increasing priority: built-in
// defaults, an optional YAML config file, then environment variables.
// Grounded on teacher's LoadWithKoanf in internal/config/koanf.go.
func Load() (*Config, error) {
	k := koanf.New(".")

	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: load file %s: %w", path, err)
		}
	}

	envProvider := env.Provider(envPrefix, ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("config: load environment: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("config: process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths lists koanf paths that must be treated as
// comma-separated lists when they arrive via an environment variable.
var sliceConfigPaths = []string{
	"server.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		strVal, ok := val.(string)
		if !ok {
			continue // already a slice from the defaults or YAML layer
		}
		if strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps SCANCORE_-prefixed environment variable suffixes to
// dotted koanf paths. A plain "replace _ with ." transform is ambiguous
// here because koanf field names are themselves snake_case (e.g.
// lease_ttl), so — as in teacher's envTransformFunc — known variables
// are mapped explicitly rather than inferred.
var envMappings = map[string]string{
	"DISPATCH_LEASE_TTL":   "dispatch.lease_ttl",
	"DISPATCH_CANDIDATES":  "dispatch.candidates",
	"LEASE_MAX_ATTEMPTS":   "lease.max_attempts",
	"LEASE_BACKOFF_BASE":   "lease.backoff.base",
	"LEASE_BACKOFF_MAX":    "lease.backoff.max",
	"LEASE_BACKOFF_JITTER": "lease.backoff.jitter",

	"WATCHER_DEBOUNCE_INTERVAL": "watcher.debounce_interval",
	"WATCHER_COALESCE_TTL":      "watcher.coalesce_ttl",
	"WATCHER_COALESCE_DB_PATH":  "watcher.coalesce_db_path",

	"DATABASE_PATH":       "database.path",
	"DATABASE_MAX_MEMORY": "database.max_memory",
	"DATABASE_THREADS":    "database.threads",

	"EVENTS_NATS_MIRROR_ENABLED": "events.nats_mirror.enabled",
	"EVENTS_NATS_MIRROR_URL":     "events.nats_mirror.url",
	"EVENTS_NATS_MIRROR_SUBJECT": "events.nats_mirror.subject",
	"EVENTS_THROUGHPUT_TICK":     "events.throughput_tick",

	"SERVER_BIND_ADDR":             "server.bind_addr",
	"SERVER_READ_TIMEOUT":          "server.read_timeout",
	"SERVER_WRITE_TIMEOUT":         "server.write_timeout",
	"SERVER_SHUTDOWN_TIMEOUT":      "server.shutdown_timeout",
	"SERVER_RATE_LIMIT_PER_MINUTE": "server.rate_limit_per_minute",
	"SERVER_CORS_ORIGINS":          "server.cors_origins",

	"LOGGING_LEVEL":     "logging.level",
	"LOGGING_FORMAT":    "logging.format",
	"LOGGING_CALLER":    "logging.caller",
	"LOGGING_TIMESTAMP": "logging.timestamp",
}

// envTransformFunc maps a SCANCORE_-prefixed environment variable name
// to its koanf path. env.Provider only uses the prefix to filter which
// variables are read; stripping it is the callback's job, same as in
// koanf's own env.Provider examples. Unrecognized variables are dropped
// rather than guessed at, matching teacher's conservative
// envTransformFunc.
func envTransformFunc(key string) string {
	key = strings.TrimPrefix(key, envPrefix)
	if path, ok := envMappings[key]; ok {
		return path
	}
	return ""
}
