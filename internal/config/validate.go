// Ferrex scancore
// Copyright 2026 The Ferrex Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validatorOnce   sync.Once
	structValidator *validator.Validate
)

func getValidator() *validator.Validate {
	validatorOnce.Do(func() {
		structValidator = validator.New()
	})
	return structValidator
}

// ErrInvalidConfig wraps every validation failure Validate returns.
var ErrInvalidConfig = fmt.Errorf("invalid configuration")

// Validate checks cfg's struct tags and the cross-field rules a plain
// tag can't express (distinct library IDs, zero-weight dispatch bands).
// Uses go-playground/validator/v10, the same library
// internal/scan/enqueue/validate.go already uses for its wire-shape
// checks — unlike the teacher, whose config.Validate() hand-rolls a
// per-section aggregation instead.
func Validate(cfg *Config) error {
	if err := getValidator().Struct(cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	seen := make(map[string]bool, len(cfg.Libraries))
	for _, lib := range cfg.Libraries {
		if seen[lib.ID] {
			return fmt.Errorf("%w: duplicate library id %q", ErrInvalidConfig, lib.ID)
		}
		seen[lib.ID] = true
	}

	for band, weight := range cfg.Dispatch.Weights {
		if weight <= 0 {
			return fmt.Errorf("%w: dispatch weight for %s must be positive, got %d", ErrInvalidConfig, band, weight)
		}
	}

	if cfg.Events.NATSMirror.Enabled && cfg.Events.NATSMirror.Subject == "" {
		return fmt.Errorf("%w: events.nats_mirror.subject is required when nats_mirror is enabled", ErrInvalidConfig)
	}

	return nil
}
