// Ferrex scancore
// Copyright 2026 The Ferrex Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package lease implements the Lease Manager (C4): renew, complete, fail
// (with exponential backoff and dead-lettering), and the periodic
// expiry sweep that reclaims leases abandoned by a crashed worker.
package lease

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ferrex/scancore/internal/logging"
	"github.com/ferrex/scancore/internal/scan/job"
	"github.com/ferrex/scancore/internal/scan/store"
)

// ErrStaleLease is returned by Renew/Complete/Fail when the caller's
// lease no longer matches the stored row — it expired and was swept, or
// was already completed/failed by someone else. Per §4.4's cancellation
// model, the caller must abandon its work without side effects.
var ErrStaleLease = errors.New("lease: stale lease")

// EventPublisher receives job lifecycle events.
type EventPublisher interface {
	PublishCompleted(ctx context.Context, rec *job.Record) error
	PublishFailed(ctx context.Context, rec *job.Record, retryable bool) error
	PublishDeadLettered(ctx context.Context, rec *job.Record) error
}

// Config configures a Manager.
type Config struct {
	MaxAttempts uint32
	Backoff     BackoffConfig
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{MaxAttempts: 8, Backoff: DefaultBackoffConfig()}
}

// Manager is the Lease Manager (C4).
type Manager struct {
	store     *store.Store
	cfg       Config
	publisher EventPublisher
}

// New builds a Manager. publisher may be nil.
func New(st *store.Store, cfg Config, publisher EventPublisher) *Manager {
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 8
	}
	return &Manager{store: st, cfg: cfg, publisher: publisher}
}

// Renew extends a held lease's expiry.
func (m *Manager) Renew(ctx context.Context, jobID, owner string, extendBy time.Duration) error {
	err := m.store.RenewLease(ctx, jobID, owner, time.Now().Add(extendBy))
	if errors.Is(err, store.ErrCASConflict) {
		return ErrStaleLease
	}
	return err
}

// Complete transitions a leased job to Completed and, for a SeriesResolve
// job, promotes every EpisodeMatch job waiting on its series root.
func (m *Manager) Complete(ctx context.Context, jobID, owner string) error {
	rec, err := m.store.Get(ctx, jobID)
	if err != nil {
		return fmt.Errorf("lease: load job before complete: %w", err)
	}

	if err := m.store.Complete(ctx, jobID, owner); err != nil {
		if errors.Is(err, store.ErrCASConflict) {
			return ErrStaleLease
		}
		return fmt.Errorf("lease: complete: %w", err)
	}

	if rec.Kind == job.KindSeriesResolve && rec.DependencyKey != nil {
		n, err := m.store.PromoteDeferredByDependencyKey(ctx, *rec.DependencyKey)
		if err != nil {
			logging.Error().Err(err).Str("job_id", jobID).Msg("failed to promote dependents after series resolve completed")
		} else if n > 0 {
			logging.Debug().Str("job_id", jobID).Int64("promoted", n).Msg("promoted deferred episode matches")
		}
	}

	if m.publisher != nil {
		rec.State = job.StateCompleted
		if err := m.publisher.PublishCompleted(ctx, rec); err != nil {
			logging.Warn().Err(err).Str("job_id", jobID).Msg("publish completed event failed")
		}
	}
	return nil
}

// Fail handles a stage failure. If retryable and under the attempt cap,
// it schedules a backoff retry (Deferred); otherwise it dead-letters the
// job. The caller supplies attemptsBefore — the record's attempt count
// as it observed it before this failure — so the cap check reflects the
// attempt this failure represents.
func (m *Manager) Fail(ctx context.Context, jobID, owner string, attemptsBefore uint32, retryable bool, reason string) error {
	nextAttempts := attemptsBefore + 1
	if !retryable || nextAttempts >= m.cfg.MaxAttempts {
		return m.deadLetter(ctx, jobID, owner, reason)
	}

	delay := m.cfg.Backoff.Compute(nextAttempts)
	if err := m.store.Retry(ctx, jobID, owner, time.Now().Add(delay), reason); err != nil {
		if errors.Is(err, store.ErrCASConflict) {
			return ErrStaleLease
		}
		return fmt.Errorf("lease: retry: %w", err)
	}

	if m.publisher != nil {
		if rec, err := m.store.Get(ctx, jobID); err == nil {
			if perr := m.publisher.PublishFailed(ctx, rec, true); perr != nil {
				logging.Warn().Err(perr).Str("job_id", jobID).Msg("publish failed event failed")
			}
		}
	}
	return nil
}

// DeadLetter forces a job straight to DeadLetter regardless of attempt
// count, per the lease manager's explicit dead_letter operation.
func (m *Manager) DeadLetter(ctx context.Context, jobID, owner, reason string) error {
	return m.deadLetter(ctx, jobID, owner, reason)
}

func (m *Manager) deadLetter(ctx context.Context, jobID, owner, reason string) error {
	if err := m.store.DeadLetter(ctx, jobID, owner, reason); err != nil {
		if errors.Is(err, store.ErrCASConflict) {
			return ErrStaleLease
		}
		return fmt.Errorf("lease: dead letter: %w", err)
	}
	if m.publisher != nil {
		if rec, err := m.store.Get(ctx, jobID); err == nil {
			if perr := m.publisher.PublishDeadLettered(ctx, rec); perr != nil {
				logging.Warn().Err(perr).Str("job_id", jobID).Msg("publish dead-lettered event failed")
			}
		}
	}
	return nil
}
