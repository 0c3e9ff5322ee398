// Ferrex scancore
// Copyright 2026 The Ferrex Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package enqueue implements the Enqueue Engine (C2): validate, dedupe
// with priority elevation, dependency-gate, then insert.
package enqueue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ferrex/scancore/internal/logging"
	"github.com/ferrex/scancore/internal/scan/job"
	"github.com/ferrex/scancore/internal/scan/store"
)

// ErrAlreadyQueued is returned when a non-mergeable request collides with
// an existing active job sharing the same dedupe key.
var ErrAlreadyQueued = errors.New("enqueue: already queued")

// ErrPriorityForbidden is returned when a non-admin caller requests P0 on
// a library flagged admin_only_priority.
var ErrPriorityForbidden = errors.New("enqueue: priority forbidden for this caller")

// LibraryPolicy answers per-library enqueue policy questions. It is
// satisfied by the config package's library settings.
type LibraryPolicy interface {
	AdminOnlyPriority(libraryID string) bool
}

// EventPublisher receives job lifecycle events. Implementations live in
// internal/scan/events; Engine works with a nil publisher for tests.
type EventPublisher interface {
	PublishEnqueued(ctx context.Context, rec *job.Record) error
	PublishMerged(ctx context.Context, rec *job.Record) error
}

// Options carries the calling context the engine needs to enforce policy.
type Options struct {
	// IsAdmin reports whether the caller may request P0 on a library with
	// admin_only_priority set.
	IsAdmin bool
}

// Engine is the Enqueue Engine (C2).
type Engine struct {
	store     *store.Store
	policy    LibraryPolicy
	publisher EventPublisher
	now       func() time.Time
}

// New builds an Engine. policy and publisher may be nil.
func New(st *store.Store, policy LibraryPolicy, publisher EventPublisher) *Engine {
	return &Engine{store: st, policy: policy, publisher: publisher, now: time.Now}
}

// Enqueue validates, merges or inserts req, returning a handle describing
// the outcome (§4.2).
func (e *Engine) Enqueue(ctx context.Context, req job.EnqueueRequest, opts Options) (job.Handle, error) {
	if err := req.Validate(); err != nil {
		return job.Handle{}, err
	}
	if err := validateWireShape(req); err != nil {
		return job.Handle{}, err
	}

	libraryID := req.Payload.LibraryID()
	if e.policy != nil && e.policy.AdminOnlyPriority(libraryID) && req.Priority == job.P0 && !opts.IsAdmin {
		return job.Handle{}, fmt.Errorf("%w: library %s requires admin to request P0", ErrPriorityForbidden, libraryID)
	}

	dedupeKey := req.Payload.DedupeKey()
	existing, err := e.store.FindActiveByDedupeKey(ctx, dedupeKey)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return job.Handle{}, fmt.Errorf("enqueue: lookup dedupe key: %w", err)
	}

	if existing != nil {
		return e.merge(ctx, existing, req)
	}

	return e.insert(ctx, req)
}

func (e *Engine) merge(ctx context.Context, existing *job.Record, req job.EnqueueRequest) (job.Handle, error) {
	if !req.AllowMerge {
		return job.Handle{JobID: existing.ID, Accepted: false, MergedInto: &existing.ID}, ErrAlreadyQueued
	}

	elevated := existing.Priority.Elevate(req.Priority)
	changed, err := e.store.ElevatePriority(ctx, existing.ID, elevated)
	if err != nil {
		return job.Handle{}, fmt.Errorf("enqueue: elevate priority on merge: %w", err)
	}

	if changed && existing.State == job.StateDeferred {
		gated, err := e.dependencyGated(ctx, existing)
		if err != nil {
			return job.Handle{}, err
		}
		if !gated {
			if err := e.store.Requeue(ctx, existing.ID); err != nil && !errors.Is(err, store.ErrCASConflict) {
				return job.Handle{}, fmt.Errorf("enqueue: requeue merged job: %w", err)
			}
		}
	}

	if e.publisher != nil {
		if updated, err := e.store.Get(ctx, existing.ID); err == nil {
			if perr := e.publisher.PublishMerged(ctx, updated); perr != nil {
				logging.Warn().Err(perr).Str("job_id", existing.ID).Msg("publish merged event failed")
			}
		}
	}

	return job.Handle{JobID: existing.ID, Accepted: false, MergedInto: &existing.ID}, nil
}

func (e *Engine) insert(ctx context.Context, req job.EnqueueRequest) (job.Handle, error) {
	u, err := uuid.NewV7()
	if err != nil {
		return job.Handle{}, fmt.Errorf("enqueue: new job id: %w", err)
	}
	id := u.String()
	now := e.now().UTC()

	rec := &job.Record{
		ID:            id,
		Kind:          req.Payload.Kind(),
		Payload:       req.Payload,
		Priority:      req.Priority,
		State:         job.StateReady,
		AvailableAt:   now,
		DedupeKey:     req.Payload.DedupeKey(),
		DependencyKey: req.DependencyKey,
		CorrelationID: req.CorrelationID,
		CreatedAt:     now,
	}

	// SeriesResolve jobs self-tag their dependency key so the lease
	// manager can promote every EpisodeMatch job waiting on this series
	// root once this job completes (§3, §9).
	if sr, ok := req.Payload.(job.SeriesResolvePayload); ok {
		key := job.SeriesRootDependencyKey(sr.SeriesRootPath)
		rec.DependencyKey = &key
	}

	if rec.DependencyKey != nil {
		gated, err := e.dependencyGated(ctx, rec)
		if err != nil {
			return job.Handle{}, err
		}
		if gated {
			rec.State = job.StateDeferred
		}
	}

	if err := e.store.Insert(ctx, rec); err != nil {
		if errors.Is(err, store.ErrDedupeConflict) {
			// Lost a race against a concurrent enqueue of the same key;
			// retry as a merge against whatever won.
			winner, gerr := e.store.FindActiveByDedupeKey(ctx, rec.DedupeKey)
			if gerr != nil {
				return job.Handle{}, fmt.Errorf("enqueue: resolve dedupe race: %w", gerr)
			}
			return e.merge(ctx, winner, req)
		}
		return job.Handle{}, fmt.Errorf("enqueue: insert: %w", err)
	}

	if e.publisher != nil {
		if perr := e.publisher.PublishEnqueued(ctx, rec); perr != nil {
			logging.Warn().Err(perr).Str("job_id", rec.ID).Msg("publish enqueued event failed")
		}
	}

	return job.Handle{JobID: rec.ID, Accepted: true}, nil
}

// dependencyGated reports whether rec's dependency key still has an
// active SeriesResolve job — i.e. whether EpisodeMatch must wait.
func (e *Engine) dependencyGated(ctx context.Context, rec *job.Record) (bool, error) {
	if rec.Kind != job.KindEpisodeMatch || rec.DependencyKey == nil {
		return false, nil
	}
	blocking, err := e.store.ActiveBlockingDependency(ctx, *rec.DependencyKey, job.KindSeriesResolve)
	if err != nil {
		return false, fmt.Errorf("enqueue: check dependency gate: %w", err)
	}
	return blocking, nil
}
