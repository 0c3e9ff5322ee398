// Ferrex scancore
// Copyright 2026 The Ferrex Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ferrex/scancore/internal/scan/job"
)

// ErrNotFound is returned when a lookup finds no matching row.
var ErrNotFound = errors.New("store: job not found")

// ErrCASConflict is returned when a compare-and-swap transition loses a
// race — the row's state, or its lease owner, no longer matches the
// caller's expectation.
var ErrCASConflict = errors.New("store: compare-and-swap conflict")

// ErrDedupeConflict is returned by Insert when an active (non-terminal)
// job already holds the same dedupe key.
var ErrDedupeConflict = errors.New("store: active dedupe key conflict")

// Insert persists a brand-new job record. The caller decides the initial
// state (Ready for an unblocked job, Deferred for one gated behind a
// dependency key).
func (s *Store) Insert(ctx context.Context, rec *job.Record) error {
	payloadJSON, err := job.EncodePayload(rec.Payload)
	if err != nil {
		return fmt.Errorf("store: encode payload: %w", err)
	}

	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO jobs (
			id, kind, payload, priority, state, attempts, available_at,
			lease_owner, lease_expires_at, dedupe_key, dependency_key,
			correlation_id, last_error, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, int16(rec.Kind), string(payloadJSON), int8(rec.Priority), string(rec.State),
		rec.Attempts, rec.AvailableAt, rec.LeaseOwner, rec.LeaseExpiresAt, rec.DedupeKey,
		rec.DependencyKey, nullableString(rec.CorrelationID), nullableString(rec.LastError),
		rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		if isUniqueConstraintViolation(err) {
			return ErrDedupeConflict
		}
		return fmt.Errorf("store: insert job: %w", err)
	}
	return nil
}

// Get fetches a job by id.
func (s *Store) Get(ctx context.Context, id string) (*job.Record, error) {
	row := s.conn.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

// FindActiveByDedupeKey returns the non-terminal job currently holding
// dedupeKey, if any (§4.2 merge path).
func (s *Store) FindActiveByDedupeKey(ctx context.Context, dedupeKey string) (*job.Record, error) {
	row := s.conn.QueryRowContext(ctx, selectColumns+`
		WHERE dedupe_key = ? AND state NOT IN ('completed', 'failed', 'dead_letter')`,
		dedupeKey)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

// ElevatePriority raises an existing job's priority to the more urgent of
// its current value and want, returning whether a change was made. This
// backs the enqueue engine's merge-with-priority-elevation rule (§4.2).
func (s *Store) ElevatePriority(ctx context.Context, id string, want job.Priority) (bool, error) {
	res, err := s.conn.ExecContext(ctx, `
		UPDATE jobs SET priority = ?, updated_at = ?
		WHERE id = ? AND priority > ?`,
		int8(want), time.Now().UTC(), id, int8(want))
	if err != nil {
		return false, fmt.Errorf("store: elevate priority: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("store: elevate priority rows affected: %w", err)
	}
	return n > 0, nil
}

// ListReadyCandidates returns up to limit Ready jobs whose available_at
// has elapsed, across all kinds and priorities, for the dispatcher's
// fair-share selection to choose among in memory.
func (s *Store) ListReadyCandidates(ctx context.Context, now time.Time, limit int) ([]*job.Record, error) {
	rows, err := s.conn.QueryContext(ctx, selectColumns+`
		WHERE state = 'ready' AND available_at <= ?
		ORDER BY priority ASC, available_at ASC
		LIMIT ?`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list ready candidates: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// ClaimByID performs the Ready -> Leased CAS transition the dispatcher
// uses to hand a job to a worker. Attempts is not incremented here — only
// on the failure/expiry paths, per the lease manager's contract. It
// returns false (no error) if another dispatcher won the race first.
func (s *Store) ClaimByID(ctx context.Context, id, owner string, leaseExpiresAt time.Time) (bool, error) {
	res, err := s.conn.ExecContext(ctx, `
		UPDATE jobs SET state = 'leased', lease_owner = ?, lease_expires_at = ?,
			updated_at = ?
		WHERE id = ? AND state = 'ready'`,
		owner, leaseExpiresAt, time.Now().UTC(), id)
	if err != nil {
		return false, fmt.Errorf("store: claim job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("store: claim job rows affected: %w", err)
	}
	return n == 1, nil
}

// RenewLease extends a held lease's expiry, failing with ErrCASConflict
// if owner no longer matches (the lease already expired and was swept).
func (s *Store) RenewLease(ctx context.Context, id, owner string, newExpiresAt time.Time) error {
	res, err := s.conn.ExecContext(ctx, `
		UPDATE jobs SET lease_expires_at = ?, updated_at = ?
		WHERE id = ? AND state = 'leased' AND lease_owner = ?`,
		newExpiresAt, time.Now().UTC(), id, owner)
	if err != nil {
		return fmt.Errorf("store: renew lease: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: renew lease rows affected: %w", err)
	}
	if n == 0 {
		return ErrCASConflict
	}
	return nil
}

// Complete performs the Leased -> Completed CAS transition.
func (s *Store) Complete(ctx context.Context, id, owner string) error {
	res, err := s.conn.ExecContext(ctx, `
		UPDATE jobs SET state = 'completed', lease_owner = NULL, lease_expires_at = NULL,
			last_error = NULL, updated_at = ?
		WHERE id = ? AND state = 'leased' AND lease_owner = ?`,
		time.Now().UTC(), id, owner)
	if err != nil {
		return fmt.Errorf("store: complete job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: complete job rows affected: %w", err)
	}
	if n == 0 {
		return ErrCASConflict
	}
	return nil
}

// Retry performs the Leased -> Deferred CAS transition used on a
// retryable failure: attempts is incremented and the next availability
// time is set per the caller's backoff computation.
func (s *Store) Retry(ctx context.Context, id, owner string, availableAt time.Time, lastErr string) error {
	res, err := s.conn.ExecContext(ctx, `
		UPDATE jobs SET state = 'deferred', lease_owner = NULL, lease_expires_at = NULL,
			available_at = ?, attempts = attempts + 1, last_error = ?, updated_at = ?
		WHERE id = ? AND state = 'leased' AND lease_owner = ?`,
		availableAt, lastErr, time.Now().UTC(), id, owner)
	if err != nil {
		return fmt.Errorf("store: retry job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: retry job rows affected: %w", err)
	}
	if n == 0 {
		return ErrCASConflict
	}
	return nil
}

// Requeue flips a Deferred job back to Ready once its available_at has
// elapsed or its gating dependency has resolved.
func (s *Store) Requeue(ctx context.Context, id string) error {
	res, err := s.conn.ExecContext(ctx, `
		UPDATE jobs SET state = 'ready', updated_at = ?
		WHERE id = ? AND state = 'deferred'`,
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("store: requeue job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: requeue job rows affected: %w", err)
	}
	if n == 0 {
		return ErrCASConflict
	}
	return nil
}

// Fail performs the Leased -> Failed CAS transition for a non-retryable
// failure.
func (s *Store) Fail(ctx context.Context, id, owner, lastErr string) error {
	return s.terminalTransition(ctx, id, owner, "failed", lastErr)
}

// DeadLetter performs the Leased -> DeadLetter CAS transition once a job
// has exhausted its retry budget.
func (s *Store) DeadLetter(ctx context.Context, id, owner, lastErr string) error {
	return s.terminalTransition(ctx, id, owner, "dead_letter", lastErr)
}

func (s *Store) terminalTransition(ctx context.Context, id, owner, state, lastErr string) error {
	res, err := s.conn.ExecContext(ctx, `
		UPDATE jobs SET state = ?, lease_owner = NULL, lease_expires_at = NULL,
			last_error = ?, updated_at = ?
		WHERE id = ? AND state = 'leased' AND lease_owner = ?`,
		state, lastErr, time.Now().UTC(), id, owner)
	if err != nil {
		return fmt.Errorf("store: terminal transition to %s: %w", state, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: terminal transition rows affected: %w", err)
	}
	if n == 0 {
		return ErrCASConflict
	}
	return nil
}

// ReviveFromTerminal moves a Failed or DeadLetter job back to Ready,
// immediately available and with a clean attempt count — the admin
// API's and scanctl's "queue retry" operation, an explicit operator
// override of the backoff/dead-letter machinery rather than anything
// the pipeline does on its own.
func (s *Store) ReviveFromTerminal(ctx context.Context, id string) error {
	res, err := s.conn.ExecContext(ctx, `
		UPDATE jobs SET state = 'ready', attempts = 0, available_at = ?,
			last_error = NULL, updated_at = ?
		WHERE id = ? AND state IN ('failed', 'dead_letter')`,
		time.Now().UTC(), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("store: revive from terminal: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: revive from terminal rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ExpireLeases sweeps Leased jobs whose lease has expired back to Ready,
// incrementing attempts, and returns the count reclaimed. This is the
// crash-recovery path: a worker that died mid-lease leaves its job here
// until the sweep runs; a job leased and crashed twice ends up with
// attempts = 2.
func (s *Store) ExpireLeases(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.conn.ExecContext(ctx, `
		UPDATE jobs SET state = 'ready', lease_owner = NULL, lease_expires_at = NULL,
			attempts = attempts + 1, updated_at = ?
		WHERE state = 'leased' AND lease_expires_at < ?`,
		now, now)
	if err != nil {
		return 0, fmt.Errorf("store: expire leases: %w", err)
	}
	return res.RowsAffected()
}

// PromoteDeferredByDependencyKey flips every Deferred job gated on
// dependencyKey to Ready, once the SeriesResolve job that key names has
// completed. Returns the count promoted.
func (s *Store) PromoteDeferredByDependencyKey(ctx context.Context, dependencyKey string) (int64, error) {
	res, err := s.conn.ExecContext(ctx, `
		UPDATE jobs SET state = 'ready', updated_at = ?
		WHERE state = 'deferred' AND dependency_key = ?`,
		time.Now().UTC(), dependencyKey)
	if err != nil {
		return 0, fmt.Errorf("store: promote deferred by dependency key: %w", err)
	}
	return res.RowsAffected()
}

// ActiveBlockingDependency reports whether a non-terminal job of kind
// blockingKind is tagged with dependencyKey — the dependency gate check
// EpisodeMatch uses against its series root's SeriesResolve job.
func (s *Store) ActiveBlockingDependency(ctx context.Context, dependencyKey string, blockingKind job.Kind) (bool, error) {
	var exists bool
	err := s.conn.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM jobs
			WHERE dependency_key = ? AND kind = ?
				AND state NOT IN ('completed', 'failed', 'dead_letter')
		)`, dependencyKey, int16(blockingKind)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("store: check active blocking dependency: %w", err)
	}
	return exists, nil
}

// ListByState returns jobs in the given state, most recently updated
// first, for admin inspection.
func (s *Store) ListByState(ctx context.Context, state job.State, limit int) ([]*job.Record, error) {
	rows, err := s.conn.QueryContext(ctx, selectColumns+`
		WHERE state = ? ORDER BY updated_at DESC LIMIT ?`, string(state), limit)
	if err != nil {
		return nil, fmt.Errorf("store: list by state: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// Purge deletes terminal jobs in the given state older than cutoff,
// returning the count removed.
func (s *Store) Purge(ctx context.Context, state job.State, cutoff time.Time) (int64, error) {
	if !state.Terminal() {
		return 0, fmt.Errorf("store: purge refuses non-terminal state %s", state)
	}
	res, err := s.conn.ExecContext(ctx, `
		DELETE FROM jobs WHERE state = ? AND updated_at < ?`,
		string(state), cutoff)
	if err != nil {
		return 0, fmt.Errorf("store: purge: %w", err)
	}
	return res.RowsAffected()
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func isUniqueConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return contains(msg, "constraint") && (contains(msg, "unique") || contains(msg, "Unique"))
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
