// Ferrex scancore
// Copyright 2026 The Ferrex Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferrex/scancore/internal/scan/job"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Config{Path: ":memory:", MaxMemory: "512MB"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestRecord(t *testing.T, state job.State) *job.Record {
	t.Helper()
	id := uuid.NewString()
	now := time.Now().UTC()
	return &job.Record{
		ID:          id,
		Kind:        job.KindFolderScan,
		Payload:     job.FolderScanPayload{Context: job.FolderContext{LibraryID: "lib1", Path: "/media/" + id}},
		Priority:    job.P2,
		State:       state,
		AvailableAt: now,
		DedupeKey:   "scan:lib1:/media/" + id,
		CreatedAt:   now,
	}
}

func TestInsertAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := newTestRecord(t, job.StateReady)
	require.NoError(t, s.Insert(ctx, rec))

	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.DedupeKey, got.DedupeKey)
	assert.Equal(t, job.StateReady, got.State)
}

func TestInsertRejectsActiveDedupeConflict(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := newTestRecord(t, job.StateReady)
	require.NoError(t, s.Insert(ctx, rec))

	dup := newTestRecord(t, job.StateReady)
	dup.DedupeKey = rec.DedupeKey
	err := s.Insert(ctx, dup)
	assert.ErrorIs(t, err, ErrDedupeConflict)
}

func TestClaimByIDTransitionsAndIsExclusive(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := newTestRecord(t, job.StateReady)
	require.NoError(t, s.Insert(ctx, rec))

	claimed, err := s.ClaimByID(ctx, rec.ID, "worker-a", time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = s.ClaimByID(ctx, rec.ID, "worker-b", time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, claimed, "a second claim on an already-leased job must lose the race")
}

func TestCompleteRequiresMatchingOwner(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := newTestRecord(t, job.StateReady)
	require.NoError(t, s.Insert(ctx, rec))
	_, err := s.ClaimByID(ctx, rec.ID, "worker-a", time.Now().Add(time.Minute))
	require.NoError(t, err)

	err = s.Complete(ctx, rec.ID, "worker-wrong")
	assert.ErrorIs(t, err, ErrCASConflict)

	require.NoError(t, s.Complete(ctx, rec.ID, "worker-a"))

	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StateCompleted, got.State)
}

func TestExpireLeasesReclaimsStaleLease(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := newTestRecord(t, job.StateReady)
	require.NoError(t, s.Insert(ctx, rec))
	_, err := s.ClaimByID(ctx, rec.ID, "worker-a", time.Now().Add(-time.Second))
	require.NoError(t, err)

	n, err := s.ExpireLeases(ctx, time.Now())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StateReady, got.State)
	assert.Nil(t, got.LeaseOwner)
}

func TestElevatePriorityOnlyMovesToMoreUrgent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := newTestRecord(t, job.StateReady)
	rec.Priority = job.P2
	require.NoError(t, s.Insert(ctx, rec))

	changed, err := s.ElevatePriority(ctx, rec.ID, job.P3)
	require.NoError(t, err)
	assert.False(t, changed, "P3 is less urgent than P2, must not downgrade")

	changed, err = s.ElevatePriority(ctx, rec.ID, job.P0)
	require.NoError(t, err)
	assert.True(t, changed)

	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, job.P0, got.Priority)
}

func TestPromoteDeferredByDependencyKey(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	dep := job.DependencyKey("/media/lib1/show")
	rec := newTestRecord(t, job.StateDeferred)
	rec.DependencyKey = &dep
	require.NoError(t, s.Insert(ctx, rec))

	n, err := s.PromoteDeferredByDependencyKey(ctx, dep)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StateReady, got.State)
}

func TestRetryThenRequeue(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := newTestRecord(t, job.StateReady)
	require.NoError(t, s.Insert(ctx, rec))
	_, err := s.ClaimByID(ctx, rec.ID, "worker-a", time.Now().Add(time.Minute))
	require.NoError(t, err)

	future := time.Now().Add(time.Hour)
	require.NoError(t, s.Retry(ctx, rec.ID, "worker-a", future, "transient failure"))

	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StateDeferred, got.State)
	assert.Equal(t, "transient failure", got.LastError)

	require.NoError(t, s.Requeue(ctx, rec.ID))
	got, err = s.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StateReady, got.State)
}

func TestDeadLetterAndPurge(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := newTestRecord(t, job.StateReady)
	require.NoError(t, s.Insert(ctx, rec))
	_, err := s.ClaimByID(ctx, rec.ID, "worker-a", time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.NoError(t, s.DeadLetter(ctx, rec.ID, "worker-a", "exhausted retries"))

	list, err := s.ListByState(ctx, job.StateDeadLetter, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)

	n, err := s.Purge(ctx, job.StateDeadLetter, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = s.Get(ctx, rec.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPurgeRefusesNonTerminalState(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Purge(context.Background(), job.StateReady, time.Now())
	assert.Error(t, err)
}

func TestReviveFromTerminalResetsAttemptsAndMakesJobReadyAgain(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := newTestRecord(t, job.StateReady)
	require.NoError(t, s.Insert(ctx, rec))
	_, err := s.ClaimByID(ctx, rec.ID, "worker-a", time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.NoError(t, s.DeadLetter(ctx, rec.ID, "worker-a", "exhausted retries"))

	require.NoError(t, s.ReviveFromTerminal(ctx, rec.ID))

	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StateReady, got.State)
	assert.Zero(t, got.Attempts)
	assert.Empty(t, got.LastError)
}

func TestReviveFromTerminalReturnsNotFoundForActiveJob(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := newTestRecord(t, job.StateReady)
	require.NoError(t, s.Insert(ctx, rec))

	err := s.ReviveFromTerminal(ctx, rec.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
