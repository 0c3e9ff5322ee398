// Ferrex scancore
// Copyright 2026 The Ferrex Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferrex/scancore/internal/scan/job"
	"github.com/ferrex/scancore/internal/scan/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(store.Config{Path: ":memory:", MaxMemory: "512MB"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func insertReady(t *testing.T, st *store.Store, libraryID string, priority job.Priority, availableAt time.Time) *job.Record {
	t.Helper()
	id := uuid.NewString()
	rec := &job.Record{
		ID:          id,
		Kind:        job.KindFolderScan,
		Payload:     job.FolderScanPayload{Context: job.FolderContext{LibraryID: libraryID, Path: "/media/" + id}},
		Priority:    priority,
		State:       job.StateReady,
		AvailableAt: availableAt,
		DedupeKey:   "scan:" + libraryID + ":/media/" + id,
		CreatedAt:   availableAt,
	}
	require.NoError(t, st.Insert(context.Background(), rec))
	return rec
}

func TestDispatchFIFOWithinCell(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	first := insertReady(t, st, "lib1", job.P1, base)
	_ = insertReady(t, st, "lib1", job.P1, base.Add(time.Minute))

	d := New(st, DefaultConfig())
	got, err := d.Dispatch(ctx, "worker-a", nil, nil)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, job.StateLeased, got.State)
}

func TestDispatchSelectorHintBypassesFairShare(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	now := time.Now().Add(-time.Minute)
	insertReady(t, st, "lib1", job.P3, now)
	wanted := insertReady(t, st, "lib2", job.P3, now.Add(time.Second))

	d := New(st, DefaultConfig())
	sel := Selector{LibraryID: "lib2", Priority: job.P3}
	got, err := d.Dispatch(ctx, "worker-a", nil, &sel)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, wanted.ID, got.ID)
}

func TestDispatchFiltersByKind(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	insertReady(t, st, "lib1", job.P0, time.Now().Add(-time.Minute))

	d := New(st, DefaultConfig())
	got, err := d.Dispatch(ctx, "worker-a", []job.Kind{job.KindMediaAnalyze}, nil)
	require.NoError(t, err)
	assert.Nil(t, got, "no MediaAnalyze jobs exist, so the kind filter should yield nothing")
}

func TestDispatchReturnsNilWhenNothingReady(t *testing.T) {
	st := openTestStore(t)
	d := New(st, DefaultConfig())
	got, err := d.Dispatch(context.Background(), "worker-a", nil, nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDispatchHigherWeightCellWinsOverTime(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	now := time.Now().Add(-time.Minute)
	for i := 0; i < 8; i++ {
		insertReady(t, st, "libP0", job.P0, now)
	}
	for i := 0; i < 8; i++ {
		insertReady(t, st, "libP3", job.P3, now)
	}

	d := New(st, DefaultConfig())
	p0Wins := 0
	for i := 0; i < 8; i++ {
		got, err := d.Dispatch(ctx, "worker-a", nil, nil)
		require.NoError(t, err)
		require.NotNil(t, got)
		if got.Payload.LibraryID() == "libP0" {
			p0Wins++
		}
	}
	assert.Greater(t, p0Wins, 4, "P0's weight-8 band should win the majority of the first 8 dispatches")
}
