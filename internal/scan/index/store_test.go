// Ferrex scancore
// Copyright 2026 The Ferrex Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package index

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferrex/scancore/internal/scan/job"
	"github.com/ferrex/scancore/internal/scan/pipeline"
	"github.com/ferrex/scancore/internal/scan/store"
)

func openTestIndex(t *testing.T) *Store {
	t.Helper()
	st, err := store.Open(store.Config{Path: ":memory:", MaxMemory: "512MB"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	idx, err := Open(st.Conn())
	require.NoError(t, err)
	return idx
}

func TestListingHashRoundTrip(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()

	_, found, err := idx.GetListingHash(ctx, "lib1", "/media/show")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, idx.SaveListingHash(ctx, "lib1", "/media/show", "hash-a"))
	hash, found, err := idx.GetListingHash(ctx, "lib1", "/media/show")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "hash-a", hash)

	require.NoError(t, idx.SaveListingHash(ctx, "lib1", "/media/show", "hash-b"))
	hash, _, err = idx.GetListingHash(ctx, "lib1", "/media/show")
	require.NoError(t, err)
	assert.Equal(t, "hash-b", hash)
}

func TestMediaRecordLookupAfterSave(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()

	fp := job.Fingerprint{Size: 1024, Mtime: time.Now().UTC()}
	rec := pipeline.MediaRecord{
		LibraryID:   "lib1",
		Path:        "/media/movie.mkv",
		Fingerprint: fp,
	}

	mediaID1, err := idx.SaveMediaRecord(ctx, rec)
	require.NoError(t, err)
	assert.NotEmpty(t, mediaID1)

	got, mediaID2, found, err := idx.LookupFingerprint(ctx, "lib1", "/media/movie.mkv")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, mediaID1, mediaID2)
	assert.Equal(t, fp.Size, got.Size)
}

func TestSeriesIdentityResolveIsIdempotent(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()

	id1, err := idx.Resolve(ctx, "lib1", "/media/Some Show", "Some Show", nil)
	require.NoError(t, err)
	assert.Equal(t, "some-show", id1)

	id2, err := idx.Resolve(ctx, "lib1", "/media/Some Show", "Some Show", nil)
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	lookup, found, err := idx.SeriesIDForRoot(ctx, "lib1", "/media/Some Show")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, id1, lookup)
}

func TestSeriesIdentityResolveUsesHintOnFirstCall(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()
	hint := "explicit-id"

	id, err := idx.Resolve(ctx, "lib1", "/media/Another Show", "Another Show", &hint)
	require.NoError(t, err)
	assert.Equal(t, "explicit-id", id)
}

func TestIndexUpsertReportsChangeKind(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()

	entry := pipeline.IndexEntry{
		LibraryID:      "lib1",
		Path:           "/media/movie.mkv",
		IdempotencyKey: "v1",
		MediaID:        "media-1",
		Hierarchy:      job.AnalyzeHierarchy("movie"),
		Node:           job.HierarchyNode{},
	}

	change, err := idx.Upsert(ctx, entry)
	require.NoError(t, err)
	assert.Equal(t, pipeline.IndexCreated, change)

	change, err = idx.Upsert(ctx, entry)
	require.NoError(t, err)
	assert.Equal(t, pipeline.IndexUnchanged, change)

	entry.IdempotencyKey = "v2"
	change, err = idx.Upsert(ctx, entry)
	require.NoError(t, err)
	assert.Equal(t, pipeline.IndexUpdated, change)

	require.NoError(t, idx.Remove(ctx, "lib1", "/media/movie.mkv"))
}
