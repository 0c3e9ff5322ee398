// Ferrex scancore
// Copyright 2026 The Ferrex Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferrex/scancore/internal/scan/enqueue"
	"github.com/ferrex/scancore/internal/scan/job"
)

type fakeLister struct {
	entries map[string][]FolderEntry
}

func (f *fakeLister) ListDir(ctx context.Context, path string) ([]FolderEntry, error) {
	return f.entries[path], nil
}

type fakeEnqueuer struct {
	requests []job.EnqueueRequest
}

func (f *fakeEnqueuer) Enqueue(ctx context.Context, req job.EnqueueRequest, opts enqueue.Options) (job.Handle, error) {
	f.requests = append(f.requests, req)
	return job.Handle{JobID: "fake", Accepted: true}, nil
}

type memHashStore struct {
	hashes map[string]string
}

func newMemHashStore() *memHashStore { return &memHashStore{hashes: make(map[string]string)} }

func (m *memHashStore) GetListingHash(ctx context.Context, libraryID, path string) (string, bool, error) {
	h, ok := m.hashes[libraryID+":"+path]
	return h, ok, nil
}

func (m *memHashStore) SaveListingHash(ctx context.Context, libraryID, path, hash string) error {
	m.hashes[libraryID+":"+path] = hash
	return nil
}

func TestFolderScanEnqueuesSeasonSubfolderUnderSeriesRoot(t *testing.T) {
	lister := &fakeLister{entries: map[string][]FolderEntry{
		"/lib/show": {
			{Name: "Season 1", Path: "/lib/show/Season 1", IsDir: true},
		},
	}}
	enq := &fakeEnqueuer{}
	h := &FolderScanHandler{Lister: lister, Hashes: newMemHashStore(), Enqueuer: enq}

	rec := &job.Record{
		Kind: job.KindFolderScan,
		Payload: job.FolderScanPayload{
			Context: job.FolderContext{LibraryID: "lib1", Path: "/lib/show", Kind: job.FolderSeries},
		},
	}
	require.NoError(t, h.Handle(context.Background(), rec))
	require.Len(t, enq.requests, 1)
	sub, ok := enq.requests[0].Payload.(job.FolderScanPayload)
	require.True(t, ok)
	assert.Equal(t, job.FolderSeason, sub.Context.Kind)
	assert.Equal(t, "/lib/show", sub.Context.SeriesRootPath)
}

func TestFolderScanEnqueuesMediaAnalyzeForVideoFiles(t *testing.T) {
	lister := &fakeLister{entries: map[string][]FolderEntry{
		"/lib/movie": {
			{Name: "movie.mkv", Path: "/lib/movie/movie.mkv", IsDir: false},
			{Name: "poster.jpg", Path: "/lib/movie/poster.jpg", IsDir: false},
		},
	}}
	enq := &fakeEnqueuer{}
	h := &FolderScanHandler{Lister: lister, Hashes: newMemHashStore(), Enqueuer: enq}

	rec := &job.Record{
		Kind: job.KindFolderScan,
		Payload: job.FolderScanPayload{
			Context: job.FolderContext{LibraryID: "lib1", Path: "/lib/movie", Kind: job.FolderMovie},
		},
	}
	require.NoError(t, h.Handle(context.Background(), rec))
	require.Len(t, enq.requests, 1)
	analyze, ok := enq.requests[0].Payload.(job.MediaAnalyzePayload)
	require.True(t, ok)
	assert.Equal(t, "/lib/movie/movie.mkv", analyze.Path)
}

func TestFolderScanSkipsReenqueueOnUnchangedListingHash(t *testing.T) {
	lister := &fakeLister{entries: map[string][]FolderEntry{
		"/lib/movie": {{Name: "movie.mkv", Path: "/lib/movie/movie.mkv", IsDir: false}},
	}}
	enq := &fakeEnqueuer{}
	hashes := newMemHashStore()
	h := &FolderScanHandler{Lister: lister, Hashes: hashes, Enqueuer: enq}

	rec := &job.Record{
		Kind: job.KindFolderScan,
		Payload: job.FolderScanPayload{
			Context: job.FolderContext{LibraryID: "lib1", Path: "/lib/movie", Kind: job.FolderMovie},
		},
	}
	require.NoError(t, h.Handle(context.Background(), rec))
	require.Len(t, enq.requests, 1)

	require.NoError(t, h.Handle(context.Background(), rec))
	assert.Len(t, enq.requests, 1, "unchanged listing hash must not re-enqueue")
}
