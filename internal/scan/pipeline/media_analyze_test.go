// Ferrex scancore
// Copyright 2026 The Ferrex Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferrex/scancore/internal/scan/job"
)

type fakeMediaProber struct {
	calls int
	probe MediaProbeResult
	err   error
}

func (f *fakeMediaProber) Probe(ctx context.Context, path string) (MediaProbeResult, error) {
	f.calls++
	return f.probe, f.err
}

type fakeMediaStore struct {
	fingerprints map[string]job.Fingerprint
	saved        []MediaRecord
}

func newFakeMediaStore() *fakeMediaStore {
	return &fakeMediaStore{fingerprints: make(map[string]job.Fingerprint)}
}

func (f *fakeMediaStore) LookupFingerprint(ctx context.Context, libraryID, pathNorm string) (*job.Fingerprint, string, bool, error) {
	fp, ok := f.fingerprints[libraryID+":"+pathNorm]
	if !ok {
		return nil, "", false, nil
	}
	return &fp, "media-existing", true, nil
}

func (f *fakeMediaStore) SaveMediaRecord(ctx context.Context, rec MediaRecord) (string, error) {
	f.saved = append(f.saved, rec)
	f.fingerprints[rec.LibraryID+":"+rec.Path] = rec.Fingerprint
	return "media-new", nil
}

func TestMediaAnalyzeSkipsFastWhenFingerprintMatches(t *testing.T) {
	store := newFakeMediaStore()
	mtime := time.Now()
	fp := job.Fingerprint{Size: 100, Mtime: mtime}
	store.fingerprints["lib1:/x.mkv"] = fp

	prober := &fakeMediaProber{}
	h := &MediaAnalyzeHandler{Prober: prober, Store: store, Enqueuer: &fakeEnqueuer{}}

	rec := &job.Record{
		Kind: job.KindMediaAnalyze,
		Payload: job.MediaAnalyzePayload{
			LibraryID: "lib1", Path: "/x.mkv", Variant: job.HierarchyMovie,
			Fingerprint: &fp,
		},
	}
	require.NoError(t, h.Handle(context.Background(), rec))
	assert.Equal(t, 0, prober.calls, "unchanged fingerprint must skip re-probing")
}

func TestMediaAnalyzeProbesAndEnqueuesMetadataEnrichForMovie(t *testing.T) {
	store := newFakeMediaStore()
	prober := &fakeMediaProber{probe: MediaProbeResult{Container: "matroska"}}
	enq := &fakeEnqueuer{}
	h := &MediaAnalyzeHandler{Prober: prober, Store: store, Enqueuer: enq}

	rec := &job.Record{
		Kind: job.KindMediaAnalyze,
		Payload: job.MediaAnalyzePayload{
			LibraryID: "lib1", Path: "/new.mkv", Variant: job.HierarchyMovie,
		},
	}
	require.NoError(t, h.Handle(context.Background(), rec))
	assert.Equal(t, 1, prober.calls)
	require.Len(t, enq.requests, 1)
	_, ok := enq.requests[0].Payload.(job.MetadataEnrichPayload)
	assert.True(t, ok)
}

func TestMediaAnalyzeEnqueuesEpisodeMatchForEpisodeVariant(t *testing.T) {
	store := newFakeMediaStore()
	prober := &fakeMediaProber{}
	enq := &fakeEnqueuer{}
	h := &MediaAnalyzeHandler{Prober: prober, Store: store, Enqueuer: enq}

	rec := &job.Record{
		Kind: job.KindMediaAnalyze,
		Payload: job.MediaAnalyzePayload{
			LibraryID: "lib1", Path: "/show/s1/e1.mkv", SeriesRootPath: "/show", Variant: job.HierarchyEpisode,
		},
	}
	require.NoError(t, h.Handle(context.Background(), rec))
	require.Len(t, enq.requests, 1)
	em, ok := enq.requests[0].Payload.(job.EpisodeMatchPayload)
	require.True(t, ok)
	assert.Equal(t, "/show", em.SeriesRootPath)
	require.NotNil(t, enq.requests[0].DependencyKey)
	assert.Equal(t, job.SeriesRootDependencyKey("/show"), *enq.requests[0].DependencyKey)
}

func TestMediaAnalyzeRetriesOnProbeError(t *testing.T) {
	store := newFakeMediaStore()
	prober := &fakeMediaProber{err: assertError("ffprobe crashed")}
	h := &MediaAnalyzeHandler{Prober: prober, Store: store, Enqueuer: &fakeEnqueuer{}}

	rec := &job.Record{
		Kind:    job.KindMediaAnalyze,
		Payload: job.MediaAnalyzePayload{LibraryID: "lib1", Path: "/x.mkv", Variant: job.HierarchyMovie},
	}
	err := h.Handle(context.Background(), rec)
	require.Error(t, err)
	assert.True(t, AsFailure(err).Retryable)
}
