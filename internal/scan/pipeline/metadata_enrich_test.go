// Ferrex scancore
// Copyright 2026 The Ferrex Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferrex/scancore/internal/scan/job"
)

type fakeMetadataProvider struct {
	details MetadataDetails
	err     error
}

func (f *fakeMetadataProvider) Fetch(ctx context.Context, ref MetadataRef) (MetadataDetails, error) {
	return f.details, f.err
}

type fakeMetadataStore struct {
	saved MetadataDetails
}

func (f *fakeMetadataStore) Save(ctx context.Context, ref MetadataRef, details MetadataDetails) error {
	f.saved = details
	return nil
}

func TestMetadataEnrichSavesAndEnqueuesIndexUpsert(t *testing.T) {
	enq := &fakeEnqueuer{}
	store := &fakeMetadataStore{}
	h := &MetadataEnrichHandler{
		Provider: &fakeMetadataProvider{details: MetadataDetails{"title": "Example"}},
		Store:    store,
		Enqueuer: enq,
	}

	rec := &job.Record{
		Kind: job.KindMetadataEnrich,
		Payload: job.MetadataEnrichPayload{
			LibraryID: "lib1", Path: "/lib/movie.mkv", Variant: job.HierarchyMovie, MediaID: "media-1",
		},
	}
	require.NoError(t, h.Handle(context.Background(), rec))
	assert.Equal(t, "Example", store.saved["title"])
	require.Len(t, enq.requests, 1)
	_, ok := enq.requests[0].Payload.(job.IndexUpsertPayload)
	assert.True(t, ok)
}

func TestMetadataEnrichClassifies4xxAsPermanent(t *testing.T) {
	h := &MetadataEnrichHandler{
		Provider: &fakeMetadataProvider{err: &ProviderError{StatusCode: 404, Message: "not found"}},
		Store:    &fakeMetadataStore{},
		Enqueuer: &fakeEnqueuer{},
	}
	rec := &job.Record{Kind: job.KindMetadataEnrich, Payload: job.MetadataEnrichPayload{LibraryID: "lib1", Path: "/x", MediaID: "m"}}
	err := h.Handle(context.Background(), rec)
	require.Error(t, err)
	assert.False(t, AsFailure(err).Retryable)
}

func TestMetadataEnrichClassifies5xxAndRateLimitAsRetryable(t *testing.T) {
	for _, code := range []int{500, 503, 429} {
		h := &MetadataEnrichHandler{
			Provider: &fakeMetadataProvider{err: &ProviderError{StatusCode: code, Message: "upstream"}},
			Store:    &fakeMetadataStore{},
			Enqueuer: &fakeEnqueuer{},
		}
		rec := &job.Record{Kind: job.KindMetadataEnrich, Payload: job.MetadataEnrichPayload{LibraryID: "lib1", Path: "/x", MediaID: "m"}}
		err := h.Handle(context.Background(), rec)
		require.Error(t, err)
		assert.True(t, AsFailure(err).Retryable, "status %d should be retryable", code)
	}
}
