// Ferrex scancore
// Copyright 2026 The Ferrex Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package media

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferrex/scancore/internal/scan/pipeline"
)

func TestImageFetcherDownloadsAndCaches(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("poster-bytes"))
	}))
	t.Cleanup(srv.Close)

	cacheDir := t.TempDir()
	f := NewImageFetcher(srv.URL, cacheDir, nil)
	ref := pipeline.ImageRef{LibraryID: "lib1", ImageID: "img-1", SizeVariant: "w300"}

	path, err := f.Fetch(context.Background(), ref)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "poster-bytes", string(data))
	assert.Equal(t, 1, requests)

	path2, err := f.Fetch(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, path, path2)
	assert.Equal(t, 1, requests, "second fetch should hit the disk cache, not the server")
}

func TestImageFetcherPropagatesUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	f := NewImageFetcher(srv.URL, t.TempDir(), nil)
	_, err := f.Fetch(context.Background(), pipeline.ImageRef{LibraryID: "lib1", ImageID: "missing", SizeVariant: "w300"})
	assert.Error(t, err)
}

func TestImageFetcherCachePathShardsByKeyPrefix(t *testing.T) {
	f := NewImageFetcher("", "cache-root", nil)
	ref := pipeline.ImageRef{LibraryID: "lib1", ImageID: "img-1", SizeVariant: "w300"}
	path := f.cachePath(ref)

	dir := filepath.Dir(path)
	assert.Len(t, filepath.Base(dir), 2)
	assert.Equal(t, path, f.cachePath(ref), "cache path must be deterministic for the same ref")
}
