// Ferrex scancore
// Copyright 2026 The Ferrex Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package hls

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferrex/scancore/internal/scan/job"
)

func TestHTTPTranscodeRequesterPostsPriorityHint(t *testing.T) {
	var gotBody transcodeRequestBody
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/transcode", r.URL.Path)
		gotQuery = r.URL.RawQuery
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusAccepted)
	}))
	t.Cleanup(srv.Close)

	r := NewHTTPTranscodeRequester(srv.URL, nil)
	variant := Variant{Profile: "1080p", PlaylistURL: "1080p.m3u8"}

	err := r.RequestTranscode(context.Background(), "lib1", "media-1", variant, job.P1)
	require.NoError(t, err)
	assert.Equal(t, "media_id=media-1", gotQuery)
	assert.Equal(t, "lib1", gotBody.LibraryID)
	assert.Equal(t, "media-1", gotBody.MediaID)
	assert.Equal(t, "1080p.m3u8", gotBody.Variant)
	assert.Equal(t, int(job.P1), gotBody.Priority)
}

func TestHTTPTranscodeRequesterNoopWhenBaseURLEmpty(t *testing.T) {
	r := NewHTTPTranscodeRequester("", nil)
	err := r.RequestTranscode(context.Background(), "lib1", "media-1", Variant{}, job.P0)
	assert.NoError(t, err)
}

func TestHTTPTranscodeRequesterSurfacesUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	r := NewHTTPTranscodeRequester(srv.URL, nil)
	err := r.RequestTranscode(context.Background(), "lib1", "media-1", Variant{}, job.P0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "media-1")
}
