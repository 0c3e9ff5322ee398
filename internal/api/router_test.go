// Ferrex scancore
// Copyright 2026 The Ferrex Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
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

func insertDeadLetter(t *testing.T, st *store.Store) *job.Record {
	t.Helper()
	id := uuid.NewString()
	rec := &job.Record{
		ID:          id,
		Kind:        job.KindFolderScan,
		Payload:     job.FolderScanPayload{Context: job.FolderContext{LibraryID: "lib1", Path: "/media/" + id}},
		Priority:    job.P2,
		State:       job.StateDeadLetter,
		AvailableAt: time.Now().Add(-time.Hour),
		DedupeKey:   "scan:lib1:/media/" + id,
		CreatedAt:   time.Now().Add(-time.Hour),
	}
	require.NoError(t, st.Insert(context.Background(), rec))
	return rec
}

func TestHandleQueueInspectFiltersByStateAndKind(t *testing.T) {
	st := openTestStore(t)
	rec := insertDeadLetter(t, st)

	s := New(DefaultConfig(), st, nil, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/queue?state=dead_letter&kind=FolderScan", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var views []queueRecordView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &views))
	require.Len(t, views, 1)
	assert.Equal(t, rec.ID, views[0].ID)
}

func TestHandleQueueInspectRequiresState(t *testing.T) {
	st := openTestStore(t)
	s := New(DefaultConfig(), st, nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/queue", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleQueueRetryRequeuesDeadLetter(t *testing.T) {
	st := openTestStore(t)
	rec := insertDeadLetter(t, st)
	s := New(DefaultConfig(), st, nil, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/queue/"+rec.ID+"/retry", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusNoContent, w.Code)

	got, err := st.Get(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StateReady, got.State)
}

func TestHandleQueuePurgeDeletesOldTerminalJobs(t *testing.T) {
	st := openTestStore(t)
	insertDeadLetter(t, st)
	s := New(DefaultConfig(), st, nil, nil, nil)

	body := bytes.NewBufferString(`{"state":"dead_letter","older_than":"0s"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/queue/purge", body)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp purgeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.Purged)
}

func TestHandleScanStartReports503WithoutEnqueueWiring(t *testing.T) {
	st := openTestStore(t)
	s := New(DefaultConfig(), st, nil, nil, nil)

	body := bytes.NewBufferString(`{"library_id":"lib1","reason":"user"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/scan", body)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHealthzAndReadyz(t *testing.T) {
	st := openTestStore(t)
	s := New(DefaultConfig(), st, nil, nil, nil)

	for _, path := range []string{"/healthz", "/readyz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}
