// Ferrex scancore
// Copyright 2026 The Ferrex Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"github.com/go-chi/chi/v5"

	"github.com/ferrex/scancore/internal/logging"
	"github.com/ferrex/scancore/internal/scan/job"
	"github.com/ferrex/scancore/internal/scan/store"
)

const defaultQueueInspectLimit = 100

// queueRecordView is the wire shape for a job.Record on the admin API —
// Kind/State/Priority rendered as their string forms rather than the
// store's internal discriminants.
type queueRecordView struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	State       string    `json:"state"`
	Priority    string    `json:"priority"`
	Attempts    uint32    `json:"attempts"`
	AvailableAt time.Time `json:"available_at"`
	LastError   string    `json:"last_error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func toQueueRecordView(rec *job.Record) queueRecordView {
	return queueRecordView{
		ID:          rec.ID,
		Kind:        rec.Kind.String(),
		State:       string(rec.State),
		Priority:    rec.Priority.String(),
		Attempts:    rec.Attempts,
		AvailableAt: rec.AvailableAt,
		LastError:   rec.LastError,
		CreatedAt:   rec.CreatedAt,
	}
}

// handleQueueInspect lists jobs by state (required) and optionally
// narrows by kind, mirroring scanctl's "queue inspect" subcommand.
func (s *Server) handleQueueInspect(w http.ResponseWriter, r *http.Request) {
	stateParam := r.URL.Query().Get("state")
	if stateParam == "" {
		writeError(w, http.StatusBadRequest, "state query parameter is required")
		return
	}
	state := job.State(stateParam)

	limit := defaultQueueInspectLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	recs, err := s.store.ListByState(r.Context(), state, limit)
	if err != nil {
		logging.Error().Err(err).Msg("queue inspect: list by state")
		writeError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}

	kindFilter := r.URL.Query().Get("kind")
	views := make([]queueRecordView, 0, len(recs))
	for _, rec := range recs {
		if kindFilter != "" && rec.Kind.String() != kindFilter {
			continue
		}
		views = append(views, toQueueRecordView(rec))
	}

	writeJSON(w, http.StatusOK, views)
}

// handleQueueRetry revives a dead-lettered or failed job back to Ready
// immediately, mirroring scanctl's "queue retry <job_id>".
func (s *Server) handleQueueRetry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.ReviveFromTerminal(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		logging.Error().Err(err).Str("job_id", id).Msg("queue retry")
		writeError(w, http.StatusInternalServerError, "failed to retry job")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type purgeRequest struct {
	State     string `json:"state"`
	OlderThan string `json:"older_than"`
}

type purgeResponse struct {
	Purged int64 `json:"purged"`
}

// handleQueuePurge deletes terminal-state jobs older than a cutoff,
// mirroring scanctl's "queue purge --state dead_letter --older-than".
func (s *Server) handleQueuePurge(w http.ResponseWriter, r *http.Request) {
	var req purgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.State == "" || req.OlderThan == "" {
		writeError(w, http.StatusBadRequest, "state and older_than are required")
		return
	}
	age, err := time.ParseDuration(req.OlderThan)
	if err != nil {
		writeError(w, http.StatusBadRequest, "older_than must be a Go duration string")
		return
	}

	cutoff := time.Now().Add(-age)
	n, err := s.store.Purge(r.Context(), job.State(req.State), cutoff)
	if err != nil {
		logging.Error().Err(err).Msg("queue purge")
		writeError(w, http.StatusInternalServerError, "failed to purge jobs")
		return
	}

	writeJSON(w, http.StatusOK, purgeResponse{Purged: n})
}
