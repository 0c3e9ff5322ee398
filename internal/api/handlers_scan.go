// Ferrex scancore
// Copyright 2026 The Ferrex Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"net/http"
	"time"

	json "github.com/goccy/go-json"

	"github.com/ferrex/scancore/internal/config"
	"github.com/ferrex/scancore/internal/logging"
	"github.com/ferrex/scancore/internal/scan/enqueue"
	"github.com/ferrex/scancore/internal/scan/job"
)

// LibraryLookup resolves a library ID to its scan root, satisfied by
// *config.Config.
type LibraryLookup interface {
	LibraryByID(id string) (config.LibraryConfig, bool)
}

type scanStartRequest struct {
	LibraryID string `json:"library_id"`
	Reason    string `json:"reason"`
}

type scanStartResponse struct {
	JobID    string `json:"job_id"`
	Accepted bool   `json:"accepted"`
}

// handleScanStart enqueues a library-root FolderScan, mirroring
// scanctl's "scan start --library <id> --reason <reason>". The admin
// API always enqueues as an admin caller — it is the operator surface,
// not an end-user one.
func (s *Server) handleScanStart(w http.ResponseWriter, r *http.Request) {
	if s.enqueue == nil || s.libraries == nil {
		writeError(w, http.StatusServiceUnavailable, "scan start is not configured on this server")
		return
	}

	var req scanStartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.LibraryID == "" {
		writeError(w, http.StatusBadRequest, "library_id is required")
		return
	}

	reason, err := job.ParseScanReason(req.Reason)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	lib, ok := s.libraries.LibraryByID(req.LibraryID)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown library")
		return
	}

	payload := job.FolderScanPayload{
		Context: job.FolderContext{
			LibraryID: req.LibraryID,
			Path:      lib.Path,
			Kind:      lib.Kind,
		},
		ScanReason:  reason,
		EnqueueTime: time.Now(),
	}

	handle, err := s.enqueue.Enqueue(r.Context(), job.EnqueueRequest{
		Payload:     payload,
		Priority:    reason.DefaultPriority(),
		AllowMerge:  true,
		RequestedAt: time.Now(),
	}, enqueue.Options{IsAdmin: true})
	if err != nil {
		logging.Error().Err(err).Str("library_id", req.LibraryID).Msg("scan start")
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, scanStartResponse{JobID: handle.JobID, Accepted: handle.Accepted})
}
