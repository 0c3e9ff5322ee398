// Ferrex scancore
// Copyright 2026 The Ferrex Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"net/http"

	json "github.com/goccy/go-json"

	"github.com/ferrex/scancore/internal/hls"
)

// playbackVariant mirrors hls.Variant's wire shape for the selection
// report below.
type playbackVariant struct {
	Bandwidth   int64  `json:"bandwidth"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Profile     string `json:"profile"`
	PlaylistURL string `json:"playlist_url"`
}

func (v playbackVariant) toVariant() hls.Variant {
	return hls.Variant{
		Bandwidth:   v.Bandwidth,
		Width:       v.Width,
		Height:      v.Height,
		Profile:     v.Profile,
		PlaylistURL: v.PlaylistURL,
	}
}

type playbackSelectRequest struct {
	LibraryID     string            `json:"library_id"`
	MediaID       string            `json:"media_id"`
	PosterImageID string            `json:"poster_image_id"`
	Selected      playbackVariant   `json:"selected"`
	Variants      []playbackVariant `json:"variants"`
}

// handlePlaybackSelect reports which HLS variant a playback session is
// currently requesting, so the server can prioritize a poster fetch and
// nearby-bandwidth transcodes (§4.8).
func (s *Server) handlePlaybackSelect(w http.ResponseWriter, r *http.Request) {
	if s.enqueue == nil {
		writeError(w, http.StatusServiceUnavailable, "playback reporting unavailable")
		return
	}

	var req playbackSelectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.LibraryID == "" || req.MediaID == "" {
		writeError(w, http.StatusBadRequest, "library_id and media_id are required")
		return
	}

	all := make([]hls.Variant, len(req.Variants))
	for i, v := range req.Variants {
		all[i] = v.toVariant()
	}

	err := hls.ReportSelection(r.Context(), s.enqueue, s.transcoder, req.LibraryID, req.MediaID,
		req.PosterImageID, req.Selected.toVariant(), all)
	if err != nil {
		writeError(w, http.StatusBadGateway, "transcode request failed")
		return
	}

	w.WriteHeader(http.StatusAccepted)
}
