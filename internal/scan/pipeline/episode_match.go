// Ferrex scancore
// Copyright 2026 The Ferrex Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/ferrex/scancore/internal/logging"
	"github.com/ferrex/scancore/internal/scan/enqueue"
	"github.com/ferrex/scancore/internal/scan/job"
)

// SeriesLookup resolves the series id a series root was last bound to,
// the fallback path when a payload's SeriesID wasn't stamped at
// enqueue time.
type SeriesLookup interface {
	SeriesIDForRoot(ctx context.Context, libraryID, seriesRootPath string) (string, bool, error)
}

// EpisodeMatchHandler implements the EpisodeMatch stage (§4.5): parses
// the filename for season/episode numbers, cross-checks against known
// episodes when a lookup is available, and enqueues IndexUpsert. An
// ambiguous or low-confidence match is recorded and surfaced as an
// observability event rather than blocking the job.
type EpisodeMatchHandler struct {
	Series   SeriesLookup
	Lookup   EpisodeLookup
	Enqueuer Enqueuer
}

func (h *EpisodeMatchHandler) Handle(ctx context.Context, rec *job.Record) error {
	payload, ok := rec.Payload.(job.EpisodeMatchPayload)
	if !ok {
		return Permanent("episode_match: payload type mismatch")
	}

	seriesID := payload.SeriesID
	if seriesID == "" {
		if h.Series == nil {
			return Permanent("episode_match: no series id on payload and no series lookup configured")
		}
		resolved, found, err := h.Series.SeriesIDForRoot(ctx, payload.LibraryID, payload.SeriesRootPath)
		if err != nil {
			return Retryable("episode_match: series lookup: " + err.Error())
		}
		if !found || resolved == "" {
			return Retryable("episode_match: series root not yet resolved")
		}
		seriesID = resolved
	}

	fileName := payload.FileName
	if fileName == "" {
		fileName = payload.Path
	}
	info, ok := ParseEpisodeFilename(fileName)
	if !ok {
		return Permanent(fmt.Sprintf("episode_match: could not parse season/episode from %q", fileName))
	}

	node := job.HierarchyNode{SeriesID: seriesID}
	if !info.IsAbsolute {
		season := info.Season
		episode := info.Episode
		node.SeasonNumber = &season
		node.EpisodeNumber = &episode
	} else {
		episode := info.Episode
		node.EpisodeNumber = &episode
	}

	if h.Lookup != nil && !info.IsAbsolute {
		candidates, err := h.Lookup.CandidatesFor(ctx, seriesID, info.Season, info.Episode)
		if err != nil {
			logging.Warn().Err(err).Str("path", payload.Path).Msg("episode_match: candidate lookup failed, proceeding with filename guess")
		} else if len(candidates) > 1 {
			logging.Warn().Str("path", payload.Path).Int("candidates", len(candidates)).Msg("episode_match: ambiguous match, recording low-confidence binding")
		}
	}
	if info.LowConfidence {
		logging.Info().Str("path", payload.Path).Int("episode", info.Episode).Msg("episode_match: low-confidence absolute-number match")
	}

	idempotencyKey := fmt.Sprintf("%s:%s:%d:%d", payload.LibraryID, payload.Path, info.Season, info.Episode)
	req := job.EnqueueRequest{
		Payload: job.IndexUpsertPayload{
			LibraryID:      payload.LibraryID,
			Path:           payload.Path,
			Hierarchy:      job.HierarchyEpisode,
			IdempotencyKey: idempotencyKey,
			MediaID:        payload.Path,
			Node:           node,
			SeriesRootPath: payload.SeriesRootPath,
		},
		Priority:    job.P2,
		AllowMerge:  true,
		RequestedAt: time.Now().UTC(),
	}
	if _, err := h.Enqueuer.Enqueue(ctx, req, enqueue.Options{IsAdmin: true}); err != nil {
		return Retryable("episode_match: enqueue index_upsert: " + err.Error())
	}
	return nil
}
