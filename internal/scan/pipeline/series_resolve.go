// Ferrex scancore
// Copyright 2026 The Ferrex Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipeline

import (
	"context"
	"errors"

	"github.com/ferrex/scancore/internal/scan/job"
)

// SeriesResolveHandler implements the SeriesResolve stage (§4.5):
// derives a stable series id for a series root and upserts it. Clearing
// the dependency gate for waiting EpisodeMatch jobs is the lease
// manager's job on completion (it owns the dependency-key promotion),
// not this handler's.
type SeriesResolveHandler struct {
	Resolver SeriesIdentityResolver
}

func (h *SeriesResolveHandler) Handle(ctx context.Context, rec *job.Record) error {
	payload, ok := rec.Payload.(job.SeriesResolvePayload)
	if !ok {
		return Permanent("series_resolve: payload type mismatch")
	}

	seriesID, err := h.Resolver.Resolve(ctx, payload.LibraryID, payload.SeriesRootPath, payload.FolderName, payload.Hint)
	if err != nil {
		var perr *ProviderError
		if errors.As(err, &perr) && perr.StatusCode >= 400 && perr.StatusCode < 500 {
			return Permanent("series_resolve: " + err.Error())
		}
		return Retryable("series_resolve: " + err.Error())
	}
	if seriesID == "" {
		return Permanent("series_resolve: resolver returned an empty series id")
	}
	return nil
}
