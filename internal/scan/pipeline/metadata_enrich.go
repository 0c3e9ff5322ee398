// Ferrex scancore
// Copyright 2026 The Ferrex Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/ferrex/scancore/internal/scan/enqueue"
	"github.com/ferrex/scancore/internal/scan/job"
)

// MetadataEnrichHandler implements the MetadataEnrich stage (§4.5):
// calls the external metadata provider under a token-bucket rate
// limiter (§5), persists the result, and enqueues IndexUpsert.
type MetadataEnrichHandler struct {
	Provider MetadataProvider
	Store    MetadataStore
	Enqueuer Enqueuer
	Limiter  *rate.Limiter
}

func (h *MetadataEnrichHandler) Handle(ctx context.Context, rec *job.Record) error {
	payload, ok := rec.Payload.(job.MetadataEnrichPayload)
	if !ok {
		return Permanent("metadata_enrich: payload type mismatch")
	}

	if h.Limiter != nil {
		if err := h.Limiter.Wait(ctx); err != nil {
			return Retryable("metadata_enrich: rate limiter wait: " + err.Error())
		}
	}

	ref := MetadataRef{
		LibraryID:     payload.LibraryID,
		MediaID:       payload.MediaID,
		Hierarchy:     payload.Variant,
		SeriesID:      payload.Hierarchy.SeriesID,
		SeasonNumber:  payload.Hierarchy.SeasonNumber,
		EpisodeNumber: payload.Hierarchy.EpisodeNumber,
	}

	details, err := h.Provider.Fetch(ctx, ref)
	if err != nil {
		var perr *ProviderError
		if errors.As(err, &perr) {
			if perr.StatusCode >= 400 && perr.StatusCode < 500 && perr.StatusCode != 429 {
				return Permanent(fmt.Sprintf("metadata_enrich: provider rejected request: %s", perr.Error()))
			}
			return Retryable(fmt.Sprintf("metadata_enrich: provider transient error: %s", perr.Error()))
		}
		return Retryable("metadata_enrich: fetch: " + err.Error())
	}

	if err := h.Store.Save(ctx, ref, details); err != nil {
		return Retryable("metadata_enrich: save details: " + err.Error())
	}

	idempotencyKey := fmt.Sprintf("%s:%s:%s", payload.LibraryID, payload.Path, payload.MediaID)
	req := job.EnqueueRequest{
		Payload: job.IndexUpsertPayload{
			LibraryID:      payload.LibraryID,
			Path:           payload.Path,
			Hierarchy:      payload.Variant,
			IdempotencyKey: idempotencyKey,
			MediaID:        payload.MediaID,
			Node:           payload.Hierarchy,
		},
		Priority:    job.P2,
		AllowMerge:  true,
		RequestedAt: time.Now().UTC(),
	}
	if _, err := h.Enqueuer.Enqueue(ctx, req, enqueue.Options{IsAdmin: true}); err != nil {
		return Retryable("metadata_enrich: enqueue index_upsert: " + err.Error())
	}
	return nil
}
