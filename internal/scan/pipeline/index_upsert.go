// Ferrex scancore
// Copyright 2026 The Ferrex Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipeline

import (
	"context"

	"github.com/ferrex/scancore/internal/logging"
	"github.com/ferrex/scancore/internal/scan/bundle"
	"github.com/ferrex/scancore/internal/scan/job"
)

// IndexUpsertHandler implements the IndexUpsert stage (§4.5): the only
// handler permitted to write to the read-side index. IdempotencyKey
// guarantees at-most-once visible effect — the store itself is
// responsible for comparing against the previously stored key.
type IndexUpsertHandler struct {
	Store  IndexStore
	Bundle BundleObserver
}

func (h *IndexUpsertHandler) Handle(ctx context.Context, rec *job.Record) error {
	payload, ok := rec.Payload.(job.IndexUpsertPayload)
	if !ok {
		return Permanent("index_upsert: payload type mismatch")
	}

	entry := IndexEntry{
		LibraryID:      payload.LibraryID,
		Path:           payload.Path,
		Hierarchy:      payload.Hierarchy,
		IdempotencyKey: payload.IdempotencyKey,
		MediaID:        payload.MediaID,
		Node:           payload.Node,
	}

	change, err := h.Store.Upsert(ctx, entry)
	if err != nil {
		return Retryable("index_upsert: upsert: " + err.Error())
	}

	if h.Bundle != nil && payload.SeriesRootPath != "" {
		h.Bundle.ObserveIndexed(payload.SeriesRootPath, bundle.IndexingOutcome{
			LibraryID: payload.LibraryID,
			Path:      payload.Path,
			MediaID:   payload.MediaID,
			Hierarchy: payload.Hierarchy,
			Node:      payload.Node,
		})
	}

	logging.Debug().Str("path", payload.Path).Str("change", string(change)).Msg("index_upsert: applied")
	return nil
}
