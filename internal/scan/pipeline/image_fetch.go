// Ferrex scancore
// Copyright 2026 The Ferrex Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipeline

import (
	"context"
	"errors"

	"github.com/ferrex/scancore/internal/scan/job"
)

// ImageFetchHandler implements the ImageFetch stage (§4.5): retrieves a
// remote image into the local content-addressed cache. Size variants
// are independent cache entries, so no coordination with other
// ImageFetch jobs is needed.
type ImageFetchHandler struct {
	Fetcher ImageFetcher
}

func (h *ImageFetchHandler) Handle(ctx context.Context, rec *job.Record) error {
	payload, ok := rec.Payload.(job.ImageFetchPayload)
	if !ok {
		return Permanent("image_fetch: payload type mismatch")
	}

	_, err := h.Fetcher.Fetch(ctx, ImageRef{
		LibraryID:   payload.LibraryID,
		ImageID:     payload.ImageID,
		SizeVariant: payload.ImageSizeVariant,
		WidthName:   payload.WidthName,
	})
	if err != nil {
		var perr *ProviderError
		if errors.As(err, &perr) && perr.StatusCode >= 400 && perr.StatusCode < 500 && perr.StatusCode != 429 {
			return Permanent("image_fetch: " + err.Error())
		}
		return Retryable("image_fetch: " + err.Error())
	}
	return nil
}
