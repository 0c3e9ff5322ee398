// Ferrex scancore
// Copyright 2026 The Ferrex Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package hls

import (
	"context"
	"sort"
	"time"

	"github.com/ferrex/scancore/internal/logging"
	"github.com/ferrex/scancore/internal/scan/enqueue"
	"github.com/ferrex/scancore/internal/scan/job"
	"github.com/ferrex/scancore/internal/scan/pipeline"
)

// TranscodeRequester hands a variant's priority hint to whatever drives
// the transcoder. There is no Transcode job.Kind among the seven the
// scan pipeline defines (§4.5's table is closed), so the adaptor's
// "feeds back into transcoder job priority" requirement (§4.8) is a
// collaborator the server wires to its transcode subsystem, not a job
// the scan store tracks.
type TranscodeRequester interface {
	RequestTranscode(ctx context.Context, libraryID, mediaID string, variant Variant, priority job.Priority) error
}

// ReportSelection is called whenever a playback session reports which
// variant it is currently requesting. It does two things per §4.8:
//
//  1. Enqueues an ImageFetch for the on-screen media's poster at
//     ImagePoster priority, using the existing enqueue pipeline.
//  2. Requests a transcode for the selected variant at elevated
//     priority, and the remaining variants at lower priority — the
//     variant immediately above and below the selection (the ones most
//     likely to be needed next on a quality switch) at P2, the rest
//     at P3.
func ReportSelection(ctx context.Context, enq pipeline.Enqueuer, requester TranscodeRequester, libraryID, mediaID, posterImageID string, selected Variant, all []Variant) error {
	if enq != nil && posterImageID != "" {
		req := job.EnqueueRequest{
			Payload: job.ImageFetchPayload{
				LibraryID:    libraryID,
				ImageID:      posterImageID,
				PriorityHint: job.ImagePoster,
			},
			Priority:    job.ImagePoster.DefaultPriority(),
			AllowMerge:  true,
			RequestedAt: time.Now().UTC(),
		}
		if _, err := enq.Enqueue(ctx, req, enqueue.Options{IsAdmin: false}); err != nil {
			logging.Warn().Err(err).Str("media_id", mediaID).Msg("hls: poster image-fetch enqueue failed")
		}
	}

	if requester == nil {
		return nil
	}

	for _, v := range variantsByPriority(selected, all) {
		if err := requester.RequestTranscode(ctx, libraryID, mediaID, v.variant, v.priority); err != nil {
			return err
		}
	}
	return nil
}

type rankedVariant struct {
	variant  Variant
	priority job.Priority
}

// variantsByPriority assigns the selected variant P1, its bandwidth
// neighbors P2, and every other variant P3.
func variantsByPriority(selected Variant, all []Variant) []rankedVariant {
	sorted := make([]Variant, len(all))
	copy(sorted, all)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Bandwidth < sorted[j].Bandwidth })

	selectedIdx := -1
	for i, v := range sorted {
		if v.Bandwidth == selected.Bandwidth && v.PlaylistURL == selected.PlaylistURL {
			selectedIdx = i
			break
		}
	}

	out := make([]rankedVariant, 0, len(sorted))
	for i, v := range sorted {
		switch {
		case i == selectedIdx:
			out = append(out, rankedVariant{v, job.P1})
		case selectedIdx >= 0 && (i == selectedIdx-1 || i == selectedIdx+1):
			out = append(out, rankedVariant{v, job.P2})
		default:
			out = append(out, rankedVariant{v, job.P3})
		}
	}
	return out
}
