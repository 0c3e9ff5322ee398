// Ferrex scancore
// Copyright 2026 The Ferrex Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/sync/semaphore"

	"github.com/ferrex/scancore/internal/logging"
	"github.com/ferrex/scancore/internal/scan/enqueue"
	"github.com/ferrex/scancore/internal/scan/job"
)

// NewProberBreaker builds the circuit breaker guarding the external
// prober, matching the library-availability profile the teacher's own
// upstream-API breaker uses: trip past 60% failures once there's enough
// volume to judge, recover after a cooldown.
func NewProberBreaker() *gobreaker.CircuitBreaker[MediaProbeResult] {
	return gobreaker.NewCircuitBreaker[MediaProbeResult](gobreaker.Settings{
		Name:        "media-prober",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("media prober circuit breaker state change")
		},
	})
}

// MediaAnalyzeHandler implements the MediaAnalyze stage (§4.5): probes a
// file, persists its fingerprint and stream metadata, then enqueues the
// next stage. Parallel probe executions are bounded by a semaphore
// (§5's "local semaphore bounding parallel MediaAnalyze executions");
// the breaker protects against a hung or crash-looping prober process.
type MediaAnalyzeHandler struct {
	Prober   MediaProber
	Store    MediaStore
	Enqueuer Enqueuer
	Sem      *semaphore.Weighted
	Breaker  *gobreaker.CircuitBreaker[MediaProbeResult]
}

func (h *MediaAnalyzeHandler) Handle(ctx context.Context, rec *job.Record) error {
	payload, ok := rec.Payload.(job.MediaAnalyzePayload)
	if !ok {
		return Permanent("media_analyze: payload type mismatch")
	}

	if payload.Fingerprint != nil {
		existing, _, found, err := h.Store.LookupFingerprint(ctx, payload.LibraryID, payload.Path)
		if err != nil {
			return Retryable("media_analyze: lookup fingerprint: " + err.Error())
		}
		if found && existing != nil && existing.HashRepr() == payload.Fingerprint.HashRepr() {
			return nil
		}
	}

	if h.Sem != nil {
		if err := h.Sem.Acquire(ctx, 1); err != nil {
			return Retryable("media_analyze: acquire probe slot: " + err.Error())
		}
		defer h.Sem.Release(1)
	}

	probe, err := h.probe(ctx, payload.Path)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return Retryable("media_analyze: prober circuit breaker open: " + err.Error())
		}
		return Retryable("media_analyze: probe: " + err.Error())
	}

	fp := job.Fingerprint{Size: 0}
	if payload.Fingerprint != nil {
		fp = *payload.Fingerprint
	}
	fp.WeakHash = probe.WeakHash

	mediaID, err := h.Store.SaveMediaRecord(ctx, MediaRecord{
		LibraryID:   payload.LibraryID,
		Path:        payload.Path,
		Fingerprint: fp,
		Probe:       probe,
		Variant:     payload.Variant,
		Hierarchy:   payload.Hierarchy,
	})
	if err != nil {
		return Retryable("media_analyze: save media record: " + err.Error())
	}

	return h.enqueueNext(ctx, payload, mediaID)
}

func (h *MediaAnalyzeHandler) probe(ctx context.Context, path string) (MediaProbeResult, error) {
	if h.Breaker == nil {
		return h.Prober.Probe(ctx, path)
	}
	return h.Breaker.Execute(func() (MediaProbeResult, error) {
		return h.Prober.Probe(ctx, path)
	})
}

func (h *MediaAnalyzeHandler) enqueueNext(ctx context.Context, payload job.MediaAnalyzePayload, mediaID string) error {
	if payload.Variant != job.HierarchyEpisode {
		req := job.EnqueueRequest{
			Payload: job.MetadataEnrichPayload{
				LibraryID: payload.LibraryID,
				Path:      payload.Path,
				Variant:   payload.Variant,
				Hierarchy: payload.Hierarchy,
				MediaID:   mediaID,
			},
			Priority:    payload.ScanReason.DefaultPriority(),
			AllowMerge:  true,
			RequestedAt: time.Now().UTC(),
		}
		if _, err := h.Enqueuer.Enqueue(ctx, req, enqueue.Options{IsAdmin: true}); err != nil {
			return Retryable("media_analyze: enqueue metadata_enrich: " + err.Error())
		}
		return nil
	}

	dep := job.SeriesRootDependencyKey(payload.SeriesRootPath)
	req := job.EnqueueRequest{
		Payload: job.EpisodeMatchPayload{
			LibraryID:      payload.LibraryID,
			Path:           payload.Path,
			SeriesRootPath: payload.SeriesRootPath,
			SeriesID:       payload.Hierarchy.SeriesID,
			FileName:       filepath.Base(payload.Path),
		},
		Priority:      payload.ScanReason.DefaultPriority(),
		AllowMerge:    true,
		RequestedAt:   time.Now().UTC(),
		DependencyKey: &dep,
	}
	if _, err := h.Enqueuer.Enqueue(ctx, req, enqueue.Options{IsAdmin: true}); err != nil {
		return Retryable("media_analyze: enqueue episode_match: " + err.Error())
	}
	return nil
}
