// Ferrex scancore
// Copyright 2026 The Ferrex Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipeline

import (
	"context"
	"encoding/hex"
	"path"
	"sort"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/ferrex/scancore/internal/logging"
	"github.com/ferrex/scancore/internal/scan/enqueue"
	"github.com/ferrex/scancore/internal/scan/job"
)

var videoExtensions = map[string]bool{
	".mkv": true, ".mp4": true, ".avi": true, ".mov": true,
	".wmv": true, ".ts": true, ".m4v": true, ".webm": true,
}

func isVideoFile(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	return videoExtensions[ext]
}

// ListingHashStore remembers the last listing hash observed for a
// folder, so repeated FolderScan jobs over an unchanged directory skip
// re-enqueuing their children (§4.5's idempotent-w.r.t.-listing_hash
// rule).
type ListingHashStore interface {
	GetListingHash(ctx context.Context, libraryID, path string) (string, bool, error)
	SaveListingHash(ctx context.Context, libraryID, path, hash string) error
}

// FolderScanHandler implements the FolderScan stage (§4.5): lists a
// directory, classifies each entry, and enqueues FolderScan for nested
// directories and MediaAnalyze for media files.
type FolderScanHandler struct {
	Lister        FolderLister
	Hashes        ListingHashStore
	Enqueuer      Enqueuer
	Bundle        BundleObserver
	Fingerprinter func(ctx context.Context, path string) (job.Fingerprint, error)
}

// FolderScanSummary is the outcome Handle assembles for one scan. Handle
// keeps it local: it is not returned, logged or published, and Skipped
// is never set.
type FolderScanSummary struct {
	DiscoveredFiles    int
	EnqueuedSubfolders int
	ListingHash        string
	CompletedAt        time.Time
	Skipped            bool
}

func (h *FolderScanHandler) Handle(ctx context.Context, rec *job.Record) error {
	payload, ok := rec.Payload.(job.FolderScanPayload)
	if !ok {
		return Permanent("folder_scan: payload type mismatch")
	}

	if h.Bundle != nil {
		h.Bundle.ObserveFolderDiscovered(payload.Context.LibraryID, payload.Context)
	}

	entries, err := h.Lister.ListDir(ctx, payload.Context.Path)
	if err != nil {
		return Retryable("folder_scan: list dir: " + err.Error())
	}

	hash := listingHash(entries)
	if h.Hashes != nil {
		prev, found, herr := h.Hashes.GetListingHash(ctx, payload.Context.LibraryID, payload.Context.Path)
		if herr != nil {
			return Retryable("folder_scan: load listing hash: " + herr.Error())
		}
		if found && prev == hash {
			if h.Bundle != nil {
				h.Bundle.ObserveFolderScanCompleted(payload.Context.LibraryID, payload.Context)
			}
			return nil
		}
	}

	summary := FolderScanSummary{ListingHash: hash}
	for _, entry := range entries {
		if entry.IsDir {
			if err := h.enqueueSubfolder(ctx, payload, entry); err != nil {
				return err
			}
			summary.EnqueuedSubfolders++
			continue
		}
		if !isVideoFile(entry.Name) {
			continue
		}
		if err := h.enqueueMediaAnalyze(ctx, payload, entry); err != nil {
			return err
		}
		summary.DiscoveredFiles++
	}

	if h.Hashes != nil {
		if err := h.Hashes.SaveListingHash(ctx, payload.Context.LibraryID, payload.Context.Path, hash); err != nil {
			logging.Warn().Err(err).Str("path", payload.Context.Path).Msg("folder_scan: save listing hash failed")
		}
	}

	if h.Bundle != nil {
		h.Bundle.ObserveFolderScanCompleted(payload.Context.LibraryID, payload.Context)
	}
	summary.CompletedAt = time.Now().UTC()
	return nil
}

func (h *FolderScanHandler) enqueueSubfolder(ctx context.Context, payload job.FolderScanPayload, entry FolderEntry) error {
	childKind := job.FolderMovie
	seriesRoot := payload.Context.SeriesRootPath
	if payload.Context.Kind == job.FolderSeries {
		seriesRoot = payload.Context.Path
	}
	if _, _, ok := SeasonFolderPattern(entry.Name); ok && payload.Context.Kind == job.FolderSeries {
		childKind = job.FolderSeason
	} else if payload.Context.Kind == job.FolderMovie || payload.Context.Kind == job.FolderSeason {
		childKind = payload.Context.Kind
	}

	childCtx := job.FolderContext{
		LibraryID:      payload.Context.LibraryID,
		Path:           entry.Path,
		Kind:           childKind,
		SeriesRootPath: seriesRoot,
	}
	req := job.EnqueueRequest{
		Payload: job.FolderScanPayload{
			Context:     childCtx,
			ScanReason:  payload.ScanReason,
			EnqueueTime: time.Now().UTC(),
			DeviceID:    payload.DeviceID,
		},
		Priority:    payload.ScanReason.DefaultPriority(),
		AllowMerge:  true,
		RequestedAt: time.Now().UTC(),
	}
	_, err := h.Enqueuer.Enqueue(ctx, req, enqueue.Options{IsAdmin: true})
	if err != nil {
		return Retryable("folder_scan: enqueue subfolder: " + err.Error())
	}
	return nil
}

func (h *FolderScanHandler) enqueueMediaAnalyze(ctx context.Context, payload job.FolderScanPayload, entry FolderEntry) error {
	variant := job.HierarchyMovie
	var hierarchy job.HierarchyNode
	if payload.Context.Kind == job.FolderSeason || payload.Context.Kind == job.FolderSeries {
		variant = job.HierarchyEpisode
	}
	if h.Bundle != nil {
		h.Bundle.ObserveMediaDiscovered(payload.Context.LibraryID, hierarchy, payload.Context.SeriesRootPath, entry.Path)
	}

	var fp *job.Fingerprint
	if h.Fingerprinter != nil {
		f, err := h.Fingerprinter(ctx, entry.Path)
		if err != nil {
			return Retryable("folder_scan: fingerprint: " + err.Error())
		}
		fp = &f
	}

	req := job.EnqueueRequest{
		Payload: job.MediaAnalyzePayload{
			LibraryID:      payload.Context.LibraryID,
			Path:           entry.Path,
			SeriesRootPath: payload.Context.SeriesRootPath,
			Fingerprint:    fp,
			DiscoveredAt:   time.Now().UTC(),
			Variant:        variant,
			Hierarchy:      hierarchy,
			ScanReason:     payload.ScanReason,
		},
		Priority:    payload.ScanReason.DefaultPriority(),
		AllowMerge:  true,
		RequestedAt: time.Now().UTC(),
	}
	_, err := h.Enqueuer.Enqueue(ctx, req, enqueue.Options{IsAdmin: true})
	if err != nil {
		return Retryable("folder_scan: enqueue media_analyze: " + err.Error())
	}
	return nil
}

func listingHash(entries []FolderEntry) string {
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		tag := "f:"
		if e.IsDir {
			tag = "d:"
		}
		names = append(names, tag+e.Name)
	}
	sort.Strings(names)
	sum := blake2b.Sum256([]byte(strings.Join(names, "\n")))
	return hex.EncodeToString(sum[:])
}
