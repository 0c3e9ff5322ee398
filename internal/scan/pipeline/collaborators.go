// Ferrex scancore
// Copyright 2026 The Ferrex Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipeline

import (
	"context"

	"github.com/ferrex/scancore/internal/scan/bundle"
	"github.com/ferrex/scancore/internal/scan/enqueue"
	"github.com/ferrex/scancore/internal/scan/job"
)

// Enqueuer is the subset of the Enqueue Engine handlers need to schedule
// downstream work. Satisfied by *enqueue.Engine.
type Enqueuer interface {
	Enqueue(ctx context.Context, req job.EnqueueRequest, opts enqueue.Options) (job.Handle, error)
}

// BundleObserver is the subset of the Series Bundle Tracker handlers
// feed events into. Satisfied by *bundle.Tracker.
type BundleObserver interface {
	ObserveFolderDiscovered(libraryID string, ctx job.FolderContext)
	ObserveFolderScanCompleted(libraryID string, ctx job.FolderContext)
	ObserveMediaDiscovered(libraryID string, hierarchy job.HierarchyNode, seriesRootPath, episodePath string)
	ObserveIndexed(seriesRootPath string, outcome bundle.IndexingOutcome)
}

// FolderEntry is one entry returned by a directory listing.
type FolderEntry struct {
	Name  string
	Path  string
	IsDir bool
}

// FolderLister abstracts the filesystem so FolderScan's traversal logic
// can be tested without touching disk.
type FolderLister interface {
	ListDir(ctx context.Context, path string) ([]FolderEntry, error)
}

// StreamInfo is one media stream reported by the prober.
type StreamInfo struct {
	Index    int
	Codec    string
	Language string
}

// MediaProbeResult is what MediaAnalyze learns from the external
// prober.
type MediaProbeResult struct {
	Container       string
	VideoStreams    []StreamInfo
	AudioStreams    []StreamInfo
	SubtitleStreams []StreamInfo
	WeakHash        *string
	DurationSeconds float64
}

// MediaProber abstracts the external prober (ffprobe).
type MediaProber interface {
	Probe(ctx context.Context, path string) (MediaProbeResult, error)
}

// MediaRecord is what MediaAnalyze persists after a successful probe.
type MediaRecord struct {
	LibraryID   string
	Path        string
	Fingerprint job.Fingerprint
	Probe       MediaProbeResult
	Variant     job.AnalyzeHierarchy
	Hierarchy   job.HierarchyNode
}

// MediaStore is the media-file record table MediaAnalyze reads and
// writes (§4.5's "media-file record keyed by (library_id, path_norm)").
type MediaStore interface {
	LookupFingerprint(ctx context.Context, libraryID, pathNorm string) (*job.Fingerprint, string, bool, error)
	SaveMediaRecord(ctx context.Context, rec MediaRecord) (mediaID string, err error)
}

// SeriesIdentityResolver derives a stable series id from a folder name,
// optional hint, and library (SeriesResolve's sole side effect besides
// clearing the dependency gate).
type SeriesIdentityResolver interface {
	Resolve(ctx context.Context, libraryID, seriesRootPath, folderName string, hint *string) (seriesID string, err error)
}

// MetadataRef identifies what MetadataEnrich is fetching details for.
type MetadataRef struct {
	LibraryID     string
	MediaID       string
	Hierarchy     job.AnalyzeHierarchy
	SeriesID      string
	SeasonNumber  *int
	EpisodeNumber *int
}

// MetadataDetails is the provider's response payload; handlers don't
// interpret its contents beyond persisting it.
type MetadataDetails map[string]any

// ProviderError carries the HTTP-like status class the metadata
// provider returned, so MetadataEnrich can classify retryability
// without the provider client leaking transport details.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string { return e.Message }

// MetadataProvider is the external metadata lookup collaborator.
type MetadataProvider interface {
	Fetch(ctx context.Context, ref MetadataRef) (MetadataDetails, error)
}

// MetadataStore persists the provider's response keyed by media
// reference.
type MetadataStore interface {
	Save(ctx context.Context, ref MetadataRef, details MetadataDetails) error
}

// EpisodeCandidate is a season/episode binding EpisodeLookup can use to
// disambiguate a filename-parsed guess (e.g. matching an episode title).
type EpisodeCandidate struct {
	SeasonNumber  int
	EpisodeNumber int
	Title         string
}

// EpisodeLookup resolves filename-parsed season/episode numbers against
// known episodes for a series, used to detect ambiguity.
type EpisodeLookup interface {
	CandidatesFor(ctx context.Context, seriesID string, season, episode int) ([]EpisodeCandidate, error)
}

// IndexChange reports what IndexUpsert's effect was.
type IndexChange string

const (
	IndexCreated   IndexChange = "created"
	IndexUpdated   IndexChange = "updated"
	IndexUnchanged IndexChange = "unchanged"
)

// IndexEntry is the read-side index row IndexUpsert writes.
type IndexEntry struct {
	LibraryID      string
	Path           string
	Hierarchy      job.AnalyzeHierarchy
	IdempotencyKey string
	MediaID        string
	Node           job.HierarchyNode
}

// IndexStore is the read-side index — the only thing IndexUpsert is
// permitted to write to (§4.5). Remove is the watcher's direct-delete
// side effect (§4.7): a filesystem Delete event removes an entry without
// going through the job pipeline, since there is nothing left to analyze.
type IndexStore interface {
	Upsert(ctx context.Context, entry IndexEntry) (IndexChange, error)
	Remove(ctx context.Context, libraryID, path string) error
}

// ImageRef identifies the image ImageFetch should retrieve.
type ImageRef struct {
	LibraryID   string
	ImageID     string
	SizeVariant string
	WidthName   string
}

// ImageFetcher retrieves a remote image into the local content-addressed
// cache; size variants are independent cache entries.
type ImageFetcher interface {
	Fetch(ctx context.Context, ref ImageRef) (cachePath string, err error)
}
