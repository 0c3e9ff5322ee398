// Ferrex scancore
// Copyright 2026 The Ferrex Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package job

import (
	"fmt"
	"strings"
	"time"
)

// Payload is the tagged-union job body. Each Kind has exactly one
// concrete Payload implementation; Kind() is the discriminant used for
// schema-versioned (de)serialization (see Envelope in codec.go).
type Payload interface {
	Kind() Kind
	LibraryID() string
	DedupeKey() string
}

// dedupeKey formats the grammar shared by every path-scoped kind:
// "<prefix>:<library_id>:<path_norm>" (§6).
func dedupeKey(prefix, libraryID, pathNorm string) string {
	return prefix + ":" + libraryID + ":" + pathNorm
}

// NormalizePath applies the path_norm rule from §6: forward slashes, no
// trailing slash, lowercased when caseInsensitive is set.
func NormalizePath(raw string, caseInsensitive bool) string {
	p := strings.ReplaceAll(raw, `\`, "/")
	p = strings.TrimRight(p, "/")
	if caseInsensitive {
		p = strings.ToLower(p)
	}
	return p
}

// SeriesRootDependencyKey builds the dependency key grouping every job
// inside a series root (§3, §9): "series_root:<path>".
func SeriesRootDependencyKey(seriesRootPath string) string {
	return "series_root:" + seriesRootPath
}

// Fingerprint is a cheap, filesystem-derived identity for a media file,
// used to decide whether MediaAnalyze needs to re-run (ground truth:
// job.rs's MediaFingerprint / hash_repr).
type Fingerprint struct {
	DeviceID *string   `json:"device_id,omitempty"`
	Inode    *uint64   `json:"inode,omitempty"`
	Size     int64     `json:"size"`
	Mtime    time.Time `json:"mtime"`
	WeakHash *string   `json:"weak_hash,omitempty"`
}

// HashRepr builds the colon-joined stable representation used to compare
// fingerprints cheaply without a full field-by-field struct diff.
func (f Fingerprint) HashRepr() string {
	dev := ""
	if f.DeviceID != nil {
		dev = *f.DeviceID
	}
	inode := ""
	if f.Inode != nil {
		inode = fmt.Sprintf("%d", *f.Inode)
	}
	weak := ""
	if f.WeakHash != nil {
		weak = *f.WeakHash
	}
	return fmt.Sprintf("%s:%s:%d:%d:%s", dev, inode, f.Size, f.Mtime.UnixNano(), weak)
}

// FolderContext describes the directory a FolderScan job targets.
type FolderContext struct {
	LibraryID      string     `json:"library_id"`
	Path           string     `json:"path"`
	Kind           FolderKind `json:"kind"`
	SeriesRootPath string     `json:"series_root_path,omitempty"`
}

// FolderScanPayload is the FolderScan job body (§4.5).
type FolderScanPayload struct {
	Context     FolderContext `json:"context"`
	ScanReason  ScanReason    `json:"scan_reason"`
	EnqueueTime time.Time     `json:"enqueue_time"`
	DeviceID    *string       `json:"device_id,omitempty"`
}

func (p FolderScanPayload) Kind() Kind         { return KindFolderScan }
func (p FolderScanPayload) LibraryID() string  { return p.Context.LibraryID }
func (p FolderScanPayload) DedupeKey() string {
	return dedupeKey("scan", p.Context.LibraryID, p.Context.Path)
}

// SeriesResolvePayload is the SeriesResolve job body (§4.5).
type SeriesResolvePayload struct {
	LibraryID      string     `json:"library_id"`
	SeriesRootPath string     `json:"series_root_path"`
	FolderName     string     `json:"folder_name,omitempty"`
	Hint           *string    `json:"hint,omitempty"`
	ScanReason     ScanReason `json:"scan_reason"`
}

func (p SeriesResolvePayload) Kind() Kind        { return KindSeriesResolve }
func (p SeriesResolvePayload) LibraryID() string { return p.LibraryID }
func (p SeriesResolvePayload) DedupeKey() string {
	return dedupeKey("series_resolve", p.LibraryID, p.SeriesRootPath)
}

// MediaAnalyzePayload is the MediaAnalyze job body (§4.5).
type MediaAnalyzePayload struct {
	LibraryID      string           `json:"library_id"`
	Path           string           `json:"path"`
	SeriesRootPath string           `json:"series_root_path,omitempty"`
	Fingerprint    *Fingerprint     `json:"fingerprint,omitempty"`
	DiscoveredAt   time.Time        `json:"discovered_at"`
	MediaID        *string          `json:"media_id,omitempty"`
	Variant        AnalyzeHierarchy `json:"variant"`
	Hierarchy      HierarchyNode    `json:"hierarchy"`
	ScanReason     ScanReason       `json:"scan_reason"`
}

func (p MediaAnalyzePayload) Kind() Kind        { return KindMediaAnalyze }
func (p MediaAnalyzePayload) LibraryID() string { return p.LibraryID }
func (p MediaAnalyzePayload) DedupeKey() string {
	return dedupeKey("analyze", p.LibraryID, p.Path)
}

// MetadataEnrichPayload is the MetadataEnrich job body (§4.5).
type MetadataEnrichPayload struct {
	LibraryID string           `json:"library_id"`
	Path      string           `json:"path"`
	Variant   AnalyzeHierarchy `json:"variant"`
	Hierarchy HierarchyNode    `json:"hierarchy"`
	MediaID   string           `json:"media_id"`
}

func (p MetadataEnrichPayload) Kind() Kind        { return KindMetadataEnrich }
func (p MetadataEnrichPayload) LibraryID() string { return p.LibraryID }
func (p MetadataEnrichPayload) DedupeKey() string {
	return dedupeKey("metadata", p.LibraryID, p.Path)
}

// EpisodeMatchPayload is the EpisodeMatch job body (§4.5). Must always be
// enqueued with a DependencyKey — EnqueueRequest.Validate enforces this.
type EpisodeMatchPayload struct {
	LibraryID      string `json:"library_id"`
	Path           string `json:"path"`
	SeriesRootPath string `json:"series_root_path"`
	SeriesID       string `json:"series_id"`
	FileName       string `json:"file_name"`
}

func (p EpisodeMatchPayload) Kind() Kind        { return KindEpisodeMatch }
func (p EpisodeMatchPayload) LibraryID() string { return p.LibraryID }
func (p EpisodeMatchPayload) DedupeKey() string {
	return dedupeKey("episode_match", p.LibraryID, p.Path)
}

// IndexUpsertPayload is the IndexUpsert job body (§4.5); the only stage
// permitted to write to the read-side index.
type IndexUpsertPayload struct {
	LibraryID      string           `json:"library_id"`
	Path           string           `json:"path"`
	Hierarchy      AnalyzeHierarchy `json:"hierarchy"`
	IdempotencyKey string           `json:"idempotency_key"`
	MediaID        string           `json:"media_id"`
	Node           HierarchyNode    `json:"node,omitempty"`
	SeriesRootPath string           `json:"series_root_path,omitempty"`
}

func (p IndexUpsertPayload) Kind() Kind        { return KindIndexUpsert }
func (p IndexUpsertPayload) LibraryID() string { return p.LibraryID }
func (p IndexUpsertPayload) DedupeKey() string {
	return dedupeKey("index", p.LibraryID, p.Path)
}

// ImageFetchPayload is the ImageFetch job body (§4.5).
type ImageFetchPayload struct {
	LibraryID        string             `json:"library_id"`
	ImageID          string             `json:"image_id"`
	ImageSizeVariant string             `json:"image_size_variant"`
	WidthName        string             `json:"width_name"`
	PriorityHint     ImageFetchPriority `json:"priority_hint"`
}

func (p ImageFetchPayload) Kind() Kind        { return KindImageFetch }
func (p ImageFetchPayload) LibraryID() string { return p.LibraryID }
func (p ImageFetchPayload) DedupeKey() string {
	return fmt.Sprintf("image:%s:%s:%s:%s", p.LibraryID, p.ImageID, p.ImageSizeVariant, p.WidthName)
}
