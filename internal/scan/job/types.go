// Ferrex scancore
// Copyright 2026 The Ferrex Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package job defines the durable job domain model: kinds, priorities,
// states, the tagged-union payload, dedupe/dependency key construction,
// and the enqueue request/validation contract shared by every other
// scan-core package.
package job

import "fmt"

// Kind identifies the pipeline stage a job belongs to.
type Kind int16

const (
	KindFolderScan Kind = iota
	KindSeriesResolve
	KindMediaAnalyze
	KindMetadataEnrich
	KindEpisodeMatch
	KindIndexUpsert
	KindImageFetch
)

// AllKinds lists every job kind, in declaration order.
func AllKinds() []Kind {
	return []Kind{
		KindFolderScan,
		KindSeriesResolve,
		KindMediaAnalyze,
		KindMetadataEnrich,
		KindEpisodeMatch,
		KindIndexUpsert,
		KindImageFetch,
	}
}

// KindFromInt16 reconstructs a Kind from its persisted discriminant,
// rejecting unknown values rather than silently defaulting — payloads
// are schema-versioned and an unrecognized kind means a newer writer
// used a tag this binary doesn't know.
func KindFromInt16(v int16) (Kind, error) {
	for _, k := range AllKinds() {
		if int16(k) == v {
			return k, nil
		}
	}
	return 0, fmt.Errorf("job: unknown kind discriminant %d", v)
}

func (k Kind) String() string {
	switch k {
	case KindFolderScan:
		return "FolderScan"
	case KindSeriesResolve:
		return "SeriesResolve"
	case KindMediaAnalyze:
		return "MediaAnalyze"
	case KindMetadataEnrich:
		return "MetadataEnrich"
	case KindEpisodeMatch:
		return "EpisodeMatch"
	case KindIndexUpsert:
		return "IndexUpsert"
	case KindImageFetch:
		return "ImageFetch"
	default:
		return fmt.Sprintf("Kind(%d)", int16(k))
	}
}

// Priority is the dispatch urgency band. Lower values are more urgent.
type Priority int8

const (
	P0 Priority = iota
	P1
	P2
	P3
)

func (p Priority) String() string {
	switch p {
	case P0:
		return "P0"
	case P1:
		return "P1"
	case P2:
		return "P2"
	case P3:
		return "P3"
	default:
		return fmt.Sprintf("Priority(%d)", int8(p))
	}
}

// Weight returns the fair-share token weight for the priority band, per
// the dispatcher's default weighting (§4.3): P0=8, P1=4, P2=2, P3=1.
func (p Priority) Weight() int {
	switch p {
	case P0:
		return 8
	case P1:
		return 4
	case P2:
		return 2
	case P3:
		return 1
	default:
		return 1
	}
}

// Elevate returns the more urgent of p and other (the lower enum value).
func (p Priority) Elevate(other Priority) Priority {
	if other < p {
		return other
	}
	return p
}

// ParsePriority parses a priority string ("P0".."P3"), case-insensitively.
func ParsePriority(s string) (Priority, error) {
	switch s {
	case "P0", "p0":
		return P0, nil
	case "P1", "p1":
		return P1, nil
	case "P2", "p2":
		return P2, nil
	case "P3", "p3":
		return P3, nil
	default:
		return 0, fmt.Errorf("job: invalid priority %q", s)
	}
}

// State is a job's position in its lifecycle (§4.5 state machine).
type State string

const (
	StateReady      State = "ready"
	StateDeferred   State = "deferred"
	StateLeased     State = "leased"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
	StateDeadLetter State = "dead_letter"
)

// Terminal reports whether the state is Completed, Failed or DeadLetter.
// A terminal job changes only through administrative purge or, for
// Failed and DeadLetter, the operator revive (store.ReviveFromTerminal).
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateDeadLetter:
		return true
	default:
		return false
	}
}

// ScanReason is the provenance tag on a FolderScan job; it shapes the
// job's default priority (§4.7).
type ScanReason string

const (
	ReasonHotChange       ScanReason = "hot_change"
	ReasonUserRequested   ScanReason = "user_requested"
	ReasonBulkSeed        ScanReason = "bulk_seed"
	ReasonMaintenanceSweep ScanReason = "maintenance_sweep"
	ReasonWatcherOverflow ScanReason = "watcher_overflow"
)

// DefaultPriority maps a scan reason to its default dispatch priority.
func (r ScanReason) DefaultPriority() Priority {
	switch r {
	case ReasonUserRequested:
		return P0
	case ReasonHotChange:
		return P1
	case ReasonMaintenanceSweep:
		return P2
	case ReasonBulkSeed:
		return P3
	case ReasonWatcherOverflow:
		return P1
	default:
		return P2
	}
}

// ParseScanReason parses the CLI's --reason values (user|hot|bulk|maintenance)
// plus the watcher-internal "watcher_overflow" tag.
func ParseScanReason(s string) (ScanReason, error) {
	switch s {
	case "user":
		return ReasonUserRequested, nil
	case "hot":
		return ReasonHotChange, nil
	case "bulk":
		return ReasonBulkSeed, nil
	case "maintenance":
		return ReasonMaintenanceSweep, nil
	case "watcher_overflow":
		return ReasonWatcherOverflow, nil
	default:
		return "", fmt.Errorf("job: invalid scan reason %q", s)
	}
}

// ImageFetchPriority classifies an image request; it maps to a Priority
// via DefaultPriority.
type ImageFetchPriority string

const (
	ImagePoster   ImageFetchPriority = "poster"
	ImageBackdrop ImageFetchPriority = "backdrop"
	ImageProfile  ImageFetchPriority = "profile"
)

// DefaultPriority maps an image-fetch priority hint to a dispatch Priority.
func (p ImageFetchPriority) DefaultPriority() Priority {
	switch p {
	case ImagePoster:
		return P0
	case ImageBackdrop:
		return P1
	case ImageProfile:
		return P2
	default:
		return P2
	}
}

// FolderKind classifies a scanned directory.
type FolderKind string

const (
	FolderMovie  FolderKind = "movie"
	FolderSeries FolderKind = "series"
	FolderSeason FolderKind = "season"
)

// AnalyzeHierarchy classifies what MediaAnalyze/MetadataEnrich/IndexUpsert
// are operating on within a library's content tree.
type AnalyzeHierarchy string

const (
	HierarchyMovie   AnalyzeHierarchy = "movie"
	HierarchySeries  AnalyzeHierarchy = "series"
	HierarchySeason  AnalyzeHierarchy = "season"
	HierarchyEpisode AnalyzeHierarchy = "episode"
)

// HierarchyNode carries the resolved identifiers for an AnalyzeHierarchy
// value; only the fields relevant to Hierarchy are populated (mirrors the
// original's AnalyzeScanHierarchy variant payloads).
type HierarchyNode struct {
	SeriesID     string `json:"series_id,omitempty"`
	SeasonNumber *int   `json:"season_number,omitempty"`
	EpisodeNumber *int  `json:"episode_number,omitempty"`
}

// SeriesIDResolved reports whether the node carries a resolved series id,
// the precondition EpisodeMatch and Episode-variant MetadataEnrich require.
func (n HierarchyNode) SeriesIDResolved() bool {
	return n.SeriesID != ""
}
