// Ferrex scancore
// Copyright 2026 The Ferrex Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package bundle tracks per-series progress toward "bundle finalization":
// the point at which a series root's folder scan, every expected season,
// and every expected episode have all reached the index (§3, §4.6). It
// is in-memory and rebuilt from recent events on restart; finalization
// is idempotent because the downstream effect (a conditional upsert) is
// itself idempotent.
//
// Ported field-for-field from series_bundle_tracker.rs's HashMap-keyed
// progress structure and its four completeness predicates.
package bundle

import (
	"strconv"
	"sync"

	"github.com/ferrex/scancore/internal/scan/job"
)

// EventType classifies a job lifecycle event the tracker observes.
type EventType string

const (
	EventEnqueued     EventType = "enqueued"
	EventMerged       EventType = "merged"
	EventCompleted    EventType = "completed"
	EventFailed       EventType = "failed"
	EventDeadLettered EventType = "dead_lettered"
)

// JobEvent is the subset of a job lifecycle event the tracker needs.
type JobEvent struct {
	Type      EventType
	Kind      job.Kind
	Path      string
	Retryable bool
}

// IndexingOutcome mirrors IndexUpsert's reported effect (§4.5).
type IndexingOutcome struct {
	LibraryID string
	Path      string
	MediaID   string
	Hierarchy job.AnalyzeHierarchy
	Node      job.HierarchyNode
}

// Finalization names a series root ready for its bundle-complete side
// effect.
type Finalization struct {
	LibraryID      string
	SeriesID       string
	SeriesRootPath string
}

// episodeStagingKinds are the stages whose Enqueued/Merged event marks an
// episode file as expected work-in-flight, mirroring the original's
// match on MediaAnalyze|EpisodeMatch|MetadataEnrich|IndexUpsert.
var episodeStagingKinds = map[job.Kind]bool{
	job.KindMediaAnalyze:   true,
	job.KindEpisodeMatch:   true,
	job.KindMetadataEnrich: true,
	job.KindIndexUpsert:    true,
}

// Tracker accumulates per-series-root progress. Zero value is ready to
// use.
type Tracker struct {
	mu     sync.Mutex
	byRoot map[string]*progress
}

// New returns an empty Tracker.
func New() *Tracker {
	return &Tracker{byRoot: make(map[string]*progress)}
}

type progress struct {
	libraryID      string
	seriesRootPath string
	seriesID       string

	rootScanCompleted bool

	expectedSeasonFolders  map[string]bool
	completedSeasonFolders map[string]bool
	expectedSeasonNumbers  map[int]bool
	indexedSeasonNumbers   map[int]bool

	expectedEpisodePaths  map[string]bool
	completedEpisodePaths map[string]bool

	finalized bool
}

func newProgress(libraryID, seriesRootPath string) *progress {
	return &progress{
		libraryID:              libraryID,
		seriesRootPath:         seriesRootPath,
		expectedSeasonFolders:  make(map[string]bool),
		completedSeasonFolders: make(map[string]bool),
		expectedSeasonNumbers:  make(map[int]bool),
		indexedSeasonNumbers:   make(map[int]bool),
		expectedEpisodePaths:   make(map[string]bool),
		completedEpisodePaths:  make(map[string]bool),
	}
}

func (p *progress) discoveryComplete() bool {
	if !p.rootScanCompleted {
		return false
	}
	return isSubsetOf(p.expectedSeasonFolders, p.completedSeasonFolders)
}

func (p *progress) seasonsComplete() bool {
	return isSubsetOf(p.expectedSeasonNumbersAsStrings(), p.indexedSeasonNumbersAsStrings())
}

func (p *progress) expectedSeasonNumbersAsStrings() map[string]bool {
	return intSetToStringSet(p.expectedSeasonNumbers)
}

func (p *progress) indexedSeasonNumbersAsStrings() map[string]bool {
	return intSetToStringSet(p.indexedSeasonNumbers)
}

func (p *progress) episodesComplete() bool {
	return isSubsetOf(p.expectedEpisodePaths, p.completedEpisodePaths)
}

func (t *Tracker) entry(libraryID, seriesRootPath string) *progress {
	p, ok := t.byRoot[seriesRootPath]
	if !ok {
		p = newProgress(libraryID, seriesRootPath)
		t.byRoot[seriesRootPath] = p
	}
	return p
}

// ObserveFolderDiscovered registers an expected series or season folder.
func (t *Tracker) ObserveFolderDiscovered(libraryID string, ctx job.FolderContext) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch ctx.Kind {
	case job.FolderSeries:
		t.entry(libraryID, ctx.SeriesRootPath)
	case job.FolderSeason:
		p := t.entry(libraryID, ctx.SeriesRootPath)
		p.expectedSeasonFolders[ctx.Path] = true
	}
}

// ObserveFolderScanCompleted records that a FolderScan job for ctx
// finished, marking the series root or a season folder as scanned.
func (t *Tracker) ObserveFolderScanCompleted(libraryID string, ctx job.FolderContext) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch ctx.Kind {
	case job.FolderSeries:
		p := t.entry(libraryID, ctx.SeriesRootPath)
		p.rootScanCompleted = true
	case job.FolderSeason:
		p := t.entry(libraryID, ctx.SeriesRootPath)
		p.completedSeasonFolders[ctx.Path] = true
	}
}

// ObserveMediaDiscovered registers an episode file MediaAnalyze found as
// expected work, along with its season number if known.
func (t *Tracker) ObserveMediaDiscovered(libraryID string, hierarchy job.HierarchyNode, seriesRootPath, episodePath string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p := t.entry(libraryID, seriesRootPath)
	p.expectedEpisodePaths[episodePath] = true
	if hierarchy.SeasonNumber != nil {
		p.expectedSeasonNumbers[*hierarchy.SeasonNumber] = true
	}
}

// ObserveIndexed registers an IndexUpsert outcome's contribution to
// series/season/episode completeness.
func (t *Tracker) ObserveIndexed(seriesRootPath string, outcome IndexingOutcome) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p := t.entry(outcome.LibraryID, seriesRootPath)
	if outcome.Node.SeriesIDResolved() {
		p.seriesID = outcome.Node.SeriesID
	}

	switch outcome.Hierarchy {
	case job.HierarchySeason:
		if outcome.Node.SeasonNumber != nil {
			p.indexedSeasonNumbers[*outcome.Node.SeasonNumber] = true
		}
	case job.HierarchyEpisode:
		p.completedEpisodePaths[outcome.Path] = true
		if outcome.Node.SeasonNumber != nil {
			p.indexedSeasonNumbers[*outcome.Node.SeasonNumber] = true
		}
	}
}

// ObserveJobEvent folds a generic lifecycle event into episode-path
// expectation/completion tracking. Index-upsert completion is the only
// Completed event that counts as episode completion — earlier stages
// completing isn't the end of the pipeline. Dead-letter at any stage, and
// non-retryable failure, are both terminal for that episode file.
func (t *Tracker) ObserveJobEvent(libraryID, seriesRootPath string, ev JobEvent) {
	if !episodeStagingKinds[ev.Kind] && ev.Type != EventDeadLettered && ev.Kind != job.KindIndexUpsert {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	p := t.entry(libraryID, seriesRootPath)

	switch ev.Type {
	case EventEnqueued, EventMerged:
		if episodeStagingKinds[ev.Kind] {
			p.expectedEpisodePaths[ev.Path] = true
		}
	case EventCompleted:
		if ev.Kind == job.KindIndexUpsert {
			p.completedEpisodePaths[ev.Path] = true
		}
	case EventDeadLettered:
		p.completedEpisodePaths[ev.Path] = true
	case EventFailed:
		if !ev.Retryable {
			p.completedEpisodePaths[ev.Path] = true
		}
	}
}

// FinalizationCandidates returns every series root whose discovery,
// seasons, and episodes are all complete, a series id has been resolved,
// and that hasn't already been finalized.
func (t *Tracker) FinalizationCandidates() []Finalization {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []Finalization
	for _, p := range t.byRoot {
		if p.finalized {
			continue
		}
		if !p.discoveryComplete() || !p.seasonsComplete() || !p.episodesComplete() {
			continue
		}
		if p.seriesID == "" {
			continue
		}
		out = append(out, Finalization{
			LibraryID:      p.libraryID,
			SeriesID:       p.seriesID,
			SeriesRootPath: p.seriesRootPath,
		})
	}
	return out
}

// MarkFinalized records that seriesRootPath's bundle-complete effect has
// run, so future FinalizationCandidates calls no longer surface it.
func (t *Tracker) MarkFinalized(seriesRootPath string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p, ok := t.byRoot[seriesRootPath]; ok {
		p.finalized = true
	}
}

// Clear discards all tracked progress, used on process restart before
// rebuilding from recent events.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byRoot = make(map[string]*progress)
}

func isSubsetOf(expected, actual map[string]bool) bool {
	for k := range expected {
		if !actual[k] {
			return false
		}
	}
	return true
}

func intSetToStringSet(in map[int]bool) map[string]bool {
	out := make(map[string]bool, len(in))
	for k := range in {
		out[strconv.Itoa(k)] = true
	}
	return out
}
