// Ferrex scancore
// Copyright 2026 The Ferrex Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package job

import (
	"errors"
	"fmt"
	"time"
)

// Record is a durable job as persisted by the store (§4.1, §4.5).
type Record struct {
	ID             string
	Kind           Kind
	Payload        Payload
	Priority       Priority
	State          State
	Attempts       uint32
	AvailableAt    time.Time
	LeaseOwner     *string
	LeaseExpiresAt *time.Time
	DedupeKey      string
	DependencyKey  *string
	CorrelationID  string
	LastError      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Ready reports whether the record can be picked up by the dispatcher:
// in the Ready state and its availability delay has elapsed.
func (r Record) Ready(now time.Time) bool {
	return r.State == StateReady && !r.AvailableAt.After(now)
}

// EnqueueRequest is the input to the enqueue engine (§4.2).
type EnqueueRequest struct {
	Payload       Payload
	Priority      Priority
	AllowMerge    bool
	RequestedAt   time.Time
	CorrelationID string
	DependencyKey *string
}

// ErrValidation wraps every rule failure from Validate so callers can
// distinguish request-shape errors from store/transport errors.
var ErrValidation = errors.New("job: invalid enqueue request")

// Validate enforces the per-kind preconditions from §4.2:
//   - every request carries a payload and a recognized priority
//   - EpisodeMatch must carry a DependencyKey (it waits on its series root)
//   - MetadataEnrich against the Episode hierarchy requires a resolved
//     series id, since the provider query needs it
//   - SeriesResolve requires a folder name or an external hint to resolve against
func (r EnqueueRequest) Validate() error {
	if r.Payload == nil {
		return fmt.Errorf("%w: payload is required", ErrValidation)
	}
	if r.Priority < P0 || r.Priority > P3 {
		return fmt.Errorf("%w: priority %v out of range", ErrValidation, r.Priority)
	}
	if r.Payload.LibraryID() == "" {
		return fmt.Errorf("%w: library id is required", ErrValidation)
	}

	switch p := r.Payload.(type) {
	case EpisodeMatchPayload:
		if r.DependencyKey == nil || *r.DependencyKey == "" {
			return fmt.Errorf("%w: EpisodeMatch requires a dependency key", ErrValidation)
		}
		want := SeriesRootDependencyKey(p.SeriesRootPath)
		if *r.DependencyKey != want {
			return fmt.Errorf("%w: EpisodeMatch dependency key %q does not match series root %q", ErrValidation, *r.DependencyKey, want)
		}
	case MetadataEnrichPayload:
		if p.Variant == HierarchyEpisode && !p.Hierarchy.SeriesIDResolved() {
			return fmt.Errorf("%w: MetadataEnrich for an episode requires a resolved series id", ErrValidation)
		}
	case SeriesResolvePayload:
		hasHint := p.Hint != nil && *p.Hint != ""
		if p.FolderName == "" && !hasHint {
			return fmt.Errorf("%w: SeriesResolve requires a folder name or a hint", ErrValidation)
		}
	}
	return nil
}

// DependencyKey builds the series-root dependency key for an EpisodeMatch
// enqueue request.
func DependencyKey(seriesRootPath string) string {
	return SeriesRootDependencyKey(seriesRootPath)
}

// Handle is the result of an Enqueue call: either a newly accepted job
// or the id of an existing job the request was merged into (§4.2).
type Handle struct {
	JobID      string
	Accepted   bool
	MergedInto *string
}
