// Ferrex scancore
// Copyright 2026 The Ferrex Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package events is the job-lifecycle event bus (Component C9): the
// enqueue engine's Enqueued and Merged transitions and the lease
// manager's Completed, retry (Failed) and DeadLettered transitions are
// published here as best-effort, fire-and-forget messages. Dispatch,
// lease renewal and lease expiry publish no event.
// Losing an event can never corrupt store state (§4.9) — subscribers
// (the bundle tracker, the metrics recorders, an optional NATS mirror)
// only ever derive observability or in-memory progress from it.
package events

import (
	"time"

	"github.com/ferrex/scancore/internal/scan/job"
)

// Type enumerates the job lifecycle transitions §4.9 requires a
// subscriber to be able to observe.
type Type string

const (
	Enqueued       Type = "enqueued"
	Merged         Type = "merged"
	Dequeued       Type = "dequeued"
	LeaseRenewed   Type = "lease_renewed"
	LeaseExpired   Type = "lease_expired"
	Completed      Type = "completed"
	Failed         Type = "failed"
	DeadLettered   Type = "dead_lettered"
	ThroughputTick Type = "throughput_tick"
)

// Event is the JSON-lines wire shape from spec.md §6:
// {ts, job_id, library_id, kind, payload_kind, event, detail?}.
type Event struct {
	Timestamp   time.Time    `json:"ts"`
	JobID       string       `json:"job_id,omitempty"`
	LibraryID   string       `json:"library_id,omitempty"`
	Kind        job.Kind     `json:"kind,omitempty"`
	PayloadKind job.Kind     `json:"payload_kind,omitempty"`
	Priority    job.Priority `json:"priority,omitempty"`
	Event       Type         `json:"event"`
	Detail      string       `json:"detail,omitempty"`
	Retryable   bool         `json:"retryable,omitempty"`
	MergedInto  string       `json:"merged_into,omitempty"`

	// Path and SeriesRootPath are populated from payloads that carry them
	// (everything past FolderScan/SeriesResolve); the bundle tracker
	// (internal/scan/bundle) keys its episode-completion tracking on
	// these rather than on the job record itself.
	Path           string `json:"path,omitempty"`
	SeriesRootPath string `json:"series_root_path,omitempty"`
}

func fromRecord(evType Type, rec *job.Record) Event {
	ev := Event{
		Timestamp:   time.Now().UTC(),
		JobID:       rec.ID,
		LibraryID:   rec.Payload.LibraryID(),
		Kind:        rec.Kind,
		PayloadKind: rec.Payload.Kind(),
		Priority:    rec.Priority,
		Event:       evType,
	}

	switch p := rec.Payload.(type) {
	case job.MediaAnalyzePayload:
		ev.Path, ev.SeriesRootPath = p.Path, p.SeriesRootPath
	case job.MetadataEnrichPayload:
		ev.Path = p.Path
	case job.EpisodeMatchPayload:
		ev.Path, ev.SeriesRootPath = p.Path, p.SeriesRootPath
	case job.IndexUpsertPayload:
		ev.Path, ev.SeriesRootPath = p.Path, p.SeriesRootPath
	case job.SeriesResolvePayload:
		ev.SeriesRootPath = p.SeriesRootPath
	}

	return ev
}
