// Ferrex scancore
// Copyright 2026 The Ferrex Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package dispatch implements the Dispatcher (C3): priority-weighted
// fair share across libraries, FIFO within a (library, priority, kind)
// cell, an optional selector-hint bypass, and the atomic Ready->Leased
// transition.
//
// There is no pack library for weighted fair-share scheduling over an
// in-memory candidate set (see DESIGN.md); this is a plain Go scheduler
// in the spirit of the teacher's own hand-rolled in-memory structures.
package dispatch

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ferrex/scancore/internal/scan/job"
	"github.com/ferrex/scancore/internal/scan/store"
)

// Weights maps a priority band to its fair-share token weight. Defaults
// to job.Priority.Weight() when nil.
type Weights map[job.Priority]int

// DefaultWeights returns the spec's default band weights: P0=8, P1=4,
// P2=2, P3=1.
func DefaultWeights() Weights {
	return Weights{job.P0: 8, job.P1: 4, job.P2: 2, job.P3: 1}
}

func (w Weights) weightOf(p job.Priority) int {
	if w == nil {
		return p.Weight()
	}
	if v, ok := w[p]; ok {
		return v
	}
	return p.Weight()
}

// Selector lets a caller bypass fair share for a direct (library,
// priority) hit (§4.3.3) — e.g. a worker dedicated to interactive scans.
type Selector struct {
	LibraryID string
	Priority  job.Priority
}

// cellKey identifies a (library, priority) fair-share bucket.
type cellKey struct {
	libraryID string
	priority  job.Priority
}

// Dispatcher selects the next Ready job and performs its atomic
// Ready->Leased transition.
type Dispatcher struct {
	store      *store.Store
	weights    Weights
	leaseTTL   time.Duration
	candidates int

	deficit map[cellKey]int
}

// Config configures a Dispatcher.
type Config struct {
	Weights    Weights
	LeaseTTL   time.Duration
	Candidates int // how many Ready rows to pull per dispatch attempt
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{Weights: DefaultWeights(), LeaseTTL: 5 * time.Minute, Candidates: 256}
}

// New builds a Dispatcher.
func New(st *store.Store, cfg Config) *Dispatcher {
	if cfg.Weights == nil {
		cfg.Weights = DefaultWeights()
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = 5 * time.Minute
	}
	if cfg.Candidates <= 0 {
		cfg.Candidates = 256
	}
	return &Dispatcher{
		store:      st,
		weights:    cfg.Weights,
		leaseTTL:   cfg.LeaseTTL,
		candidates: cfg.Candidates,
		deficit:    make(map[cellKey]int),
	}
}

// Dispatch selects a Ready job for owner and performs the Ready->Leased
// transition. kinds, if non-empty, restricts selection to those kinds
// (a worker pool dedicated to a subset of stages). It returns (nil, nil)
// when there is nothing eligible to dispatch.
func (d *Dispatcher) Dispatch(ctx context.Context, owner string, kinds []job.Kind, selector *Selector) (*job.Record, error) {
	candidates, err := d.store.ListReadyCandidates(ctx, time.Now().UTC(), d.candidates)
	if err != nil {
		return nil, fmt.Errorf("dispatch: list ready candidates: %w", err)
	}
	candidates = filterByKind(candidates, kinds)
	if len(candidates) == 0 {
		return nil, nil
	}

	if selector != nil {
		if rec := pickSelectorHit(candidates, *selector); rec != nil {
			return d.claim(ctx, owner, rec)
		}
	}

	for {
		rec := d.pickFairShare(candidates)
		if rec == nil {
			return nil, nil
		}
		claimed, err := d.claim(ctx, owner, rec)
		if err != nil {
			return nil, err
		}
		if claimed != nil {
			return claimed, nil
		}
		// Lost the CAS race to another dispatcher; drop it and retry
		// against the remaining candidates.
		candidates = removeByID(candidates, rec.ID)
		if len(candidates) == 0 {
			return nil, nil
		}
	}
}

func (d *Dispatcher) claim(ctx context.Context, owner string, rec *job.Record) (*job.Record, error) {
	expiresAt := time.Now().Add(d.leaseTTL)
	ok, err := d.store.ClaimByID(ctx, rec.ID, owner, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("dispatch: claim %s: %w", rec.ID, err)
	}
	if !ok {
		return nil, nil
	}
	key := cellKey{libraryID: rec.Payload.LibraryID(), priority: rec.Priority}
	d.spend(key)
	rec.State = job.StateLeased
	rec.LeaseOwner = &owner
	rec.LeaseExpiresAt = &expiresAt
	return rec, nil
}

// pickFairShare picks the (library, priority) cell with the highest
// accumulated deficit among cells that have Ready candidates, then
// returns the oldest job within that cell (FIFO by available_at, id).
func (d *Dispatcher) pickFairShare(candidates []*job.Record) *job.Record {
	cells := groupByCell(candidates)
	if len(cells) == 0 {
		return nil
	}

	for key := range cells {
		if _, ok := d.deficit[key]; !ok {
			d.deficit[key] = 0
		}
		d.deficit[key] += d.weights.weightOf(key.priority)
	}

	var bestKey cellKey
	bestDeficit := -1
	keys := make([]cellKey, 0, len(cells))
	for k := range cells {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].libraryID != keys[j].libraryID {
			return keys[i].libraryID < keys[j].libraryID
		}
		return keys[i].priority < keys[j].priority
	})
	for _, k := range keys {
		if d.deficit[k] > bestDeficit {
			bestDeficit = d.deficit[k]
			bestKey = k
		}
	}

	bucket := cells[bestKey]
	sort.Slice(bucket, func(i, j int) bool {
		if !bucket[i].AvailableAt.Equal(bucket[j].AvailableAt) {
			return bucket[i].AvailableAt.Before(bucket[j].AvailableAt)
		}
		return bucket[i].ID < bucket[j].ID
	})
	return bucket[0]
}

func (d *Dispatcher) spend(key cellKey) {
	d.deficit[key] -= 1
}

func groupByCell(candidates []*job.Record) map[cellKey][]*job.Record {
	out := make(map[cellKey][]*job.Record)
	for _, rec := range candidates {
		key := cellKey{libraryID: rec.Payload.LibraryID(), priority: rec.Priority}
		out[key] = append(out[key], rec)
	}
	return out
}

func pickSelectorHit(candidates []*job.Record, sel Selector) *job.Record {
	var best *job.Record
	for _, rec := range candidates {
		if rec.Payload.LibraryID() != sel.LibraryID || rec.Priority != sel.Priority {
			continue
		}
		if best == nil || rec.AvailableAt.Before(best.AvailableAt) || (rec.AvailableAt.Equal(best.AvailableAt) && rec.ID < best.ID) {
			best = rec
		}
	}
	return best
}

func filterByKind(candidates []*job.Record, kinds []job.Kind) []*job.Record {
	if len(kinds) == 0 {
		return candidates
	}
	allowed := make(map[job.Kind]bool, len(kinds))
	for _, k := range kinds {
		allowed[k] = true
	}
	out := candidates[:0]
	for _, rec := range candidates {
		if allowed[rec.Kind] {
			out = append(out, rec)
		}
	}
	return out
}

func removeByID(candidates []*job.Record, id string) []*job.Record {
	out := candidates[:0]
	for _, rec := range candidates {
		if rec.ID != id {
			out = append(out, rec)
		}
	}
	return out
}
