// Ferrex scancore
// Copyright 2026 The Ferrex Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package hls

import "sync"

// Adaptor selects and re-evaluates the HLS variant to serve for one
// playback session, driven by the client's reported segment download
// bandwidth. Ported from ferrex-player's HlsClient::select_variant and
// should_switch_variant (§4.8, §9): a naive max-variant-below-bandwidth
// pick oscillates under measurement noise, so switching up and down use
// asymmetric thresholds (120% to go up, 80% to go down) instead of a
// single symmetric cutoff.
type Adaptor struct {
	Bandwidth *BandwidthTracker

	mu      sync.Mutex
	current *Variant
}

// NewAdaptor builds an Adaptor with its own bandwidth tracker.
func NewAdaptor() *Adaptor {
	return &Adaptor{Bandwidth: NewBandwidthTracker()}
}

// RecordBandwidth records one segment-download bandwidth sample.
func (a *Adaptor) RecordBandwidth(bitsPerSecond int64) {
	a.Bandwidth.Record(bitsPerSecond)
}

// Current returns the variant most recently selected, if any.
func (a *Adaptor) Current() (Variant, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current == nil {
		return Variant{}, false
	}
	return *a.current, true
}

// SelectVariant picks an initial variant for playback start: the
// highest-bandwidth variant at or below 80% of the measured average,
// falling back to the lowest variant when none qualifies (starved
// bandwidth, or no history yet).
func (a *Adaptor) SelectVariant(playlist MasterPlaylist) Variant {
	avg := a.Bandwidth.Average()
	target := int64(float64(avg) * 0.8)

	chosen := playlist.Variants[0]
	for _, v := range playlist.Variants {
		if v.Bandwidth <= target {
			chosen = v
		}
	}

	a.mu.Lock()
	a.current = &chosen
	a.mu.Unlock()
	return chosen
}

// ShouldSwitchVariant re-evaluates the current selection against the
// latest bandwidth average. It returns the variant to switch to and
// true, or the zero Variant and false if no switch is warranted.
//
// Switch up requires the average to clear 120% of the current variant's
// bandwidth (20% headroom) and picks the next variant whose bandwidth is
// still within 80% of that average. Switch down triggers when the
// average drops below 80% of the current variant's bandwidth and picks
// the next lower variant. These thresholds are load-bearing: collapsing
// them to one symmetric cutoff reintroduces oscillation.
func (a *Adaptor) ShouldSwitchVariant(playlist MasterPlaylist) (Variant, bool) {
	avg := a.Bandwidth.Average()

	a.mu.Lock()
	current := a.current
	a.mu.Unlock()
	if current == nil {
		return Variant{}, false
	}

	switch {
	case avg > current.Bandwidth*120/100:
		for _, v := range playlist.Variants {
			if v.Bandwidth > current.Bandwidth && v.Bandwidth <= avg*80/100 {
				a.setCurrent(v)
				return v, true
			}
		}
		return Variant{}, false
	case avg < current.Bandwidth*80/100:
		for i := len(playlist.Variants) - 1; i >= 0; i-- {
			v := playlist.Variants[i]
			if v.Bandwidth < current.Bandwidth {
				a.setCurrent(v)
				return v, true
			}
		}
		return Variant{}, false
	default:
		return Variant{}, false
	}
}

func (a *Adaptor) setCurrent(v Variant) {
	a.mu.Lock()
	a.current = &v
	a.mu.Unlock()
}
