// Ferrex scancore
// Copyright 2026 The Ferrex Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package hls

import (
	"sync"
	"time"
)

// defaultBandwidth is what BandwidthTracker reports when no measurement
// has landed yet (§9: "default to 2Mbps if no history").
const defaultBandwidth = 2_000_000

// BandwidthTracker keeps a rolling average of measured segment-download
// bandwidth over a fixed window, bucketed like teacher's
// cache.SlidingWindowCounter — except each bucket accumulates a
// (sum, count) pair instead of a plain count, since the average needed
// here is bits-per-second across samples, not a sample count.
type BandwidthTracker struct {
	mu         sync.Mutex
	sums       []int64
	counts     []int64
	bucketSize time.Duration
	numBuckets int
	current    int
	lastUpdate time.Time
}

// NewBandwidthTracker builds a tracker over a 30-second window, matching
// the client's retained-history horizon.
func NewBandwidthTracker() *BandwidthTracker {
	const window = 30 * time.Second
	const buckets = 30
	return &BandwidthTracker{
		sums:       make([]int64, buckets),
		counts:     make([]int64, buckets),
		bucketSize: window / time.Duration(buckets),
		numBuckets: buckets,
		lastUpdate: time.Now(),
	}
}

// Record adds one bandwidth sample, in bits per second.
func (t *BandwidthTracker) Record(bitsPerSecond int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.advance()
	t.sums[t.current] += bitsPerSecond
	t.counts[t.current]++
}

// Average returns the mean bandwidth across the window, or
// defaultBandwidth if nothing has been recorded yet.
func (t *BandwidthTracker) Average() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.advance()

	var sum, count int64
	for i := range t.sums {
		sum += t.sums[i]
		count += t.counts[i]
	}
	if count == 0 {
		return defaultBandwidth
	}
	return sum / count
}

func (t *BandwidthTracker) advance() {
	now := time.Now()
	elapsed := now.Sub(t.lastUpdate)
	bucketsElapsed := int(elapsed / t.bucketSize)
	if bucketsElapsed <= 0 {
		return
	}

	if bucketsElapsed >= t.numBuckets {
		for i := range t.sums {
			t.sums[i] = 0
			t.counts[i] = 0
		}
		t.current = 0
	} else {
		for i := 0; i < bucketsElapsed; i++ {
			t.current = (t.current + 1) % t.numBuckets
			t.sums[t.current] = 0
			t.counts[t.current] = 0
		}
	}
	t.lastUpdate = now
}
