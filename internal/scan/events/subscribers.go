// Ferrex scancore
// Copyright 2026 The Ferrex Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package events

import (
	"context"
	"time"

	"github.com/ferrex/scancore/internal/metrics"
	"github.com/ferrex/scancore/internal/scan/bundle"
)

// bundleEventType maps a bus Type to the bundle tracker's own EventType
// vocabulary (the tracker predates the bus and is also driven directly
// by pipeline.BundleObserver calls for non-lifecycle events such as
// folder/media discovery, so it keeps its own enum rather than importing
// this package's).
var bundleEventType = map[Type]bundle.EventType{
	Enqueued:     bundle.EventEnqueued,
	Merged:       bundle.EventMerged,
	Completed:    bundle.EventCompleted,
	Failed:       bundle.EventFailed,
	DeadLettered: bundle.EventDeadLettered,
}

// SubscribeBundleTracker wires a series bundle tracker to the bus so its
// episode-completion bookkeeping (§4.6) is driven by real job lifecycle
// events instead of only the discovery-time ObserveFolderDiscovered/
// ObserveMediaDiscovered/ObserveIndexed calls pipeline handlers make
// directly.
func SubscribeBundleTracker(bus *Bus, tracker *bundle.Tracker) error {
	return bus.Subscribe("bundle-tracker", func(ev Event) {
		bt, ok := bundleEventType[ev.Event]
		if !ok || ev.SeriesRootPath == "" {
			return
		}
		tracker.ObserveJobEvent(ev.LibraryID, ev.SeriesRootPath, bundle.JobEvent{
			Type:      bt,
			Kind:      ev.PayloadKind,
			Path:      ev.Path,
			Retryable: ev.Retryable,
		})
	})
}

// SubscribeMetrics wires the C9 Prometheus recorders to the bus so the
// counters in internal/metrics reflect real job lifecycle traffic
// instead of sitting unincremented.
func SubscribeMetrics(bus *Bus) error {
	return bus.Subscribe("metrics", func(ev Event) {
		kind := string(ev.PayloadKind)
		switch ev.Event {
		case Enqueued:
			metrics.JobsEnqueued.WithLabelValues(kind, ev.Priority.String()).Inc()
		case Merged:
			metrics.JobsMerged.WithLabelValues(kind).Inc()
		case Completed:
			metrics.JobsCompleted.WithLabelValues(kind).Inc()
		case Failed:
			metrics.RecordFailure(kind, ev.Retryable)
		case DeadLettered:
			metrics.JobsDeadLettered.WithLabelValues(kind).Inc()
		case LeaseExpired:
			metrics.LeaseExpirations.Inc()
		}
	})
}

// ThroughputTicker publishes a ThroughputTick event on a fixed interval;
// subscribers use it to sample point-in-time state (queue depth,
// in-flight counts) rather than react to a specific job transition.
type ThroughputTicker struct {
	Bus      *Bus
	Interval time.Duration
}

func (t *ThroughputTicker) String() string { return "throughput-ticker" }

// Serve implements suture.Service.
func (t *ThroughputTicker) Serve(ctx context.Context) error {
	interval := t.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			t.Bus.Publish(ctx, Event{Timestamp: time.Now().UTC(), Event: ThroughputTick})
		}
	}
}
