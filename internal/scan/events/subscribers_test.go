// Ferrex scancore
// Copyright 2026 The Ferrex Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ferrex/scancore/internal/scan/bundle"
	"github.com/ferrex/scancore/internal/scan/job"
)

func intPtr(n int) *int { return &n }

func TestSubscribeBundleTrackerDrivesFinalizationFromBusEvents(t *testing.T) {
	bus := New(nil)
	defer bus.Close()
	tracker := bundle.New()
	require.NoError(t, SubscribeBundleTracker(bus, tracker))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bus.Run(ctx)
	<-bus.router.Running()

	const libraryID = "lib1"
	const seriesRoot = "/lib/Show"
	const episodePath = "/lib/Show/Season 01/e01.mkv"

	tracker.ObserveFolderDiscovered(libraryID, job.FolderContext{LibraryID: libraryID, Path: seriesRoot, Kind: job.FolderSeries, SeriesRootPath: seriesRoot})
	tracker.ObserveFolderScanCompleted(libraryID, job.FolderContext{LibraryID: libraryID, Path: seriesRoot, Kind: job.FolderSeries, SeriesRootPath: seriesRoot})
	tracker.ObserveMediaDiscovered(libraryID, job.HierarchyNode{SeasonNumber: intPtr(1)}, seriesRoot, episodePath)

	// The episode's staging lifecycle arrives over the bus, exactly as
	// the enqueue engine and lease manager would publish it.
	bus.Publish(ctx, Event{Event: Enqueued, LibraryID: libraryID, PayloadKind: job.KindEpisodeMatch, Path: episodePath, SeriesRootPath: seriesRoot})

	tracker.ObserveIndexed(seriesRoot, bundle.IndexingOutcome{
		LibraryID: libraryID,
		Path:      episodePath,
		MediaID:   "episode-1",
		Hierarchy: job.HierarchyEpisode,
		Node:      job.HierarchyNode{SeriesID: "series-1", SeasonNumber: intPtr(1)},
	})

	bus.Publish(ctx, Event{Event: Completed, LibraryID: libraryID, PayloadKind: job.KindIndexUpsert, Path: episodePath, SeriesRootPath: seriesRoot})

	require.Eventually(t, func() bool {
		for _, f := range tracker.FinalizationCandidates() {
			if f.SeriesRootPath == seriesRoot {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)
}

func TestSubscribeMetricsDoesNotPanicOnEveryEventType(t *testing.T) {
	bus := New(nil)
	defer bus.Close()
	require.NoError(t, SubscribeMetrics(bus))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bus.Run(ctx)
	<-bus.router.Running()

	for _, evType := range []Type{Enqueued, Merged, Completed, Failed, DeadLettered, LeaseExpired, ThroughputTick} {
		bus.Publish(ctx, Event{Event: evType, PayloadKind: job.KindFolderScan})
	}
	time.Sleep(50 * time.Millisecond)
}
