// Ferrex scancore
// Copyright 2026 The Ferrex Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package job

import (
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindFromInt16(t *testing.T) {
	for _, k := range AllKinds() {
		got, err := KindFromInt16(int16(k))
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	_, err := KindFromInt16(999)
	assert.Error(t, err)
}

func TestPriorityWeight(t *testing.T) {
	assert.Equal(t, 8, P0.Weight())
	assert.Equal(t, 4, P1.Weight())
	assert.Equal(t, 2, P2.Weight())
	assert.Equal(t, 1, P3.Weight())
}

func TestPriorityElevate(t *testing.T) {
	assert.Equal(t, P0, P2.Elevate(P0))
	assert.Equal(t, P1, P1.Elevate(P2))
	assert.Equal(t, P0, P0.Elevate(P3))
}

func TestParsePriority(t *testing.T) {
	p, err := ParsePriority("P1")
	require.NoError(t, err)
	assert.Equal(t, P1, p)

	_, err = ParsePriority("P9")
	assert.Error(t, err)
}

func TestScanReasonDefaultPriority(t *testing.T) {
	cases := map[ScanReason]Priority{
		ReasonUserRequested:    P0,
		ReasonHotChange:        P1,
		ReasonWatcherOverflow:  P1,
		ReasonMaintenanceSweep: P2,
		ReasonBulkSeed:         P3,
	}
	for reason, want := range cases {
		assert.Equal(t, want, reason.DefaultPriority(), "reason %s", reason)
	}
}

func TestStateTerminal(t *testing.T) {
	assert.True(t, StateCompleted.Terminal())
	assert.True(t, StateFailed.Terminal())
	assert.True(t, StateDeadLetter.Terminal())
	assert.False(t, StateReady.Terminal())
	assert.False(t, StateDeferred.Terminal())
	assert.False(t, StateLeased.Terminal())
}

// TestDedupeKeyGrammar checks every payload kind's dedupe key against the
// exact grammar and confirms no two distinct payloads collide.
func TestDedupeKeyGrammar(t *testing.T) {
	hint := "Breaking Bad"

	payloads := map[Kind]Payload{
		KindFolderScan: FolderScanPayload{
			Context: FolderContext{LibraryID: "lib1", Path: "/media/lib1/show"},
		},
		KindSeriesResolve: SeriesResolvePayload{
			LibraryID: "lib1", SeriesRootPath: "/media/lib1/show", Hint: &hint,
		},
		KindMediaAnalyze: MediaAnalyzePayload{
			LibraryID: "lib1", Path: "/media/lib1/show/s01e01.mkv",
		},
		KindMetadataEnrich: MetadataEnrichPayload{
			LibraryID: "lib1", Path: "/media/lib1/show/s01e01.mkv", MediaID: "m1",
		},
		KindEpisodeMatch: EpisodeMatchPayload{
			LibraryID: "lib1", Path: "/media/lib1/show/s01e01.mkv", SeriesRootPath: "/media/lib1/show",
		},
		KindIndexUpsert: IndexUpsertPayload{
			LibraryID: "lib1", Path: "/media/lib1/show/s01e01.mkv", IdempotencyKey: "k1",
		},
		KindImageFetch: ImageFetchPayload{
			LibraryID: "lib1", ImageID: "img1", ImageSizeVariant: "poster", WidthName: "w500",
		},
	}

	wantPrefix := map[Kind]string{
		KindFolderScan:     "scan:lib1:/media/lib1/show",
		KindSeriesResolve:  "series_resolve:lib1:/media/lib1/show",
		KindMediaAnalyze:   "analyze:lib1:/media/lib1/show/s01e01.mkv",
		KindMetadataEnrich: "metadata:lib1:/media/lib1/show/s01e01.mkv",
		KindEpisodeMatch:   "episode_match:lib1:/media/lib1/show/s01e01.mkv",
		KindIndexUpsert:    "index:lib1:/media/lib1/show/s01e01.mkv",
		KindImageFetch:     "image:lib1:img1:poster:w500",
	}

	seen := make(map[string]Kind)
	for k, p := range payloads {
		got := p.DedupeKey()
		assert.Equal(t, wantPrefix[k], got, "kind %s", k)

		if other, dup := seen[got]; dup {
			t.Fatalf("dedupe key collision between %s and %s: %q", k, other, got)
		}
		seen[got] = k
	}
}

func TestFingerprintHashRepr(t *testing.T) {
	dev := "dev1"
	inode := uint64(42)
	weak := "abc123"
	f := Fingerprint{DeviceID: &dev, Inode: &inode, Size: 100, Mtime: time.Unix(1000, 0), WeakHash: &weak}
	g := Fingerprint{DeviceID: &dev, Inode: &inode, Size: 100, Mtime: time.Unix(1000, 0), WeakHash: &weak}
	assert.Equal(t, f.HashRepr(), g.HashRepr())

	g.Size = 101
	assert.NotEqual(t, f.HashRepr(), g.HashRepr())
}

func TestEnqueueRequestValidate(t *testing.T) {
	t.Run("rejects nil payload", func(t *testing.T) {
		req := EnqueueRequest{Priority: P1}
		assert.ErrorIs(t, req.Validate(), ErrValidation)
	})

	t.Run("rejects out of range priority", func(t *testing.T) {
		req := EnqueueRequest{
			Payload:  FolderScanPayload{Context: FolderContext{LibraryID: "lib1", Path: "/x"}},
			Priority: Priority(9),
		}
		assert.ErrorIs(t, req.Validate(), ErrValidation)
	})

	t.Run("episode match requires dependency key", func(t *testing.T) {
		req := EnqueueRequest{
			Payload: EpisodeMatchPayload{
				LibraryID: "lib1", Path: "/x/s01e01.mkv", SeriesRootPath: "/x",
			},
			Priority: P1,
		}
		assert.ErrorIs(t, req.Validate(), ErrValidation)

		dep := DependencyKey("/x")
		req.DependencyKey = &dep
		assert.NoError(t, req.Validate())
	})

	t.Run("episode match dependency key must match series root", func(t *testing.T) {
		wrong := DependencyKey("/other")
		req := EnqueueRequest{
			Payload: EpisodeMatchPayload{
				LibraryID: "lib1", Path: "/x/s01e01.mkv", SeriesRootPath: "/x",
			},
			Priority:      P1,
			DependencyKey: &wrong,
		}
		assert.ErrorIs(t, req.Validate(), ErrValidation)
	})

	t.Run("metadata enrich for episode requires resolved series id", func(t *testing.T) {
		req := EnqueueRequest{
			Payload: MetadataEnrichPayload{
				LibraryID: "lib1", Path: "/x/s01e01.mkv", Variant: HierarchyEpisode,
			},
			Priority: P1,
		}
		assert.ErrorIs(t, req.Validate(), ErrValidation)

		req.Payload = MetadataEnrichPayload{
			LibraryID: "lib1", Path: "/x/s01e01.mkv", Variant: HierarchyEpisode,
			Hierarchy: HierarchyNode{SeriesID: "series1"},
		}
		assert.NoError(t, req.Validate())
	})

	t.Run("series resolve requires folder name or hint", func(t *testing.T) {
		req := EnqueueRequest{
			Payload:  SeriesResolvePayload{LibraryID: "lib1", SeriesRootPath: "/x"},
			Priority: P2,
		}
		assert.ErrorIs(t, req.Validate(), ErrValidation)

		req.Payload = SeriesResolvePayload{LibraryID: "lib1", SeriesRootPath: "/x", FolderName: "Show Name"}
		assert.NoError(t, req.Validate())
	})
}

func TestEncodeDecodePayloadRoundTrip(t *testing.T) {
	for _, tc := range []Payload{
		FolderScanPayload{Context: FolderContext{LibraryID: "lib1", Path: "/x", Kind: FolderSeries}},
		SeriesResolvePayload{LibraryID: "lib1", SeriesRootPath: "/x", FolderName: "Show"},
		MediaAnalyzePayload{LibraryID: "lib1", Path: "/x/e1.mkv"},
		MetadataEnrichPayload{LibraryID: "lib1", Path: "/x/e1.mkv", MediaID: "m1"},
		EpisodeMatchPayload{LibraryID: "lib1", Path: "/x/e1.mkv", SeriesRootPath: "/x"},
		IndexUpsertPayload{LibraryID: "lib1", Path: "/x/e1.mkv", IdempotencyKey: "k1"},
		ImageFetchPayload{LibraryID: "lib1", ImageID: "img1", ImageSizeVariant: "poster", WidthName: "w500"},
	} {
		raw, err := EncodePayload(tc)
		require.NoError(t, err)

		got, err := DecodePayload(raw)
		require.NoError(t, err)
		assert.Equal(t, tc.Kind(), got.Kind())
		assert.Equal(t, tc.DedupeKey(), got.DedupeKey())
	}
}

func TestDecodePayloadRejectsUnknownKind(t *testing.T) {
	env := Envelope{Version: envelopeVersion, Kind: Kind(999), Data: []byte(`{}`)}
	raw, err := json.Marshal(env)
	require.NoError(t, err)

	_, err = DecodePayload(raw)
	assert.Error(t, err)
}

func TestDecodePayloadRejectsNewerVersion(t *testing.T) {
	env := Envelope{Version: envelopeVersion + 1, Kind: KindFolderScan, Data: []byte(`{}`)}
	raw, err := json.Marshal(env)
	require.NoError(t, err)

	_, err = DecodePayload(raw)
	assert.Error(t, err)
}
