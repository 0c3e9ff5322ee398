// Ferrex scancore
// Copyright 2026 The Ferrex Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package hls

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMasterPlaylist(t *testing.T) {
	content := "#EXTM3U\n" +
		"#EXT-X-VERSION:3\n" +
		"#EXT-X-STREAM-INF:BANDWIDTH=865000,RESOLUTION=640x360\n" +
		"variant/360p/playlist.m3u8\n" +
		"#EXT-X-STREAM-INF:BANDWIDTH=2100000,RESOLUTION=854x480\n" +
		"variant/480p/playlist.m3u8\n" +
		"#EXT-X-STREAM-INF:BANDWIDTH=4100000,RESOLUTION=1280x720\n" +
		"variant/720p/playlist.m3u8\n"

	playlist, err := ParseMasterPlaylist(content, "media-123")
	require.NoError(t, err)
	require.Len(t, playlist.Variants, 3)
	assert.Equal(t, "media-123", playlist.MediaID)
	assert.Equal(t, int64(865000), playlist.Variants[0].Bandwidth)
	assert.Equal(t, 640, playlist.Variants[0].Width)
	assert.Equal(t, 360, playlist.Variants[0].Height)
	assert.Equal(t, "360p", playlist.Variants[0].Profile)
}

func TestParseMasterPlaylistNoVariantsIsError(t *testing.T) {
	_, err := ParseMasterPlaylist("#EXTM3U\n", "media-123")
	assert.Error(t, err)
}

func TestBuildMasterPlaylistSortsAscendingByBandwidth(t *testing.T) {
	out := BuildMasterPlaylist([]Variant{
		{Bandwidth: 4_100_000, Width: 1280, Height: 720, PlaylistURL: "variant/720p/playlist.m3u8"},
		{Bandwidth: 865_000, Width: 640, Height: 360, PlaylistURL: "variant/360p/playlist.m3u8"},
	})

	low := indexOf(t, out, "865000")
	high := indexOf(t, out, "4100000")
	assert.Less(t, low, high, "lower-bandwidth variant must appear first")
}

func TestParseVariantPlaylist(t *testing.T) {
	content := "#EXTM3U\n" +
		"#EXT-X-VERSION:3\n" +
		"#EXT-X-TARGETDURATION:4\n" +
		"#EXT-X-MEDIA-SEQUENCE:0\n" +
		"#EXTINF:4.0,\n" +
		"segment/0.ts\n" +
		"#EXTINF:4.0,\n" +
		"segment/1.ts\n"

	vp, err := ParseVariantPlaylist(content)
	require.NoError(t, err)
	require.Len(t, vp.Segments, 2)
	assert.Equal(t, 4.0, vp.TargetDuration)
	assert.Equal(t, uint64(0), vp.Segments[0].SequenceNumber)
	assert.Equal(t, uint64(1), vp.Segments[1].SequenceNumber)
}

func TestBuildVariantPlaylistRoundTrips(t *testing.T) {
	vp := VariantPlaylist{
		TargetDuration: 4.0,
		MediaSequence:  7,
		Segments: []Segment{
			{Duration: 4.0, URL: "segment/7.ts", SequenceNumber: 7},
		},
	}
	out := BuildVariantPlaylist(vp)

	parsed, err := ParseVariantPlaylist(out)
	require.NoError(t, err)
	require.Len(t, parsed.Segments, 1)
	assert.Equal(t, "segment/7.ts", parsed.Segments[0].URL)
}

func indexOf(t *testing.T, haystack, needle string) int {
	t.Helper()
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	t.Fatalf("substring %q not found in %q", needle, haystack)
	return -1
}
