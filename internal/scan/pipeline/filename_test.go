// Ferrex scancore
// Copyright 2026 The Ferrex Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEpisodeFilenameStandardPatterns(t *testing.T) {
	cases := []struct {
		name           string
		file           string
		wantSeason     int
		wantEpisode    int
		wantEnd        *int
		wantIsAbsolute bool
	}{
		{"s00e00", "Show.Name.S02E05.1080p.mkv", 2, 5, nil, false},
		{"0x00", "Show Name 3x07.mkv", 3, 7, nil, false},
		{"season_episode", "Show Name Season 4 Episode 2.mkv", 4, 2, nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			info, ok := ParseEpisodeFilename(tc.file)
			require.True(t, ok)
			assert.Equal(t, tc.wantSeason, info.Season)
			assert.Equal(t, tc.wantEpisode, info.Episode)
			assert.Equal(t, tc.wantIsAbsolute, info.IsAbsolute)
		})
	}
}

func TestParseEpisodeFilenameMultiEpisodeDash(t *testing.T) {
	info, ok := ParseEpisodeFilename("Show.Name.S01E01-E03.mkv")
	require.True(t, ok)
	assert.Equal(t, 1, info.Season)
	assert.Equal(t, 1, info.Episode)
	require.NotNil(t, info.EndEpisode)
	assert.Equal(t, 3, *info.EndEpisode)
}

func TestParseEpisodeFilenameAbsoluteFallback(t *testing.T) {
	info, ok := ParseEpisodeFilename("Anime Show - 045.mkv")
	require.True(t, ok)
	assert.True(t, info.IsAbsolute)
	assert.True(t, info.LowConfidence)
	assert.Equal(t, 45, info.Episode)
}

func TestParseEpisodeFilenameUnparseable(t *testing.T) {
	_, ok := ParseEpisodeFilename("a.mkv")
	assert.False(t, ok)
}

func TestSeasonFolderPattern(t *testing.T) {
	n, special, ok := SeasonFolderPattern("Season 02")
	require.True(t, ok)
	assert.False(t, special)
	assert.Equal(t, 2, n)

	_, special, ok = SeasonFolderPattern("Specials")
	require.True(t, ok)
	assert.True(t, special)

	_, _, ok = SeasonFolderPattern("Extras")
	assert.False(t, ok)
}
