// Ferrex scancore
// Copyright 2026 The Ferrex Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipeline

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// EpisodeInfo is the result of parsing an episode filename, ported from
// tv_parser.rs's pattern set (Jellyfin-compatible naming conventions).
type EpisodeInfo struct {
	Season      int
	Episode     int
	EndEpisode  *int // multi-episode files, e.g. S01E01-E03
	IsAbsolute  bool // anime-style absolute numbering, no season known
	LowConfidence bool
}

var episodePatterns = []struct {
	name string
	re   *regexp.Regexp
}{
	{"multi_episode_dash", regexp.MustCompile(`(?i)S(\d+)E(\d+)(?:-E?(\d+))`)},
	{"multi_episode_concat", regexp.MustCompile(`(?i)S(\d+)E(\d+)E(\d+)`)},
	{"multi_episode_x", regexp.MustCompile(`(\d+)[xX](\d+)(?:-[xX]?(\d+))`)},
	{"s00e00", regexp.MustCompile(`(?i)S(\d+)E(\d+)`)},
	{"0x00", regexp.MustCompile(`(\d+)[xX](\d+)`)},
	{"season_episode", regexp.MustCompile(`(?i)season\s*(\d+)\s*episode\s*(\d+)`)},
	{"ep000", regexp.MustCompile(`(?i)(?:ep|episode)\s*(\d)(\d{2})`)},
}

var absoluteEpisodePattern = regexp.MustCompile(`(?:^|\D)(\d{2,4})(?:\D|$)`)

// ParseEpisodeFilename extracts season/episode numbers from a file path's
// stem, trying exact season+episode patterns before falling back to a
// bare absolute-number match (anime-style numbering with no season,
// reported as low-confidence per §4.5's EpisodeMatch ambiguity handling).
func ParseEpisodeFilename(path string) (EpisodeInfo, bool) {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	for _, p := range episodePatterns {
		m := p.re.FindStringSubmatch(stem)
		if m == nil {
			continue
		}
		switch p.name {
		case "multi_episode_dash", "multi_episode_x":
			season, err1 := strconv.Atoi(m[1])
			start, err2 := strconv.Atoi(m[2])
			if err1 != nil || err2 != nil {
				continue
			}
			info := EpisodeInfo{Season: season, Episode: start}
			if len(m) > 3 && m[3] != "" {
				if end, err := strconv.Atoi(m[3]); err == nil {
					info.EndEpisode = &end
				}
			}
			return info, true
		case "multi_episode_concat":
			season, err1 := strconv.Atoi(m[1])
			start, err2 := strconv.Atoi(m[2])
			end, err3 := strconv.Atoi(m[3])
			if err1 != nil || err2 != nil || err3 != nil {
				continue
			}
			return EpisodeInfo{Season: season, Episode: start, EndEpisode: &end}, true
		default:
			season, err1 := strconv.Atoi(m[1])
			episode, err2 := strconv.Atoi(m[2])
			if err1 != nil || err2 != nil {
				continue
			}
			return EpisodeInfo{Season: season, Episode: episode}, true
		}
	}

	if m := absoluteEpisodePattern.FindStringSubmatch(stem); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return EpisodeInfo{Episode: n, IsAbsolute: true, LowConfidence: true}, true
		}
	}

	return EpisodeInfo{}, false
}

// SeasonFolderPattern reports whether name looks like a season folder
// (Season 01, S01, Season01, Specials, Series 1).
func SeasonFolderPattern(name string) (seasonNumber int, isSpecial, ok bool) {
	patterns := []*regexp.Regexp{
		regexp.MustCompile(`(?i)^season\s*(\d+)$`),
		regexp.MustCompile(`(?i)^s(\d{1,2})$`),
		regexp.MustCompile(`(?i)^season(\d+)$`),
		regexp.MustCompile(`(?i)^series\s*(\d+)$`),
	}
	for _, re := range patterns {
		if m := re.FindStringSubmatch(name); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				return n, false, true
			}
		}
	}
	if regexp.MustCompile(`(?i)^specials?$`).MatchString(name) {
		return 0, true, true
	}
	return 0, false, false
}
