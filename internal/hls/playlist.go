// Ferrex scancore
// Copyright 2026 The Ferrex Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package hls

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Variant is one renditions of a master playlist (§6 wire format).
type Variant struct {
	Bandwidth   int64
	Width       int
	Height      int
	Profile     string
	PlaylistURL string
}

func (v Variant) hasResolution() bool { return v.Width > 0 && v.Height > 0 }

// MasterPlaylist is the parsed #EXT-X-STREAM-INF index for one media item.
type MasterPlaylist struct {
	MediaID  string
	Variants []Variant
}

// Segment is one entry of a variant playlist.
type Segment struct {
	Duration       float64
	URL            string
	SequenceNumber uint64
}

// VariantPlaylist is one rendition's segment list.
type VariantPlaylist struct {
	TargetDuration float64
	MediaSequence  uint64
	Segments       []Segment
}

// BuildMasterPlaylist renders the master playlist text for a media item.
// Variants are sorted ascending by bandwidth, per §6.
func BuildMasterPlaylist(variants []Variant) string {
	sorted := make([]Variant, len(variants))
	copy(sorted, variants)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Bandwidth < sorted[j].Bandwidth })

	var b strings.Builder
	b.WriteString("#EXTM3U\n#EXT-X-VERSION:3\n")
	for _, v := range sorted {
		b.WriteString("#EXT-X-STREAM-INF:BANDWIDTH=")
		b.WriteString(strconv.FormatInt(v.Bandwidth, 10))
		if v.hasResolution() {
			b.WriteString(",RESOLUTION=")
			b.WriteString(strconv.Itoa(v.Width))
			b.WriteString("x")
			b.WriteString(strconv.Itoa(v.Height))
		}
		b.WriteString("\n")
		b.WriteString(v.PlaylistURL)
		b.WriteString("\n")
	}
	return b.String()
}

// ParseMasterPlaylist parses master playlist text produced by
// BuildMasterPlaylist (or any compliant #EXT-X-STREAM-INF playlist).
// Ported line-for-line from ferrex-player's parse_master_playlist: the
// profile name is inferred from the second path segment of the variant
// playlist URL (".../<profile>/playlist.m3u8").
func ParseMasterPlaylist(content, mediaID string) (MasterPlaylist, error) {
	lines := strings.Split(content, "\n")
	var variants []Variant

	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(line, "#EXT-X-STREAM-INF:") {
			continue
		}

		info := line[len("#EXT-X-STREAM-INF:"):]
		var bandwidth int64
		var width, height int
		for _, attr := range strings.Split(info, ",") {
			parts := strings.SplitN(attr, "=", 2)
			if len(parts) != 2 {
				continue
			}
			switch parts[0] {
			case "BANDWIDTH":
				bandwidth, _ = strconv.ParseInt(parts[1], 10, 64)
			case "RESOLUTION":
				res := strings.SplitN(parts[1], "x", 2)
				if len(res) == 2 {
					if w, err := strconv.Atoi(res[0]); err == nil {
						if h, err := strconv.Atoi(res[1]); err == nil {
							width, height = w, h
						}
					}
				}
			}
		}

		if i+1 >= len(lines) {
			continue
		}
		playlistPath := strings.TrimSpace(lines[i+1])
		if strings.HasPrefix(playlistPath, "#") {
			continue
		}

		profile := "unknown"
		if segs := strings.Split(playlistPath, "/"); len(segs) > 1 {
			profile = segs[1]
		}

		variants = append(variants, Variant{
			Bandwidth:   bandwidth,
			Width:       width,
			Height:      height,
			Profile:     profile,
			PlaylistURL: playlistPath,
		})
		i++
	}

	if len(variants) == 0 {
		return MasterPlaylist{}, fmt.Errorf("hls: no variants found in master playlist")
	}
	sort.Slice(variants, func(i, j int) bool { return variants[i].Bandwidth < variants[j].Bandwidth })

	return MasterPlaylist{MediaID: mediaID, Variants: variants}, nil
}

// BuildVariantPlaylist renders a variant playlist's segment list.
func BuildVariantPlaylist(vp VariantPlaylist) string {
	var b strings.Builder
	b.WriteString("#EXTM3U\n#EXT-X-VERSION:3\n")
	b.WriteString(fmt.Sprintf("#EXT-X-TARGETDURATION:%d\n", int(vp.TargetDuration+0.5)))
	b.WriteString(fmt.Sprintf("#EXT-X-MEDIA-SEQUENCE:%d\n", vp.MediaSequence))
	for _, seg := range vp.Segments {
		b.WriteString(fmt.Sprintf("#EXTINF:%.1f,\n", seg.Duration))
		b.WriteString(seg.URL)
		b.WriteString("\n")
	}
	b.WriteString("#EXT-X-ENDLIST\n")
	return b.String()
}

// ParseVariantPlaylist parses a variant playlist's segment list, ported
// from ferrex-player's parse_variant_playlist.
func ParseVariantPlaylist(content string) (VariantPlaylist, error) {
	lines := strings.Split(content, "\n")
	targetDuration := 4.0
	var mediaSequence uint64
	var segments []Segment

	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		switch {
		case strings.HasPrefix(line, "#EXT-X-TARGETDURATION:"):
			if v, err := strconv.ParseFloat(line[len("#EXT-X-TARGETDURATION:"):], 64); err == nil {
				targetDuration = v
			}
		case strings.HasPrefix(line, "#EXT-X-MEDIA-SEQUENCE:"):
			if v, err := strconv.ParseUint(line[len("#EXT-X-MEDIA-SEQUENCE:"):], 10, 64); err == nil {
				mediaSequence = v
			}
		case strings.HasPrefix(line, "#EXTINF:"):
			durationStr := line[len("#EXTINF:"):]
			durationStr, _, _ = strings.Cut(durationStr, ",")
			duration, err := strconv.ParseFloat(durationStr, 64)
			if err != nil {
				duration = 4.0
			}
			if i+1 < len(lines) {
				segPath := strings.TrimSpace(lines[i+1])
				if !strings.HasPrefix(segPath, "#") {
					segments = append(segments, Segment{
						Duration:       duration,
						URL:            segPath,
						SequenceNumber: mediaSequence + uint64(len(segments)),
					})
					i++
				}
			}
		}
	}

	return VariantPlaylist{TargetDuration: targetDuration, MediaSequence: mediaSequence, Segments: segments}, nil
}
