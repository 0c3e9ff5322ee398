// Ferrex scancore
// Copyright 2026 The Ferrex Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package index

import (
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"

	"github.com/ferrex/scancore/internal/scan/pipeline"
)

// Save implements pipeline.MetadataStore.
func (s *Store) Save(ctx context.Context, ref pipeline.MetadataRef, details pipeline.MetadataDetails) error {
	raw, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("index: encode metadata details: %w", err)
	}

	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO metadata_details (library_id, media_id, details, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (library_id, media_id) DO UPDATE SET details = excluded.details, updated_at = excluded.updated_at`,
		ref.LibraryID, ref.MediaID, string(raw), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("index: save metadata details: %w", err)
	}
	return nil
}

// CandidatesFor implements pipeline.EpisodeLookup, matching against the
// season/episode hierarchy MediaAnalyze already recorded for the series
// so EpisodeMatch can tell an unambiguous filename-parsed guess from one
// that collides with another known episode.
func (s *Store) CandidatesFor(ctx context.Context, seriesID string, season, episode int) ([]pipeline.EpisodeCandidate, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT hierarchy FROM media_files
		WHERE json_extract_string(hierarchy, '$.series_id') = ?
		  AND CAST(json_extract(hierarchy, '$.season_number') AS INTEGER) = ?
		  AND CAST(json_extract(hierarchy, '$.episode_number') AS INTEGER) = ?`,
		seriesID, season, episode)
	if err != nil {
		return nil, fmt.Errorf("index: candidates for episode: %w", err)
	}
	defer rows.Close()

	var candidates []pipeline.EpisodeCandidate
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("index: scan candidate hierarchy: %w", err)
		}
		var node struct {
			SeasonNumber  *int `json:"season_number"`
			EpisodeNumber *int `json:"episode_number"`
		}
		if err := json.Unmarshal(raw, &node); err != nil {
			return nil, fmt.Errorf("index: decode candidate hierarchy: %w", err)
		}
		if node.SeasonNumber == nil || node.EpisodeNumber == nil {
			continue
		}
		candidates = append(candidates, pipeline.EpisodeCandidate{
			SeasonNumber:  *node.SeasonNumber,
			EpisodeNumber: *node.EpisodeNumber,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("index: iterate candidates: %w", err)
	}
	return candidates, nil
}
