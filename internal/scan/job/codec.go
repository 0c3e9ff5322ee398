// Ferrex scancore
// Copyright 2026 The Ferrex Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package job

import (
	"fmt"

	json "github.com/goccy/go-json"
)

// envelopeVersion is bumped whenever a payload's on-disk shape changes in
// a way that isn't additive. A reader that sees a newer version than it
// knows about rejects the job rather than guessing at its fields.
const envelopeVersion = 1

// Envelope is the schema-versioned wire/storage form of a Payload. Kind
// is the tagged-union discriminant; Data holds the variant's own JSON.
type Envelope struct {
	Version int             `json:"version"`
	Kind    Kind            `json:"kind"`
	Data    json.RawMessage `json:"data"`
}

// EncodePayload wraps a Payload in its versioned envelope and marshals it.
func EncodePayload(p Payload) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("job: marshal payload: %w", err)
	}
	return json.Marshal(Envelope{Version: envelopeVersion, Kind: p.Kind(), Data: data})
}

// DecodePayload reconstructs a Payload from its versioned envelope,
// rejecting unknown kinds and envelope versions newer than this binary
// understands.
func DecodePayload(raw []byte) (Payload, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("job: unmarshal envelope: %w", err)
	}
	if env.Version > envelopeVersion {
		return nil, fmt.Errorf("job: envelope version %d is newer than this binary supports (%d)", env.Version, envelopeVersion)
	}
	if _, err := KindFromInt16(int16(env.Kind)); err != nil {
		return nil, err
	}

	switch env.Kind {
	case KindFolderScan:
		var p FolderScanPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("job: unmarshal FolderScanPayload: %w", err)
		}
		return p, nil
	case KindSeriesResolve:
		var p SeriesResolvePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("job: unmarshal SeriesResolvePayload: %w", err)
		}
		return p, nil
	case KindMediaAnalyze:
		var p MediaAnalyzePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("job: unmarshal MediaAnalyzePayload: %w", err)
		}
		return p, nil
	case KindMetadataEnrich:
		var p MetadataEnrichPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("job: unmarshal MetadataEnrichPayload: %w", err)
		}
		return p, nil
	case KindEpisodeMatch:
		var p EpisodeMatchPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("job: unmarshal EpisodeMatchPayload: %w", err)
		}
		return p, nil
	case KindIndexUpsert:
		var p IndexUpsertPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("job: unmarshal IndexUpsertPayload: %w", err)
		}
		return p, nil
	case KindImageFetch:
		var p ImageFetchPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("job: unmarshal ImageFetchPayload: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("job: unhandled kind %v", env.Kind)
	}
}
