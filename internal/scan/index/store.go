// Ferrex scancore
// Copyright 2026 The Ferrex Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package index implements the pipeline's DuckDB-backed collaborators —
// the read-side index (IndexStore), the media-file record table
// (MediaStore), the folder listing-hash cache (ListingHashStore), and
// series identity lookup/resolution (SeriesLookup,
// SeriesIdentityResolver) — sharing the job store's own DuckDB
// connection rather than opening a second database file, the same way
// teacher's audit and detection stores share db.Conn() instead of each
// managing their own *sql.DB.
package index

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"

	json "github.com/goccy/go-json"

	"github.com/ferrex/scancore/internal/scan/job"
	"github.com/ferrex/scancore/internal/scan/pipeline"
)

// Store implements pipeline.IndexStore, pipeline.MediaStore,
// pipeline.ListingHashStore, pipeline.SeriesIdentityResolver, and
// pipeline.SeriesLookup (the episode_match.go variant) against DuckDB.
type Store struct {
	conn *sql.DB
}

// Open creates the index package's tables on conn (expected to be the
// job store's own DuckDB connection) and returns a Store.
func Open(conn *sql.DB) (*Store, error) {
	s := &Store{conn: conn}
	if err := s.createSchema(); err != nil {
		return nil, fmt.Errorf("index: create schema: %w", err)
	}
	return s, nil
}

// GetListingHash implements pipeline.ListingHashStore.
func (s *Store) GetListingHash(ctx context.Context, libraryID, path string) (string, bool, error) {
	var hash string
	err := s.conn.QueryRowContext(ctx,
		`SELECT hash FROM folder_listing_hashes WHERE library_id = ? AND path = ?`,
		libraryID, path).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("index: get listing hash: %w", err)
	}
	return hash, true, nil
}

// SaveListingHash implements pipeline.ListingHashStore.
func (s *Store) SaveListingHash(ctx context.Context, libraryID, path, hash string) error {
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO folder_listing_hashes (library_id, path, hash, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (library_id, path) DO UPDATE SET hash = excluded.hash, updated_at = excluded.updated_at`,
		libraryID, path, hash, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("index: save listing hash: %w", err)
	}
	return nil
}

// mediaID derives a stable id for a (library_id, path) pair so repeated
// MediaAnalyze runs over the same file always resolve to the same
// media_id, without a round trip to look one up before it exists.
func mediaID(libraryID, path string) string {
	sum := blake2b.Sum256([]byte(libraryID + ":" + path))
	return hex.EncodeToString(sum[:16])
}

// LookupFingerprint implements pipeline.MediaStore.
func (s *Store) LookupFingerprint(ctx context.Context, libraryID, pathNorm string) (*job.Fingerprint, string, bool, error) {
	id := mediaID(libraryID, pathNorm)
	var raw []byte
	err := s.conn.QueryRowContext(ctx,
		`SELECT fingerprint FROM media_files WHERE media_id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", false, nil
	}
	if err != nil {
		return nil, "", false, fmt.Errorf("index: lookup fingerprint: %w", err)
	}
	var fp job.Fingerprint
	if err := json.Unmarshal(raw, &fp); err != nil {
		return nil, "", false, fmt.Errorf("index: decode fingerprint: %w", err)
	}
	return &fp, id, true, nil
}

// SaveMediaRecord implements pipeline.MediaStore.
func (s *Store) SaveMediaRecord(ctx context.Context, rec pipeline.MediaRecord) (string, error) {
	id := mediaID(rec.LibraryID, rec.Path)

	fpJSON, err := json.Marshal(rec.Fingerprint)
	if err != nil {
		return "", fmt.Errorf("index: encode fingerprint: %w", err)
	}
	probeJSON, err := json.Marshal(rec.Probe)
	if err != nil {
		return "", fmt.Errorf("index: encode probe: %w", err)
	}
	hierarchyJSON, err := json.Marshal(rec.Hierarchy)
	if err != nil {
		return "", fmt.Errorf("index: encode hierarchy: %w", err)
	}

	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO media_files (media_id, library_id, path, fingerprint, fingerprint_hash, probe, variant, hierarchy, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (media_id) DO UPDATE SET
			fingerprint = excluded.fingerprint,
			fingerprint_hash = excluded.fingerprint_hash,
			probe = excluded.probe,
			variant = excluded.variant,
			hierarchy = excluded.hierarchy,
			updated_at = excluded.updated_at`,
		id, rec.LibraryID, rec.Path, string(fpJSON), rec.Fingerprint.HashRepr(), string(probeJSON),
		string(rec.Variant), string(hierarchyJSON), time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("index: save media record: %w", err)
	}
	return id, nil
}

// Upsert implements pipeline.IndexStore.
func (s *Store) Upsert(ctx context.Context, entry pipeline.IndexEntry) (pipeline.IndexChange, error) {
	var existingKey string
	err := s.conn.QueryRowContext(ctx,
		`SELECT idempotency_key FROM read_index WHERE library_id = ? AND path = ?`,
		entry.LibraryID, entry.Path).Scan(&existingKey)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("index: upsert lookup: %w", err)
	}
	found := err == nil

	nodeJSON, err := json.Marshal(entry.Node)
	if err != nil {
		return "", fmt.Errorf("index: encode node: %w", err)
	}

	if found && existingKey == entry.IdempotencyKey {
		return pipeline.IndexUnchanged, nil
	}

	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO read_index (library_id, path, hierarchy, idempotency_key, media_id, node, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (library_id, path) DO UPDATE SET
			hierarchy = excluded.hierarchy,
			idempotency_key = excluded.idempotency_key,
			media_id = excluded.media_id,
			node = excluded.node,
			updated_at = excluded.updated_at`,
		entry.LibraryID, entry.Path, string(entry.Hierarchy), entry.IdempotencyKey, entry.MediaID,
		string(nodeJSON), time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("index: upsert: %w", err)
	}
	if found {
		return pipeline.IndexUpdated, nil
	}
	return pipeline.IndexCreated, nil
}

// Remove implements pipeline.IndexStore.
func (s *Store) Remove(ctx context.Context, libraryID, path string) error {
	_, err := s.conn.ExecContext(ctx, `DELETE FROM read_index WHERE library_id = ? AND path = ?`, libraryID, path)
	if err != nil {
		return fmt.Errorf("index: remove: %w", err)
	}
	return nil
}

// SeriesIDForRoot implements pipeline.SeriesLookup.
func (s *Store) SeriesIDForRoot(ctx context.Context, libraryID, seriesRootPath string) (string, bool, error) {
	var id string
	err := s.conn.QueryRowContext(ctx,
		`SELECT series_id FROM series_identities WHERE library_id = ? AND series_root_path = ?`,
		libraryID, seriesRootPath).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("index: series lookup: %w", err)
	}
	return id, true, nil
}

var slugNonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(name string) string {
	s := slugNonAlnum.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(s, "-")
}

// Resolve implements pipeline.SeriesIdentityResolver. It is idempotent
// per (library_id, series_root_path): the first call mints an id (the
// caller's hint if given, otherwise a slug of the folder name) and every
// subsequent call for the same root returns that same id, so a series
// root rescanned after a restart doesn't fork into a second identity.
func (s *Store) Resolve(ctx context.Context, libraryID, seriesRootPath, folderName string, hint *string) (string, error) {
	if id, found, err := s.SeriesIDForRoot(ctx, libraryID, seriesRootPath); err != nil {
		return "", err
	} else if found {
		return id, nil
	}

	seriesID := slugify(folderName)
	if hint != nil && *hint != "" {
		seriesID = slugify(*hint)
	}
	if seriesID == "" {
		seriesID = mediaID(libraryID, seriesRootPath)
	}

	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO series_identities (library_id, series_root_path, series_id, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (library_id, series_root_path) DO NOTHING`,
		libraryID, seriesRootPath, seriesID, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("index: resolve series identity: %w", err)
	}
	return seriesID, nil
}
