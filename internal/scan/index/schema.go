// Ferrex scancore
// Copyright 2026 The Ferrex Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package index

const createListingHashTable = `
CREATE TABLE IF NOT EXISTS folder_listing_hashes (
	library_id VARCHAR NOT NULL,
	path       VARCHAR NOT NULL,
	hash       VARCHAR NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	PRIMARY KEY (library_id, path)
);`

const createMediaTable = `
CREATE TABLE IF NOT EXISTS media_files (
	media_id       VARCHAR PRIMARY KEY,
	library_id     VARCHAR NOT NULL,
	path           VARCHAR NOT NULL,
	fingerprint    JSON NOT NULL,
	fingerprint_hash VARCHAR NOT NULL,
	probe          JSON NOT NULL,
	variant        VARCHAR NOT NULL,
	hierarchy      JSON NOT NULL,
	updated_at     TIMESTAMP NOT NULL
);`

const mediaLookupIndex = `
CREATE UNIQUE INDEX IF NOT EXISTS media_files_library_path
ON media_files (library_id, path);`

const createIndexTable = `
CREATE TABLE IF NOT EXISTS read_index (
	library_id      VARCHAR NOT NULL,
	path            VARCHAR NOT NULL,
	hierarchy       VARCHAR NOT NULL,
	idempotency_key VARCHAR NOT NULL,
	media_id        VARCHAR NOT NULL,
	node            JSON NOT NULL,
	updated_at      TIMESTAMP NOT NULL,
	PRIMARY KEY (library_id, path)
);`

const createSeriesTable = `
CREATE TABLE IF NOT EXISTS series_identities (
	library_id       VARCHAR NOT NULL,
	series_root_path VARCHAR NOT NULL,
	series_id        VARCHAR NOT NULL,
	updated_at       TIMESTAMP NOT NULL,
	PRIMARY KEY (library_id, series_root_path)
);`

const createMetadataTable = `
CREATE TABLE IF NOT EXISTS metadata_details (
	library_id VARCHAR NOT NULL,
	media_id   VARCHAR NOT NULL,
	details    JSON NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	PRIMARY KEY (library_id, media_id)
);`

func (s *Store) createSchema() error {
	stmts := []string{
		createListingHashTable,
		createMediaTable,
		mediaLookupIndex,
		createIndexTable,
		createSeriesTable,
		createMetadataTable,
	}
	for _, stmt := range stmts {
		if _, err := s.conn.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
