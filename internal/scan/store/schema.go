// Ferrex scancore
// Copyright 2026 The Ferrex Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

const createJobsTable = `
CREATE TABLE IF NOT EXISTS jobs (
	id               VARCHAR PRIMARY KEY,
	kind             SMALLINT NOT NULL,
	payload          JSON NOT NULL,
	priority         SMALLINT NOT NULL,
	state            VARCHAR NOT NULL,
	attempts         INTEGER NOT NULL DEFAULT 0,
	available_at     TIMESTAMP NOT NULL,
	lease_owner      VARCHAR,
	lease_expires_at TIMESTAMP,
	dedupe_key       VARCHAR NOT NULL,
	dependency_key   VARCHAR,
	correlation_id   VARCHAR,
	last_error       VARCHAR,
	created_at       TIMESTAMP NOT NULL,
	updated_at       TIMESTAMP NOT NULL
);`

// activeDedupeUniqueIndex enforces dedupe-key uniqueness among jobs that
// haven't reached a terminal state, via a partial unique index. Terminal
// jobs keep their row (for audit / dead-letter inspection) without
// blocking a fresh enqueue under the same key.
const activeDedupeUniqueIndex = `
CREATE UNIQUE INDEX IF NOT EXISTS jobs_active_dedupe_key
ON jobs (dedupe_key)
WHERE state NOT IN ('completed', 'failed', 'dead_letter');`

const dispatchIndex = `
CREATE INDEX IF NOT EXISTS jobs_dispatch
ON jobs (state, kind, priority, available_at);`

const dependencyIndex = `
CREATE INDEX IF NOT EXISTS jobs_dependency
ON jobs (dependency_key, priority)
WHERE dependency_key IS NOT NULL;`

const leaseExpiryIndex = `
CREATE INDEX IF NOT EXISTS jobs_lease_expiry
ON jobs (lease_expires_at)
WHERE state = 'leased';`

func (s *Store) createSchema() error {
	stmts := []string{
		createJobsTable,
		activeDedupeUniqueIndex,
		dispatchIndex,
		dependencyIndex,
		leaseExpiryIndex,
	}
	for _, stmt := range stmts {
		if _, err := s.conn.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
