// Ferrex scancore
// Copyright 2026 The Ferrex Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"database/sql"
	"fmt"

	"github.com/ferrex/scancore/internal/scan/job"
)

const selectColumns = `
	SELECT id, kind, payload, priority, state, attempts, available_at,
		lease_owner, lease_expires_at, dedupe_key, dependency_key,
		correlation_id, last_error, created_at, updated_at
	FROM jobs`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*job.Record, error) {
	var (
		rec            job.Record
		kindVal        int16
		priorityVal    int8
		stateVal       string
		payloadVal     string
		leaseOwner     sql.NullString
		dependencyKey  sql.NullString
		correlationID  sql.NullString
		lastError      sql.NullString
		leaseExpiresAt sql.NullTime
	)

	if err := row.Scan(
		&rec.ID, &kindVal, &payloadVal, &priorityVal, &stateVal, &rec.Attempts, &rec.AvailableAt,
		&leaseOwner, &leaseExpiresAt, &rec.DedupeKey, &dependencyKey,
		&correlationID, &lastError, &rec.CreatedAt, &rec.UpdatedAt,
	); err != nil {
		return nil, err
	}

	kind, err := job.KindFromInt16(kindVal)
	if err != nil {
		return nil, fmt.Errorf("store: scan row %s: %w", rec.ID, err)
	}
	rec.Kind = kind
	rec.Priority = job.Priority(priorityVal)
	rec.State = job.State(stateVal)

	payload, err := job.DecodePayload([]byte(payloadVal))
	if err != nil {
		return nil, fmt.Errorf("store: decode payload for job %s: %w", rec.ID, err)
	}
	rec.Payload = payload

	if leaseOwner.Valid {
		v := leaseOwner.String
		rec.LeaseOwner = &v
	}
	if leaseExpiresAt.Valid {
		v := leaseExpiresAt.Time
		rec.LeaseExpiresAt = &v
	}
	if dependencyKey.Valid {
		v := dependencyKey.String
		rec.DependencyKey = &v
	}
	rec.CorrelationID = correlationID.String
	rec.LastError = lastError.String

	return &rec, nil
}

func scanRecords(rows *sql.Rows) ([]*job.Record, error) {
	var out []*job.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate rows: %w", err)
	}
	return out, nil
}
