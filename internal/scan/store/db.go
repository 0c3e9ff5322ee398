// Ferrex scancore
// Copyright 2026 The Ferrex Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store persists job records in DuckDB and guards every state
// transition with a single-row compare-and-swap so two dispatchers (or a
// dispatcher racing a lease-expiry sweep) can never both win a lease.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/ferrex/scancore/internal/logging"
)

// Config configures the DuckDB-backed job store.
type Config struct {
	// Path is the database file path, or ":memory:" for an ephemeral store.
	Path string

	// MaxMemory is DuckDB's max_memory setting (e.g. "2GB").
	MaxMemory string

	// Threads overrides DuckDB's worker thread count; 0 uses runtime.NumCPU().
	Threads int
}

// DefaultConfig returns sane defaults for local development.
func DefaultConfig() Config {
	return Config{
		Path:      "scancore.duckdb",
		MaxMemory: "2GB",
		Threads:   0,
	}
}

// Store wraps the DuckDB connection and exposes job-record CAS operations.
type Store struct {
	conn *sql.DB
	cfg  Config
}

// Open creates (or reopens) the job store, creating its schema if absent.
func Open(cfg Config) (*Store, error) {
	if cfg.MaxMemory == "" {
		cfg.MaxMemory = "2GB"
	}

	if cfg.Path != ":memory:" {
		dir := filepath.Dir(cfg.Path)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("store: create database directory %s: %w", dir, err)
			}
		}
	}

	threads := cfg.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}

	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s&autoinstall_known_extensions=false&autoload_known_extensions=false",
		cfg.Path, threads, cfg.MaxMemory)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	conn.SetMaxOpenConns(1) // DuckDB single-writer; serialize at the connection pool
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(time.Hour)

	s := &Store{conn: conn, cfg: cfg}
	if err := s.initialize(); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("store: initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initialize() error {
	if err := s.createSchema(); err != nil {
		return err
	}

	// DuckDB's WAL replay of CREATE TABLE statements with TIMESTAMP
	// defaults can fail on a cold restart unless the WAL is flushed once
	// right after schema creation.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.Checkpoint(ctx); err != nil {
		logging.Warn().Err(err).Msg("checkpoint after schema init failed")
	}
	return nil
}

// Checkpoint forces a WAL checkpoint, flushing pending writes to the main
// database file.
func (s *Store) Checkpoint(ctx context.Context) error {
	_, err := s.conn.ExecContext(ctx, "CHECKPOINT")
	if err != nil {
		return fmt.Errorf("store: checkpoint: %w", err)
	}
	return nil
}

// Ping verifies the connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.PingContext(ctx)
}

// Conn exposes the underlying DuckDB connection so collaborator stores
// (media index, listing-hash cache, series lookup) can share the same
// database file and connection pool instead of opening their own,
// mirroring teacher's db.Conn() used by its audit/detection stores.
func (s *Store) Conn() *sql.DB {
	return s.conn
}

// Close checkpoints and closes the underlying connection.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.Checkpoint(ctx); err != nil {
		logging.Warn().Err(err).Msg("checkpoint before close failed")
	}
	return s.conn.Close()
}

func closeQuietly(conn *sql.DB) {
	_ = conn.Close()
}
