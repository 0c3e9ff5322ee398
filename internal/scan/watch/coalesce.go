// Ferrex scancore
// Copyright 2026 The Ferrex Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package watch

import (
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

// CoalesceWindow suppresses duplicate FolderScan triggers for the same
// target folder within a short window, so a burst of writes against one
// file (common with torrent clients and video encoders) produces one
// enqueue instead of dozens. Backed by Badger so the window survives a
// process restart without needing DuckDB round-trips on every event.
type CoalesceWindow struct {
	db  *badger.DB
	ttl time.Duration
}

// OpenCoalesceWindow opens (or creates) a Badger store at dir. dir == ""
// opens an in-memory store, used by tests.
func OpenCoalesceWindow(dir string, ttl time.Duration) (*CoalesceWindow, error) {
	if ttl <= 0 {
		ttl = 2 * time.Second
	}
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("watch: open coalesce window: %w", err)
	}
	return &CoalesceWindow{db: db, ttl: ttl}, nil
}

func (w *CoalesceWindow) Close() error {
	return w.db.Close()
}

// ShouldTrigger reports whether libraryID/folder has not already fired a
// scan within the coalescing window, and marks it as fired if so.
func (w *CoalesceWindow) ShouldTrigger(libraryID, folder string) (bool, error) {
	key := []byte(libraryID + ":" + folder)
	var alreadyFired bool
	err := w.db.Update(func(txn *badger.Txn) error {
		_, getErr := txn.Get(key)
		if getErr == nil {
			alreadyFired = true
			return nil
		}
		if getErr != badger.ErrKeyNotFound {
			return getErr
		}
		entry := badger.NewEntry(key, []byte{1}).WithTTL(w.ttl)
		return txn.SetEntry(entry)
	})
	if err != nil {
		return false, fmt.Errorf("watch: coalesce window update: %w", err)
	}
	return !alreadyFired, nil
}
