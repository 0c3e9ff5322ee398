// Ferrex scancore
// Copyright 2026 The Ferrex Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package fsadapter implements FolderScan's filesystem-facing
// collaborators — directory listing and file fingerprinting — against
// the real filesystem, kept separate from the pipeline package so its
// handlers stay testable against fakes.
package fsadapter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/ferrex/scancore/internal/scan/job"
	"github.com/ferrex/scancore/internal/scan/pipeline"
)

// Lister implements pipeline.FolderLister against os.ReadDir.
type Lister struct{}

// NewLister returns a filesystem-backed FolderLister.
func NewLister() *Lister { return &Lister{} }

// ListDir implements pipeline.FolderLister.
func (l *Lister) ListDir(_ context.Context, path string) ([]pipeline.FolderEntry, error) {
	dirEntries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("fsadapter: read dir %s: %w", path, err)
	}

	entries := make([]pipeline.FolderEntry, 0, len(dirEntries))
	for _, de := range dirEntries {
		entries = append(entries, pipeline.FolderEntry{
			Name:  de.Name(),
			Path:  filepath.Join(path, de.Name()),
			IsDir: de.IsDir(),
		})
	}
	return entries, nil
}

// Fingerprint stats path and builds a job.Fingerprint from its device,
// inode, size, and modification time — the cheap identity FolderScan
// attaches to a MediaAnalyze job so a rescan can tell an untouched file
// from one worth re-probing without opening it.
func Fingerprint(_ context.Context, path string) (job.Fingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return job.Fingerprint{}, fmt.Errorf("fsadapter: stat %s: %w", path, err)
	}

	fp := job.Fingerprint{
		Size:  info.Size(),
		Mtime: info.ModTime().UTC(),
	}

	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		dev := fmt.Sprintf("%d", st.Dev)
		inode := st.Ino
		fp.DeviceID = &dev
		fp.Inode = &inode
	}

	return fp, nil
}
