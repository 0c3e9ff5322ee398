// Ferrex scancore
// Copyright 2026 The Ferrex Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package watch coalesces filesystem change notifications into the
// fewest FolderScan enqueues possible (§4.7). A library root is watched
// recursively; every create/modify/move event is folded into a scan of
// its containing media folder (the series root, two levels up, for TV
// libraries), and bursts of events against the same folder are coalesced
// behind a short debounce window.
package watch

import (
	"path/filepath"

	"github.com/ferrex/scancore/internal/scan/job"
	"github.com/ferrex/scancore/internal/scan/pipeline"
)

// TargetFolder resolves the folder a changed path should trigger a
// FolderScan against, and the FolderKind to tag it with, mirroring the
// original background scanner's find_series_root_folder: movies scan
// the immediate parent directory, while series climb to the series root
// two levels up (series/season/episode) unless the path already names a
// season or series folder.
func TargetFolder(libraryKind job.FolderKind, changedPath string, isDir bool) (folder string, kind job.FolderKind) {
	if libraryKind == job.FolderMovie {
		if isDir {
			return changedPath, job.FolderMovie
		}
		return filepath.Dir(changedPath), job.FolderMovie
	}

	if !isDir {
		// episode.mkv -> season dir -> series root
		return filepath.Dir(filepath.Dir(changedPath)), job.FolderSeries
	}

	name := filepath.Base(changedPath)
	if _, _, ok := pipeline.SeasonFolderPattern(name); ok {
		return filepath.Dir(changedPath), job.FolderSeries
	}
	return changedPath, job.FolderSeries
}
