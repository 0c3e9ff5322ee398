// Ferrex scancore
// Copyright 2026 The Ferrex Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package fsadapter

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListDirReturnsFilesAndSubdirs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "movie.mkv"), []byte("data"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "Extras"), 0o755))

	l := NewLister()
	entries, err := l.ListDir(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	byName := map[string]bool{}
	for _, e := range entries {
		byName[e.Name] = e.IsDir
		assert.Equal(t, filepath.Join(dir, e.Name), e.Path)
	}
	assert.False(t, byName["movie.mkv"])
	assert.True(t, byName["Extras"])
}

func TestListDirErrorsOnMissingPath(t *testing.T) {
	l := NewLister()
	_, err := l.ListDir(context.Background(), filepath.Join(t.TempDir(), "does-not-exist"))
	assert.Error(t, err)
}

func TestFingerprintPopulatesSizeAndMtime(t *testing.T) {
	path := filepath.Join(t.TempDir(), "movie.mkv")
	require.NoError(t, os.WriteFile(path, []byte("0123456789"), 0o644))

	before := time.Now().Add(-time.Minute)
	fp, err := Fingerprint(context.Background(), path)
	require.NoError(t, err)
	assert.EqualValues(t, 10, fp.Size)
	assert.True(t, fp.Mtime.After(before))
	assert.NotNil(t, fp.DeviceID)
	assert.NotNil(t, fp.Inode)
}

func TestFingerprintErrorsOnMissingPath(t *testing.T) {
	_, err := Fingerprint(context.Background(), filepath.Join(t.TempDir(), "missing.mkv"))
	assert.Error(t, err)
}
