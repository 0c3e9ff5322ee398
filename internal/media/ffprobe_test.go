// Ferrex scancore
// Copyright 2026 The Ferrex Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package media

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample.bin")
	data := bytes.Repeat([]byte{0xAB}, size)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestWeakHashStableForIdenticalContent(t *testing.T) {
	a := writeTempFile(t, 8)
	b := writeTempFile(t, 8)

	hashA, err := weakHash(a)
	require.NoError(t, err)
	hashB, err := weakHash(b)
	require.NoError(t, err)
	assert.Equal(t, hashA, hashB)
}

func TestWeakHashDiffersOnSize(t *testing.T) {
	small := writeTempFile(t, 8)
	large := writeTempFile(t, 4096)

	hashSmall, err := weakHash(small)
	require.NoError(t, err)
	hashLarge, err := weakHash(large)
	require.NoError(t, err)
	assert.NotEqual(t, hashSmall, hashLarge)
}

func TestWeakHashCoversHeadAndTailForLargeFiles(t *testing.T) {
	size := weakHashSampleBytes*2 + 16
	path := filepath.Join(t.TempDir(), "large.bin")
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i)
	}
	require.NoError(t, os.WriteFile(path, data, 0o644))

	mutated := make([]byte, size)
	copy(mutated, data)
	mutated[size/2] ^= 0xFF
	mutatedPath := filepath.Join(t.TempDir(), "large-middle-changed.bin")
	require.NoError(t, os.WriteFile(mutatedPath, mutated, 0o644))

	original, err := weakHash(path)
	require.NoError(t, err)
	changed, err := weakHash(mutatedPath)
	require.NoError(t, err)
	assert.Equal(t, original, changed, "weak hash only samples head/tail, middle-byte changes must not affect it")
}

func TestNewProberDefaultsPath(t *testing.T) {
	p := NewProber("", 0)
	assert.Equal(t, "ffprobe", p.FFProbePath)
}
