// Ferrex scancore
// Copyright 2026 The Ferrex Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package media

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"golang.org/x/crypto/blake2b"

	"github.com/ferrex/scancore/internal/scan/pipeline"
)

// ImageFetcher implements pipeline.ImageFetcher against a content-addressed
// disk cache fed by HTTP downloads; a cache hit never re-fetches, since
// each (image_id, size_variant) pair has exactly one address.
type ImageFetcher struct {
	baseURL  string
	cacheDir string
	client   *http.Client
}

// NewImageFetcher returns a disk-cached ImageFetcher that downloads
// missing entries from baseURL into cacheDir.
func NewImageFetcher(baseURL, cacheDir string, client *http.Client) *ImageFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &ImageFetcher{baseURL: baseURL, cacheDir: cacheDir, client: client}
}

// Fetch implements pipeline.ImageFetcher.
func (f *ImageFetcher) Fetch(ctx context.Context, ref pipeline.ImageRef) (string, error) {
	cachePath := f.cachePath(ref)
	if _, err := os.Stat(cachePath); err == nil {
		return cachePath, nil
	}

	if err := os.MkdirAll(filepath.Dir(cachePath), 0o750); err != nil {
		return "", fmt.Errorf("media: create image cache dir: %w", err)
	}

	url := fmt.Sprintf("%s/%s/%s/%s", f.baseURL, ref.LibraryID, ref.ImageID, ref.SizeVariant)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("media: build image request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("media: fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("media: fetch image %s: HTTP %d", url, resp.StatusCode)
	}

	tmp, err := os.CreateTemp(filepath.Dir(cachePath), ".download-*")
	if err != nil {
		return "", fmt.Errorf("media: create image temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return "", fmt.Errorf("media: write image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("media: close image temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), cachePath); err != nil {
		return "", fmt.Errorf("media: install image into cache: %w", err)
	}

	return cachePath, nil
}

func (f *ImageFetcher) cachePath(ref pipeline.ImageRef) string {
	sum := blake2b.Sum256([]byte(ref.LibraryID + ":" + ref.ImageID + ":" + ref.SizeVariant))
	key := hex.EncodeToString(sum[:16])
	return filepath.Join(f.cacheDir, key[:2], key)
}
