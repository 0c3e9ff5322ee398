// Ferrex scancore
// Copyright 2026 The Ferrex Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package media

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	json "github.com/goccy/go-json"

	"github.com/ferrex/scancore/internal/scan/pipeline"
)

// MetadataProvider implements pipeline.MetadataProvider against an HTTP
// metadata service, retrying rate-limited responses with exponential
// backoff the same way the teacher's Tautulli client does.
type MetadataProvider struct {
	baseURL    string
	apiKey     string
	client     *http.Client
	maxRetries int
	baseDelay  time.Duration
}

// NewMetadataProvider returns an HTTP-backed MetadataProvider.
func NewMetadataProvider(baseURL, apiKey string, timeout time.Duration) *MetadataProvider {
	return &MetadataProvider{
		baseURL:    baseURL,
		apiKey:     apiKey,
		client:     &http.Client{Timeout: timeout},
		maxRetries: 5,
		baseDelay:  time.Second,
	}
}

// Fetch implements pipeline.MetadataProvider.
func (p *MetadataProvider) Fetch(ctx context.Context, ref pipeline.MetadataRef) (pipeline.MetadataDetails, error) {
	q := url.Values{}
	q.Set("library_id", ref.LibraryID)
	q.Set("media_id", ref.MediaID)
	q.Set("hierarchy", string(ref.Hierarchy))
	if ref.SeriesID != "" {
		q.Set("series_id", ref.SeriesID)
	}
	if ref.SeasonNumber != nil {
		q.Set("season", strconv.Itoa(*ref.SeasonNumber))
	}
	if ref.EpisodeNumber != nil {
		q.Set("episode", strconv.Itoa(*ref.EpisodeNumber))
	}
	if p.apiKey != "" {
		q.Set("api_key", p.apiKey)
	}

	resp, err := p.doWithRetry(ctx, p.baseURL+"?"+q.Encode())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &pipeline.ProviderError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("media: metadata provider returned HTTP %d", resp.StatusCode),
		}
	}

	var details pipeline.MetadataDetails
	if err := json.NewDecoder(resp.Body).Decode(&details); err != nil {
		return nil, fmt.Errorf("media: decode metadata response: %w", err)
	}
	return details, nil
}

func (p *MetadataProvider) doWithRetry(ctx context.Context, reqURL string) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
		if err != nil {
			return nil, fmt.Errorf("media: build metadata request: %w", err)
		}

		resp, err := p.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("media: metadata request failed: %w", err)
		}
		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		_ = resp.Body.Close()
		if attempt == p.maxRetries {
			lastErr = fmt.Errorf("media: metadata provider rate limited after %d retries", p.maxRetries)
			break
		}

		delay := p.baseDelay * time.Duration(1<<uint(attempt))
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if secs, err := strconv.Atoi(retryAfter); err == nil {
				delay = time.Duration(secs) * time.Second
			}
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}
