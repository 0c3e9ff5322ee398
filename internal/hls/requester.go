// Ferrex scancore
// Copyright 2026 The Ferrex Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package hls

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"

	json "github.com/goccy/go-json"

	"github.com/ferrex/scancore/internal/scan/job"
)

// HTTPTranscodeRequester implements TranscodeRequester by posting a
// priority hint to an external transcode service; it does not wait for
// the transcode to complete, matching the collaborator's job — hand off
// the priority, nothing more.
type HTTPTranscodeRequester struct {
	baseURL string
	client  *http.Client
}

// NewHTTPTranscodeRequester returns an HTTP-backed TranscodeRequester.
func NewHTTPTranscodeRequester(baseURL string, client *http.Client) *HTTPTranscodeRequester {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPTranscodeRequester{baseURL: baseURL, client: client}
}

type transcodeRequestBody struct {
	LibraryID string `json:"library_id"`
	MediaID   string `json:"media_id"`
	Variant   string `json:"variant"`
	Priority  int    `json:"priority"`
}

// RequestTranscode implements TranscodeRequester.
func (r *HTTPTranscodeRequester) RequestTranscode(ctx context.Context, libraryID, mediaID string, variant Variant, priority job.Priority) error {
	if r.baseURL == "" {
		return nil
	}

	body := transcodeRequestBody{
		LibraryID: libraryID,
		MediaID:   mediaID,
		Variant:   variant.PlaylistURL,
		Priority:  int(priority),
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("hls: encode transcode request: %w", err)
	}

	target := r.baseURL + "/transcode?" + url.Values{"media_id": {mediaID}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("hls: build transcode request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("hls: request transcode: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("hls: transcode service returned HTTP %d for media %s", resp.StatusCode, mediaID)
	}
	return nil
}
