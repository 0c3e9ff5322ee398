// Ferrex scancore
// Copyright 2026 The Ferrex Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package media implements MediaAnalyze's and MetadataEnrich's
// external-tool collaborators: an ffprobe-backed prober, an HTTP
// metadata provider, and a disk-cached image fetcher.
package media

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	json "github.com/goccy/go-json"
	"golang.org/x/crypto/blake2b"

	"github.com/ferrex/scancore/internal/scan/pipeline"
)

// weakHashSampleBytes is how much of the file's head and tail the weak
// hash covers — enough to catch truncated or re-muxed re-rips without
// hashing every byte of a multi-gigabyte file.
const weakHashSampleBytes = 64 * 1024

// Prober implements pipeline.MediaProber by shelling out to ffprobe.
type Prober struct {
	FFProbePath string
	Timeout     time.Duration
}

// NewProber returns an ffprobe-backed MediaProber. ffprobePath may be a
// bare command name resolved via PATH or an absolute path; timeout
// bounds each probe so a hung or corrupt file can't wedge a worker.
func NewProber(ffprobePath string, timeout time.Duration) *Prober {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Prober{FFProbePath: ffprobePath, Timeout: timeout}
}

type ffprobeFormat struct {
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
}

type ffprobeStream struct {
	Index     int    `json:"index"`
	CodecType string `json:"codec_type"`
	CodecName string `json:"codec_name"`
	Tags      struct {
		Language string `json:"language"`
	} `json:"tags"`
}

type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

// Probe implements pipeline.MediaProber.
func (p *Prober) Probe(ctx context.Context, path string) (pipeline.MediaProbeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.FFProbePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return pipeline.MediaProbeResult{}, fmt.Errorf("media: ffprobe %s: %w", path, err)
	}

	var parsed ffprobeOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return pipeline.MediaProbeResult{}, fmt.Errorf("media: decode ffprobe output for %s: %w", path, err)
	}

	result := pipeline.MediaProbeResult{Container: parsed.Format.FormatName}
	if parsed.Format.Duration != "" {
		fmt.Sscanf(parsed.Format.Duration, "%f", &result.DurationSeconds)
	}

	for _, s := range parsed.Streams {
		info := pipeline.StreamInfo{Index: s.Index, Codec: s.CodecName, Language: s.Tags.Language}
		switch s.CodecType {
		case "video":
			result.VideoStreams = append(result.VideoStreams, info)
		case "audio":
			result.AudioStreams = append(result.AudioStreams, info)
		case "subtitle":
			result.SubtitleStreams = append(result.SubtitleStreams, info)
		}
	}

	weak, err := weakHash(path)
	if err != nil {
		return pipeline.MediaProbeResult{}, fmt.Errorf("media: weak hash %s: %w", path, err)
	}
	result.WeakHash = &weak

	return result, nil
}

// weakHash hashes the file's total size plus its leading and trailing
// weakHashSampleBytes, so a multi-gigabyte file is never read in full.
// A change confined to the middle of a file larger than twice the
// sample size, with the size unchanged, leaves the hash the same.
func weakHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", err
	}

	h, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}
	fmt.Fprintf(h, "%d", info.Size())

	head := make([]byte, weakHashSampleBytes)
	n, err := f.Read(head)
	if err != nil && err != io.EOF {
		return "", err
	}
	h.Write(head[:n])

	if info.Size() > weakHashSampleBytes {
		if _, err := f.Seek(-weakHashSampleBytes, io.SeekEnd); err != nil {
			return "", err
		}
		tail := make([]byte, weakHashSampleBytes)
		n, err := f.Read(tail)
		if err != nil && err != io.EOF {
			return "", err
		}
		h.Write(tail[:n])
	}

	sum := h.Sum(nil)
	return hex.EncodeToString(sum), nil
}
