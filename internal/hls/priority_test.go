// Ferrex scancore
// Copyright 2026 The Ferrex Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package hls

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferrex/scancore/internal/scan/enqueue"
	"github.com/ferrex/scancore/internal/scan/job"
)

type fakeEnqueuer struct {
	requests []job.EnqueueRequest
}

func (f *fakeEnqueuer) Enqueue(ctx context.Context, req job.EnqueueRequest, opts enqueue.Options) (job.Handle, error) {
	f.requests = append(f.requests, req)
	return job.Handle{JobID: "job-1", Accepted: true}, nil
}

type fakeTranscodeRequester struct {
	calls []rankedVariant
}

func (f *fakeTranscodeRequester) RequestTranscode(ctx context.Context, libraryID, mediaID string, variant Variant, priority job.Priority) error {
	f.calls = append(f.calls, rankedVariant{variant, priority})
	return nil
}

func TestReportSelectionEnqueuesPosterImageFetch(t *testing.T) {
	enq := &fakeEnqueuer{}
	req := &fakeTranscodeRequester{}

	err := ReportSelection(context.Background(), enq, req, "lib1", "media-1", "img-1", variants()[1], variants())
	require.NoError(t, err)

	require.Len(t, enq.requests, 1)
	ifp := enq.requests[0].Payload.(job.ImageFetchPayload)
	assert.Equal(t, job.ImagePoster, ifp.PriorityHint)
	assert.Equal(t, "img-1", ifp.ImageID)
}

func TestReportSelectionRequestsTranscodeWithGradedPriority(t *testing.T) {
	req := &fakeTranscodeRequester{}

	err := ReportSelection(context.Background(), nil, req, "lib1", "media-1", "", variants()[0], variants())
	require.NoError(t, err)

	require.Len(t, req.calls, 3)
	byProfile := make(map[string]job.Priority)
	for _, c := range req.calls {
		byProfile[c.variant.Profile] = c.priority
	}
	assert.Equal(t, job.P1, byProfile["360p"], "the selected variant gets the transcoder's urgent priority")
	assert.Equal(t, job.P2, byProfile["480p"], "the selected variant's bandwidth neighbor gets the next tier")
	assert.Equal(t, job.P3, byProfile["720p"], "non-adjacent variants get the lowest background priority")
}
