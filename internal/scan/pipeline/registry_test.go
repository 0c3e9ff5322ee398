// Ferrex scancore
// Copyright 2026 The Ferrex Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferrex/scancore/internal/scan/job"
)

func TestRegistryDispatchesToRegisteredHandler(t *testing.T) {
	r := NewRegistry()
	called := false
	r.Register(job.KindImageFetch, HandlerFunc(func(ctx context.Context, rec *job.Record) error {
		called = true
		return nil
	}))

	rec := &job.Record{Kind: job.KindImageFetch}
	require.NoError(t, r.Handle(context.Background(), rec))
	assert.True(t, called)
}

func TestRegistryReturnsErrNoHandlerForUnregisteredKind(t *testing.T) {
	r := NewRegistry()
	err := r.Handle(context.Background(), &job.Record{Kind: job.KindFolderScan})
	var noHandler ErrNoHandler
	assert.True(t, errors.As(err, &noHandler))
}

func TestAsFailureDefaultsUnclassifiedErrorsToRetryable(t *testing.T) {
	f := AsFailure(errors.New("boom"))
	require.NotNil(t, f)
	assert.True(t, f.Retryable)
}

func TestAsFailurePreservesPermanentClassification(t *testing.T) {
	f := AsFailure(Permanent("bad file"))
	require.NotNil(t, f)
	assert.False(t, f.Retryable)
}
