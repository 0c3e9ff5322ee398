// Ferrex scancore
// Copyright 2026 The Ferrex Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipeline

import (
	"context"
	"time"

	"github.com/ferrex/scancore/internal/logging"
	"github.com/ferrex/scancore/internal/scan/dispatch"
	"github.com/ferrex/scancore/internal/scan/job"
	"github.com/ferrex/scancore/internal/scan/lease"
)

// softDeadline bounds a handler's runtime: the context passed to the
// handler is cancelled once it elapses. The worker does not renew the
// job's lease while the handler runs.
const softDeadline = 30 * time.Second

// Worker is a suture.Service that loops dequeue -> handle ->
// complete/fail against the dispatcher and lease manager (§5's
// cooperative single-threaded worker model).
type Worker struct {
	Owner        string
	Kinds        []job.Kind
	Selector     *dispatch.Selector
	Dispatcher   *dispatch.Dispatcher
	Registry     *Registry
	Lease        *lease.Manager
	PollInterval time.Duration
}

// Serve implements suture.Service.
func (w *Worker) Serve(ctx context.Context) error {
	poll := w.PollInterval
	if poll <= 0 {
		poll = time.Second
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		rec, err := w.Dispatcher.Dispatch(ctx, w.Owner, w.Kinds, w.Selector)
		if err != nil {
			logging.Error().Err(err).Str("owner", w.Owner).Msg("worker: dispatch failed")
			if !sleepOrDone(ctx, poll) {
				return ctx.Err()
			}
			continue
		}
		if rec == nil {
			if !sleepOrDone(ctx, poll) {
				return ctx.Err()
			}
			continue
		}

		w.run(ctx, rec)
	}
}

func (w *Worker) run(ctx context.Context, rec *job.Record) {
	handleCtx, cancel := context.WithTimeout(ctx, softDeadline)
	defer cancel()

	err := w.Registry.Handle(handleCtx, rec)
	if err == nil {
		if cerr := w.Lease.Complete(ctx, rec.ID, w.Owner); cerr != nil {
			logging.Error().Err(cerr).Str("job_id", rec.ID).Msg("worker: complete failed")
		}
		return
	}

	failure := AsFailure(err)
	logging.Warn().Str("job_id", rec.ID).Str("kind", rec.Kind.String()).Bool("retryable", failure.Retryable).Str("reason", failure.Reason).Msg("worker: job failed")
	if ferr := w.Lease.Fail(ctx, rec.ID, w.Owner, rec.Attempts, failure.Retryable, failure.Reason); ferr != nil {
		logging.Error().Err(ferr).Str("job_id", rec.ID).Msg("worker: fail transition failed")
	}
}

// String implements suture's optional Stringer interface.
func (w *Worker) String() string { return "pipeline-worker:" + w.Owner }

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
