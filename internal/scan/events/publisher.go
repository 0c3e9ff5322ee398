// Ferrex scancore
// Copyright 2026 The Ferrex Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package events

import (
	"context"

	"github.com/ferrex/scancore/internal/scan/job"
)

// EnqueuePublisher adapts a Bus to enqueue.EventPublisher.
type EnqueuePublisher struct{ Bus *Bus }

func (p EnqueuePublisher) PublishEnqueued(ctx context.Context, rec *job.Record) error {
	p.Bus.Publish(ctx, fromRecord(Enqueued, rec))
	return nil
}

func (p EnqueuePublisher) PublishMerged(ctx context.Context, rec *job.Record) error {
	ev := fromRecord(Merged, rec)
	ev.MergedInto = rec.ID
	p.Bus.Publish(ctx, ev)
	return nil
}

// LeasePublisher adapts a Bus to lease.EventPublisher.
type LeasePublisher struct{ Bus *Bus }

func (p LeasePublisher) PublishCompleted(ctx context.Context, rec *job.Record) error {
	p.Bus.Publish(ctx, fromRecord(Completed, rec))
	return nil
}

func (p LeasePublisher) PublishFailed(ctx context.Context, rec *job.Record, retryable bool) error {
	ev := fromRecord(Failed, rec)
	ev.Retryable = retryable
	p.Bus.Publish(ctx, ev)
	return nil
}

func (p LeasePublisher) PublishDeadLettered(ctx context.Context, rec *job.Record) error {
	p.Bus.Publish(ctx, fromRecord(DeadLettered, rec))
	return nil
}
