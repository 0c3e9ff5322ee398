// Ferrex scancore
// Copyright 2026 The Ferrex Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/ferrex/scancore/internal/logging"
)

// Topic is the single in-process subject every job-lifecycle event is
// published on; subscribers filter by Event.Kind/Event.Event, not topic.
const Topic = "scan.job-events"

// Bus is the in-process job-lifecycle event bus, grounded on teacher's
// eventprocessor.Router: a watermill message.Router with the same
// Recoverer-first middleware ordering, wired here to an in-process
// gochannel.GoChannel pub/sub instead of the teacher's NATS transport,
// since the bus's transport is internal to a single scancore process.
type Bus struct {
	pubsub *gochannel.GoChannel
	router *message.Router
	logger watermill.LoggerAdapter

	mirror Mirror // optional; nil unless events.nats_mirror_enabled

	mu      sync.Mutex
	running bool
}

// Mirror forwards a published Event to an external system (the NATS
// mirror). Implementations must not block the publishing goroutine for
// long; the bus does not retry a failed mirror send.
type Mirror interface {
	Mirror(ctx context.Context, ev Event) error
	Close() error
}

// New builds a Bus. Call Subscribe for every subscriber, then Run.
func New(mirror Mirror) *Bus {
	logger := watermill.NewStdLogger(false, false)
	pubsub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 256,
		Persistent:          false,
	}, logger)

	router, err := message.NewRouter(message.RouterConfig{}, logger)
	if err != nil {
		// message.NewRouter only fails on an invalid RouterConfig; the
		// zero value is always valid, so this is unreachable in
		// practice. Panicking here would be worse than a nil router for
		// a bus nobody can construct wrong, so fall through.
		logging.Error().Err(err).Msg("events: router construction failed")
	}
	if router != nil {
		router.AddMiddleware(middleware.Recoverer)
	}

	return &Bus{pubsub: pubsub, router: router, logger: logger, mirror: mirror}
}

// Publish sends one event onto the bus. It is best-effort: a publish
// failure is logged, never returned to the caller's job-lifecycle code
// path, because losing an event must never affect store state (§4.9).
func (b *Bus) Publish(ctx context.Context, ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		logging.Warn().Err(err).Msg("events: marshal failed")
		return
	}
	msg := message.NewMessage(uuid.NewString(), payload)
	msg.SetContext(ctx)

	if err := b.pubsub.Publish(Topic, msg); err != nil {
		logging.Warn().Err(err).Str("event", string(ev.Event)).Msg("events: publish failed")
	}

	if b.mirror != nil {
		if err := b.mirror.Mirror(ctx, ev); err != nil {
			logging.Warn().Err(err).Str("event", string(ev.Event)).Msg("events: mirror failed")
		}
	}
}

// Subscribe registers handler to run for every event published on the
// bus. name must be unique per registration.
func (b *Bus) Subscribe(name string, handler func(Event)) error {
	if b.router == nil {
		return fmt.Errorf("events: router not available")
	}
	b.router.AddNoPublisherHandler(name, Topic, b.pubsub, func(msg *message.Message) error {
		var ev Event
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			logging.Warn().Err(err).Str("handler", name).Msg("events: unmarshal failed")
			return nil
		}
		handler(ev)
		return nil
	})
	return nil
}

// Run blocks, dispatching published events to every subscriber, until
// ctx is cancelled or Close is called.
func (b *Bus) Run(ctx context.Context) error {
	if b.router == nil {
		<-ctx.Done()
		return ctx.Err()
	}
	b.mu.Lock()
	b.running = true
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		b.running = false
		b.mu.Unlock()
	}()
	return b.router.Run(ctx)
}

// Serve implements suture.Service by delegating to Run.
func (b *Bus) Serve(ctx context.Context) error {
	return b.Run(ctx)
}

func (b *Bus) String() string { return "job-event-bus" }

// Close releases the router, pub/sub, and mirror.
func (b *Bus) Close() error {
	var firstErr error
	if b.router != nil {
		if err := b.router.Close(); err != nil {
			firstErr = err
		}
	}
	if err := b.pubsub.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if b.mirror != nil {
		if err := b.mirror.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
