// Ferrex scancore
// Copyright 2026 The Ferrex Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	secondTimeout = time.Second
	tickInterval  = 10 * time.Millisecond
)

func TestBusDeliversPublishedEventToSubscriber(t *testing.T) {
	bus := New(nil)
	defer bus.Close()

	var mu sync.Mutex
	var received []Event
	require.NoError(t, bus.Subscribe("test", func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, ev)
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bus.Run(ctx)
	<-bus.router.Running()

	bus.Publish(ctx, Event{Timestamp: time.Now().UTC(), Event: Enqueued, JobID: "job-1"})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "job-1", received[0].JobID)
}

type recordingMirror struct {
	mu  sync.Mutex
	got []Event
}

func (m *recordingMirror) Mirror(_ context.Context, ev Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.got = append(m.got, ev)
	return nil
}

func (m *recordingMirror) Close() error { return nil }

func TestBusForwardsToMirror(t *testing.T) {
	mirror := &recordingMirror{}
	bus := New(mirror)
	defer bus.Close()

	bus.Publish(context.Background(), Event{Event: Completed, JobID: "job-2"})

	mirror.mu.Lock()
	defer mirror.mu.Unlock()
	require.Len(t, mirror.got, 1)
	assert.Equal(t, "job-2", mirror.got[0].JobID)
}
