// Ferrex scancore
// Copyright 2026 The Ferrex Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package events

import "sync"

// TailHub fans out every bus event to a dynamic set of live-tail
// subscribers — the admin API's websocket event tail, where clients
// connect and disconnect for the life of the process. Grounded on
// teacher's internal/websocket.Hub Register/Unregister idiom; unlike
// the teacher's hub, which runs its own priority-select event loop,
// TailHub just guards a client set with a mutex, since a pure fanout
// has no ordering concern that loop was guarding against.
//
// TailHub exists because watermill's message.Router — what Bus.Subscribe
// registers against — only accepts new handlers before Run starts. A
// websocket client connecting after the bus is already running can't
// call Bus.Subscribe directly; it registers with TailHub instead, which
// was itself added as the bus's one long-lived subscriber at startup.
type TailHub struct {
	mu      sync.Mutex
	clients map[chan Event]struct{}
}

// NewTailHub returns an empty TailHub.
func NewTailHub() *TailHub {
	return &TailHub{clients: make(map[chan Event]struct{})}
}

// Register returns a channel that receives every future bus event, and
// an unregister func the caller must call exactly once when done.
func (h *TailHub) Register() (<-chan Event, func()) {
	ch := make(chan Event, 64)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.clients[ch]; ok {
			delete(h.clients, ch)
			close(ch)
		}
	}
}

func (h *TailHub) dispatch(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- ev:
		default:
			// Slow tail client; drop rather than block the bus.
		}
	}
}

// SubscribeTailHub wires hub as a Bus subscriber. Call once, before Run.
func SubscribeTailHub(bus *Bus, hub *TailHub) error {
	return bus.Subscribe("tail-hub", hub.dispatch)
}
