// Ferrex scancore
// Copyright 2026 The Ferrex Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/ferrex/scancore/internal/logging"
)

const eventsTailWriteWait = 10 * time.Second

var eventsTailUpgrader = websocket.Upgrader{
	ReadBufferSize:   1024,
	WriteBufferSize:  1024,
	HandshakeTimeout: 10 * time.Second,
	CheckOrigin:      func(r *http.Request) bool { return r.Header.Get("Origin") == "" },
}

// handleEventsTail streams every job lifecycle event (§6's wire format)
// to a websocket client as newline-delimited JSON, grounded on teacher's
// handlers_core.go WebSocket handler (same upgrader shape, same
// register-then-pump idiom) but registering with scan-core's own
// events.TailHub instead of the teacher's playback-stats hub.
func (s *Server) handleEventsTail(w http.ResponseWriter, r *http.Request) {
	if s.tailHub == nil {
		writeError(w, http.StatusServiceUnavailable, "event tail is not configured on this server")
		return
	}

	conn, err := eventsTailUpgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error().Err(err).Msg("events tail: websocket upgrade")
		return
	}
	defer conn.Close()

	out, unregister := s.tailHub.Register()
	defer unregister()

	for {
		select {
		case ev, ok := <-out:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(eventsTailWriteWait))
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}
