// Ferrex scancore
// Copyright 2026 The Ferrex Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package events

import (
	"fmt"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
)

// embeddedServer wraps an in-process NATS server, grounded on teacher's
// eventprocessor.EmbeddedServer. JetStream is left off here — the mirror
// only needs core pub/sub, not a durable stream.
type embeddedServer struct {
	srv       *natsserver.Server
	clientURL string
}

func startEmbeddedServer() (*embeddedServer, error) {
	opts := &natsserver.Options{
		ServerName: "scancore-events",
		Host:       "127.0.0.1",
		Port:       -1, // let the OS pick a free port
		NoLog:      true,
		NoSigs:     true,
	}

	srv, err := natsserver.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("create embedded nats server: %w", err)
	}
	srv.ConfigureLogger()
	go srv.Start()

	if !srv.ReadyForConnections(10 * time.Second) {
		srv.Shutdown()
		return nil, fmt.Errorf("embedded nats server did not become ready")
	}

	return &embeddedServer{srv: srv, clientURL: srv.ClientURL()}, nil
}

func (e *embeddedServer) stop() {
	e.srv.Shutdown()
	e.srv.WaitForShutdown()
}
