// Ferrex scancore
// Copyright 2026 The Ferrex Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package events

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmnats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/ferrex/scancore/internal/logging"
)

// NATSMirrorConfig configures the optional NATS mirror (Open Question
// resolution: events.nats_mirror_enabled is a runtime toggle, not a
// build tag, so a single scancore binary can turn it on or off without
// a separate build — unlike teacher's `//go:build nats` split).
type NATSMirrorConfig struct {
	Enabled bool
	// URL is the NATS server to connect to. Empty starts an embedded
	// single-process server (teacher's EmbeddedServer, grounded on
	// nats-server/v2), suitable for a single-instance deployment with
	// no external NATS dependency.
	URL     string
	Subject string
}

func (c NATSMirrorConfig) subject() string {
	if c.Subject == "" {
		return "scancore.job-events"
	}
	return c.Subject
}

// NATSMirror publishes every Event onto a NATS subject via watermill's
// NATS publisher, grounded on teacher's eventprocessor.Publisher
// (reconnect handling, JetStream disabled here since the mirror is a
// fire-and-forget observability feed, not a durable log).
type NATSMirror struct {
	publisher message.Publisher
	subject   string
	embedded  *embeddedServer
}

// NewNATSMirror connects (or, if cfg.URL is empty, starts an embedded
// server and connects) a NATS mirror publisher.
func NewNATSMirror(cfg NATSMirrorConfig) (*NATSMirror, error) {
	var embedded *embeddedServer
	url := cfg.URL
	if url == "" {
		srv, err := startEmbeddedServer()
		if err != nil {
			return nil, fmt.Errorf("events: start embedded NATS server: %w", err)
		}
		embedded = srv
		url = srv.clientURL
	}

	logger := watermill.NewStdLogger(false, false)
	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(10),
		natsgo.ReconnectWait(time.Second),
		natsgo.ErrorHandler(func(nc *natsgo.Conn, sub *natsgo.Subscription, err error) {
			logging.Warn().Err(err).Msg("events: nats mirror connection error")
		}),
	}

	pub, err := wmnats.NewPublisher(wmnats.PublisherConfig{
		URL:         url,
		NatsOptions: natsOpts,
		Marshaler:   &wmnats.NATSMarshaler{},
		JetStream:   wmnats.JetStreamConfig{Disabled: true},
	}, logger)
	if err != nil {
		if embedded != nil {
			embedded.stop()
		}
		return nil, fmt.Errorf("events: connect nats mirror: %w", err)
	}

	return &NATSMirror{publisher: pub, subject: cfg.subject(), embedded: embedded}, nil
}

func (m *NATSMirror) Mirror(_ context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return m.publisher.Publish(m.subject, message.NewMessage(uuid.NewString(), payload))
}

func (m *NATSMirror) Close() error {
	err := m.publisher.Close()
	if m.embedded != nil {
		m.embedded.stop()
	}
	return err
}
