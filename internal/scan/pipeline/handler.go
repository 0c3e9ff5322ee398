// Ferrex scancore
// Copyright 2026 The Ferrex Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package pipeline implements the per-kind stage handlers (C5): the
// actual work a dispatched job performs, and the downstream jobs it
// enqueues on success.
package pipeline

import (
	"context"
	"fmt"

	"github.com/ferrex/scancore/internal/scan/job"
)

// Failure is the typed result a handler returns for anything short of
// success (§7). The lease manager is the only place that turns this
// into a state transition.
type Failure struct {
	Retryable bool
	Reason    string
}

func (f *Failure) Error() string {
	kind := "permanent"
	if f.Retryable {
		kind = "retryable"
	}
	return fmt.Sprintf("pipeline: %s failure: %s", kind, f.Reason)
}

// Retryable builds a Failure for a transient condition (network, rate
// limit, prober restart).
func Retryable(reason string) *Failure { return &Failure{Retryable: true, Reason: reason} }

// Permanent builds a Failure for a condition no retry can fix
// (malformed media, 4xx metadata response, path vanished).
func Permanent(reason string) *Failure { return &Failure{Retryable: false, Reason: reason} }

// Handler executes one dispatched job. A nil error means the job is
// Completed; a non-nil error should be a *Failure so the lease manager
// can classify it — any other error is treated as retryable.
type Handler interface {
	Handle(ctx context.Context, rec *job.Record) error
}

// HandlerFunc adapts a function to a Handler.
type HandlerFunc func(ctx context.Context, rec *job.Record) error

func (f HandlerFunc) Handle(ctx context.Context, rec *job.Record) error { return f(ctx, rec) }

// Registry dispatches a job record to the Handler registered for its
// Kind.
type Registry struct {
	handlers map[job.Kind]Handler
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[job.Kind]Handler)}
}

// Register binds a handler to a kind, overwriting any prior binding.
func (r *Registry) Register(kind job.Kind, h Handler) {
	r.handlers[kind] = h
}

// ErrNoHandler reports a kind with no registered handler — a wiring bug,
// not a runtime condition a job's retry policy should paper over.
type ErrNoHandler struct{ Kind job.Kind }

func (e ErrNoHandler) Error() string { return fmt.Sprintf("pipeline: no handler registered for %s", e.Kind) }

// Handle dispatches rec to its registered handler.
func (r *Registry) Handle(ctx context.Context, rec *job.Record) error {
	h, ok := r.handlers[rec.Kind]
	if !ok {
		return ErrNoHandler{Kind: rec.Kind}
	}
	return h.Handle(ctx, rec)
}

// AsFailure normalizes any handler error into a *Failure, defaulting to
// retryable for errors the handler didn't classify (§7's Infrastructure
// category: unknown failures get the benefit of a retry).
func AsFailure(err error) *Failure {
	if err == nil {
		return nil
	}
	if f, ok := err.(*Failure); ok {
		return f
	}
	if nh, ok := err.(ErrNoHandler); ok {
		return Permanent(nh.Error())
	}
	return Retryable(err.Error())
}
