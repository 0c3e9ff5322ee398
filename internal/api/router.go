// Ferrex scancore
// Copyright 2026 The Ferrex Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api provides scancore's admin HTTP surface: queue inspection,
// scan triggering, and a live event tail, grounded on teacher's
// internal/api chi wiring (internal/api/chi_router.go,
// chi_middleware.go) but trimmed to scan-core's operator-only surface —
// there is no end-user auth layer here, just an operator-facing admin
// API.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ferrex/scancore/internal/hls"
	"github.com/ferrex/scancore/internal/scan/enqueue"
	"github.com/ferrex/scancore/internal/scan/events"
	"github.com/ferrex/scancore/internal/scan/store"
)

// Config configures the admin HTTP surface.
type Config struct {
	CORSOrigins        []string
	RateLimitPerMinute int
}

// DefaultConfig returns a secure default: no CORS origins allowed, a
// conservative rate limit, matching teacher's "empty by default"
// posture on CORS.
func DefaultConfig() Config {
	return Config{CORSOrigins: nil, RateLimitPerMinute: 120}
}

// Server is scancore's admin HTTP surface.
type Server struct {
	cfg        Config
	store      *store.Store
	enqueue    *enqueue.Engine
	tailHub    *events.TailHub
	libraries  LibraryLookup
	transcoder hls.TranscodeRequester
}

// New builds a Server. enqueue, tailHub, and libraries may be nil in
// tests that only exercise the queue-inspection routes; handleScanStart
// and handleEventsTail report 503 until they're set.
func New(cfg Config, st *store.Store, eng *enqueue.Engine, tailHub *events.TailHub, libraries LibraryLookup) *Server {
	return &Server{cfg: cfg, store: st, enqueue: eng, tailHub: tailHub, libraries: libraries}
}

// WithTranscodeRequester attaches the collaborator handlePlaybackSelect
// uses to hand variant priority hints to the transcode subsystem. A nil
// requester leaves playback reporting to just the poster-image enqueue.
func (s *Server) WithTranscodeRequester(r hls.TranscodeRequester) *Server {
	s.transcoder = r
	return s
}

// Handler builds the chi router for this Server.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.LimitByIP(rateLimitOrDefault(s.cfg.RateLimitPerMinute), time.Minute))

		r.Get("/queue", s.handleQueueInspect)
		r.Post("/queue/{id}/retry", s.handleQueueRetry)
		r.Post("/queue/purge", s.handleQueuePurge)
		r.Post("/scan", s.handleScanStart)
		r.Get("/events/tail", s.handleEventsTail)
		r.Post("/playback/select", s.handlePlaybackSelect)
	})

	return r
}

func rateLimitOrDefault(n int) int {
	if n <= 0 {
		return 120
	}
	return n
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("store unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
