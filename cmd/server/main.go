// Ferrex scancore
// Copyright 2026 The Ferrex Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Command server runs scancore's scan-orchestration engine: the job
// store, dispatcher, lease manager, pipeline workers, filesystem
// watcher, event bus, and admin HTTP API, all under one supervisor
// tree. Grounded on teacher's cmd/server/main.go initialization order:
// config, then logging, then storage, then the collaborating
// subsystems, then the supervisor tree, then signal handling.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/ferrex/scancore/internal/api"
	"github.com/ferrex/scancore/internal/config"
	"github.com/ferrex/scancore/internal/hls"
	"github.com/ferrex/scancore/internal/logging"
	"github.com/ferrex/scancore/internal/media"
	"github.com/ferrex/scancore/internal/scan/bundle"
	"github.com/ferrex/scancore/internal/scan/dispatch"
	"github.com/ferrex/scancore/internal/scan/enqueue"
	"github.com/ferrex/scancore/internal/scan/events"
	"github.com/ferrex/scancore/internal/scan/fsadapter"
	"github.com/ferrex/scancore/internal/scan/index"
	"github.com/ferrex/scancore/internal/scan/job"
	"github.com/ferrex/scancore/internal/scan/lease"
	"github.com/ferrex/scancore/internal/scan/pipeline"
	"github.com/ferrex/scancore/internal/scan/store"
	"github.com/ferrex/scancore/internal/scan/watch"
	"github.com/ferrex/scancore/internal/supervisor"
	"github.com/ferrex/scancore/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "scancore: load config:", err)
		os.Exit(1)
	}

	logging.Init(cfg.Logging.ToLogging())
	logging.Info().Msg("scancore: starting")

	st, err := store.Open(store.Config{
		Path:      cfg.Database.Path,
		MaxMemory: cfg.Database.MaxMemory,
		Threads:   cfg.Database.Threads,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("scancore: open job store")
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Error().Err(err).Msg("scancore: close job store")
		}
	}()

	idx, err := index.Open(st.Conn())
	if err != nil {
		logging.Fatal().Err(err).Msg("scancore: open index store")
	}

	var mirror events.Mirror
	if cfg.Events.NATSMirror.Enabled {
		m, err := events.NewNATSMirror(events.NATSMirrorConfig{
			Enabled: cfg.Events.NATSMirror.Enabled,
			URL:     cfg.Events.NATSMirror.URL,
			Subject: cfg.Events.NATSMirror.Subject,
		})
		if err != nil {
			logging.Fatal().Err(err).Msg("scancore: start NATS mirror")
		}
		mirror = m
		defer func() {
			if err := m.Close(); err != nil {
				logging.Error().Err(err).Msg("scancore: close NATS mirror")
			}
		}()
	}

	bus := events.New(mirror)
	tailHub := events.NewTailHub()
	bundleTracker := bundle.New()

	if err := events.SubscribeBundleTracker(bus, bundleTracker); err != nil {
		logging.Fatal().Err(err).Msg("scancore: subscribe bundle tracker")
	}
	if err := events.SubscribeMetrics(bus); err != nil {
		logging.Fatal().Err(err).Msg("scancore: subscribe metrics")
	}
	if err := events.SubscribeTailHub(bus, tailHub); err != nil {
		logging.Fatal().Err(err).Msg("scancore: subscribe tail hub")
	}

	enqueuer := enqueue.New(st, cfg, events.EnqueuePublisher{Bus: bus})
	leaseManager := lease.New(st, lease.Config{
		MaxAttempts: cfg.Lease.MaxAttempts,
		Backoff: lease.BackoffConfig{
			Base:   cfg.Lease.Backoff.Base,
			Max:    cfg.Lease.Backoff.Max,
			Jitter: cfg.Lease.Backoff.Jitter,
		},
	}, events.LeasePublisher{Bus: bus})
	dispatcher := dispatch.New(st, dispatch.Config{
		Weights:    priorityWeights(cfg.Dispatch.Weights),
		LeaseTTL:   cfg.Dispatch.LeaseTTL,
		Candidates: cfg.Dispatch.Candidates,
	})
	sweep := lease.NewExpirySweep(st, cfg.Dispatch.LeaseTTL)

	registry := buildRegistry(cfg, enqueuer, idx, bundleTracker)

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("scancore: build supervisor tree")
	}

	tree.AddStoreService(sweep)
	tree.AddWorkerService(bus)
	tree.AddWorkerService(&events.ThroughputTicker{Bus: bus, Interval: cfg.Events.ThroughputTick})

	for _, kind := range job.AllKinds() {
		worker := &pipeline.Worker{
			Owner:        "scancore-worker-" + kind.String(),
			Kinds:        []job.Kind{kind},
			Dispatcher:   dispatcher,
			Registry:     registry,
			Lease:        leaseManager,
			PollInterval: time.Second,
		}
		tree.AddWorkerService(worker)
	}

	watcher, err := buildWatcher(cfg, enqueuer, idx)
	if err != nil {
		logging.Fatal().Err(err).Msg("scancore: build filesystem watcher")
	}
	if watcher != nil {
		tree.AddWorkerService(watcher)
	}

	transcoder := hls.NewHTTPTranscodeRequester(cfg.Media.TranscodeURL, &http.Client{Timeout: cfg.Media.MetadataTimeout})
	apiServer := api.New(api.Config{
		CORSOrigins:        cfg.Server.CORSOrigins,
		RateLimitPerMinute: cfg.Server.RateLimitPerMinute,
	}, st, enqueuer, tailHub, cfg).WithTranscodeRequester(transcoder)

	httpServer := &http.Server{
		Addr:         cfg.Server.BindAddr,
		Handler:      apiServer.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}
	tree.AddAPIService(services.NewHTTPServerService("admin-api", httpServer, cfg.Server.ShutdownTimeout))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logging.Info().Msg("scancore: shutdown signal received")
		cancel()
	}()

	errCh := tree.ServeBackground(ctx)
	logging.Info().Str("addr", cfg.Server.BindAddr).Int("libraries", len(cfg.Libraries)).Msg("scancore: running")

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("scancore: supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("scancore: services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("scancore: service failed to stop")
		}
	}

	logging.Info().Msg("scancore: stopped")
}

// priorityWeights converts the config's string-keyed band weights into
// dispatch.Weights; unset bands fall back to job.Priority.Weight().
func priorityWeights(bands map[string]int) dispatch.Weights {
	if len(bands) == 0 {
		return dispatch.DefaultWeights()
	}
	w := make(dispatch.Weights, len(bands))
	names := map[string]job.Priority{"P0": job.P0, "P1": job.P1, "P2": job.P2, "P3": job.P3}
	for name, weight := range bands {
		if p, ok := names[name]; ok {
			w[p] = weight
		}
	}
	return w
}

func buildRegistry(cfg *config.Config, enqueuer *enqueue.Engine, idx *index.Store, bundleTracker *bundle.Tracker) *pipeline.Registry {
	prober := media.NewProber(cfg.Media.FFProbePath, cfg.Media.FFProbeTimeout)
	metadataProvider := media.NewMetadataProvider(cfg.Media.MetadataProviderURL, cfg.Media.MetadataAPIKey, cfg.Media.MetadataTimeout)
	imageFetcher := media.NewImageFetcher(cfg.Media.ImageProviderURL, cfg.Media.ImageCacheDir, &http.Client{Timeout: cfg.Media.MetadataTimeout})
	lister := fsadapter.NewLister()

	registry := pipeline.NewRegistry()

	registry.Register(job.KindFolderScan, &pipeline.FolderScanHandler{
		Lister:        lister,
		Hashes:        idx,
		Enqueuer:      enqueuer,
		Bundle:        bundleTracker,
		Fingerprinter: fsadapter.Fingerprint,
	})
	registry.Register(job.KindSeriesResolve, &pipeline.SeriesResolveHandler{
		Resolver: idx,
	})
	registry.Register(job.KindMediaAnalyze, &pipeline.MediaAnalyzeHandler{
		Prober:   prober,
		Store:    idx,
		Enqueuer: enqueuer,
		Sem:      semaphore.NewWeighted(cfg.Media.ProbeConcurrency),
		Breaker:  pipeline.NewProberBreaker(),
	})
	registry.Register(job.KindMetadataEnrich, &pipeline.MetadataEnrichHandler{
		Provider: metadataProvider,
		Store:    idx,
		Enqueuer: enqueuer,
		Limiter:  rate.NewLimiter(rate.Limit(cfg.Media.MetadataRatePerSec), 1),
	})
	registry.Register(job.KindEpisodeMatch, &pipeline.EpisodeMatchHandler{
		Series:   idx,
		Lookup:   idx,
		Enqueuer: enqueuer,
	})
	registry.Register(job.KindIndexUpsert, &pipeline.IndexUpsertHandler{
		Store:  idx,
		Bundle: bundleTracker,
	})
	registry.Register(job.KindImageFetch, &pipeline.ImageFetchHandler{
		Fetcher: imageFetcher,
	})

	return registry
}

func buildWatcher(cfg *config.Config, enqueuer *enqueue.Engine, idx *index.Store) (*watch.Watcher, error) {
	if len(cfg.Libraries) == 0 {
		return nil, nil
	}

	window, err := watch.OpenCoalesceWindow(cfg.Watcher.CoalesceDBPath, cfg.Watcher.CoalesceTTL)
	if err != nil {
		return nil, fmt.Errorf("open coalesce window: %w", err)
	}

	w, err := watch.New(enqueuer, idx, window)
	if err != nil {
		return nil, fmt.Errorf("build watcher: %w", err)
	}
	w.DebounceInterval = cfg.Watcher.DebounceInterval

	for _, lib := range cfg.Libraries {
		if err := w.Watch(watch.LibraryRoot{LibraryID: lib.ID, Path: lib.Path, Kind: lib.Kind}); err != nil {
			return nil, fmt.Errorf("watch library %s: %w", lib.ID, err)
		}
	}
	return w, nil
}
