// Ferrex scancore
// Copyright 2026 The Ferrex Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package metrics exposes the Prometheus instrumentation for the scan
// engine (Component C9): per-kind/per-state job gauges, lifecycle
// counters, lease-expiry counters, and dispatcher throughput.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scan_jobs_enqueued_total",
			Help: "Total jobs accepted by the enqueue engine, by kind and priority.",
		},
		[]string{"kind", "priority"},
	)

	JobsMerged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scan_jobs_merged_total",
			Help: "Total enqueue requests merged into an existing job via dedupe key.",
		},
		[]string{"kind"},
	)

	JobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scan_jobs_completed_total",
			Help: "Total jobs that reached the Completed state.",
		},
		[]string{"kind"},
	)

	JobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scan_jobs_failed_total",
			Help: "Total stage-handler failures, by kind and whether they were retryable.",
		},
		[]string{"kind", "retryable"},
	)

	JobsDeadLettered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scan_jobs_dead_lettered_total",
			Help: "Total jobs moved to DeadLetter after exhausting retries or hitting a Permanent failure.",
		},
		[]string{"kind"},
	)

	LeaseExpirations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scan_lease_expirations_total",
			Help: "Total leases reclaimed by the expiry sweep because a worker stopped renewing.",
		},
	)

	JobsByState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "scan_jobs_in_state",
			Help: "Current number of jobs in each state, by kind.",
		},
		[]string{"kind", "state"},
	)

	DispatchLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scan_dispatch_latency_seconds",
			Help:    "Time between a job becoming Ready and being Leased.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind", "priority"},
	)

	StageHandlerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scan_stage_handler_duration_seconds",
			Help:    "Wall-clock duration of a stage handler invocation.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"kind"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "scan_circuit_breaker_state",
			Help: "Circuit breaker state per external collaborator (0=closed, 1=half-open, 2=open).",
		},
		[]string{"name"},
	)

	BundleFinalizations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scan_bundle_finalizations_total",
			Help: "Total series bundles finalized by the bundle tracker.",
		},
	)

	WatcherOverflows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scan_watcher_overflows_total",
			Help: "Total fsnotify event-channel overflows detected per watched root.",
		},
		[]string{"library"},
	)
)

// RecordDispatch records the time a job spent Ready before being Leased.
func RecordDispatch(kind, priority string, waited time.Duration) {
	DispatchLatency.WithLabelValues(kind, priority).Observe(waited.Seconds())
}

// RecordStageHandler records a stage handler's execution time.
func RecordStageHandler(kind string, d time.Duration) {
	StageHandlerDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// RecordFailure increments the failure counter for kind, split by retryability.
func RecordFailure(kind string, retryable bool) {
	r := "false"
	if retryable {
		r = "true"
	}
	JobsFailed.WithLabelValues(kind, r).Inc()
}
