// Ferrex scancore
// Copyright 2026 The Ferrex Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package supervisor provides process supervision for the scan engine using
suture v4.

It implements a hierarchical supervisor tree so a crash in one layer
doesn't take down the others — a panicking stage worker shouldn't stop
the admin API from serving cached queue state:

	RootSupervisor ("scancore")
	├── StoreSupervisor ("store-layer")
	│   └── lease-expiry sweep
	├── WorkersSupervisor ("workers-layer")
	│   ├── dispatcher loop
	│   ├── per-kind stage worker pools
	│   └── file watcher
	└── APISupervisor ("api-layer")
	    └── admin HTTP server

# Usage

	logger := slog.Default()
	tree, err := supervisor.NewSupervisorTree(logger, supervisor.DefaultTreeConfig())
	if err != nil {
	    log.Fatal(err)
	}
	tree.AddWorkerService(dispatcher)
	tree.AddStoreService(leaseSweep)
	tree.AddAPIService(httpServer)
	if err := tree.Serve(ctx); err != nil {
	    log.Printf("supervisor stopped: %v", err)
	}

# Failure handling

Each service failure increments a counter that decays exponentially over
FailureDecay seconds; once the counter exceeds FailureThreshold, restarts
are delayed by FailureBackoff. A context cancellation triggers orderly
shutdown, bounded by ShutdownTimeout per service.
*/
package supervisor
