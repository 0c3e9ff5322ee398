// Ferrex scancore
// Copyright 2026 The Ferrex Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package lease

import (
	"context"
	"time"

	"github.com/ferrex/scancore/internal/logging"
	"github.com/ferrex/scancore/internal/scan/store"
)

// ExpirySweep is a suture.Service that periodically reclaims leases
// abandoned by a crashed worker (§4.4's expiry scan).
type ExpirySweep struct {
	store    *store.Store
	interval time.Duration
}

// NewExpirySweep builds a sweep that runs every interval. interval
// defaults to 30s if zero or negative.
func NewExpirySweep(st *store.Store, interval time.Duration) *ExpirySweep {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &ExpirySweep{store: st, interval: interval}
}

// Serve implements suture.Service.
func (s *ExpirySweep) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			n, err := s.store.ExpireLeases(ctx, time.Now().UTC())
			if err != nil {
				logging.Error().Err(err).Msg("lease expiry sweep failed")
				continue
			}
			if n > 0 {
				logging.Info().Int64("reclaimed", n).Msg("lease expiry sweep reclaimed stale leases")
			}
		}
	}
}

// String implements suture's optional Stringer interface.
func (s *ExpirySweep) String() string {
	return "lease-expiry-sweep"
}
