// Copyright (c) 2026 WashPass. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package portal

import (
	"context"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/taibuivan/washpass/internal/handoff"
	"github.com/taibuivan/washpass/internal/platform/constants"
	"github.com/taibuivan/washpass/internal/platform/metrics"
)

// Registry maps origin ids to mounted portals.
type Registry struct {
	opts    Options
	idleTTL time.Duration

	mu      sync.Mutex
	portals *lru.Cache[string, *Portal]

	// dropped collects portals leaving the cache while mu is held. They are
	// closed after mu is released since closing waits for their workers.
	dropped []*Portal
}

// NewRegistry creates an empty registry. Portals unused for idleTTL are
// evicted once Run is started.
func NewRegistry(opts Options, idleTTL time.Duration) *Registry {
	if opts.MaxOrigins <= 0 {
		opts.MaxOrigins = constants.DefaultMaxOrigins
	}

	r := &Registry{opts: opts, idleTTL: idleTTL}

	// Only a non-positive size fails.
	r.portals, _ = lru.NewWithEvict(opts.MaxOrigins, func(_ string, p *Portal) {
		r.dropped = append(r.dropped, p)
	})
	return r
}

/*
Resolve returns the portal of origin for a page load at loc.

The first page load of an origin mounts a portal. A later page load that
carries a handoff token is a fresh boot of the shell: the previous portal is
closed, so its in-flight results are discarded, and a new one is mounted.
*/
func (r *Registry) Resolve(ctx context.Context, origin string, loc handoff.Location) *Portal {
	r.mu.Lock()
	existing, found := r.portals.Get(origin)
	if found && !carriesHandoff(loc) {
		existing.touch()
		r.mu.Unlock()
		return existing
	}

	p := New(origin, r.opts)
	r.portals.Add(origin, p)
	dropped := r.takeDroppedLocked()
	r.mu.Unlock()

	r.closeAll(dropped)
	if found {
		existing.Close()
		r.opts.Logger.InfoContext(ctx, "portal_remounted", slog.String("origin", origin))
	}

	p.Mount(ctx, loc)
	return p
}

// Lookup returns the mounted portal of origin, if any.
func (r *Registry) Lookup(origin string) (*Portal, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.portals.Get(origin)
	if ok {
		p.touch()
	}
	return p, ok
}

// Len returns the number of mounted portals.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.portals.Len()
}

// Run evicts idle portals until ctx is cancelled.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(constants.OriginSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.Sweep(time.Now())
		case <-ctx.Done():
			return
		}
	}
}

// Sweep closes and forgets every portal idle for longer than the TTL at now.
func (r *Registry) Sweep(now time.Time) int {
	r.mu.Lock()
	for _, origin := range r.portals.Keys() {
		if p, ok := r.portals.Peek(origin); ok && now.Sub(p.idleSince()) > r.idleTTL {
			r.portals.Remove(origin)
		}
	}
	idle := r.takeDroppedLocked()
	r.mu.Unlock()

	r.closeAll(idle)
	if len(idle) > 0 {
		r.opts.Logger.Debug("portals_evicted", slog.Int("count", len(idle)))
	}
	return len(idle)
}

// Shutdown closes every portal and waits for their background work.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	r.portals.Purge()
	portals := r.takeDroppedLocked()
	r.mu.Unlock()

	for _, p := range portals {
		p.Close()
		p.Wait()
	}
}

func (r *Registry) takeDroppedLocked() []*Portal {
	metrics.SetMountedPortals(r.portals.Len())
	dropped := r.dropped
	r.dropped = nil
	return dropped
}

func (r *Registry) closeAll(portals []*Portal) {
	for _, p := range portals {
		p.Close()
	}
}

func carriesHandoff(loc handoff.Location) bool {
	u := loc.URL()
	return u != nil && u.Query().Has(constants.HandoffParam)
}
