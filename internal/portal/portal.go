// Copyright (c) 2026 WashPass. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package portal mounts the session machines of one browser origin.

A [Portal] is what a browser holds after the shell boots: one machine per
identity domain, each preceded by its handoff interceptor. A [Registry] maps
origin ids to portals, mounting them lazily and retiring idle ones.
*/
package portal

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/taibuivan/washpass/internal/handoff"
	"github.com/taibuivan/washpass/internal/notify"
	"github.com/taibuivan/washpass/internal/platform/constants"
	"github.com/taibuivan/washpass/internal/platform/metrics"
	"github.com/taibuivan/washpass/internal/session"
	"github.com/taibuivan/washpass/internal/session/store"
)

// Identities holds the identity client of each domain.
type Identities struct {
	Customer session.IdentityClient
	Partner  session.IdentityClient
}

// Options configures every portal of a registry.
type Options struct {
	Stores     store.Factory
	Identities Identities
	Logger     *slog.Logger

	// NotificationsURL enables device registration when set.
	NotificationsURL string

	// MaxOrigins caps the mounted portals of a registry. The least recently
	// used origin is closed to make room. Zero means DefaultMaxOrigins.
	MaxOrigins int
}

type mount struct {
	machine     *session.Machine
	interceptor *handoff.Interceptor
}

// Portal is the mounted session state of one origin.
type Portal struct {
	origin string
	logger *slog.Logger

	Customer *session.Machine
	Partner  *session.Machine

	mounts     []mount
	registrars []*notify.Registrar
	restores   sync.WaitGroup
	lastSeen   atomic.Int64
	closeOnce  sync.Once
}

// New builds the unmounted portal of origin.
func New(origin string, opts Options) *Portal {
	logger := opts.Logger.With(slog.String("origin", origin))
	sessionStore := opts.Stores(origin)

	p := &Portal{
		origin:   origin,
		logger:   logger,
		Customer: session.New(session.CustomerDomain, sessionStore, opts.Identities.Customer, logger),
		Partner:  session.New(session.PartnerDomain, sessionStore, opts.Identities.Partner, logger),
	}

	p.mounts = []mount{
		{
			machine: p.Customer,
			interceptor: handoff.New(sessionStore, session.CustomerDomain.Namespace,
				handoff.OutsidePrefix(constants.PartnerPathPrefix), logger),
		},
		{
			machine: p.Partner,
			interceptor: handoff.New(sessionStore, session.PartnerDomain.Namespace,
				handoff.UnderPrefix(constants.PartnerPathPrefix), logger),
		},
	}

	if opts.NotificationsURL != "" {
		for _, m := range p.mounts {
			p.registrars = append(p.registrars, notify.Attach(m.machine, opts.NotificationsURL, origin, logger))
		}
	}

	p.touch()
	return p
}

// Origin returns the origin id the portal serves.
func (p *Portal) Origin() string {
	return p.origin
}

/*
Mount runs each domain's handoff interceptor against loc and then starts its
restore in the background. It returns once every handoff has been applied;
callers wait on a machine's Settled channel for the restore outcome.

A handoff that cannot be persisted is logged and the domain restores from
whatever it already had stored.
*/
func (p *Portal) Mount(ctx context.Context, loc handoff.Location) {
	restoreCtx := context.WithoutCancel(ctx)

	for _, m := range p.mounts {
		adopted, err := m.interceptor.Intercept(ctx, loc)
		if err != nil {
			p.logger.WarnContext(ctx, "handoff_failed",
				slog.String("domain", m.machine.Domain().Name),
				slog.Any("error", err),
			)
		}
		if adopted {
			metrics.RecordHandoff(m.machine.Domain().Name)
		}

		p.restores.Add(1)
		go func(machine *session.Machine) {
			defer p.restores.Done()
			machine.Restore(restoreCtx)
		}(m.machine)
	}

	p.logger.DebugContext(ctx, "portal_mounted")
}

// MachineFor returns the machine owning path.
func (p *Portal) MachineFor(path string) *session.Machine {
	if handoff.UnderPrefix(constants.PartnerPathPrefix)(path) {
		return p.Partner
	}
	return p.Customer
}

// Close retires both machines and their registrars. Stored credentials are kept.
func (p *Portal) Close() {
	p.closeOnce.Do(func() {
		for _, m := range p.mounts {
			m.machine.Close()
		}
		for _, registrar := range p.registrars {
			registrar.Stop()
		}
	})
}

// Wait blocks until background restores and logout notifications finish.
func (p *Portal) Wait() {
	p.restores.Wait()
	for _, m := range p.mounts {
		m.machine.Wait()
	}
}

func (p *Portal) touch() {
	p.lastSeen.Store(time.Now().UnixNano())
}

func (p *Portal) idleSince() time.Time {
	return time.Unix(0, p.lastSeen.Load())
}
