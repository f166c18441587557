// Copyright (c) 2026 WashPass. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package session implements the client-side Session State Machine.

One [Machine] exists per identity domain (customer/admin, partner). It owns
the in-memory session tuple, persists tokens through a [store.Store] and talks
to the identity backend through an [IdentityClient].

# Ordering

Every user-issued transition (Login, Register, Logout, SetAuth) and Close
increments a generation counter. An asynchronous call captures the generation
when it is issued and drops its result if the counter moved in the meantime,
so a slow restore or login can never resurrect a session the user already
left. Stale results touch neither memory nor storage.

# Subscribers

Subscribers are called synchronously, in transition order, only when the
authenticated flag or the principal changes. They must not call transition
methods of the same machine.
*/
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/taibuivan/washpass/internal/platform/constants"
	"github.com/taibuivan/washpass/internal/platform/metrics"
	"github.com/taibuivan/washpass/internal/platform/sec"
	"github.com/taibuivan/washpass/internal/session/store"
)

var (
	// ErrSuperseded is returned by Login and Register when a later transition
	// made the result stale. The session reflects the later transition.
	ErrSuperseded = errors.New("session: superseded by a newer transition")

	// ErrMalformedGrant is returned when the identity backend answers without
	// a usable token or principal.
	ErrMalformedGrant = errors.New("session: identity response is missing token or principal")
)

type subscriber struct {
	id uint64
	fn func(Snapshot)
}

// Machine is the Session State Machine of one identity domain.
// It is safe for concurrent use.
type Machine struct {
	domain   Domain
	store    store.Store
	identity IdentityClient
	logger   *slog.Logger

	mu         sync.Mutex
	state      State
	principal  *Principal
	creds      store.Credentials
	generation uint64
	pending    int

	settled    chan struct{}
	settleOnce sync.Once

	subscribers   []subscriber
	nextSub       uint64
	dispatchMu    sync.Mutex
	lastAuth      bool
	lastPrincipal *Principal

	background sync.WaitGroup
}

// New constructs a Machine in the UNINITIALIZED state. Call Restore once to mount it.
func New(domain Domain, sessionStore store.Store, identity IdentityClient, logger *slog.Logger) *Machine {
	return &Machine{
		domain:   domain,
		store:    sessionStore,
		identity: identity,
		logger:   logger.With(slog.String("domain", domain.Name)),
		state:    StateUninitialized,
		settled:  make(chan struct{}),
	}
}

// Domain returns the identity domain this machine serves.
func (m *Machine) Domain() Domain {
	return m.domain
}

// # Observation

// Snapshot returns a copy of the current session tuple.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Settled returns a channel closed the first time loading becomes false
// after construction. It closes exactly once, whatever the restore outcome.
func (m *Machine) Settled() <-chan struct{} {
	return m.settled
}

// Subscribe registers fn for {authenticated, principal} changes and returns
// a function that removes it.
func (m *Machine) Subscribe(fn func(Snapshot)) (cancel func()) {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subscribers = append(m.subscribers, subscriber{id: id, fn: fn})
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, sub := range m.subscribers {
			if sub.id == id {
				m.subscribers = append(m.subscribers[:i], m.subscribers[i+1:]...)
				return
			}
		}
	}
}

// # Transitions

/*
Restore mounts the machine from the Session Store.

Absent token: ANONYMOUS without any network call. Present token: LOADING,
then the identity backend decides. Any failure clears this domain's storage
and lands in ANONYMOUS; it is never reported as an error. Calling Restore on
an authenticated machine revalidates the token without passing through LOADING.

While a Login or Register is in flight, Restore does nothing: the pending
call owns the LOADING state and settles it.
*/
func (m *Machine) Restore(ctx context.Context) Snapshot {
	m.mu.Lock()
	if m.pending > 0 {
		m.logger.DebugContext(ctx, "session_restore_skipped")
		m.record("restore", metrics.OutcomeSuperseded)
		return m.unlockAndPublish()
	}
	generation := m.generation

	creds, err := m.store.Get(ctx, m.domain.Namespace)
	if err != nil {
		if !errors.Is(err, store.ErrNoCredentials) {
			m.logger.WarnContext(ctx, "session_store_read_failed", slog.Any("error", err))
		}
		m.becomeAnonymousLocked()
		m.record("restore", metrics.OutcomeAnonymous)
		return m.unlockAndPublish()
	}

	revalidating := m.state == StateAuthenticated && m.creds.AccessToken == creds.AccessToken
	if !revalidating {
		m.state = StateLoading
		m.principal = nil
		m.creds = creds
	}
	m.unlockAndPublish()

	principal, err := m.identity.FetchCurrentPrincipal(ctx, creds.AccessToken)

	m.mu.Lock()
	if generation != m.generation || m.pending > 0 {
		m.logger.DebugContext(ctx, "session_restore_discarded")
		m.record("restore", metrics.OutcomeSuperseded)
		return m.unlockAndPublish()
	}

	if err == nil {
		err = checkPrincipal(principal)
	}
	if err != nil {
		m.logger.InfoContext(ctx, "session_restore_failed", slog.Any("error", err))
		if clearErr := m.store.Clear(context.WithoutCancel(ctx), m.domain.Namespace); clearErr != nil {
			m.logger.ErrorContext(ctx, "session_store_clear_failed", slog.Any("error", clearErr))
		}
		m.becomeAnonymousLocked()
		m.record("restore", metrics.OutcomeFailed)
		return m.unlockAndPublish()
	}

	m.becomeAuthenticatedLocked(principal, creds)
	m.record("restore", metrics.OutcomeAuthenticated)
	m.logger.InfoContext(ctx, "session_restored", slog.Int64("principal_id", principal.ID))
	return m.unlockAndPublish()
}

// Login authenticates with credentials. Failures are returned to the caller
// and leave the machine ANONYMOUS without touching storage.
func (m *Machine) Login(ctx context.Context, input LoginInput) (Snapshot, error) {
	return m.authenticate(ctx, "login", func(ctx context.Context) (Grant, error) {
		return m.identity.Login(ctx, input)
	})
}

// Register enrolls a new account and signs it in. Same contract as Login.
func (m *Machine) Register(ctx context.Context, input RegisterInput) (Snapshot, error) {
	return m.authenticate(ctx, "register", func(ctx context.Context) (Grant, error) {
		return m.identity.Register(ctx, input)
	})
}

func (m *Machine) authenticate(ctx context.Context, operation string, call func(context.Context) (Grant, error)) (Snapshot, error) {
	m.mu.Lock()
	m.generation++
	m.pending++
	generation := m.generation
	m.state = StateLoading
	m.principal = nil
	m.creds = store.Credentials{}
	m.unlockAndPublish()

	grant, err := call(ctx)

	m.mu.Lock()
	m.pending--
	if generation != m.generation {
		m.logger.InfoContext(ctx, "session_result_discarded", slog.String("operation", operation))
		m.record(operation, metrics.OutcomeSuperseded)
		m.mu.Unlock()
		return m.Snapshot(), ErrSuperseded
	}

	if err == nil {
		err = checkGrant(grant)
	}
	if err == nil {
		err = m.store.Set(ctx, m.domain.Namespace, grant.Credentials)
	}
	if err != nil {
		m.becomeAnonymousLocked()
		m.record(operation, metrics.OutcomeFailed)
		snapshot := m.unlockAndPublish()
		return snapshot, fmt.Errorf("session: %s failed: %w", operation, err)
	}

	m.becomeAuthenticatedLocked(grant.Principal, grant.Credentials)
	m.record(operation, metrics.OutcomeAuthenticated)
	m.logger.InfoContext(ctx, "session_authenticated",
		slog.String("operation", operation),
		slog.Int64("principal_id", grant.Principal.ID),
		slog.String("role", string(grant.Principal.Role)),
	)
	return m.unlockAndPublish(), nil
}

/*
Logout ends the session locally and immediately.

Storage is cleared and the machine is ANONYMOUS before Logout returns. The
identity backend is told in the background; its failure is logged and never
reverses the local transition.
*/
func (m *Machine) Logout(ctx context.Context) {
	m.mu.Lock()
	m.generation++

	token := m.creds.AccessToken
	if token == "" {
		if stored, err := m.store.Get(ctx, m.domain.Namespace); err == nil {
			token = stored.AccessToken
		}
	}

	if err := m.store.Clear(ctx, m.domain.Namespace); err != nil {
		m.logger.ErrorContext(ctx, "session_store_clear_failed", slog.Any("error", err))
	}
	m.becomeAnonymousLocked()
	m.record("logout", metrics.OutcomeAnonymous)
	m.unlockAndPublish()

	m.logger.InfoContext(ctx, "session_logged_out")

	if token != "" {
		m.notifyLogout(ctx, token)
	}
}

// SetAuth adopts a principal and token obtained outside Login, e.g. through
// a handoff that was already validated, without calling the identity backend.
func (m *Machine) SetAuth(ctx context.Context, principal Principal, creds store.Credentials) error {
	if err := checkGrant(Grant{Principal: principal, Credentials: creds}); err != nil {
		return err
	}

	m.mu.Lock()
	if err := m.store.Set(ctx, m.domain.Namespace, creds); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("session: set auth failed: %w", err)
	}

	m.generation++
	m.becomeAuthenticatedLocked(principal, creds)
	m.record("set_auth", metrics.OutcomeAuthenticated)
	m.unlockAndPublish()
	return nil
}

// Invalidate drops the session after a request reported token as invalid.
// It does nothing, and reports false, if token is no longer the current one.
func (m *Machine) Invalidate(ctx context.Context, token string) bool {
	m.mu.Lock()
	if m.state != StateAuthenticated || token == "" || m.creds.AccessToken != token {
		m.mu.Unlock()
		return false
	}

	m.generation++

	// A newer token may have been written by a handoff; leave it alone.
	if stored, err := m.store.Get(ctx, m.domain.Namespace); err == nil && stored.AccessToken == token {
		if err := m.store.Clear(ctx, m.domain.Namespace); err != nil {
			m.logger.ErrorContext(ctx, "session_store_clear_failed", slog.Any("error", err))
		}
	}

	m.becomeAnonymousLocked()
	m.record("invalidate", metrics.OutcomeAnonymous)
	m.unlockAndPublish()
	m.logger.InfoContext(ctx, "session_invalidated")
	return true
}

// Close retires the machine: in-flight results are discarded, subscribers
// are dropped and Settled is released. Storage is left as is.
func (m *Machine) Close() {
	m.mu.Lock()
	m.generation++
	m.subscribers = nil
	m.settle()
	m.mu.Unlock()
}

// Wait blocks until background logout notifications have finished.
func (m *Machine) Wait() {
	m.background.Wait()
}

// # Internal Helpers

func (m *Machine) notifyLogout(ctx context.Context, token string) {
	m.background.Add(1)
	go func() {
		defer m.background.Done()

		notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.LogoutNotifyTimeout)
		defer cancel()

		if err := m.identity.Logout(notifyCtx, token); err != nil {
			m.logger.WarnContext(notifyCtx, "session_logout_notify_failed", slog.Any("error", err))
		}
	}()
}

func (m *Machine) record(operation, outcome string) {
	metrics.RecordTransition(m.domain.Name, operation, outcome)
}

func (m *Machine) becomeAnonymousLocked() {
	m.state = StateAnonymous
	m.principal = nil
	m.creds = store.Credentials{}
	m.settle()
}

func (m *Machine) becomeAuthenticatedLocked(principal Principal, creds store.Credentials) {
	principal.Role = principal.Role.Normalize()
	m.state = StateAuthenticated
	m.principal = &principal
	m.creds = creds
	m.settle()
}

func (m *Machine) settle() {
	m.settleOnce.Do(func() { close(m.settled) })
}

func (m *Machine) snapshotLocked() Snapshot {
	snapshot := Snapshot{
		State:         m.state,
		Loading:       m.state == StateLoading || m.state == StateUninitialized,
		Authenticated: m.state == StateAuthenticated,
	}
	if m.principal != nil {
		principal := *m.principal
		snapshot.Principal = &principal
	}
	if m.state == StateAuthenticated || m.state == StateLoading {
		snapshot.Token = m.creds.AccessToken
	}
	return snapshot
}

// unlockAndPublish releases mu and, if the authenticated flag or principal
// changed, dispatches the snapshot to subscribers. dispatchMu is taken before
// mu is released so dispatches keep transition order.
func (m *Machine) unlockAndPublish() Snapshot {
	snapshot := m.snapshotLocked()

	if snapshot.Authenticated == m.lastAuth && samePrincipal(snapshot.Principal, m.lastPrincipal) {
		m.mu.Unlock()
		return snapshot
	}

	m.lastAuth = snapshot.Authenticated
	m.lastPrincipal = snapshot.Principal
	subscribers := make([]subscriber, len(m.subscribers))
	copy(subscribers, m.subscribers)

	m.dispatchMu.Lock()
	m.mu.Unlock()
	defer m.dispatchMu.Unlock()

	for _, sub := range subscribers {
		sub.fn(snapshot)
	}
	return snapshot
}

func samePrincipal(a, b *Principal) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func checkGrant(grant Grant) error {
	if grant.Credentials.AccessToken == "" {
		return ErrMalformedGrant
	}
	return checkPrincipal(grant.Principal)
}

func checkPrincipal(principal Principal) error {
	if principal.ID == 0 {
		return ErrMalformedGrant
	}
	if _, ok := sec.ParseRole(string(principal.Role)); !ok {
		return fmt.Errorf("%w: unknown role %q", ErrMalformedGrant, principal.Role)
	}
	return nil
}
