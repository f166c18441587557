// Copyright (c) 2026 WashPass. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/washpass/internal/platform/sec"
	"github.com/taibuivan/washpass/internal/session"
	"github.com/taibuivan/washpass/internal/session/store"
)

var errBackend = errors.New("backend says no")

// fakeIdentity is a scriptable identity backend.
type fakeIdentity struct {
	mu sync.Mutex

	principal session.Principal
	fetchErr  error
	fetched   []string

	grant    session.Grant
	loginErr error

	// When set, Login signals entered and blocks until release is closed.
	entered chan struct{}
	release chan struct{}

	// Same for FetchCurrentPrincipal.
	fetchEntered chan struct{}
	fetchRelease chan struct{}

	logoutErr error
	loggedOut []string
}

func (f *fakeIdentity) Login(ctx context.Context, _ session.LoginInput) (session.Grant, error) {
	if f.entered != nil {
		close(f.entered)
		<-f.release
	}
	return f.grant, f.loginErr
}

func (f *fakeIdentity) Register(ctx context.Context, _ session.RegisterInput) (session.Grant, error) {
	return f.grant, f.loginErr
}

func (f *fakeIdentity) FetchCurrentPrincipal(_ context.Context, token string) (session.Principal, error) {
	if f.fetchEntered != nil {
		close(f.fetchEntered)
		<-f.fetchRelease
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, token)
	return f.principal, f.fetchErr
}

func (f *fakeIdentity) Logout(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loggedOut = append(f.loggedOut, token)
	return f.logoutErr
}

func (f *fakeIdentity) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.fetched)
}

var customer = session.Principal{ID: 42, Name: "Mai", Email: "mai@example.com", Role: sec.RoleCustomer}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newMachine(identity *fakeIdentity) (*session.Machine, store.Store) {
	s := store.NewMemoryStore()
	return session.New(session.CustomerDomain, s, identity, discardLogger()), s
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

/*
TestMachine_Restore covers mounting from each stored-credential situation.
*/
func TestMachine_Restore(t *testing.T) {
	ctx := context.Background()

	t.Run("no_token_skips_network", func(t *testing.T) {
		identity := &fakeIdentity{principal: customer}
		m, _ := newMachine(identity)

		assert.True(t, m.Snapshot().Loading)
		assert.False(t, isClosed(m.Settled()))

		snap := m.Restore(ctx)

		assert.Equal(t, session.StateAnonymous, snap.State)
		assert.False(t, snap.Loading)
		assert.Nil(t, snap.Principal)
		assert.Zero(t, identity.fetchCount())
		assert.True(t, isClosed(m.Settled()))
	})

	t.Run("valid_token_authenticates", func(t *testing.T) {
		identity := &fakeIdentity{principal: customer}
		m, s := newMachine(identity)
		require.NoError(t, s.Set(ctx, store.CustomerNamespace, store.Credentials{AccessToken: "abc123"}))

		snap := m.Restore(ctx)

		assert.Equal(t, session.StateAuthenticated, snap.State)
		assert.True(t, snap.Authenticated)
		assert.Equal(t, "abc123", snap.Token)
		require.NotNil(t, snap.Principal)
		assert.Equal(t, customer, *snap.Principal)
		assert.Equal(t, []string{"abc123"}, identity.fetched)
		assert.True(t, isClosed(m.Settled()))
	})

	t.Run("rejected_token_clears_storage", func(t *testing.T) {
		identity := &fakeIdentity{fetchErr: errBackend}
		m, s := newMachine(identity)
		require.NoError(t, s.Set(ctx, store.CustomerNamespace, store.Credentials{AccessToken: "expired", RefreshToken: "r"}))

		snap := m.Restore(ctx)

		assert.Equal(t, session.StateAnonymous, snap.State)
		assert.Empty(t, snap.Token)
		_, err := s.Get(ctx, store.CustomerNamespace)
		assert.ErrorIs(t, err, store.ErrNoCredentials)
		assert.True(t, isClosed(m.Settled()))
	})

	t.Run("unknown_role_is_a_failure", func(t *testing.T) {
		identity := &fakeIdentity{principal: session.Principal{ID: 1, Role: "JANITOR"}}
		m, s := newMachine(identity)
		require.NoError(t, s.Set(ctx, store.CustomerNamespace, store.Credentials{AccessToken: "abc"}))

		assert.Equal(t, session.StateAnonymous, m.Restore(ctx).State)
	})
}

/*
TestMachine_LoginLogoutLogin walks the ordinary lifecycle of a session.
*/
func TestMachine_LoginLogoutLogin(t *testing.T) {
	ctx := context.Background()
	identity := &fakeIdentity{
		grant: session.Grant{Principal: customer, Credentials: store.Credentials{AccessToken: "t1", RefreshToken: "r1"}},
	}
	m, s := newMachine(identity)
	m.Restore(ctx)

	snap, err := m.Login(ctx, session.LoginInput{Email: customer.Email, Password: "secret"})
	require.NoError(t, err)
	assert.True(t, snap.Authenticated)
	creds, err := s.Get(ctx, store.CustomerNamespace)
	require.NoError(t, err)
	assert.Equal(t, store.Credentials{AccessToken: "t1", RefreshToken: "r1"}, creds)

	m.Logout(ctx)
	m.Wait()
	assert.Equal(t, session.StateAnonymous, m.Snapshot().State)
	_, err = s.Get(ctx, store.CustomerNamespace)
	assert.ErrorIs(t, err, store.ErrNoCredentials)
	assert.Equal(t, []string{"t1"}, identity.loggedOut)

	identity.grant.Credentials = store.Credentials{AccessToken: "t2"}
	snap, err = m.Login(ctx, session.LoginInput{Email: customer.Email, Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "t2", snap.Token)
}

/*
TestMachine_LoginFailure verifies a rejected login is re-raised and leaves storage alone.
*/
func TestMachine_LoginFailure(t *testing.T) {
	ctx := context.Background()

	t.Run("backend_error", func(t *testing.T) {
		identity := &fakeIdentity{loginErr: errBackend}
		m, s := newMachine(identity)
		m.Restore(ctx)

		snap, err := m.Login(ctx, session.LoginInput{Email: "x@example.com", Password: "bad"})

		assert.ErrorIs(t, err, errBackend)
		assert.Equal(t, session.StateAnonymous, snap.State)
		_, getErr := s.Get(ctx, store.CustomerNamespace)
		assert.ErrorIs(t, getErr, store.ErrNoCredentials)
	})

	t.Run("grant_without_token", func(t *testing.T) {
		identity := &fakeIdentity{grant: session.Grant{Principal: customer}}
		m, _ := newMachine(identity)

		_, err := m.Login(ctx, session.LoginInput{})
		assert.ErrorIs(t, err, session.ErrMalformedGrant)
		assert.True(t, isClosed(m.Settled()))
	})
}

/*
TestMachine_LogoutDuringPendingLogin ensures a late login response cannot
resurrect a session the user already left.
*/
func TestMachine_LogoutDuringPendingLogin(t *testing.T) {
	ctx := context.Background()
	identity := &fakeIdentity{
		grant:   session.Grant{Principal: customer, Credentials: store.Credentials{AccessToken: "late"}},
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	m, s := newMachine(identity)
	m.Restore(ctx)

	type result struct {
		snap session.Snapshot
		err  error
	}
	done := make(chan result, 1)
	go func() {
		snap, err := m.Login(ctx, session.LoginInput{Email: customer.Email, Password: "secret"})
		done <- result{snap, err}
	}()

	<-identity.entered
	assert.True(t, m.Snapshot().Loading)

	m.Logout(ctx)
	close(identity.release)

	res := <-done
	assert.ErrorIs(t, res.err, session.ErrSuperseded)
	assert.Equal(t, session.StateAnonymous, res.snap.State)
	assert.Equal(t, session.StateAnonymous, m.Snapshot().State)

	_, err := s.Get(ctx, store.CustomerNamespace)
	assert.ErrorIs(t, err, store.ErrNoCredentials)
}

/*
TestMachine_RestoreDuringPendingLogin leaves an in-flight login in charge,
whatever the store holds when the restore runs.
*/
func TestMachine_RestoreDuringPendingLogin(t *testing.T) {
	fresh := session.Principal{ID: 43, Name: "Lan", Email: "lan@example.com", Role: sec.RoleCustomer}

	tests := []struct {
		name     string
		stored   string
		fetchErr error
	}{
		{name: "no_stored_token"},
		{name: "stale_token_rejected", stored: "stale", fetchErr: errBackend},
		{name: "stale_token_accepted", stored: "stale"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			identity := &fakeIdentity{
				principal: customer,
				fetchErr:  tc.fetchErr,
				grant:     session.Grant{Principal: fresh, Credentials: store.Credentials{AccessToken: "fresh"}},
				entered:   make(chan struct{}),
				release:   make(chan struct{}),
			}
			m, s := newMachine(identity)
			if tc.stored != "" {
				require.NoError(t, s.Set(ctx, store.CustomerNamespace, store.Credentials{AccessToken: tc.stored}))
			}

			errs := make(chan error, 1)
			go func() {
				_, err := m.Login(ctx, session.LoginInput{})
				errs <- err
			}()

			<-identity.entered
			snap := m.Restore(ctx)
			assert.Equal(t, session.StateLoading, snap.State)
			assert.False(t, isClosed(m.Settled()))
			assert.Zero(t, identity.fetchCount())

			close(identity.release)
			require.NoError(t, <-errs)

			snap = m.Snapshot()
			assert.Equal(t, session.StateAuthenticated, snap.State)
			require.NotNil(t, snap.Principal)
			assert.Equal(t, fresh, *snap.Principal)
			assert.Equal(t, "fresh", snap.Token)
			assert.True(t, isClosed(m.Settled()))

			stored, err := s.Get(ctx, store.CustomerNamespace)
			require.NoError(t, err)
			assert.Equal(t, "fresh", stored.AccessToken)
		})
	}
}

/*
TestMachine_LoginDuringRestore discards a restore that a login overtook,
whether the stale token is later accepted or rejected.
*/
func TestMachine_LoginDuringRestore(t *testing.T) {
	fresh := session.Principal{ID: 43, Name: "Lan", Email: "lan@example.com", Role: sec.RoleCustomer}

	for _, fetchErr := range []error{nil, errBackend} {
		t.Run(fmt.Sprintf("fetch_err_%v", fetchErr != nil), func(t *testing.T) {
			ctx := context.Background()
			identity := &fakeIdentity{
				principal:    customer,
				fetchErr:     fetchErr,
				grant:        session.Grant{Principal: fresh, Credentials: store.Credentials{AccessToken: "fresh"}},
				fetchEntered: make(chan struct{}),
				fetchRelease: make(chan struct{}),
			}
			m, s := newMachine(identity)
			require.NoError(t, s.Set(ctx, store.CustomerNamespace, store.Credentials{AccessToken: "stale"}))

			restored := make(chan session.Snapshot, 1)
			go func() { restored <- m.Restore(ctx) }()

			<-identity.fetchEntered
			_, err := m.Login(ctx, session.LoginInput{})
			require.NoError(t, err)

			close(identity.fetchRelease)
			<-restored

			snap := m.Snapshot()
			assert.Equal(t, session.StateAuthenticated, snap.State)
			require.NotNil(t, snap.Principal)
			assert.Equal(t, fresh, *snap.Principal)
			assert.Equal(t, "fresh", snap.Token)

			stored, err := s.Get(ctx, store.CustomerNamespace)
			require.NoError(t, err)
			assert.Equal(t, "fresh", stored.AccessToken)
		})
	}
}

/*
TestMachine_LogoutNotifyFailure confirms the local transition stands even
when the backend cannot be told.
*/
func TestMachine_LogoutNotifyFailure(t *testing.T) {
	ctx := context.Background()
	identity := &fakeIdentity{logoutErr: errBackend}
	m, s := newMachine(identity)
	require.NoError(t, m.SetAuth(ctx, customer, store.Credentials{AccessToken: "abc"}))

	m.Logout(ctx)
	assert.Equal(t, session.StateAnonymous, m.Snapshot().State)

	m.Wait()
	assert.Equal(t, []string{"abc"}, identity.loggedOut)
	_, err := s.Get(ctx, store.CustomerNamespace)
	assert.ErrorIs(t, err, store.ErrNoCredentials)
}

/*
TestMachine_LogoutWithoutSession makes no backend call.
*/
func TestMachine_LogoutWithoutSession(t *testing.T) {
	identity := &fakeIdentity{}
	m, _ := newMachine(identity)

	m.Logout(context.Background())
	m.Wait()

	assert.Empty(t, identity.loggedOut)
	assert.True(t, isClosed(m.Settled()))
}

/*
TestMachine_Settled checks the settle signal fires once across repeated restores.
*/
func TestMachine_Settled(t *testing.T) {
	ctx := context.Background()
	identity := &fakeIdentity{principal: customer}
	m, s := newMachine(identity)
	require.NoError(t, s.Set(ctx, store.CustomerNamespace, store.Credentials{AccessToken: "abc"}))

	settled := m.Settled()
	m.Restore(ctx)
	assert.True(t, isClosed(settled))

	assert.NotPanics(t, func() {
		m.Restore(ctx)
		m.Logout(ctx)
		m.Restore(ctx)
	})
	assert.Equal(t, settled, m.Settled())
	m.Wait()
}

/*
TestMachine_Subscribers verifies subscribers observe only authentication
and principal changes, in order.
*/
func TestMachine_Subscribers(t *testing.T) {
	ctx := context.Background()
	identity := &fakeIdentity{
		grant: session.Grant{Principal: customer, Credentials: store.Credentials{AccessToken: "t1"}},
	}
	m, _ := newMachine(identity)

	var events []bool
	cancel := m.Subscribe(func(snap session.Snapshot) {
		assert.False(t, snap.Loading)
		events = append(events, snap.Authenticated)
	})

	m.Restore(ctx)
	_, err := m.Login(ctx, session.LoginInput{})
	require.NoError(t, err)
	m.Logout(ctx)
	m.Wait()

	assert.Equal(t, []bool{true, false}, events)

	cancel()
	_, err = m.Login(ctx, session.LoginInput{})
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

/*
TestMachine_Invalidate checks only the current token can end the session.
*/
func TestMachine_Invalidate(t *testing.T) {
	ctx := context.Background()
	m, s := newMachine(&fakeIdentity{})
	require.NoError(t, m.SetAuth(ctx, customer, store.Credentials{AccessToken: "current"}))

	assert.False(t, m.Invalidate(ctx, "old"))
	assert.True(t, m.Snapshot().Authenticated)

	assert.True(t, m.Invalidate(ctx, "current"))
	assert.Equal(t, session.StateAnonymous, m.Snapshot().State)
	_, err := s.Get(ctx, store.CustomerNamespace)
	assert.ErrorIs(t, err, store.ErrNoCredentials)

	assert.False(t, m.Invalidate(ctx, "current"))
}

/*
TestMachine_Close discards results that arrive after the machine was retired.
*/
func TestMachine_Close(t *testing.T) {
	ctx := context.Background()
	identity := &fakeIdentity{
		grant:   session.Grant{Principal: customer, Credentials: store.Credentials{AccessToken: "late"}},
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	m, s := newMachine(identity)

	errs := make(chan error, 1)
	go func() {
		_, err := m.Login(ctx, session.LoginInput{})
		errs <- err
	}()

	<-identity.entered
	m.Close()
	assert.True(t, isClosed(m.Settled()))
	close(identity.release)

	assert.ErrorIs(t, <-errs, session.ErrSuperseded)
	_, err := s.Get(ctx, store.CustomerNamespace)
	assert.ErrorIs(t, err, store.ErrNoCredentials)
}

/*
TestMachine_DomainsAreIndependent ensures logging out of one domain leaves
the other domain's session and storage untouched.
*/
func TestMachine_DomainsAreIndependent(t *testing.T) {
	ctx := context.Background()
	shared := store.NewMemoryStore()
	partner := session.Principal{ID: 7, Name: "Sparkle Wash", Role: sec.RolePartner}

	customerMachine := session.New(session.CustomerDomain, shared, &fakeIdentity{}, discardLogger())
	partnerMachine := session.New(session.PartnerDomain, shared, &fakeIdentity{}, discardLogger())

	require.NoError(t, customerMachine.SetAuth(ctx, customer, store.Credentials{AccessToken: "c"}))
	require.NoError(t, partnerMachine.SetAuth(ctx, partner, store.Credentials{AccessToken: "p"}))

	partnerMachine.Logout(ctx)
	partnerMachine.Wait()

	assert.True(t, customerMachine.Snapshot().Authenticated)
	creds, err := shared.Get(ctx, store.CustomerNamespace)
	require.NoError(t, err)
	assert.Equal(t, "c", creds.AccessToken)
}

/*
TestTransport covers bearer attachment and invalidation on 401.
*/
func TestTransport(t *testing.T) {
	ctx := context.Background()

	var mu sync.Mutex
	var seen []string
	status := http.StatusOK
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, r.Header.Get("Authorization"))
		w.WriteHeader(status)
	}))
	defer server.Close()

	m, _ := newMachine(&fakeIdentity{})
	require.NoError(t, m.SetAuth(ctx, customer, store.Credentials{AccessToken: "abc"}))
	client := session.NewTransport(m, nil).Client()
	client.Timeout = 5 * time.Second

	resp, err := client.Get(server.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.True(t, m.Snapshot().Authenticated)

	mu.Lock()
	status = http.StatusUnauthorized
	mu.Unlock()
	resp, err = client.Get(server.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, session.StateAnonymous, m.Snapshot().State)

	resp, err = client.Get(server.URL)
	require.NoError(t, err)
	resp.Body.Close()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"Bearer abc", "Bearer abc", ""}, seen)
}
