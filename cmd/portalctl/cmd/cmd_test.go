// Copyright (c) 2026 WashPass. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package cmd_test

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/washpass/cmd/portalctl/cmd"
	"github.com/taibuivan/washpass/internal/session/store"
)

// fakeIdentity answers both the customer and partner auth paths.
type fakeIdentity struct {
	mu        sync.Mutex
	loggedOut []string
}

func (f *fakeIdentity) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	partner := strings.Contains(r.URL.Path, "/partner/")
	user := map[string]any{"id": 7, "name": "Mai", "email": "mai@example.com", "role": "CUSTOMER"}
	if partner {
		user = map[string]any{"id": 9, "name": "Lan", "email": "lan@sparkle.vn", "business_name": "Sparkle Wash"}
	}

	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasSuffix(r.URL.Path, "/login"):
		var input struct{ Password string }
		_ = json.NewDecoder(r.Body).Decode(&input)
		if input.Password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"Invalid email or password","code":"UNAUTHORIZED"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"access_token": "grant-token", "user": user}})

	case strings.HasSuffix(r.URL.Path, "/me"):
		switch r.Header.Get("Authorization") {
		case "Bearer grant-token", "Bearer link-token":
			_ = json.NewEncoder(w).Encode(map[string]any{"data": user})
		default:
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"token expired","code":"UNAUTHORIZED"}`))
		}

	case strings.HasSuffix(r.URL.Path, "/logout"):
		f.mu.Lock()
		f.loggedOut = append(f.loggedOut, r.URL.Path)
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)

	default:
		http.NotFound(w, r)
	}
}

type cli struct {
	server  string
	path    string
	key     *[32]byte
	backend *fakeIdentity
}

func newCLI(t *testing.T) *cli {
	t.Helper()

	backend := &fakeIdentity{}
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	var key [32]byte
	copy(key[:], "0123456789abcdef0123456789abcdef")

	c := &cli{
		server:  srv.URL,
		path:    filepath.Join(t.TempDir(), "credentials.json"),
		key:     &key,
		backend: backend,
	}
	t.Setenv("WASHPASS_STORE_PATH", c.path)
	t.Setenv("WASHPASS_STORE_KEY", hex.EncodeToString(key[:]))
	return c
}

func (c *cli) run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	root := cmd.NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--server", c.server}, args...))

	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func (c *cli) stored(t *testing.T, ns store.Namespace) (store.Credentials, error) {
	t.Helper()
	fileStore, err := store.NewFileStore(c.path, c.key)
	require.NoError(t, err)
	return fileStore.Get(context.Background(), ns)
}

/*
TestCLI_LoginStatusLogout walks one customer session through the CLI.
*/
func TestCLI_LoginStatusLogout(t *testing.T) {
	c := newCLI(t)

	_, err := c.run(t, "login", "--email", "mai@example.com", "--password", "secret")
	require.NoError(t, err)

	creds, err := c.stored(t, store.CustomerNamespace)
	require.NoError(t, err)
	assert.Equal(t, "grant-token", creds.AccessToken)

	_, err = c.stored(t, store.PartnerNamespace)
	assert.ErrorIs(t, err, store.ErrNoCredentials)

	out, err := c.run(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "mai@example.com")
	assert.Contains(t, out, "AUTHENTICATED")

	_, err = c.run(t, "logout")
	require.NoError(t, err)

	_, err = c.stored(t, store.CustomerNamespace)
	assert.ErrorIs(t, err, store.ErrNoCredentials)

	c.backend.mu.Lock()
	defer c.backend.mu.Unlock()
	assert.Equal(t, []string{"/api/v1/auth/logout"}, c.backend.loggedOut)
}

/*
TestCLI_LoginFailure reports the identity API's message and stores nothing.
*/
func TestCLI_LoginFailure(t *testing.T) {
	c := newCLI(t)

	_, err := c.run(t, "login", "--email", "mai@example.com", "--password", "wrong")
	require.Error(t, err)
	assert.Equal(t, "Invalid email or password", err.Error())

	_, err = c.stored(t, store.CustomerNamespace)
	assert.ErrorIs(t, err, store.ErrNoCredentials)
}

/*
TestCLI_PartnerDomain keeps partner tokens in the partner namespace.
*/
func TestCLI_PartnerDomain(t *testing.T) {
	c := newCLI(t)

	_, err := c.run(t, "--domain", "partner", "login", "--email", "lan@sparkle.vn", "--password", "secret")
	require.NoError(t, err)

	creds, err := c.stored(t, store.PartnerNamespace)
	require.NoError(t, err)
	assert.Equal(t, "grant-token", creds.AccessToken)

	_, err = c.stored(t, store.CustomerNamespace)
	assert.ErrorIs(t, err, store.ErrNoCredentials)
}

/*
TestCLI_Handoff adopts a link's token for the domain owning its path.
*/
func TestCLI_Handoff(t *testing.T) {
	tests := []struct {
		name  string
		link  string
		clean string
		ns    store.Namespace
	}{
		{
			name:  "customer",
			link:  "https://app.washpass.vn/app/dashboard?token=link-token&tab=codes",
			clean: "https://app.washpass.vn/app/dashboard?tab=codes",
			ns:    store.CustomerNamespace,
		},
		{
			name:  "partner",
			link:  "https://app.washpass.vn/partner/dashboard?token=link-token",
			clean: "https://app.washpass.vn/partner/dashboard",
			ns:    store.PartnerNamespace,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCLI(t)

			out, err := c.run(t, "handoff", tt.link)
			require.NoError(t, err)
			assert.Equal(t, tt.clean, strings.TrimSpace(out))

			creds, err := c.stored(t, tt.ns)
			require.NoError(t, err)
			assert.Equal(t, "link-token", creds.AccessToken)
		})
	}
}

/*
TestCLI_HandoffRejected clears a link token the identity API refuses.
*/
func TestCLI_HandoffRejected(t *testing.T) {
	c := newCLI(t)

	_, err := c.run(t, "handoff", "https://app.washpass.vn/app/dashboard?token=stale")
	require.Error(t, err)

	_, err = c.stored(t, store.CustomerNamespace)
	assert.ErrorIs(t, err, store.ErrNoCredentials)
}

/*
TestCLI_Flags rejects unknown domains and malformed store keys.
*/
func TestCLI_Flags(t *testing.T) {
	c := newCLI(t)

	_, err := c.run(t, "--domain", "fleet", "logout")
	assert.ErrorContains(t, err, "unknown domain")
	assert.ErrorContains(t, err, "domain must be one of: customer, partner")

	t.Setenv("WASHPASS_STORE_KEY", "not-hex")
	_, err = c.run(t, "logout")
	assert.ErrorContains(t, err, "WASHPASS_STORE_KEY")
}
