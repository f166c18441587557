// Copyright (c) 2026 WashPass. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package store_test

import (
	"context"
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/washpass/internal/session/store"
	"github.com/taibuivan/washpass/pkg/uuid"
)

// runContract exercises the behaviour every backend must share.
func runContract(t *testing.T, s store.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("absent_by_default", func(t *testing.T) {
		_, err := s.Get(ctx, store.CustomerNamespace)
		assert.ErrorIs(t, err, store.ErrNoCredentials)
	})

	t.Run("set_then_get", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, store.CustomerNamespace, store.Credentials{AccessToken: "abc123", RefreshToken: "r-1"}))

		creds, err := s.Get(ctx, store.CustomerNamespace)
		require.NoError(t, err)
		assert.Equal(t, "abc123", creds.AccessToken)
		assert.Equal(t, "r-1", creds.RefreshToken)
	})

	t.Run("set_without_refresh_drops_old_refresh", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, store.CustomerNamespace, store.Credentials{AccessToken: "handoff"}))

		creds, err := s.Get(ctx, store.CustomerNamespace)
		require.NoError(t, err)
		assert.Equal(t, "handoff", creds.AccessToken)
		assert.Empty(t, creds.RefreshToken)
	})

	t.Run("namespaces_are_independent", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, store.PartnerNamespace, store.Credentials{AccessToken: "partner-tok", RefreshToken: "partner-ref"}))
		require.NoError(t, s.Clear(ctx, store.CustomerNamespace))

		_, err := s.Get(ctx, store.CustomerNamespace)
		assert.ErrorIs(t, err, store.ErrNoCredentials)

		creds, err := s.Get(ctx, store.PartnerNamespace)
		require.NoError(t, err)
		assert.Equal(t, "partner-tok", creds.AccessToken)
	})

	t.Run("clear_removes_both_entries", func(t *testing.T) {
		require.NoError(t, s.Clear(ctx, store.PartnerNamespace))

		_, err := s.Get(ctx, store.PartnerNamespace)
		assert.ErrorIs(t, err, store.ErrNoCredentials)

		// Writing only an access token afterwards must not resurrect the old refresh token.
		require.NoError(t, s.Set(ctx, store.PartnerNamespace, store.Credentials{AccessToken: "fresh"}))
		creds, err := s.Get(ctx, store.PartnerNamespace)
		require.NoError(t, err)
		assert.Empty(t, creds.RefreshToken)
		require.NoError(t, s.Clear(ctx, store.PartnerNamespace))
	})

	t.Run("rejects_empty_access_token", func(t *testing.T) {
		err := s.Set(ctx, store.CustomerNamespace, store.Credentials{RefreshToken: "orphan"})
		assert.ErrorIs(t, err, store.ErrEmptyAccessToken)
	})
}

/*
TestMemoryStore runs the shared contract against the in-memory backend.
*/
func TestMemoryStore(t *testing.T) {
	runContract(t, store.NewMemoryStore())
}

/*
TestMemoryFactory verifies that scopes are isolated and stable.
*/
func TestMemoryFactory(t *testing.T) {
	ctx := context.Background()
	factory := store.NewMemoryFactory()

	require.NoError(t, factory("origin-a").Set(ctx, store.CustomerNamespace, store.Credentials{AccessToken: "a"}))

	creds, err := factory("origin-a").Get(ctx, store.CustomerNamespace)
	require.NoError(t, err)
	assert.Equal(t, "a", creds.AccessToken)

	_, err = factory("origin-b").Get(ctx, store.CustomerNamespace)
	assert.ErrorIs(t, err, store.ErrNoCredentials)
}

/*
TestFileStore runs the shared contract against plain and sealed files.
*/
func TestFileStore(t *testing.T) {
	t.Run("plain", func(t *testing.T) {
		s, err := store.NewFileStore(filepath.Join(t.TempDir(), "credentials.json"), nil)
		require.NoError(t, err)
		runContract(t, s)
	})

	t.Run("sealed", func(t *testing.T) {
		var key [32]byte
		_, err := rand.Read(key[:])
		require.NoError(t, err)

		s, err := store.NewFileStore(filepath.Join(t.TempDir(), "credentials.json"), &key)
		require.NoError(t, err)
		runContract(t, s)
	})
}

/*
TestFileStore_SurvivesReopen verifies durability across process restarts and at-rest sealing.
*/
func TestFileStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "credentials.json")

	var key [32]byte
	_, err := rand.Read(key[:])
	require.NoError(t, err)

	first, err := store.NewFileStore(path, &key)
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, store.CustomerNamespace, store.Credentials{AccessToken: "persisted"}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "persisted")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	second, err := store.NewFileStore(path, &key)
	require.NoError(t, err)
	creds, err := second.Get(ctx, store.CustomerNamespace)
	require.NoError(t, err)
	assert.Equal(t, "persisted", creds.AccessToken)

	var wrongKey [32]byte
	third, err := store.NewFileStore(path, &wrongKey)
	require.NoError(t, err)
	_, err = third.Get(ctx, store.CustomerNamespace)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, store.ErrNoCredentials)
}

/*
TestRedisStore runs the contract against a live Redis when TEST_REDIS_URL is set.
*/
func TestRedisStore(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}

	options, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(options)
	t.Cleanup(func() { _ = client.Close() })

	runContract(t, store.NewRedisStore(client, uuid.New()))
}

/*
TestPostgresStore runs the contract against a migrated database when TEST_DATABASE_URL is set.
*/
func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	pool, err := pgxpool.New(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	runContract(t, store.NewPostgresStore(pool, uuid.New()))
}
