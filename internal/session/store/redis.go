// Copyright (c) 2026 WashPass. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package store

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/washpass/internal/platform/constants"
)

// RedisStore implements Store on Redis. Entries carry no TTL: the access
// token's lifetime is decided by the identity backend, not by storage.
type RedisStore struct {
	client redis.UniversalClient
	scope  string
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a RedisStore bound to one origin scope.
func NewRedisStore(client redis.UniversalClient, scope string) *RedisStore {
	return &RedisStore{client: client, scope: scope}
}

// NewRedisFactory returns a Factory sharing one client across all scopes.
func NewRedisFactory(client redis.UniversalClient) Factory {
	return func(scope string) Store {
		return NewRedisStore(client, scope)
	}
}

// key builds washpass:storage:{scope}:{name}.
func (repository *RedisStore) key(name string) string {
	return constants.RedisPrefixStorage + repository.scope + ":" + name
}

/*
Get reads both entries of ns in a single MGET.

Returns:
  - Credentials: the stored pair
  - error: ErrNoCredentials or connectivity errors
*/
func (repository *RedisStore) Get(ctx context.Context, ns Namespace) (Credentials, error) {
	values, err := repository.client.MGet(ctx, repository.key(ns.AccessKey), repository.key(ns.RefreshKey)).Result()
	if err != nil {
		return Credentials{}, fmt.Errorf("redis_store_get_failed: %w", err)
	}

	// MGET yields nil for missing keys
	access, _ := values[0].(string)
	refresh, _ := values[1].(string)
	return fromEntries(access, refresh)
}

/*
Set writes both entries inside MULTI/EXEC so readers never see a mixed pair.
*/
func (repository *RedisStore) Set(ctx context.Context, ns Namespace, creds Credentials) error {
	if err := checkSet(creds); err != nil {
		return err
	}

	_, err := repository.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, repository.key(ns.AccessKey), creds.AccessToken, 0)
		if creds.RefreshToken == "" {
			pipe.Del(ctx, repository.key(ns.RefreshKey))
		} else {
			pipe.Set(ctx, repository.key(ns.RefreshKey), creds.RefreshToken, 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis_store_set_failed: %w", err)
	}
	return nil
}

/*
Clear removes both entries with one multi-key DEL, which Redis applies atomically.
*/
func (repository *RedisStore) Clear(ctx context.Context, ns Namespace) error {
	if err := repository.client.Del(ctx, repository.key(ns.AccessKey), repository.key(ns.RefreshKey)).Err(); err != nil {
		return fmt.Errorf("redis_store_clear_failed: %w", err)
	}
	return nil
}
