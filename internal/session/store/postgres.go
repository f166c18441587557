// Copyright (c) 2026 WashPass. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store on the portal.storage table.
type PostgresStore struct {
	pool  *pgxpool.Pool
	scope string
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a PostgresStore bound to one origin scope.
func NewPostgresStore(pool *pgxpool.Pool, scope string) *PostgresStore {
	return &PostgresStore{pool: pool, scope: scope}
}

// NewPostgresFactory returns a Factory sharing one pool across all scopes.
func NewPostgresFactory(pool *pgxpool.Pool) Factory {
	return func(scope string) Store {
		return NewPostgresStore(pool, scope)
	}
}

/*
Get reads both entries of ns.

Returns:
  - Credentials: the stored pair
  - error: ErrNoCredentials or database errors
*/
func (repository *PostgresStore) Get(ctx context.Context, ns Namespace) (Credentials, error) {
	const query = `
		SELECT key, value
		FROM portal.storage
		WHERE scope = $1 AND key = ANY($2)`

	rows, err := repository.pool.Query(ctx, query, repository.scope, ns.Keys())
	if err != nil {
		return Credentials{}, fmt.Errorf("postgres_store_get_failed: %w", err)
	}

	entries := make(map[string]string, 2)
	var key, value string
	_, err = pgx.ForEachRow(rows, []any{&key, &value}, func() error {
		entries[key] = value
		return nil
	})
	if err != nil {
		return Credentials{}, fmt.Errorf("postgres_store_scan_failed: %w", err)
	}

	return fromEntries(entries[ns.AccessKey], entries[ns.RefreshKey])
}

/*
Set upserts the access entry and upserts or deletes the refresh entry in one transaction.
*/
func (repository *PostgresStore) Set(ctx context.Context, ns Namespace, creds Credentials) error {
	if err := checkSet(creds); err != nil {
		return err
	}

	const upsert = `
		INSERT INTO portal.storage (scope, key, value, updatedat)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (scope, key) DO UPDATE
		SET value = EXCLUDED.value, updatedat = EXCLUDED.updatedat`

	const remove = `DELETE FROM portal.storage WHERE scope = $1 AND key = $2`

	err := pgx.BeginFunc(ctx, repository.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, upsert, repository.scope, ns.AccessKey, creds.AccessToken); err != nil {
			return err
		}
		if creds.RefreshToken == "" {
			_, err := tx.Exec(ctx, remove, repository.scope, ns.RefreshKey)
			return err
		}
		_, err := tx.Exec(ctx, upsert, repository.scope, ns.RefreshKey, creds.RefreshToken)
		return err
	})
	if err != nil {
		return fmt.Errorf("postgres_store_set_failed: %w", err)
	}
	return nil
}

/*
Clear deletes both entries of ns with a single statement.
*/
func (repository *PostgresStore) Clear(ctx context.Context, ns Namespace) error {
	const query = `DELETE FROM portal.storage WHERE scope = $1 AND key = ANY($2)`

	if _, err := repository.pool.Exec(ctx, query, repository.scope, ns.Keys()); err != nil {
		return fmt.Errorf("postgres_store_clear_failed: %w", err)
	}
	return nil
}
