// Copyright (c) 2026 WashPass. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package store

import (
	"context"
	"sync"
)

// MemoryStore keeps entries in process memory. Durable only for the life of
// the process; used in development mode and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]string
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]string)}
}

// NewMemoryFactory returns a Factory handing out one MemoryStore per scope.
// Asking twice for the same scope yields the same store.
func NewMemoryFactory() Factory {
	var mu sync.Mutex
	scopes := make(map[string]*MemoryStore)

	return func(scope string) Store {
		mu.Lock()
		defer mu.Unlock()

		if existing, ok := scopes[scope]; ok {
			return existing
		}
		created := NewMemoryStore()
		scopes[scope] = created
		return created
	}
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, ns Namespace) (Credentials, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fromEntries(s.entries[ns.AccessKey], s.entries[ns.RefreshKey])
}

// Set implements Store.
func (s *MemoryStore) Set(_ context.Context, ns Namespace, creds Credentials) error {
	if err := checkSet(creds); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[ns.AccessKey] = creds.AccessToken
	if creds.RefreshToken == "" {
		delete(s.entries, ns.RefreshKey)
	} else {
		s.entries[ns.RefreshKey] = creds.RefreshToken
	}
	return nil
}

// Clear implements Store.
func (s *MemoryStore) Clear(_ context.Context, ns Namespace) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, ns.AccessKey)
	delete(s.entries, ns.RefreshKey)
	return nil
}
