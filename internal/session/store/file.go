// Copyright (c) 2026 WashPass. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package store

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
	credentialsFile = "credentials.json"
	nonceSize       = 24
)

// FileStore persists entries as a JSON document on disk. It is the CLI's
// Session Store: durable across process restarts, scoped to one OS user.
//
// When constructed with a key, the document is sealed with NaCl secretbox.
// Writes go to a temp file that is renamed over the original, so a reader
// sees either the previous pair or the new one.
type FileStore struct {
	mu   sync.Mutex
	path string
	key  *[32]byte
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a FileStore at path. A nil key stores plain JSON.
func NewFileStore(path string, key *[32]byte) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("store: failed to create credential directory: %w", err)
	}
	return &FileStore{path: path, key: key}, nil
}

// DefaultFilePath returns ~/.washpass/credentials.json.
func DefaultFilePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: failed to get user home directory: %w", err)
	}
	return filepath.Join(home, ".washpass", credentialsFile), nil
}

// Get implements Store.
func (s *FileStore) Get(_ context.Context, ns Namespace) (Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return Credentials{}, err
	}
	return fromEntries(entries[ns.AccessKey], entries[ns.RefreshKey])
}

// Set implements Store.
func (s *FileStore) Set(_ context.Context, ns Namespace, creds Credentials) error {
	if err := checkSet(creds); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}

	entries[ns.AccessKey] = creds.AccessToken
	if creds.RefreshToken == "" {
		delete(entries, ns.RefreshKey)
	} else {
		entries[ns.RefreshKey] = creds.RefreshToken
	}
	return s.save(entries)
}

// Clear implements Store.
func (s *FileStore) Clear(_ context.Context, ns Namespace) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}

	delete(entries, ns.AccessKey)
	delete(entries, ns.RefreshKey)
	return s.save(entries)
}

// load reads the document. A missing file is an empty store.
func (s *FileStore) load() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return make(map[string]string), nil
		}
		return nil, fmt.Errorf("store: failed to read credentials file: %w", err)
	}

	if s.key != nil {
		if data, err = s.open(data); err != nil {
			return nil, err
		}
	}

	entries := make(map[string]string)
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("store: failed to unmarshal credentials: %w", err)
	}
	return entries, nil
}

// save writes the document through a temp file and an atomic rename.
func (s *FileStore) save(entries map[string]string) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("store: failed to marshal credentials: %w", err)
	}

	if s.key != nil {
		if data, err = s.seal(data); err != nil {
			return err
		}
	}

	temp, err := os.CreateTemp(filepath.Dir(s.path), ".credentials-*")
	if err != nil {
		return fmt.Errorf("store: failed to create temp file: %w", err)
	}
	defer os.Remove(temp.Name())

	if _, err := temp.Write(data); err != nil {
		temp.Close()
		return fmt.Errorf("store: failed to write credentials: %w", err)
	}
	if err := temp.Chmod(0o600); err != nil {
		temp.Close()
		return fmt.Errorf("store: failed to restrict credentials file: %w", err)
	}
	if err := temp.Close(); err != nil {
		return fmt.Errorf("store: failed to flush credentials: %w", err)
	}

	if err := os.Rename(temp.Name(), s.path); err != nil {
		return fmt.Errorf("store: failed to replace credentials file: %w", err)
	}
	return nil
}

func (s *FileStore) seal(plain []byte) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("store: failed to generate nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], plain, &nonce, s.key), nil
}

func (s *FileStore) open(sealed []byte) ([]byte, error) {
	if len(sealed) < nonceSize {
		return nil, errors.New("store: credentials file is truncated")
	}

	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])

	plain, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, s.key)
	if !ok {
		return nil, errors.New("store: credentials file cannot be decrypted with the configured key")
	}
	return plain, nil
}
