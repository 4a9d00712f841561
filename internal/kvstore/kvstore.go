// Copyright (c) 2025 Lawson Morris
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package kvstore provides the flat key-value persistence substrate for the
// session engine.
//
// Every record the engine persists lives in one namespace of string keys
// mapped to JSON-serialized values, backed by a Pebble database. Writes are
// synced; a record is either fully replaced or untouched. There is no
// multi-writer transaction support: concurrent writers to the same key race
// and the later write wins in full.
package kvstore

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"go.uber.org/zap"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNotFound indicates the key has no stored value.
	ErrNotFound = errors.New("key not found")
	// ErrUnavailable indicates the underlying store could not serve the
	// operation (closed, corrupt, or denied).
	ErrUnavailable = errors.New("storage unavailable")
)

// =============================================================================
// STORE
// =============================================================================

// Store is a local persistent map of string keys to JSON values.
//
// Store is safe for concurrent use; Pebble serializes the writes.
type Store struct {
	db  *pebble.DB
	log *zap.Logger
}

// Open opens (or creates) the store at the given path.
func Open(path string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	log.Info("kvstore opened", zap.String("path", path))
	return &Store{db: db, log: log}, nil
}

// Close closes the store. The store must not be used afterwards.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Set serializes value to JSON and stores it under key, replacing any
// previous value. The write is synced to disk before Set returns.
func (s *Store) Set(key string, value any) error {
	if s.db == nil {
		return ErrUnavailable
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value for %q: %w", key, err)
	}
	if err := s.db.Set([]byte(key), data, pebble.Sync); err != nil {
		s.log.Error("kvstore set failed", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Get reads the value stored under key and deserializes it into out.
// Returns ErrNotFound when the key is absent. A record that exists but does
// not parse is reported as a plain unmarshal error so callers can decide
// whether to self-heal.
func (s *Store) Get(key string, out any) error {
	if s.db == nil {
		return ErrUnavailable
	}
	data, closer, err := s.db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return ErrNotFound
		}
		s.log.Error("kvstore get failed", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	// The returned slice is only valid until the closer is released.
	buf := make([]byte, len(data))
	copy(buf, data)
	if err := closer.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := json.Unmarshal(buf, out); err != nil {
		return fmt.Errorf("failed to unmarshal value for %q: %w", key, err)
	}
	return nil
}

// Delete removes the value stored under key. Deleting an absent key is not
// an error.
func (s *Store) Delete(key string) error {
	if s.db == nil {
		return ErrUnavailable
	}
	if err := s.db.Delete([]byte(key), pebble.Sync); err != nil {
		s.log.Error("kvstore delete failed", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// SetRaw stores a pre-serialized value. Used to plant records that may not
// be valid JSON, primarily by tests exercising corruption recovery.
func (s *Store) SetRaw(key string, data []byte) error {
	if s.db == nil {
		return ErrUnavailable
	}
	if err := s.db.Set([]byte(key), data, pebble.Sync); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
