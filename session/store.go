// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package session

import (
	"fmt"
	"sync"
)

// Store is a key-value store scoped to one user session.  An absent key is
// reported with ok == false and is never an error.  Implementations must be
// concurrently safe.
type Store interface {
	// Get returns a copy of the bytes stored under key.
	Get(key string) (v []byte, ok bool)

	// Set stores a copy of v under key.
	Set(key string, v []byte) error

	// GetString returns the string stored under key.
	GetString(key string) (v string, ok bool)

	// SetString stores v under key.
	SetString(key string, v string) error

	// Delete removes key.  Deleting an absent key is not an error.
	Delete(key string) error
}

// MemoryStore is a concurrently safe in-memory Store.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// ensure that MemoryStore implements the Store interface
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: map[string][]byte{}}
}

// Get implements the Store.Get() interface function.
func (s *MemoryStore) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), v...), true
}

// Set implements the Store.Set() interface function.
func (s *MemoryStore) Set(key string, v []byte) error {
	const op = "MemoryStore.Set"
	if key == "" {
		return fmt.Errorf("%s: key is empty: %w", op, ErrInvalidParameter)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = append([]byte(nil), v...)
	return nil
}

// GetString implements the Store.GetString() interface function.
func (s *MemoryStore) GetString(key string) (string, bool) {
	v, ok := s.Get(key)
	return string(v), ok
}

// SetString implements the Store.SetString() interface function.
func (s *MemoryStore) SetString(key string, v string) error {
	return s.Set(key, []byte(v))
}

// Delete implements the Store.Delete() interface function.
func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

// Len returns the number of keys stored.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}
