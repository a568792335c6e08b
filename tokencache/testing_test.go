// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package tokencache

import (
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/mattruma/ADB2CWebAppWebApi/session"
)

// testContents is a list of strings, serialized as JSON.
type testContents struct {
	mu    sync.RWMutex
	items []string

	// onMarshal, when set, runs inside Marshal after the items are copied
	onMarshal   func([]string)
	failMarshal bool
}

func (c *testContents) Marshal() ([]byte, error) {
	if c.failMarshal {
		return nil, errors.New("marshal failed")
	}
	c.mu.RLock()
	items := append([]string(nil), c.items...)
	c.mu.RUnlock()
	if c.onMarshal != nil {
		c.onMarshal(items)
	}
	return json.Marshal(items)
}

func (c *testContents) Unmarshal(b []byte) error {
	var items []string
	if len(b) > 0 {
		if err := json.Unmarshal(b, &items); err != nil {
			return err
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = items
	return nil
}

func (c *testContents) add(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.items, s)
}

func (c *testContents) get() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.items...)
}

// testStore counts writes and runs an optional hook before each one.
type testStore struct {
	*session.MemoryStore
	sets    atomic.Int32
	onSet   func(key string)
	failSet bool
}

func newTestStore() *testStore {
	return &testStore{MemoryStore: session.NewMemoryStore()}
}

func (s *testStore) Set(key string, v []byte) error {
	if s.failSet {
		return errors.New("store is read-only")
	}
	s.sets.Add(1)
	if s.onSet != nil {
		s.onSet(key)
	}
	return s.MemoryStore.Set(key, v)
}

func (s *testStore) SetString(key string, v string) error {
	return s.Set(key, []byte(v))
}

// writeLocked reports whether the user's lock is held for writing (or has a
// writer waiting).
func (l *Locks) writeLocked(ownerUserId string) bool {
	l.mu.Lock()
	ul, ok := l.locks[ownerUserId]
	l.mu.Unlock()
	if !ok {
		return false
	}
	if ul.sem.TryAcquire(1) {
		ul.sem.Release(1)
		return false
	}
	return true
}

// refs returns how many requests hold or await the user's lock.
func (l *Locks) refs(ownerUserId string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ul, ok := l.locks[ownerUserId]; ok {
		return ul.refs
	}
	return 0
}
