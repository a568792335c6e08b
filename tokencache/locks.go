// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package tokencache

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

// writerWeight is the semaphore capacity of every user lock.  A reader holds
// one unit and a writer holds all of them.
const writerWeight = 1 << 16

// Locks hands out one reader/writer lock per owner user id.  Locks are created
// on first use and dropped once no request holds or waits for them, so users
// never contend with each other.
//
// Acquisition honors the context, and a waiting writer blocks readers that
// arrive after it, so a steady stream of loads can't starve a persist.
type Locks struct {
	mu    sync.Mutex
	locks map[string]*userLock
}

type userLock struct {
	sem  *semaphore.Weighted
	refs int
}

// NewLocks creates an empty set of per-user locks.
func NewLocks() *Locks {
	return &Locks{locks: map[string]*userLock{}}
}

// RLock acquires the read side of the user's lock.  The returned release func
// must be called exactly once; extra calls are ignored.
func (l *Locks) RLock(ctx context.Context, ownerUserId string) (release func(), err error) {
	return l.acquire(ctx, ownerUserId, 1)
}

// Lock acquires the write side of the user's lock.  The returned release func
// must be called exactly once; extra calls are ignored.
func (l *Locks) Lock(ctx context.Context, ownerUserId string) (release func(), err error) {
	return l.acquire(ctx, ownerUserId, writerWeight)
}

// Len returns the number of users with a lock currently held or awaited.
func (l *Locks) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

func (l *Locks) acquire(ctx context.Context, ownerUserId string, weight int64) (func(), error) {
	const op = "Locks.acquire"
	if ownerUserId == "" {
		return nil, fmt.Errorf("%s: owner user id is empty: %w", op, ErrInvalidParameter)
	}
	ul := l.ref(ownerUserId)
	if err := ul.sem.Acquire(ctx, weight); err != nil {
		l.unref(ownerUserId)
		return nil, fmt.Errorf("%s: %w: %w", op, ErrLockUnavailable, err)
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			ul.sem.Release(weight)
			l.unref(ownerUserId)
		})
	}, nil
}

func (l *Locks) ref(ownerUserId string) *userLock {
	l.mu.Lock()
	defer l.mu.Unlock()
	ul, ok := l.locks[ownerUserId]
	if !ok {
		ul = &userLock{sem: semaphore.NewWeighted(writerWeight)}
		l.locks[ownerUserId] = ul
	}
	ul.refs++
	return ul
}

func (l *Locks) unref(ownerUserId string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ul, ok := l.locks[ownerUserId]
	if !ok {
		return
	}
	ul.refs--
	if ul.refs <= 0 {
		delete(l.locks, ownerUserId)
	}
}
