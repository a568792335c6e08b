// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package tokencache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testShortCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	t.Cleanup(cancel)
	return ctx
}

func TestLocks(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("concurrent-readers", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		l := NewLocks()
		r1, err := l.RLock(ctx, "alice")
		require.NoError(err)
		r2, err := l.RLock(testShortCtx(t), "alice")
		require.NoError(err)
		assert.Equal(2, l.refs("alice"))
		r1()
		r2()
		assert.Equal(0, l.Len())
	})
	t.Run("writer-excludes-readers-and-writers", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		l := NewLocks()
		w, err := l.Lock(ctx, "alice")
		require.NoError(err)

		_, err = l.RLock(testShortCtx(t), "alice")
		require.Error(err)
		assert.Truef(errors.Is(err, ErrLockUnavailable), "wanted \"%s\" but got \"%s\"", ErrLockUnavailable, err)
		assert.True(errors.Is(err, context.DeadlineExceeded))

		_, err = l.Lock(testShortCtx(t), "alice")
		assert.Truef(errors.Is(err, ErrLockUnavailable), "wanted \"%s\" but got \"%s\"", ErrLockUnavailable, err)

		w()
		r, err := l.RLock(testShortCtx(t), "alice")
		require.NoError(err)
		r()
		assert.Equal(0, l.Len())
	})
	t.Run("reader-excludes-writer", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		l := NewLocks()
		r, err := l.RLock(ctx, "alice")
		require.NoError(err)
		_, err = l.Lock(testShortCtx(t), "alice")
		assert.Truef(errors.Is(err, ErrLockUnavailable), "wanted \"%s\" but got \"%s\"", ErrLockUnavailable, err)
		r()
		w, err := l.Lock(testShortCtx(t), "alice")
		require.NoError(err)
		w()
	})
	t.Run("waiting-writer-blocks-new-readers", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		l := NewLocks()
		r1, err := l.RLock(ctx, "alice")
		require.NoError(err)

		acquired := make(chan func())
		go func() {
			w, err := l.Lock(ctx, "alice")
			if err == nil {
				acquired <- w
			}
		}()
		require.Eventually(func() bool { return l.refs("alice") == 2 }, time.Second, time.Millisecond)

		_, err = l.RLock(testShortCtx(t), "alice")
		assert.Truef(errors.Is(err, ErrLockUnavailable), "wanted \"%s\" but got \"%s\"", ErrLockUnavailable, err)

		r1()
		select {
		case w := <-acquired:
			w()
		case <-time.After(time.Second):
			t.Fatal("writer never acquired the lock")
		}
		assert.Equal(0, l.Len())
	})
	t.Run("users-are-independent", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		l := NewLocks()
		wa, err := l.Lock(ctx, "alice")
		require.NoError(err)
		wb, err := l.Lock(testShortCtx(t), "bob")
		require.NoError(err)
		assert.Equal(2, l.Len())
		wa()
		wb()
		assert.Equal(0, l.Len())
	})
	t.Run("release-is-idempotent", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		l := NewLocks()
		w, err := l.Lock(ctx, "alice")
		require.NoError(err)
		w()
		w()
		r1, err := l.RLock(ctx, "alice")
		require.NoError(err)
		w()
		assert.Equal(1, l.refs("alice"))
		r1()
		assert.Equal(0, l.Len())
	})
	t.Run("cancelled", func(t *testing.T) {
		assert := assert.New(t)
		l := NewLocks()
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := l.Lock(cancelled, "alice")
		assert.Truef(errors.Is(err, ErrLockUnavailable), "wanted \"%s\" but got \"%s\"", ErrLockUnavailable, err)
		assert.True(errors.Is(err, context.Canceled))
		assert.Equal(0, l.Len())
	})
	t.Run("empty-user", func(t *testing.T) {
		assert := assert.New(t)
		l := NewLocks()
		_, err := l.RLock(ctx, "")
		assert.Truef(errors.Is(err, ErrInvalidParameter), "wanted \"%s\" but got \"%s\"", ErrInvalidParameter, err)
	})
}
