// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package tokencache

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAdapter(t *testing.T, store *testStore, locks *Locks) (*Adapter, *testContents) {
	t.Helper()
	require := require.New(t)
	contents := &testContents{}
	c, err := NewUserCache(context.Background(), "alice", store, locks, contents)
	require.NoError(err)
	a, err := NewAdapter(c)
	require.NoError(err)
	return a, contents
}

func TestNewAdapter(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	_, err := NewAdapter(nil)
	assert.Truef(errors.Is(err, ErrNilParameter), "wanted \"%s\" but got \"%s\"", ErrNilParameter, err)
}

func TestAdapter_Access(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("loads-before-each-access", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		store, locks := newTestStore(), NewLocks()
		first, _ := testAdapter(t, store, locks)
		second, secondContents := testAdapter(t, store, locks)

		// the first request rotates tokens after the second one started
		require.NoError(first.Access(ctx, func(context.Context) (bool, error) {
			first.Cache().Contents().(*testContents).add("rotated")
			return true, nil
		}))

		var seen []string
		require.NoError(second.Access(ctx, func(context.Context) (bool, error) {
			seen = secondContents.get()
			return false, nil
		}))
		assert.Equal([]string{"rotated"}, seen)
	})
	t.Run("changed-is-persisted", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		store := newTestStore()
		a, contents := testAdapter(t, store, NewLocks())
		require.NoError(a.Access(ctx, func(context.Context) (bool, error) {
			contents.add("at1")
			return true, nil
		}))
		assert.Equal(int32(1), store.sets.Load())
		assert.False(a.Cache().HasUnpersistedChanges())
		got, ok := store.Get(CacheKey("alice"))
		require.True(ok)
		assert.JSONEq(`["at1"]`, string(got))
	})
	t.Run("unchanged-is-not-persisted", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		store := newTestStore()
		a, _ := testAdapter(t, store, NewLocks())
		require.NoError(a.Access(ctx, func(context.Context) (bool, error) { return false, nil }))
		assert.Equal(int32(0), store.sets.Load())
	})
	t.Run("marked-dirty-is-persisted", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		store := newTestStore()
		a, contents := testAdapter(t, store, NewLocks())
		require.NoError(a.Access(ctx, func(context.Context) (bool, error) {
			contents.add("at1")
			a.Cache().MarkDirty()
			return false, nil
		}))
		assert.Equal(int32(1), store.sets.Load())
	})
	t.Run("func-error-skips-persist", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		store, locks := newTestStore(), NewLocks()
		a, contents := testAdapter(t, store, locks)
		want := errors.New("refresh rejected")
		err := a.Access(ctx, func(context.Context) (bool, error) {
			contents.add("partial")
			return true, want
		})
		require.Error(err)
		assert.Equal(want, err)
		assert.Equal(int32(0), store.sets.Load())
		assert.Equal(0, locks.Len())

		release, err := locks.Lock(testShortCtx(t), "alice")
		require.NoError(err)
		release()
	})
	t.Run("cancelled", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		locks := NewLocks()
		a, _ := testAdapter(t, newTestStore(), locks)
		release, err := locks.Lock(ctx, "alice")
		require.NoError(err)
		defer release()

		called := false
		err = a.Access(testShortCtx(t), func(context.Context) (bool, error) {
			called = true
			return false, nil
		})
		assert.Truef(errors.Is(err, ErrLockUnavailable), "wanted \"%s\" but got \"%s\"", ErrLockUnavailable, err)
		assert.False(called)
	})
	t.Run("nil-func", func(t *testing.T) {
		assert := assert.New(t)
		a, _ := testAdapter(t, newTestStore(), NewLocks())
		err := a.Access(ctx, nil)
		assert.Truef(errors.Is(err, ErrNilParameter), "wanted \"%s\" but got \"%s\"", ErrNilParameter, err)
	})
}
