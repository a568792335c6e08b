// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewState(t *testing.T) {
	t.Parallel()
	skew := 250 * time.Millisecond
	defaultExpireIn := 1 * time.Second
	testNow := func() time.Time {
		return time.Now().Add(-1 * time.Minute)
	}
	tests := []struct {
		name         string
		expireIn     time.Duration
		opts         []Option
		wantNowFunc  bool
		wantPolicy   string
		wantReturnTo string
		wantErr      bool
		wantIsErr    error
	}{
		{
			name:         "valid-with-all-options",
			expireIn:     defaultExpireIn,
			opts:         []Option{WithNow(testNow), WithPolicy("B2C_1_reset"), WithReturnTo("/secure")},
			wantNowFunc:  true,
			wantPolicy:   "B2C_1_reset",
			wantReturnTo: "/secure",
		},
		{
			name:     "valid-no-opt",
			expireIn: defaultExpireIn,
		},
		{
			name:      "zero-expireIn",
			expireIn:  0,
			wantErr:   true,
			wantIsErr: ErrInvalidParameter,
		},
		{
			name:      "negative-expireIn",
			expireIn:  -1 * time.Second,
			wantErr:   true,
			wantIsErr: ErrInvalidParameter,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			got, err := NewState(tt.expireIn, tt.opts...)
			if tt.wantErr {
				require.Error(err)
				assert.Truef(errors.Is(err, tt.wantIsErr), "wanted \"%s\" but got \"%s\"", tt.wantIsErr, err)
				return
			}
			require.NoError(err)
			tExp := got.now().Add(tt.expireIn)
			assert.True(got.expiration.Before(tExp.Add(skew)))
			assert.True(got.expiration.After(tExp.Add(-skew)))
			assert.NotEqualf(got.Id(), got.Nonce(), "%s id should not equal %s nonce", got.Id(), got.Nonce())
			assert.NotEmpty(got.Id())
			assert.NotEmpty(got.Nonce())
			assert.Equal(tt.wantNowFunc, got.nowFunc != nil)
			assert.Equal(tt.wantPolicy, got.Policy())
			assert.Equal(tt.wantReturnTo, got.ReturnTo())
		})
	}
}

func TestState_IsExpired(t *testing.T) {
	t.Parallel()
	t.Run("not-expired", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		s, err := NewState(2 * time.Second)
		require.NoError(err)
		assert.False(s.IsExpired())
	})
	t.Run("expired", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		s, err := NewState(1 * time.Nanosecond)
		require.NoError(err)
		assert.True(s.IsExpired())
	})
	t.Run("skew", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		s, err := NewState(2 * time.Second)
		require.NoError(err)
		assert.True(s.IsExpired(WithExpirySkew(5 * time.Second)))
	})
}

func TestState_JSON(t *testing.T) {
	t.Parallel()
	t.Run("round-trip", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		s, err := NewState(time.Minute, WithPolicy("B2C_1_edit"), WithReturnTo("/"))
		require.NoError(err)
		b, err := json.Marshal(s)
		require.NoError(err)

		got := &St{}
		require.NoError(json.Unmarshal(b, got))
		assert.Equal(s.Id(), got.Id())
		assert.Equal(s.Nonce(), got.Nonce())
		assert.Equal(s.Policy(), got.Policy())
		assert.Equal(s.ReturnTo(), got.ReturnTo())
		assert.True(s.expiration.Equal(got.expiration))
		assert.False(got.IsExpired())
	})
	t.Run("missing-nonce", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		got := &St{}
		err := json.Unmarshal([]byte(`{"id":"st_1"}`), got)
		require.Error(err)
		assert.Truef(errors.Is(err, ErrInvalidParameter), "wanted \"%s\" but got \"%s\"", ErrInvalidParameter, err)
	})
}
