// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ProComply Contributors

package session

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "e@x.com",
		"exp": exp.Unix(),
	})
	raw, err := token.SignedString([]byte("test-key"))
	require.NoError(t, err)
	return raw
}

func TestTokenExpired(t *testing.T) {
	now := time.Now()

	t.Run("past exp is expired", func(t *testing.T) {
		raw := signedToken(t, now.Add(-time.Hour))
		assert.True(t, tokenExpired(raw, now))
	})

	t.Run("future exp is not expired", func(t *testing.T) {
		raw := signedToken(t, now.Add(time.Hour))
		assert.False(t, tokenExpired(raw, now))
	})

	t.Run("opaque tokens are never expired locally", func(t *testing.T) {
		assert.False(t, tokenExpired("not-a-jwt", now))
	})

	t.Run("jwt without exp is never expired locally", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "e@x.com"})
		raw, err := token.SignedString([]byte("test-key"))
		require.NoError(t, err)
		assert.False(t, tokenExpired(raw, now))
	})
}
