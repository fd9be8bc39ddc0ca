// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ProComply Contributors

package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenExpired reports whether raw is a JWT whose exp claim is already in
// the past at the given time. The signature is never checked here; validity
// is the remote API's call. A token that is provably expired can still be
// purged without spending a doomed verification round-trip.
// Tokens that don't parse as JWTs or carry no exp claim are never treated
// as expired locally.
func tokenExpired(raw string, now time.Time) bool {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(now)
}
