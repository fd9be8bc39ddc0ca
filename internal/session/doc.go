// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ProComply Contributors

// Package session owns the client-side authentication lifecycle.
//
// # State machine
//
// A Store moves through uninitialized -> checking -> {authenticated,
// unauthenticated}, then cycles between authenticated and unauthenticated
// via Login and Logout for the lifetime of the process. No other
// transitions exist.
//
// # Token ownership
//
// The Vault is the single durable slot for the bearer credential, and the
// Store is its only writer. Every other component reads the token
// indirectly, through the HTTP client attaching it to outgoing requests.
// The invariant maintained by every operation: the persisted token is
// present exactly when the most recent successful login has not been
// logged out or invalidated.
//
// # Staleness
//
// Login and verification responses resolve asynchronously. A generation
// counter bumped on every login/logout lets the Store discard responses
// that started under an earlier session, so a logout is always observable
// before any later-resolving request can re-authenticate the UI.
package session
