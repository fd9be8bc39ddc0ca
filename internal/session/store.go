// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ProComply Contributors

package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/procomply/procomply/internal/api"
	"github.com/procomply/procomply/pkg/errutil"
)

// API paths owned by the session store. Verification reuses the profile
// endpoint: a token the API accepts there is a valid session.
const (
	pathLogin    = "/accounts/login/"
	pathRegister = "/accounts/register/"
	pathVerify   = "/accounts/profile/"
)

// Status is the authentication lifecycle state.
type Status int

// Lifecycle: Uninitialized -> Checking -> {Authenticated, Unauthenticated};
// Authenticated <-> Unauthenticated via login/logout. No other transitions.
const (
	StatusUninitialized Status = iota
	StatusChecking
	StatusAuthenticated
	StatusUnauthenticated
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusUninitialized:
		return "uninitialized"
	case StatusChecking:
		return "checking"
	case StatusAuthenticated:
		return "authenticated"
	case StatusUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// Principal is the authenticated engineer identity returned by the API.
type Principal struct {
	Email              string `json:"email"`
	FirstName          string `json:"first_name"`
	LastName           string `json:"last_name"`
	RegistrationNumber string `json:"ebk_registration_number"`
}

// FullName returns the engineer's display name.
func (p Principal) FullName() string {
	switch {
	case p.FirstName == "":
		return p.LastName
	case p.LastName == "":
		return p.FirstName
	default:
		return p.FirstName + " " + p.LastName
	}
}

// Snapshot is a consistent copy of the session state at one instant.
type Snapshot struct {
	Status    Status
	Principal *Principal
	LastError string
}

// Authenticated reports whether the snapshot carries an established session.
func (s Snapshot) Authenticated() bool { return s.Status == StatusAuthenticated }

// Subscriber receives a snapshot after every state transition.
type Subscriber func(Snapshot)

// Registration is the payload for creating a new engineer account.
type Registration struct {
	Email              string `json:"email"`
	Password           string `json:"password"`
	FirstName          string `json:"first_name"`
	LastName           string `json:"last_name"`
	RegistrationNumber string `json:"ebk_registration_number,omitempty"`
}

// Store owns the client-side authentication lifecycle: login, registration,
// logout, and verification of a persisted token at startup. It is the only
// writer of the credential vault. Construct a fresh Store per process (or
// per test case); all methods are safe for concurrent use.
type Store struct {
	client *api.Client
	vault  *Vault
	logger *slog.Logger

	// checkMu serializes verification cycles so duplicate concurrent
	// CheckSession calls cannot interleave inconsistent transitions.
	checkMu sync.Mutex

	mu        sync.Mutex
	status    Status
	principal *Principal
	lastError string
	// gen increments on every login/logout. In-flight responses capture the
	// generation they started under and are discarded if it moved on, so a
	// stale success can never re-authenticate the UI after a logout.
	gen     uint64
	subs    map[int]Subscriber
	nextSub int
}

// NewStore creates a session store in the uninitialized state.
func NewStore(client *api.Client, vault *Vault, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		client: client,
		vault:  vault,
		logger: logger,
		status: StatusUninitialized,
		subs:   make(map[int]Subscriber),
	}
}

// Snapshot returns a consistent copy of the current session state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{Status: s.status, LastError: s.lastError}
	if s.principal != nil {
		p := *s.principal
		snap.Principal = &p
	}
	return snap
}

// Subscribe registers fn to be called after every state transition and
// returns an unsubscribe function. fn runs outside the store lock.
func (s *Store) Subscribe(fn Subscriber) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// apply runs mutate under the lock, then notifies subscribers with the
// resulting snapshot after releasing it.
func (s *Store) apply(mutate func()) {
	s.mu.Lock()
	mutate()
	snap := s.snapshotLocked()
	subs := make([]Subscriber, 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}

// applyIfCurrent is apply gated on the generation counter: mutate runs only
// if no login/logout happened since gen was captured. Reports whether the
// mutation was applied.
func (s *Store) applyIfCurrent(gen uint64, mutate func()) bool {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return false
	}
	mutate()
	snap := s.snapshotLocked()
	subs := make([]Subscriber, 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
	return true
}

// CheckSession verifies any persisted token against the remote API and
// settles the session state. With no stored token it resolves to
// unauthenticated immediately, without network I/O. A verification
// failure purges the token it checked, unless a login or logout settled
// the session in the meantime. Safe to call repeatedly; each call
// re-verifies.
func (s *Store) CheckSession(ctx context.Context) error {
	s.checkMu.Lock()
	defer s.checkMu.Unlock()

	token, err := s.vault.Token()
	if err != nil {
		// An unreadable slot counts as absent.
		errutil.LogError(s.logger, "reading credential token", err)
		token = ""
	}
	if token == "" {
		s.apply(func() {
			s.status = StatusUnauthenticated
			s.principal = nil
		})
		return nil
	}

	// A token that is provably expired is purged without a round-trip.
	if tokenExpired(token, time.Now()) {
		if clearErr := s.vault.Clear(); clearErr != nil {
			errutil.LogError(s.logger, "purging expired token", clearErr)
		}
		s.apply(func() {
			s.status = StatusUnauthenticated
			s.principal = nil
		})
		return nil
	}

	var gen uint64
	s.apply(func() {
		s.status = StatusChecking
		s.lastError = ""
		gen = s.gen
	})

	var payload verifyPayload
	verifyErr := s.client.Get(ctx, pathVerify, &payload)

	if verifyErr != nil {
		s.applyIfCurrent(gen, func() {
			// A failure invalidates the token this check verified: an
			// ambiguous half-authenticated state is worse than asking the
			// user to log in again. A login that raced the verification
			// owns the vault now, so its token must survive this purge.
			if current, readErr := s.vault.Token(); readErr == nil && current == token {
				if clearErr := s.vault.Clear(); clearErr != nil {
					errutil.LogError(s.logger, "purging rejected token", clearErr)
				}
			}
			s.status = StatusUnauthenticated
			s.principal = nil
			s.lastError = api.UserMessage(verifyErr)
		})
		return verifyErr
	}

	s.applyIfCurrent(gen, func() {
		s.status = StatusAuthenticated
		s.principal = payload.principal()
		s.lastError = ""
	})
	return nil
}

// loginResponse mirrors the login endpoint's payload. Only the access token
// is kept; the refresh token is discarded (see DESIGN.md).
type loginResponse struct {
	Message string `json:"message"`
	Token   struct {
		Refresh string `json:"refresh"`
		Access  string `json:"access"`
	} `json:"token"`
	Engineer Principal `json:"engineer"`
}

// Login authenticates with email/password. On success the access token is
// persisted and the store becomes authenticated with the returned
// principal. On failure the prior state is left untouched apart from
// LastError; the returned error distinguishes invalid credentials
// (api.IsAuthError / api.IsValidationError) from transport faults
// (api.IsTransportError).
func (s *Store) Login(ctx context.Context, email, password string) error {
	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()

	var resp loginResponse
	err := s.client.Post(ctx, pathLogin, map[string]string{
		"email":    email,
		"password": password,
	}, &resp)
	if err != nil {
		s.applyIfCurrent(gen, func() { s.lastError = api.UserMessage(err) })
		return err
	}

	if resp.Token.Access == "" {
		err := oops.Code(api.CodeServer).
			With("path", pathLogin).
			Errorf("login response carried no access token")
		s.applyIfCurrent(gen, func() { s.lastError = api.UserMessage(err) })
		return err
	}

	// Persist before flipping state so the stored token and the in-memory
	// status cannot disagree if the write fails.
	if storeErr := s.vault.Store(resp.Token.Access); storeErr != nil {
		s.applyIfCurrent(gen, func() { s.lastError = "Could not save your session. Please try again." })
		return storeErr
	}

	principal := resp.Engineer
	applied := s.applyIfCurrent(gen, func() {
		s.gen++
		s.status = StatusAuthenticated
		s.principal = &principal
		s.lastError = ""
	})
	if !applied {
		// A logout raced this login and wins; the token just written
		// belongs to a session the caller no longer has.
		if clearErr := s.vault.Clear(); clearErr != nil {
			errutil.LogError(s.logger, "discarding superseded login token", clearErr)
		}
		return oops.Code("SESSION_STALE").
			Errorf("login superseded by a concurrent logout")
	}
	return nil
}

// registerResponse mirrors the registration endpoint's payload.
type registerResponse struct {
	Message  string    `json:"message"`
	Engineer Principal `json:"engineer"`
}

// Register creates a new engineer account. It does NOT establish a session;
// a separate Login follows. API validation errors are surfaced verbatim via
// api.FieldErrors.
func (s *Store) Register(ctx context.Context, reg Registration) (*Principal, error) {
	var resp registerResponse
	if err := s.client.Post(ctx, pathRegister, reg, &resp); err != nil {
		s.apply(func() { s.lastError = api.UserMessage(err) })
		return nil, err
	}
	return &resp.Engineer, nil
}

// Logout purges the persisted token, clears the principal, and settles on
// unauthenticated. The local clear is unconditional: a failure to remove
// the token file is reported but never blocks the logout.
func (s *Store) Logout() error {
	var clearErr error
	if err := s.vault.Clear(); err != nil {
		errutil.LogError(s.logger, "clearing credential token on logout", err)
		clearErr = err
	}
	s.apply(func() {
		s.gen++
		s.status = StatusUnauthenticated
		s.principal = nil
		s.lastError = ""
	})
	return clearErr
}

// verifyPayload is the slice of the profile endpoint the session store
// needs to rebuild a principal during verification.
type verifyPayload struct {
	EngineerEmail      string `json:"engineer_email"`
	FirstName          string `json:"first_name"`
	LastName           string `json:"last_name"`
	RegistrationNumber string `json:"ebk_registration_number"`
}

func (v verifyPayload) principal() *Principal {
	return &Principal{
		Email:              v.EngineerEmail,
		FirstName:          v.FirstName,
		LastName:           v.LastName,
		RegistrationNumber: v.RegistrationNumber,
	}
}
