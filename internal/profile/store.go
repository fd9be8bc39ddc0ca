// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ProComply Contributors

package profile

import (
	"context"
	"log/slog"
	"sync"

	"github.com/samber/oops"

	"github.com/procomply/procomply/internal/api"
)

// pathProfile is the profile endpoint (GET fetch, PUT partial update).
const pathProfile = "/accounts/profile/"

// State is a consistent copy of the store at one instant.
type State struct {
	Profile   *Profile
	Loading   bool
	LastError string
}

// Store holds the fetched engineer profile. It depends on an established
// session only implicitly: the shared API client signs requests, and the
// backend rejects unsigned ones. Construct a fresh Store per process or
// test case; methods are safe for concurrent use.
type Store struct {
	client *api.Client
	logger *slog.Logger

	mu       sync.Mutex
	profile  *Profile
	loading  bool
	lastErr  string
	fetchErr error
	// inflight is non-nil while a fetch is running; concurrent fetches
	// wait on it instead of issuing duplicate network calls.
	inflight chan struct{}
}

// NewStore creates an empty profile store.
func NewStore(client *api.Client, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{client: client, logger: logger}
}

// State returns a consistent copy of the current store state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Store) stateLocked() State {
	st := State{Loading: s.loading, LastError: s.lastErr}
	if s.profile != nil {
		p := *s.profile
		st.Profile = &p
	}
	return st
}

// Fetch retrieves the profile from the remote API. Rapid concurrent calls
// are coalesced into one network request; every coalesced caller observes
// the first call's outcome. On failure the cached profile is cleared and
// an error message recorded.
func (s *Store) Fetch(ctx context.Context) (*Profile, error) {
	s.mu.Lock()
	if ch := s.inflight; ch != nil {
		s.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return nil, oops.Code(api.CodeTransport).Wrapf(ctx.Err(), "waiting for in-flight fetch")
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.fetchErr != nil {
			return nil, s.fetchErr
		}
		if s.profile == nil {
			// Cleared by a logout between the fetch settling and this
			// waiter waking up.
			return nil, oops.Code(api.CodeTransport).Errorf("profile cleared during fetch")
		}
		p := *s.profile
		return &p, nil
	}
	ch := make(chan struct{})
	s.inflight = ch
	s.loading = true
	s.lastErr = ""
	s.mu.Unlock()

	var fetched Profile
	err := s.client.Get(ctx, pathProfile, &fetched)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	s.inflight = nil
	close(ch)

	if err != nil {
		s.profile = nil
		s.lastErr = api.UserMessage(err)
		s.fetchErr = err
		return nil, err
	}
	s.profile = &fetched
	s.fetchErr = nil
	p := fetched
	return &p, nil
}

// Update applies a partial plain-field update and re-normalizes the
// response exactly as Fetch does.
func (s *Store) Update(ctx context.Context, update Update) (*Profile, error) {
	var updated Profile
	err := s.client.Put(ctx, pathProfile, update, &updated)
	return s.applyUpdate(&updated, err)
}

// UpdateMultipart applies an update carrying form fields and an optional
// file attachment (the profile photo). The response is normalized to the
// same shape a plain-field update produces.
func (s *Store) UpdateMultipart(ctx context.Context, fields map[string]string, file *api.FileAttachment) (*Profile, error) {
	var updated Profile
	err := s.client.PutMultipart(ctx, pathProfile, fields, file, &updated)
	return s.applyUpdate(&updated, err)
}

func (s *Store) applyUpdate(updated *Profile, err error) (*Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		// Update failures keep the last known profile; only the error
		// message changes.
		s.lastErr = api.UserMessage(err)
		return nil, err
	}
	s.profile = updated
	s.lastErr = ""
	p := *updated
	return &p, nil
}

// Clear drops the cached profile and error. Wired to session logout at the
// composition root.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile = nil
	s.lastErr = ""
	s.fetchErr = nil
}
