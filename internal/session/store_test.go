// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ProComply Contributors

package session_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/procomply/procomply/internal/api"
	"github.com/procomply/procomply/internal/session"
)

const (
	loginOKBody = `{
		"message": "Login successful!",
		"token": {"refresh": "r-token", "access": "abc"},
		"engineer": {
			"email": "e@x.com",
			"first_name": "Ada",
			"last_name": "Wanjiru",
			"ebk_registration_number": "EBK/2020/1234"
		}
	}`
	profileOKBody = `{
		"engineer_email": "e@x.com",
		"first_name": "Ada",
		"last_name": "Wanjiru",
		"ebk_registration_number": "EBK/2020/1234",
		"pdu_units_earned": 12,
		"pdu_units_required": 60
	}`
)

func discardLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }

// expiredJWT builds a syntactically valid JWT whose exp is already past.
func expiredJWT(t *testing.T) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "e@x.com",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	raw, err := token.SignedString([]byte("test-key"))
	require.NoError(t, err)
	return raw
}

// newStore wires a Store against an httptest-backed API and a temp-dir vault.
func newStore(t *testing.T, handler http.Handler) (*session.Store, *session.Vault) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	vault := session.NewVault(t.TempDir())
	client := api.NewClient(srv.URL, vault, api.WithLogger(discardLogger()))
	return session.NewStore(client, vault, discardLogger()), vault
}

func TestLoginThenLogout_TokenLifecycle(t *testing.T) {
	store, vault := newStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/accounts/login/", r.URL.Path)
		_, _ = w.Write([]byte(loginOKBody))
	}))

	require.NoError(t, store.Login(context.Background(), "e@x.com", "p"))

	token, err := vault.Token()
	require.NoError(t, err)
	assert.Equal(t, "abc", token, "token persisted after login")

	snap := store.Snapshot()
	assert.Equal(t, session.StatusAuthenticated, snap.Status)
	require.NotNil(t, snap.Principal)
	assert.Equal(t, "e@x.com", snap.Principal.Email)
	assert.Equal(t, "Ada Wanjiru", snap.Principal.FullName())

	require.NoError(t, store.Logout())

	token, err = vault.Token()
	require.NoError(t, err)
	assert.Empty(t, token, "token absent after logout")

	snap = store.Snapshot()
	assert.Equal(t, session.StatusUnauthenticated, snap.Status)
	assert.Nil(t, snap.Principal)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	store, vault := newStore(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail": "Invalid email or password"}`))
	}))

	err := store.Login(context.Background(), "e@x.com", "wrong")

	require.Error(t, err)
	assert.True(t, api.IsAuthError(err), "invalid credentials are distinguishable from transport faults")

	snap := store.Snapshot()
	assert.Equal(t, session.StatusUninitialized, snap.Status, "prior state untouched")
	assert.Nil(t, snap.Principal)
	assert.NotEmpty(t, snap.LastError)

	token, tokenErr := vault.Token()
	require.NoError(t, tokenErr)
	assert.Empty(t, token, "storage unchanged")
}

func TestLogin_TransportFailureIsDistinguishable(t *testing.T) {
	vault := session.NewVault(t.TempDir())
	// Nothing listens on this origin.
	client := api.NewClient("http://127.0.0.1:1", vault, api.WithLogger(discardLogger()))
	store := session.NewStore(client, vault, discardLogger())

	err := store.Login(context.Background(), "e@x.com", "p")

	require.Error(t, err)
	assert.True(t, api.IsTransportError(err))
	assert.False(t, api.IsAuthError(err))
}

func TestCheckSession_NoTokenSkipsNetwork(t *testing.T) {
	var calls atomic.Int32
	store, _ := newStore(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(profileOKBody))
	}))

	require.NoError(t, store.CheckSession(context.Background()))

	assert.Equal(t, session.StatusUnauthenticated, store.Snapshot().Status)
	assert.Equal(t, int32(0), calls.Load(), "no network call without a stored token")
}

func TestCheckSession_ValidToken(t *testing.T) {
	store, vault := newStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer stored-token", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(profileOKBody))
	}))
	require.NoError(t, vault.Store("stored-token"))

	require.NoError(t, store.CheckSession(context.Background()))

	snap := store.Snapshot()
	assert.Equal(t, session.StatusAuthenticated, snap.Status)
	require.NotNil(t, snap.Principal)
	assert.Equal(t, "e@x.com", snap.Principal.Email)
}

func TestCheckSession_RejectedTokenPurgesStorage(t *testing.T) {
	store, vault := newStore(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail": "Token is invalid or expired"}`))
	}))
	require.NoError(t, vault.Store("stale-token"))

	err := store.CheckSession(context.Background())

	require.Error(t, err)
	assert.Equal(t, session.StatusUnauthenticated, store.Snapshot().Status)

	token, tokenErr := vault.Token()
	require.NoError(t, tokenErr)
	assert.Empty(t, token, "rejected token removed from storage")
}

func TestCheckSession_ExpiredJWTPurgedWithoutNetwork(t *testing.T) {
	var calls atomic.Int32
	store, vault := newStore(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(profileOKBody))
	}))
	require.NoError(t, vault.Store(expiredJWT(t)))

	require.NoError(t, store.CheckSession(context.Background()))

	assert.Equal(t, session.StatusUnauthenticated, store.Snapshot().Status)
	assert.Equal(t, int32(0), calls.Load())

	token, err := vault.Token()
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestCheckSession_Idempotent(t *testing.T) {
	store, vault := newStore(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(profileOKBody))
	}))
	require.NoError(t, vault.Store("stored-token"))

	require.NoError(t, store.CheckSession(context.Background()))
	require.NoError(t, store.CheckSession(context.Background()))

	assert.Equal(t, session.StatusAuthenticated, store.Snapshot().Status)
}

func TestLogoutDuringPendingCheck_StaysUnauthenticated(t *testing.T) {
	defer goleak.VerifyNone(t)

	gate := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-gate
		_, _ = w.Write([]byte(profileOKBody))
	}))
	defer srv.Close()

	vault := session.NewVault(t.TempDir())
	client := api.NewClient(srv.URL, vault, api.WithLogger(discardLogger()))
	store := session.NewStore(client, vault, discardLogger())
	require.NoError(t, vault.Store("stored-token"))

	checking := make(chan struct{}, 1)
	unsubscribe := store.Subscribe(func(snap session.Snapshot) {
		if snap.Status == session.StatusChecking {
			select {
			case checking <- struct{}{}:
			default:
			}
		}
	})
	defer unsubscribe()

	done := make(chan error, 1)
	go func() { done <- store.CheckSession(context.Background()) }()

	// Wait for the verification call to be in flight, then log out before
	// it resolves.
	select {
	case <-checking:
	case <-time.After(5 * time.Second):
		t.Fatal("verification never started")
	}
	require.NoError(t, store.Logout())

	// Let the pending verification resolve with a success.
	close(gate)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("CheckSession never returned")
	}

	snap := store.Snapshot()
	assert.Equal(t, session.StatusUnauthenticated, snap.Status,
		"stale verification success must not re-authenticate after logout")
	assert.Nil(t, snap.Principal)

	token, err := vault.Token()
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestLoginDuringPendingCheck_KeepsFreshToken(t *testing.T) {
	defer goleak.VerifyNone(t)

	gate := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/accounts/login/" {
			_, _ = w.Write([]byte(loginOKBody))
			return
		}
		// The verification of the stale token resolves only after the
		// login has completed.
		<-gate
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail": "Token is invalid or expired"}`))
	}))
	defer srv.Close()

	vault := session.NewVault(t.TempDir())
	client := api.NewClient(srv.URL, vault, api.WithLogger(discardLogger()))
	store := session.NewStore(client, vault, discardLogger())
	require.NoError(t, vault.Store("stale-token"))

	checking := make(chan struct{}, 1)
	unsubscribe := store.Subscribe(func(snap session.Snapshot) {
		if snap.Status == session.StatusChecking {
			select {
			case checking <- struct{}{}:
			default:
			}
		}
	})
	defer unsubscribe()

	done := make(chan error, 1)
	go func() { done <- store.CheckSession(context.Background()) }()

	select {
	case <-checking:
	case <-time.After(5 * time.Second):
		t.Fatal("verification never started")
	}
	require.NoError(t, store.Login(context.Background(), "e@x.com", "p"))

	// Let the stale verification resolve with its 401.
	close(gate)
	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("CheckSession never returned")
	}

	snap := store.Snapshot()
	assert.Equal(t, session.StatusAuthenticated, snap.Status,
		"stale verification failure must not sign out a login that won the race")
	require.NotNil(t, snap.Principal)

	token, err := vault.Token()
	require.NoError(t, err)
	assert.Equal(t, "abc", token, "the login's token stays persisted")
}

func TestConcurrentChecksDoNotInterleave(t *testing.T) {
	defer goleak.VerifyNone(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(profileOKBody))
	}))
	defer srv.Close()

	vault := session.NewVault(t.TempDir())
	client := api.NewClient(srv.URL, vault, api.WithLogger(discardLogger()))
	store := session.NewStore(client, vault, discardLogger())
	require.NoError(t, vault.Store("stored-token"))

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.CheckSession(context.Background())
		}()
	}
	wg.Wait()

	assert.Equal(t, session.StatusAuthenticated, store.Snapshot().Status)
}

func TestRegister_DoesNotEstablishSession(t *testing.T) {
	store, vault := newStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/accounts/register/", r.URL.Path)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{
			"message": "Engineer registered successfully!",
			"engineer": {"email": "new@x.com", "first_name": "Grace", "last_name": "Otieno"}
		}`))
	}))

	principal, err := store.Register(context.Background(), session.Registration{
		Email:     "new@x.com",
		Password:  "p",
		FirstName: "Grace",
		LastName:  "Otieno",
	})

	require.NoError(t, err)
	assert.Equal(t, "new@x.com", principal.Email)

	assert.NotEqual(t, session.StatusAuthenticated, store.Snapshot().Status)
	token, tokenErr := vault.Token()
	require.NoError(t, tokenErr)
	assert.Empty(t, token)
}

func TestRegister_ValidationErrorsVerbatim(t *testing.T) {
	store, _ := newStore(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ebk_registration_number": ["EBK registration number must be alphanumeric and uppercase."]}`))
	}))

	_, err := store.Register(context.Background(), session.Registration{Email: "new@x.com", Password: "p"})

	require.Error(t, err)
	require.True(t, api.IsValidationError(err))
	fields := api.FieldErrors(err)
	assert.Equal(t,
		[]string{"EBK registration number must be alphanumeric and uppercase."},
		fields["ebk_registration_number"])
}

func TestSubscribe_ObservesTransitions(t *testing.T) {
	store, vault := newStore(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(profileOKBody))
	}))
	require.NoError(t, vault.Store("stored-token"))

	var mu sync.Mutex
	var seen []session.Status
	unsubscribe := store.Subscribe(func(snap session.Snapshot) {
		mu.Lock()
		seen = append(seen, snap.Status)
		mu.Unlock()
	})
	defer unsubscribe()

	require.NoError(t, store.CheckSession(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []session.Status{session.StatusChecking, session.StatusAuthenticated}, seen)
}
