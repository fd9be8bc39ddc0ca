// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ProComply Contributors

//go:build integration

package integration

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/procomply/procomply/internal/api"
	"github.com/procomply/procomply/internal/config"
	"github.com/procomply/procomply/internal/cpd"
	"github.com/procomply/procomply/internal/profile"
	"github.com/procomply/procomply/internal/session"
	"github.com/procomply/procomply/internal/webui"
)

const loginOKBody = `{
	"message": "Login successful",
	"token": {"refresh": "r-token", "access": "a-token"},
	"engineer": {
		"email": "e@x.com",
		"first_name": "Ada",
		"last_name": "Wanjiru",
		"ebk_registration_number": "EBK/2020/1234"
	}
}`

const profileOKBody = `{
	"id": 1,
	"engineer_email": "e@x.com",
	"engineer_name": "Ada Wanjiru",
	"first_name": "Ada",
	"last_name": "Wanjiru",
	"ebk_registration_number": "EBK/2020/1234",
	"license_status": "Valid",
	"pdu_units_earned": 30,
	"pdu_units_required": 60,
	"pdu_units_remaining": 30
}`

// backendGate lets a spec hold the profile verification endpoint open
// until it decides to release it.
type backendGate struct {
	open     chan struct{}
	released atomic.Bool
}

func newBackendGate() *backendGate {
	return &backendGate{open: make(chan struct{})}
}

func (g *backendGate) release() {
	if g.released.CompareAndSwap(false, true) {
		close(g.open)
	}
}

func (g *backendGate) wait() {
	<-g.open
}

// newBackend returns an API stub. When gate is non-nil the profile
// endpoint blocks until the gate is released.
func newBackend(gate *backendGate) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /accounts/login/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(loginOKBody))
	})
	mux.HandleFunc("GET /accounts/profile/", func(w http.ResponseWriter, r *http.Request) {
		if gate != nil {
			gate.wait()
		}
		if r.Header.Get("Authorization") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail": "Authentication credentials were not provided."}`))
			return
		}
		_, _ = w.Write([]byte(profileOKBody))
	})
	mux.HandleFunc("GET /compliance/cpd-activities/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"id": 1, "title": "Structural design workshop", "activity_type": "EBK", "date_completed": "2026-02-12", "hours_spent": 6, "pdu_units_awarded": 6, "status": "APPROVED"}]`))
	})
	mux.HandleFunc("GET /compliance/cpd-summary/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"year": 2026, "total_pdus_earned": 30, "total_pdus_required": 50, "total_pdus_remaining": 20, "breakdown_by_category": {}}`))
	})
	return httptest.NewServer(mux)
}

// stack bundles everything a browser-facing test needs.
type stack struct {
	vault      *session.Vault
	sessions   *session.Store
	profiles   *profile.Store
	activities *cpd.Store
	ui         http.Handler
}

func newStack(backendURL, vaultDir string) *stack {
	logger := slog.New(slog.DiscardHandler)
	vault := session.NewVault(vaultDir)
	client := api.NewClient(backendURL, vault, api.WithLogger(logger))
	sessions := session.NewStore(client, vault, logger)
	profiles := profile.NewStore(client, logger)
	activities := cpd.NewStore(client, logger)

	srv, err := webui.NewServer("127.0.0.1:0", webui.Stores{
		Sessions:   sessions,
		Profiles:   profiles,
		Activities: activities,
	}, config.Default().Web.PublicPaths, nil, logger)
	Expect(err).NotTo(HaveOccurred())

	return &stack{
		vault:      vault,
		sessions:   sessions,
		profiles:   profiles,
		activities: activities,
		ui:         srv.Handler(),
	}
}

func (s *stack) get(path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.ui.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func (s *stack) postForm(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.ui.ServeHTTP(rec, req)
	return rec
}

func body(rec *httptest.ResponseRecorder) string {
	b, _ := io.ReadAll(rec.Body)
	return string(b)
}

var _ = Describe("Session lifecycle", func() {
	var (
		backend  *httptest.Server
		vaultDir string
		s        *stack
	)

	BeforeEach(func() {
		backend = newBackend(nil)
		DeferCleanup(backend.Close)
		vaultDir = GinkgoT().TempDir()
		s = newStack(backend.URL, vaultDir)
	})

	It("redirects anonymous visitors to the landing page", func() {
		Expect(s.sessions.CheckSession(context.Background())).To(Succeed())
		Expect(s.sessions.Snapshot().Status).To(Equal(session.StatusUnauthenticated))

		rec := s.get("/dashboard")
		Expect(rec.Code).To(Equal(http.StatusSeeOther))
		Expect(rec.Header().Get("Location")).To(Equal("/"))
	})

	It("signs in, browses, and signs out", func() {
		rec := s.postForm("/login", url.Values{
			"email":    {"e@x.com"},
			"password": {"secret"},
		})
		Expect(rec.Code).To(Equal(http.StatusSeeOther))
		Expect(rec.Header().Get("Location")).To(Equal("/dashboard"))

		token, err := s.vault.Token()
		Expect(err).NotTo(HaveOccurred())
		Expect(token).To(Equal("a-token"))

		rec = s.get("/dashboard")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(body(rec)).To(ContainSubstring("Ada Wanjiru"))

		rec = s.get("/activities")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(body(rec)).To(ContainSubstring("Structural design workshop"))

		rec = s.postForm("/logout", nil)
		Expect(rec.Code).To(Equal(http.StatusSeeOther))
		Expect(rec.Header().Get("Location")).To(Equal("/"))

		token, err = s.vault.Token()
		Expect(err).NotTo(HaveOccurred())
		Expect(token).To(BeEmpty())

		rec = s.get("/dashboard")
		Expect(rec.Code).To(Equal(http.StatusSeeOther))
	})

	It("restores the session from the vault after a restart", func() {
		Expect(s.sessions.Login(context.Background(), "e@x.com", "secret")).To(Succeed())

		restarted := newStack(backend.URL, vaultDir)

		rec := restarted.get("/dashboard")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Header().Get("Refresh")).To(Equal("1"))
		Expect(body(rec)).To(ContainSubstring("Checking your session"))

		Eventually(func() session.Status {
			return restarted.sessions.Snapshot().Status
		}).WithTimeout(2 * time.Second).Should(Equal(session.StatusAuthenticated))

		rec = restarted.get("/dashboard")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(body(rec)).To(ContainSubstring("Ada Wanjiru"))
	})

	It("discards a stale check result after logout", func() {
		gate := newBackendGate()
		gated := newBackend(gate)
		DeferCleanup(gated.Close)
		DeferCleanup(gate.release)

		gs := newStack(gated.URL, GinkgoT().TempDir())
		Expect(gs.vault.Store("persisted-token")).To(Succeed())

		rec := gs.get("/dashboard")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(body(rec)).To(ContainSubstring("Checking your session"))

		Eventually(func() session.Status {
			return gs.sessions.Snapshot().Status
		}).WithTimeout(2 * time.Second).Should(Equal(session.StatusChecking))

		Expect(gs.sessions.Logout()).To(Succeed())
		Expect(gs.sessions.Snapshot().Status).To(Equal(session.StatusUnauthenticated))

		gate.release()

		Consistently(func() session.Status {
			return gs.sessions.Snapshot().Status
		}).WithTimeout(300 * time.Millisecond).Should(Equal(session.StatusUnauthenticated))

		rec = gs.get("/dashboard")
		Expect(rec.Code).To(Equal(http.StatusSeeOther))
	})
})
