// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ProComply Contributors

package webui

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/samber/oops"

	"github.com/procomply/procomply/internal/observability"
)

// Server hosts the local web UI.
type Server struct {
	addr       string
	router     *mux.Router
	listener   net.Listener
	httpServer *http.Server
	logger     *slog.Logger
	running    atomic.Bool
}

// NewServer builds the web UI server. publicPaths are glob patterns served
// without a session; metrics may be nil to disable request counting.
func NewServer(addr string, stores Stores, publicPaths []string, metrics *observability.Metrics, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	renderer, err := NewRenderer(logger)
	if err != nil {
		return nil, oops.Wrapf(err, "building renderer")
	}

	guard, err := NewGuard(stores.Sessions, publicPaths, renderer, logger)
	if err != nil {
		return nil, oops.Wrapf(err, "building route guard")
	}

	h := &handlers{stores: stores, renderer: renderer, metrics: metrics, logger: logger}

	router := mux.NewRouter()
	router.Use(metricsMiddleware(metrics))
	router.Use(guard.Middleware)

	router.HandleFunc("/", h.handleLanding).Methods(http.MethodGet)
	router.HandleFunc("/healthz", h.handleHealthz).Methods(http.MethodGet)
	router.PathPrefix("/static/").Handler(StaticHandler()).Methods(http.MethodGet)

	router.HandleFunc("/login", h.handleLoginForm).Methods(http.MethodGet)
	router.HandleFunc("/login", h.handleLogin).Methods(http.MethodPost)
	router.HandleFunc("/register", h.handleRegisterForm).Methods(http.MethodGet)
	router.HandleFunc("/register", h.handleRegister).Methods(http.MethodPost)
	router.HandleFunc("/logout", h.handleLogout).Methods(http.MethodPost)

	router.HandleFunc("/dashboard", h.handleDashboard).Methods(http.MethodGet)
	router.HandleFunc("/profile", h.handleProfile).Methods(http.MethodGet)
	router.HandleFunc("/profile", h.handleProfileUpdate).Methods(http.MethodPost)
	router.HandleFunc("/activities", h.handleActivities).Methods(http.MethodGet)
	router.HandleFunc("/activities", h.handleActivityCreate).Methods(http.MethodPost)
	router.HandleFunc("/activities/new", h.handleActivityNewForm).Methods(http.MethodGet)
	router.HandleFunc("/activities/{id}", h.handleActivityDetail).Methods(http.MethodGet)
	router.HandleFunc("/reports", h.handleReports).Methods(http.MethodGet)
	router.HandleFunc("/reports/download", h.handleReportDownload).Methods(http.MethodGet)

	// Unknown paths fall back to the dashboard; the guard turns that into
	// a redirect to the landing page when no session is established.
	router.NotFoundHandler = guard.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
	}))

	return &Server{addr: addr, router: router, logger: logger}, nil
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins serving the web UI. It returns an error channel that
// receives any serve failure; the channel closes on graceful shutdown.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("web UI server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			s.logger.Error("web UI server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	s.logger.Info("web UI server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts down the web UI server.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return oops.With("operation", "shutdown_webui_server").Wrap(err)
		}
	}

	s.logger.Info("web UI server stopped")
	return nil
}

// Addr returns the listen address, or empty when not running.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
