// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ProComply Contributors

package webui

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gobwas/glob"

	"github.com/procomply/procomply/internal/session"
)

// checkTimeout bounds the background session verification a guard kicks
// off when it sees an uninitialized session.
const checkTimeout = 30 * time.Second

// Guard decides per request whether a page may render. Public paths pass
// through untouched. Protected paths render only once the session store
// reports an authenticated session: while a check is in flight the guard
// serves an interstitial, and an unauthenticated visitor is redirected to
// the landing page. Protected content is never written in any other state.
type Guard struct {
	sessions *session.Store
	public   []glob.Glob
	renderer *Renderer
	logger   *slog.Logger
}

// NewGuard compiles the public path patterns and returns a guard.
// Patterns use '/' as the glob separator, so "/static/*" matches one
// path segment and "/static/**" matches any depth.
func NewGuard(sessions *session.Store, publicPaths []string, renderer *Renderer, logger *slog.Logger) (*Guard, error) {
	if logger == nil {
		logger = slog.Default()
	}
	public := make([]glob.Glob, 0, len(publicPaths))
	for _, pattern := range publicPaths {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("compiling public path pattern %q: %w", pattern, err)
		}
		public = append(public, g)
	}
	return &Guard{sessions: sessions, public: public, renderer: renderer, logger: logger}, nil
}

// Public reports whether path is served without a session.
func (g *Guard) Public(path string) bool {
	for _, p := range g.public {
		if p.Match(path) {
			return true
		}
	}
	return false
}

// Middleware wraps next with the route guard.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.Public(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		snap := g.sessions.Snapshot()
		switch snap.Status {
		case session.StatusAuthenticated:
			next.ServeHTTP(w, r)

		case session.StatusUninitialized:
			// First protected request after startup. Verify the persisted
			// token off the request goroutine and show the interstitial;
			// the meta refresh brings the browser back for the verdict.
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
				defer cancel()
				if err := g.sessions.CheckSession(ctx); err != nil {
					g.logger.Debug("session check failed", "error", err)
				}
			}()
			g.renderLoading(w)

		case session.StatusChecking:
			g.renderLoading(w)

		default:
			http.Redirect(w, r, "/", http.StatusSeeOther)
		}
	})
}

func (g *Guard) renderLoading(w http.ResponseWriter) {
	w.Header().Set("Refresh", "1")
	w.Header().Set("Cache-Control", "no-store")
	g.renderer.Render(w, http.StatusOK, "loading", Page{Title: "Checking session"})
}
