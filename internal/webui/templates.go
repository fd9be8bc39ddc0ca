// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ProComply Contributors

// Package webui serves the local browser interface: a navigation shell
// around the dashboard, profile, and CPD pages, with a route guard that
// keeps protected pages behind an established session.
package webui

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"

	"github.com/procomply/procomply/internal/observability"
	"github.com/procomply/procomply/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// layoutFile is the navigation shell every page renders inside.
const layoutFile = "templates/layout.html"

// Page carries everything the layout and a content template need.
type Page struct {
	Title     string
	Principal *session.Principal
	Error     string
	Notice    string
	Fields    map[string][]string
	Data      any
}

// Renderer executes embedded page templates inside the shared layout.
type Renderer struct {
	pages  map[string]*template.Template
	logger *slog.Logger
}

// NewRenderer parses all embedded page templates.
func NewRenderer(logger *slog.Logger) (*Renderer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	funcs := template.FuncMap{
		"join": strings.Join,
	}

	entries, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("globbing templates: %w", err)
	}

	pages := make(map[string]*template.Template)
	for _, entry := range entries {
		if entry == layoutFile {
			continue
		}
		name := strings.TrimSuffix(strings.TrimPrefix(entry, "templates/"), ".html")
		tmpl, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFS, layoutFile, entry)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", entry, err)
		}
		pages[name] = tmpl
	}
	return &Renderer{pages: pages, logger: logger}, nil
}

// Render writes the named page. The template executes into a buffer first
// so a mid-render failure still produces a clean 500 instead of a torn page.
func (r *Renderer) Render(w http.ResponseWriter, status int, page string, data Page) {
	tmpl, ok := r.pages[page]
	if !ok {
		r.logger.Error("unknown page template", "page", page)
		observability.RecordPageRenderFailure(page)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		r.logger.Error("page render failed", "page", page, "error", err)
		observability.RecordPageRenderFailure(page)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// StaticHandler serves the embedded stylesheet and assets under /static/.
func StaticHandler() http.Handler {
	return http.FileServer(http.FS(staticFS))
}
