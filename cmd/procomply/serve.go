// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ProComply Contributors

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/procomply/procomply/internal/observability"
	"github.com/procomply/procomply/internal/session"
	"github.com/procomply/procomply/internal/webui"
)

// serveConfig holds configuration for the serve command.
type serveConfig struct {
	addr        string
	metricsAddr string
}

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cfg := &serveConfig{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Host the local web UI",
		Long: `Start a local HTTP server hosting the ProComply web UI. Protected
pages require a signed-in session; a stored token is verified on the
first visit.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServeWithDeps(cmd, cfg, nil)
		},
	}

	cmd.Flags().StringVar(&cfg.addr, "addr", "", "web UI listen address (default from config)")
	cmd.Flags().StringVar(&cfg.metricsAddr, "metrics-addr", "", "metrics/health HTTP address (default from config, empty = disabled)")

	return cmd
}

// runServeWithDeps starts the web UI with injectable dependencies.
func runServeWithDeps(cmd *cobra.Command, cfg *serveConfig, deps *AppDeps) error {
	a, err := buildApp(deps)
	if err != nil {
		return err
	}

	addr := cfg.addr
	if addr == "" {
		addr = a.cfg.Web.Addr
	}
	metricsAddr := a.cfg.Metrics.Addr
	if cmd.Flags().Changed("metrics-addr") {
		metricsAddr = cfg.metricsAddr
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Start observability server if configured
	var metrics *observability.Metrics
	var obsServer *observability.Server
	if metricsAddr != "" {
		obsServer = observability.NewServer(metricsAddr, func() bool { return true })
		obsErrChan, err := obsServer.Start()
		if err != nil {
			return fmt.Errorf("failed to start observability server: %w", err)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		metrics = obsServer.Metrics()
	}

	// Count session transitions for the dashboard panels.
	if metrics != nil {
		a.sessions.Subscribe(func(snap session.Snapshot) {
			switch snap.Status {
			case session.StatusAuthenticated:
				metrics.SessionChecksTotal.WithLabelValues("authenticated").Inc()
			case session.StatusUnauthenticated:
				metrics.SessionChecksTotal.WithLabelValues("unauthenticated").Inc()
			}
		})
	}

	uiServer, err := webui.NewServer(addr, webui.Stores{
		Sessions:   a.sessions,
		Profiles:   a.profiles,
		Activities: a.activities,
	}, a.cfg.Web.PublicPaths, metrics, slog.Default())
	if err != nil {
		return fmt.Errorf("failed to build web UI: %w", err)
	}

	uiErrChan, err := uiServer.Start()
	if err != nil {
		return fmt.Errorf("failed to start web UI: %w", err)
	}
	go monitorServerErrors(ctx, cancel, uiErrChan, "webui")

	// Handle signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Printf("Web UI listening on http://%s\n", uiServer.Addr())

	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		slog.Info("context cancelled, shutting down")
	}

	// Graceful shutdown
	slog.Info("shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := uiServer.Stop(shutdownCtx); err != nil {
		slog.Warn("error stopping web UI server", "error", err)
	}
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			slog.Warn("error stopping observability server", "error", err)
		}
	}

	slog.Info("shutdown complete")
	return nil
}

// monitorServerErrors cancels the run context when a server reports a
// fatal error. A closed channel means a graceful stop.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
