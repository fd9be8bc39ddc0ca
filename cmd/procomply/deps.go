// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ProComply Contributors

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/procomply/procomply/internal/api"
	"github.com/procomply/procomply/internal/config"
	"github.com/procomply/procomply/internal/cpd"
	"github.com/procomply/procomply/internal/logging"
	"github.com/procomply/procomply/internal/profile"
	"github.com/procomply/procomply/internal/session"
)

// AppDeps contains injectable dependencies for commands that talk to the
// backend. All fields with nil values will use their default implementations.
type AppDeps struct {
	// ConfigLoader loads the client configuration.
	// Default: config.Load with the global --config flag
	ConfigLoader func() (*config.Config, error)

	// VaultFactory creates the credential vault.
	// Default: session.NewVault under the XDG state directory
	VaultFactory func() *session.Vault
}

// app bundles the wired client state every command works against.
type app struct {
	cfg        *config.Config
	vault      *session.Vault
	client     *api.Client
	sessions   *session.Store
	profiles   *profile.Store
	activities *cpd.Store
}

// buildApp loads configuration, configures the default logger, and wires
// the API client and stores. deps may be nil.
func buildApp(deps *AppDeps) (*app, error) {
	if deps == nil {
		deps = &AppDeps{}
	}
	if deps.ConfigLoader == nil {
		deps.ConfigLoader = func() (*config.Config, error) {
			return config.Load(configFile, nil)
		}
	}
	if deps.VaultFactory == nil {
		deps.VaultFactory = func() *session.Vault {
			return session.NewVault("")
		}
	}

	cfg, err := deps.ConfigLoader()
	if err != nil {
		return nil, err
	}

	logging.SetDefault("procomply", version, cfg.Log.Format, logging.ParseLevel(cfg.Log.Level))
	logger := slog.Default()

	vault := deps.VaultFactory()
	client := api.NewClient(cfg.API.BaseURL, vault,
		api.WithLogger(logger),
		api.WithMaxRetries(uint64(cfg.API.MaxRetries)),
		api.WithHTTPClient(&http.Client{Timeout: cfg.API.TimeoutDuration()}),
	)

	sessions := session.NewStore(client, vault, logger)
	profiles := profile.NewStore(client, logger)
	activities := cpd.NewStore(client, logger)

	// Cached profile and CPD state must not survive the session.
	sessions.Subscribe(func(snap session.Snapshot) {
		if snap.Status == session.StatusUnauthenticated {
			profiles.Clear()
			activities.Clear()
		}
	})

	return &app{
		cfg:        cfg,
		vault:      vault,
		client:     client,
		sessions:   sessions,
		profiles:   profiles,
		activities: activities,
	}, nil
}

// requireSession verifies the persisted token and fails with a sign-in
// hint when no authenticated session results.
func (a *app) requireSession(ctx context.Context) error {
	if err := a.sessions.CheckSession(ctx); err != nil {
		return fmt.Errorf("verifying session: %w", err)
	}
	if !a.sessions.Snapshot().Authenticated() {
		return fmt.Errorf("not signed in; run 'procomply login' first")
	}
	return nil
}
