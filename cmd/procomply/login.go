// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ProComply Contributors

package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/procomply/procomply/internal/api"
)

// loginConfig holds configuration for the login command.
type loginConfig struct {
	email    string
	password string
}

// NewLoginCmd creates the login subcommand.
func NewLoginCmd() *cobra.Command {
	cfg := &loginConfig{}

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session token",
		Long: `Authenticate against the ProComply API with email and password.
On success the access token is stored in the local credential vault and
used by all other commands until logout.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLoginWithDeps(cmd, cfg, nil)
		},
	}

	cmd.Flags().StringVar(&cfg.email, "email", "", "account email (prompted if omitted)")
	cmd.Flags().StringVar(&cfg.password, "password", "", "account password (prompted if omitted)")

	return cmd
}

// runLoginWithDeps executes the login command with injectable dependencies.
func runLoginWithDeps(cmd *cobra.Command, cfg *loginConfig, deps *AppDeps) error {
	a, err := buildApp(deps)
	if err != nil {
		return err
	}

	reader := bufio.NewReader(cmd.InOrStdin())
	if cfg.email == "" {
		cmd.Print("Email: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("reading email: %w", err)
		}
		cfg.email = strings.TrimSpace(line)
	}
	if cfg.password == "" {
		cmd.Print("Password: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("reading password: %w", err)
		}
		cfg.password = strings.TrimRight(line, "\r\n")
	}

	if err := a.sessions.Login(cmd.Context(), cfg.email, cfg.password); err != nil {
		return fmt.Errorf("%s", api.UserMessage(err))
	}

	snap := a.sessions.Snapshot()
	if snap.Principal != nil {
		cmd.Printf("Signed in as %s <%s>\n", snap.Principal.FullName(), snap.Principal.Email)
	} else {
		cmd.Println("Signed in")
	}
	return nil
}
