// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ProComply Contributors

package main

import (
	"github.com/spf13/cobra"
)

// NewLogoutCmd creates the logout subcommand.
func NewLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and discard the stored token",
		Long: `End the local session. The stored token is removed from the
credential vault; logout succeeds even when the vault cleanup fails.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLogoutWithDeps(cmd, nil)
		},
	}
}

// runLogoutWithDeps executes the logout command with injectable dependencies.
func runLogoutWithDeps(cmd *cobra.Command, deps *AppDeps) error {
	a, err := buildApp(deps)
	if err != nil {
		return err
	}

	if err := a.sessions.Logout(); err != nil {
		// The session is over regardless; surface the cleanup problem.
		cmd.PrintErrf("warning: could not clear stored token: %v\n", err)
	}
	cmd.Println("Signed out")
	return nil
}
