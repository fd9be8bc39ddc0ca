// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ProComply Contributors

package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// whoamiConfig holds configuration for the whoami command.
type whoamiConfig struct {
	jsonOutput bool
}

// NewWhoamiCmd creates the whoami subcommand.
func NewWhoamiCmd() *cobra.Command {
	cfg := &whoamiConfig{}

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in engineer",
		Long:  `Verify the stored token against the API and print the account it belongs to.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWhoamiWithDeps(cmd, cfg, nil)
		},
	}

	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output as JSON")

	return cmd
}

// runWhoamiWithDeps executes the whoami command with injectable dependencies.
func runWhoamiWithDeps(cmd *cobra.Command, cfg *whoamiConfig, deps *AppDeps) error {
	a, err := buildApp(deps)
	if err != nil {
		return err
	}
	if err := a.requireSession(cmd.Context()); err != nil {
		return err
	}

	principal := a.sessions.Snapshot().Principal

	if cfg.jsonOutput {
		out, err := json.MarshalIndent(principal, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding output: %w", err)
		}
		cmd.Println(string(out))
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Name:\t%s\n", principal.FullName())
	fmt.Fprintf(w, "Email:\t%s\n", principal.Email)
	if principal.RegistrationNumber != "" {
		fmt.Fprintf(w, "EBK number:\t%s\n", principal.RegistrationNumber)
	}
	return w.Flush()
}
