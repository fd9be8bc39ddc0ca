// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ProComply Contributors

package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/procomply/procomply/internal/api"
	"github.com/procomply/procomply/internal/session"
)

// registerConfig holds configuration for the register command.
type registerConfig struct {
	email              string
	password           string
	firstName          string
	lastName           string
	registrationNumber string
}

// NewRegisterCmd creates the register subcommand.
func NewRegisterCmd() *cobra.Command {
	cfg := &registerConfig{}

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a new engineer account",
		Long: `Create a ProComply account. Registration does not sign you in;
run 'procomply login' afterwards.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRegisterWithDeps(cmd, cfg, nil)
		},
	}

	cmd.Flags().StringVar(&cfg.email, "email", "", "account email")
	cmd.Flags().StringVar(&cfg.password, "password", "", "account password")
	cmd.Flags().StringVar(&cfg.firstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&cfg.lastName, "last-name", "", "last name")
	cmd.Flags().StringVar(&cfg.registrationNumber, "ebk-number", "", "EBK registration number (optional)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	_ = cmd.MarkFlagRequired("first-name")
	_ = cmd.MarkFlagRequired("last-name")

	return cmd
}

// runRegisterWithDeps executes the register command with injectable dependencies.
func runRegisterWithDeps(cmd *cobra.Command, cfg *registerConfig, deps *AppDeps) error {
	a, err := buildApp(deps)
	if err != nil {
		return err
	}

	principal, err := a.sessions.Register(cmd.Context(), session.Registration{
		Email:              cfg.email,
		Password:           cfg.password,
		FirstName:          cfg.firstName,
		LastName:           cfg.lastName,
		RegistrationNumber: cfg.registrationNumber,
	})
	if err != nil {
		if fields := api.FieldErrors(err); len(fields) > 0 {
			return fmt.Errorf("registration rejected:\n%s", formatFieldErrors(fields))
		}
		return fmt.Errorf("%s", api.UserMessage(err))
	}

	cmd.Printf("Account created for %s. Run 'procomply login' to sign in.\n", principal.Email)
	return nil
}

// formatFieldErrors renders per-field validation messages one per line.
func formatFieldErrors(fields map[string][]string) string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, "  %s: %s\n", name, strings.Join(fields[name], "; "))
	}
	return strings.TrimRight(b.String(), "\n")
}
