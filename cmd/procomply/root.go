// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ProComply Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the ProComply CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "procomply",
		Short: "ProComply - CPD tracking for EBK-registered engineers",
		Long: `ProComply tracks Continuing Professional Development activities,
monitors PDU progress against EBK annual requirements, and produces
compliance reports for licence renewal. It talks to a ProComply API
server and can host a local web UI.`,
		SilenceUsage: true,
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	// Add subcommands
	cmd.AddCommand(NewLoginCmd())
	cmd.AddCommand(NewLogoutCmd())
	cmd.AddCommand(NewRegisterCmd())
	cmd.AddCommand(NewWhoamiCmd())
	cmd.AddCommand(NewProfileCmd())
	cmd.AddCommand(NewCPDCmd())
	cmd.AddCommand(NewServeCmd())

	return cmd
}
