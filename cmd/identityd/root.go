// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memoteca Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the identityd CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "identityd",
		Short: "Memoteca identity service",
		Long: `identityd runs the Memoteca identity lifecycle service: account
creation with email verification, password resets, third-party sign-in,
and attachment storage.`,
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	// Add subcommands
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())

	return cmd
}
