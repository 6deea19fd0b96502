// Copyright (c) 2025 pgload
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package cmd provides the command-line interface for the pgload CLI
// application. It implements the load, connect and dbinfo subcommands using
// the Cobra CLI framework, handles flag parsing and validation, and provides
// a terminal UI with progress bars and spinners around the import core.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	showVersion bool
)

// rootCmd represents the base command when called without any subcommands.
// It serves as the entry point for the pgload CLI application.
var rootCmd = &cobra.Command{
	Use:   "pgload",
	Short: "Bulk-load delimited text files into PostgreSQL via COPY",
	Long: `pgload streams large delimited text files into a PostgreSQL table through
the server's native COPY protocol instead of row-by-row inserts. It supports
resumable partial commits, per-row error reporting and a dry-run mode that
validates the load without committing anything.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if showVersion {
			fmt.Printf("pgload %s\n", Version)
			return nil
		}
		// If no flag is set, show help
		return cmd.Help()
	},
}

// Execute runs the CLI application.
// It executes the root command and handles any errors that occur during execution.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolVar(&showVersion, "version", false, "Show version information")
}
