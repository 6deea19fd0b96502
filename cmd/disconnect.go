// Copyright (c) 2025 pgload
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"fmt"

	"pgload/cli/internal/keychain"

	"github.com/spf13/cobra"
)

// disconnectCmd represents the disconnect command for clearing the stored
// connection. It removes the DSN saved by 'pgload connect' from the OS
// keychain; environment variables and positional DSNs are unaffected.
var disconnectCmd = &cobra.Command{
	Use:   "disconnect",
	Short: "Remove the stored database connection",
	Long: `The disconnect command removes the DSN stored in the OS keychain by
'pgload connect'. After disconnecting, load and dbinfo require a DSN on the
command line or via PGLOAD_DSN / DATABASE_URL.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		km, err := keychain.GetManager()
		if err != nil {
			return err
		}
		if err := km.ClearDBDSN(); err != nil {
			return err
		}
		fmt.Println("✅ Stored database connection removed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(disconnectCmd)
}
