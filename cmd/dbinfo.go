// Copyright (c) 2025 pgload
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"pgload/cli/internal/bulkload"
	"pgload/cli/internal/dsn"
	"pgload/cli/internal/job"
	"pgload/cli/internal/logging"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// dbinfoCmd represents the dbinfo command, a pre-flight check for a load.
// It shows the resolved connection (password masked) and the loadable
// columns of the target table so the operator can verify the file layout
// before starting a multi-hour import.
var dbinfoCmd = &cobra.Command{
	Use:   "dbinfo [dsn] <table>",
	Short: "Show connection and target table layout for a load",
	Long: `The dbinfo command connects to the database and displays the target table's
loadable columns in the order COPY expects them. Use it before a large load to
verify the file's field layout matches the table.

The password in the DSN will be replaced with *** for security. The dsn
argument may be omitted when PGLOAD_DSN or DATABASE_URL is set, or after a
DSN has been stored with 'pgload connect'.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		dsnArg := ""
		table := args[len(args)-1]
		if len(args) == 2 {
			dsnArg = args[0]
		}

		rawDSN, err := resolveDSN(dsnArg)
		if err != nil {
			return err
		}
		connString, err := dsn.Parse(rawDSN)
		if err != nil {
			return err
		}

		log := logging.NewTermLogger(logging.LevelInfo)
		session, err := bulkload.Open(ctx, connString, table, job.DefaultDialect(), log)
		if err != nil {
			pterm.Error.Println(logging.PresentError("connecting to database", err))
			return err
		}
		defer session.Close(ctx)

		pterm.DefaultBox.
			WithTitle(pterm.NewStyle(pterm.FgCyan, pterm.Bold).Sprint("Database Connection")).
			WithPadding(1).
			Println(logging.Mask(connString) + "\nPostgreSQL " + session.ServerVersion())
		pterm.Println()

		data := pterm.TableData{{"#", "column"}}
		for i, c := range session.Columns() {
			data = append(data, []string{pterm.Sprintf("%d", i+1), c})
		}
		if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
			return err
		}
		pterm.Println()
		pterm.Println("A load file must provide exactly these fields, in this order.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dbinfoCmd)
}
