// Copyright (c) 2025 pgload
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"fmt"
	"os"

	"pgload/cli/internal/bulkload"
	"pgload/cli/internal/config"
	"pgload/cli/internal/dsn"
	pgerrors "pgload/cli/internal/errors"
	"pgload/cli/internal/importer"
	"pgload/cli/internal/job"
	"pgload/cli/internal/logging"

	"atomicgo.dev/cursor"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	loadCommit     bool
	loadThreshold  int64
	loadLogLevel   string
	loadTruncate   bool
	loadDelimiter  string
	loadEnclosedBy string
	loadSkip       int
	loadNull       string
	loadTerminator string
)

// loadCmd represents the load command, the core of pgload. It streams the
// source file into the target table through COPY, committing at the
// configured checkpoint cadence, and reports rejected rows without aborting
// the run. Without --commit the whole load is a dry-run: every row is sent
// to the server for validation, but nothing is committed or truncated.
var loadCmd = &cobra.Command{
	Use:   "load [dsn] <table> <file>",
	Short: "Bulk-load a delimited file into a table via COPY",
	Long: `The load command streams a delimited text file into a PostgreSQL table using
the server's native COPY protocol. The file is read in bounded chunks, so
multi-gigabyte sources load in constant memory. After every chunk the running
row count is checked against --partial-commit-after; on each threshold
crossing the buffered row errors are reported and, with --commit, the rows
submitted so far are committed.

Without --commit the run is a dry-run: rows are streamed to the server for
validation but nothing is committed, and --truncate-table is ignored. Rows
rejected for dialect problems (unbalanced quotes, wrong field count) are
logged individually and never abort the load.

The dsn argument may be omitted when PGLOAD_DSN or DATABASE_URL is set, or
after a DSN has been stored with 'pgload connect'.`,
	Args: cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := config.Load()
		if err != nil {
			defaults = config.Defaults()
		}

		if !cmd.Flags().Changed("partial-commit-after") {
			loadThreshold = defaults.CommitThreshold
		}
		if !cmd.Flags().Changed("log") {
			loadLogLevel = defaults.LogLevel
		}
		level, err := logging.ParseLevel(loadLogLevel)
		if err != nil {
			return err
		}
		log := logging.NewTermLogger(level)

		dsnArg := ""
		table, file := args[len(args)-2], args[len(args)-1]
		if len(args) == 3 {
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

		dialect, err := buildDialect()
		if err != nil {
			return err
		}
		jobCfg := job.Config{
			SourcePath:      file,
			Table:           table,
			Dialect:         dialect,
			Truncate:        loadTruncate,
			Commit:          loadCommit,
			CommitThreshold: loadThreshold,
		}
		if err := jobCfg.Validate(); err != nil {
			return err
		}

		ctx := cmd.Context()

		mode := "DRY-RUN"
		if jobCfg.Commit {
			mode = "COMMIT"
		}
		pterm.Println()
		pterm.Println(pterm.NewStyle(pterm.FgLightCyan).Sprint("→ Connection: ") + pterm.NewStyle(pterm.FgLightBlue).Sprint(logging.Mask(connString)))
		pterm.Println(pterm.NewStyle(pterm.FgLightCyan).Sprint("→ Table:      ") + pterm.NewStyle(pterm.FgCyan, pterm.Bold).Sprint(table))
		pterm.Println(pterm.NewStyle(pterm.FgLightCyan).Sprint("→ Source:     ") + pterm.NewStyle(pterm.FgCyan).Sprint(file))
		pterm.Println(pterm.NewStyle(pterm.FgLightCyan).Sprint("→ Mode:       ") + pterm.NewStyle(pterm.FgYellow, pterm.Bold).Sprint(mode))
		pterm.Println()
		if !jobCfg.Commit {
			log.Warning("dry-run: no data will be committed (use --commit to load for real)")
		}
		if loadTruncate && !jobCfg.Commit {
			log.Warning("--truncate-table ignored in dry-run")
		}

		session, err := bulkload.Open(ctx, connString, table, dialect, log)
		if err != nil {
			err = pgerrors.Wrap(pgerrors.ConnectFailed, "opening load session", err)
			pterm.Error.Println(logging.PresentError("connecting to database", err))
			return err
		}
		defer session.Close(ctx)

		orch := &importer.Orchestrator{
			Log:       log,
			ChunkSize: defaults.ChunkSizeBytes,
		}

		var bar *pterm.ProgressbarPrinter
		if info, err := os.Stat(file); err == nil && info.Size() > 0 {
			cursor.Hide()
			defer cursor.Show()
			bar, _ = pterm.DefaultProgressbar.
				WithTotal(int(info.Size())).
				WithTitle("Loading").
				WithShowCount(false).
				Start()
			var last int64
			orch.Progress = func(bytesRead, rows int64) {
				bar.Add(int(bytesRead - last))
				last = bytesRead
				bar.UpdateTitle(fmt.Sprintf("Loading (%d rows)", rows))
			}
		}

		result, runErr := orch.Run(ctx, jobCfg, session)
		if bar != nil {
			_, _ = bar.Stop()
		}

		closeErr := session.Close(ctx)
		if runErr != nil {
			pterm.Error.Println(logging.PresentError("import failed", runErr))
			return runErr
		}
		if closeErr != nil {
			// Dry-run validation surfaces server-side COPY failures here;
			// the run itself completed, so this does not fail the process.
			log.Warning(logging.PresentError("finalizing session", closeErr))
		}

		printSummary(result)
		return nil
	},
}

// buildDialect converts the load flags into a job.Dialect.
func buildDialect() (job.Dialect, error) {
	var d job.Dialect
	var err error
	if d.Delimiter, err = job.ParseSingleChar("delimiter", loadDelimiter); err != nil {
		return d, err
	}
	if d.Quote, err = job.ParseSingleChar("enclosed-by", loadEnclosedBy); err != nil {
		return d, err
	}
	if d.RecordTerminator, err = job.ParseTerminator(loadTerminator); err != nil {
		return d, err
	}
	d.Null = loadNull
	d.SkipLines = loadSkip
	return d, nil
}

// printSummary renders the run result after a clean finish.
func printSummary(res importer.RunResult) {
	pterm.Println()
	pterm.Success.Println("import finished")
	data := pterm.TableData{
		{"rows submitted", fmt.Sprintf("%d", res.Rows)},
		{"checkpoints", fmt.Sprintf("%d", res.Checkpoints)},
		{"row errors", fmt.Sprintf("%d", res.ErrorLines)},
	}
	if res.Committed {
		data = append(data, []string{"committed", "yes"})
	} else {
		data = append(data, []string{"committed", "no (dry-run)"})
	}
	_ = pterm.DefaultTable.WithData(data).Render()
}

func init() {
	rootCmd.AddCommand(loadCmd)

	loadCmd.Flags().BoolVar(&loadCommit, "commit", false, "Commit at each checkpoint (omit for a dry-run)")
	loadCmd.Flags().Int64Var(&loadThreshold, "partial-commit-after", config.DefaultCommitThreshold, "Checkpoint after this many rows")
	loadCmd.Flags().StringVar(&loadLogLevel, "log", "info", "Log level: error, warning or info")
	loadCmd.Flags().BoolVar(&loadTruncate, "truncate-table", false, "Truncate the target table before loading (requires --commit)")
	loadCmd.Flags().StringVar(&loadDelimiter, "delimiter", ",", "Field delimiter character")
	loadCmd.Flags().StringVar(&loadEnclosedBy, "enclosed-by", `"`, "Field quote character")
	loadCmd.Flags().IntVar(&loadSkip, "skip", 0, "Number of leading lines to skip (e.g. headers)")
	loadCmd.Flags().StringVar(&loadNull, "null", "", "Literal that represents SQL NULL")
	loadCmd.Flags().StringVar(&loadTerminator, "record-terminator", `\n`, "Record terminator")
}
