package commands

import (
	"database/sql"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/leapstack-labs/etlite/internal/cli/config"
	intconfig "github.com/leapstack-labs/etlite/internal/config"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	// sqlite driver for state database queries.
	_ "modernc.org/sqlite"
)

// resolveStatePath returns the state database path from config or the default.
func resolveStatePath(cfg *config.Config) string {
	if cfg.StatePath != "" {
		return cfg.StatePath
	}
	return intconfig.DefaultStateFile
}

// openStateDBReadOnly opens the state database in read-only mode.
func openStateDBReadOnly(path string) (*sql.DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("state database not found at %s (run 'etlite run' first)", path)
	}
	return sql.Open("sqlite", "file:"+path+"?mode=ro")
}

// QueryOptions holds options for the query command.
type QueryOptions struct {
	Format string
	Input  string
}

// NewQueryCommand creates the query command.
func NewQueryCommand() *cobra.Command {
	opts := &QueryOptions{}

	cmd := &cobra.Command{
		Use:   "query [SQL]",
		Short: "Query the state database",
		Long: `Query the etlite state database directly.

The state database records every run, the step runs it executed and the
result of each invariant and test:

  runs            one row per run (environment, status, timings, error)
  step_runs       one row per step of a run (target, engine, rows, status)
  check_results   invariant and test outcomes with observed/expected values
  content_hashes  fingerprint of each step file at its last success

When invoked without arguments on a terminal, enters interactive REPL mode.`,
		Example: `  # Failed checks of all runs
  etlite query "SELECT step_run_id, kind, name, message FROM check_results WHERE passed = 0"

  # List tables
  etlite query tables

  # Show schema for a table
  etlite query schema step_runs

  # Output as CSV
  etlite query "SELECT * FROM runs" --format csv

  # Interactive mode
  etlite query`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, args, opts)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.Format, "format", "f", "table", "Output format: table, json, csv, md")
	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "Read SQL from file")

	cmd.AddCommand(newQueryTablesCommand(opts))
	cmd.AddCommand(newQuerySchemaCommand(opts))

	return cmd
}

func runQuery(cmd *cobra.Command, args []string, opts *QueryOptions) error {
	cmdCtx := NewCommandContextWithoutEngine(cmd)
	statePath := resolveStatePath(cmdCtx.Cfg)

	var sqlQuery string
	switch {
	case len(args) > 0:
		sqlQuery = strings.Join(args, " ")
	case opts.Input != "":
		content, err := os.ReadFile(opts.Input)
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}
		sqlQuery = string(content)
	case !isTerminal(cmd.InOrStdin()):
		content, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		sqlQuery = string(content)
	default:
		return runQueryREPL(cmd, statePath, opts)
	}

	if strings.TrimSpace(sqlQuery) == "" {
		return fmt.Errorf("no query given")
	}

	db, err := openStateDBReadOnly(statePath)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := executeAndRenderQuery(cmd.Context(), cmd.OutOrStdout(), db, sqlQuery, opts.Format); err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	return nil
}

func newQueryTablesCommand(opts *QueryOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List the tables of the state database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx := NewCommandContextWithoutEngine(cmd)
			db, err := openStateDBReadOnly(resolveStatePath(cmdCtx.Cfg))
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()
			return listTablesFromDB(cmd.Context(), cmd.OutOrStdout(), db, opts.Format)
		},
	}
}

func newQuerySchemaCommand(opts *QueryOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "schema <table>",
		Short: "Show the columns of a state table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx := NewCommandContextWithoutEngine(cmd)
			db, err := openStateDBReadOnly(resolveStatePath(cmdCtx.Cfg))
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()
			return showSchemaFromDB(cmd.Context(), cmd.OutOrStdout(), db, args[0], opts.Format)
		},
	}
}

// isTerminal reports whether r is an interactive terminal.
func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
