package commands

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
)

const (
	replPrompt             = "etlite> "
	replContinuationPrompt = "   ...> "
)

func runQueryREPL(cmd *cobra.Command, statePath string, opts *QueryOptions) error {
	ctx := cmd.Context()

	db, err := openStateDBReadOnly(statePath)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	// History lives next to the state database.
	historyFile := filepath.Join(filepath.Dir(statePath), "query_history")

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          replPrompt,
		HistoryFile:     historyFile,
		AutoComplete:    newTableCompleter(ctx, db),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
	_, _ = fmt.Fprintf(out, "etlite query REPL (state: %s)\n", statePath)
	_, _ = fmt.Fprintln(out, "Type .help for commands, .quit to exit")
	_, _ = fmt.Fprintln(out)

	var buf strings.Builder
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			buf.Reset()
			rl.SetPrompt(replPrompt)
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if buf.Len() == 0 && strings.HasPrefix(line, ".") {
			if quit := handleDotCommand(ctx, out, errOut, db, line, opts.Format); quit {
				break
			}
			continue
		}

		// Statements run once terminated by a semicolon.
		buf.WriteString(line)
		if !strings.HasSuffix(line, ";") {
			buf.WriteString(" ")
			rl.SetPrompt(replContinuationPrompt)
			continue
		}
		rl.SetPrompt(replPrompt)

		query := strings.TrimSuffix(buf.String(), ";")
		buf.Reset()

		if err := executeAndRenderQuery(ctx, out, db, query, opts.Format); err != nil {
			_, _ = fmt.Fprintf(errOut, "Error: %v\n", err)
		}
		_, _ = fmt.Fprintln(out)
	}

	return nil
}

// handleDotCommand runs a REPL dot-command and reports whether the REPL
// should exit.
func handleDotCommand(ctx context.Context, out, errOut io.Writer, db *sql.DB, line, format string) bool {
	parts := strings.Fields(line)

	switch strings.ToLower(parts[0]) {
	case ".quit", ".exit":
		return true
	case ".help":
		printREPLHelp(out)
	case ".tables":
		if err := listTablesFromDB(ctx, out, db, format); err != nil {
			_, _ = fmt.Fprintf(errOut, "Error: %v\n", err)
		}
	case ".schema":
		if len(parts) < 2 {
			_, _ = fmt.Fprintln(errOut, "Usage: .schema <table>")
			return false
		}
		if err := showSchemaFromDB(ctx, out, db, parts[1], format); err != nil {
			_, _ = fmt.Fprintf(errOut, "Error: %v\n", err)
		}
	case ".runs":
		if err := executeAndRenderQuery(ctx, out, db, recentRunsQuery, format); err != nil {
			_, _ = fmt.Fprintf(errOut, "Error: %v\n", err)
		}
	case ".clear":
		_, _ = fmt.Fprint(out, "\033[H\033[2J")
	default:
		_, _ = fmt.Fprintf(errOut, "Unknown command: %s (type .help for commands)\n", parts[0])
	}
	return false
}

const recentRunsQuery = `SELECT id, environment, status, started_at, completed_at, error
FROM runs ORDER BY started_at DESC LIMIT 10`

func printREPLHelp(w io.Writer) {
	help := `
Commands:
  .help           Show this help message
  .tables         List the state tables
  .schema <name>  Show the columns of a table
  .runs           Show the ten most recent runs
  .clear          Clear the screen
  .quit / .exit   Exit the REPL

Tips:
  - SQL statements must end with a semicolon (;)
  - Use arrow keys to navigate history
  - Tab completion works for table names
`
	_, _ = fmt.Fprintln(w, help)
}

// newTableCompleter creates a readline completer for table names and
// dot-commands.
func newTableCompleter(ctx context.Context, db *sql.DB) *readline.PrefixCompleter {
	var items []readline.PrefixCompleterInterface

	names, err := stateTableNames(ctx, db)
	if err == nil {
		for _, name := range names {
			items = append(items, readline.PcItem(name))
		}
	}

	items = append(items,
		readline.PcItem(".help"),
		readline.PcItem(".tables"),
		readline.PcItem(".schema"),
		readline.PcItem(".runs"),
		readline.PcItem(".clear"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	)
	return readline.NewPrefixCompleter(items...)
}
