package commands

import (
	"fmt"
	"time"

	"github.com/leapstack-labs/etlite/internal/cli/output"
	"github.com/spf13/cobra"
)

// HistoryOptions holds options for the history command.
type HistoryOptions struct {
	Limit int
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	opts := &HistoryOptions{}

	cmd := &cobra.Command{
		Use:   "history [run id]",
		Short: "Show recorded runs",
		Long: `Show the most recent runs from the state database, or the steps and
check results of one run.`,
		Example: `  # Last 10 runs
  etlite history

  # Details of one run
  etlite history 6f1c2d7e-...`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, args, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 10, "Number of runs to show")

	return cmd
}

func runHistory(cmd *cobra.Command, args []string, opts *HistoryOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	store := cmdCtx.Engine.GetStateStore()
	r := cmdCtx.Renderer

	if len(args) == 1 {
		run, err := store.GetRun(args[0])
		if err != nil {
			return err
		}
		steps, err := loadRunSteps(store, run.ID)
		if err != nil {
			return err
		}
		info := runInfo(run)
		info.Steps = steps

		if r.EffectiveMode() == output.ModeJSON {
			return r.JSON(info)
		}
		r.Header(1, "Run "+run.ID)
		r.KeyValue("Environment", run.Environment)
		r.KeyValue("Status", string(run.Status))
		r.KeyValue("Started", run.StartedAt.Format(time.RFC3339))
		if run.Error != "" {
			r.KeyValue("Error", run.Error)
		}
		r.Println()
		renderStepRuns(r, steps)
		return nil
	}

	runs, err := store.ListRuns(opts.Limit)
	if err != nil {
		return err
	}

	infos := make([]output.RunInfo, 0, len(runs))
	for _, run := range runs {
		infos = append(infos, runInfo(run))
	}
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(infos)
	}

	if len(infos) == 0 {
		r.Println("No runs recorded")
		return nil
	}

	rows := make([][]string, 0, len(infos))
	for _, info := range infos {
		duration := "-"
		if info.CompletedAt != nil {
			duration = info.CompletedAt.Sub(info.StartedAt).Round(time.Millisecond).String()
		}
		rows = append(rows, []string{
			info.ID,
			info.Environment,
			info.Status,
			info.StartedAt.Local().Format("2006-01-02 15:04:05"),
			duration,
			info.Error,
		})
	}
	r.Header(1, fmt.Sprintf("Runs (%d)", len(infos)))
	r.Table([]string{"ID", "Environment", "Status", "Started", "Duration", "Error"}, rows)
	return nil
}
