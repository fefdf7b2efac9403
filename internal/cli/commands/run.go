package commands

import (
	"fmt"
	"time"

	"github.com/leapstack-labs/etlite/internal/cli/output"
	"github.com/spf13/cobra"
)

// RunOptions holds options for the run command.
type RunOptions struct {
	Changed bool
}

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run [step files or directories...]",
		Short: "Run step files against the target database",
		Long: `Execute annotated SQL steps in step order.

Each step creates its target, loads it with its strategy, verifies its
invariants and runs its tests. The run stops at the first failed step and
the remaining steps are recorded as skipped.

With no arguments every step of steps_dir is run: numbered files
(1.city_stats.sql, 2.client_volume.sql, ...) ascending, then the rest by name.`,
		Example: `  # Run every step of the steps directory
  etlite run

  # Run specific steps
  etlite run steps/1.city_stats.sql steps/2.client_volume.sql

  # Run only steps changed since their last successful run
  etlite run --changed

  # Run against the prod environment with JSON output
  etlite run -t prod -o json`,
		Aliases: []string{"exec"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, args, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Changed, "changed", false, "Only run steps changed since their last successful run")

	return cmd
}

func runRun(cmd *cobra.Command, args []string, opts *RunOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	eng := cmdCtx.Engine
	r := cmdCtx.Renderer

	paths, err := resolveStepFiles(cmdCtx.Cfg.StepsDir, args)
	if err != nil {
		return err
	}

	if opts.Changed {
		var changed []string
		for _, p := range paths {
			ok, err := eng.Changed(p)
			if err != nil {
				return err
			}
			if ok {
				changed = append(changed, p)
			}
		}
		if len(changed) == 0 {
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(output.RunInfo{Status: "unchanged"})
			}
			r.Println("No changed steps")
			return nil
		}
		paths = changed
	}

	start := time.Now()
	run, runErr := eng.RunFiles(cmd.Context(), paths)
	if run == nil {
		return runErr
	}

	steps, err := loadRunSteps(eng.GetStateStore(), run.ID)
	if err != nil {
		return fmt.Errorf("failed to load run results: %w", err)
	}

	info := runInfo(run)
	info.Steps = steps

	switch r.EffectiveMode() {
	case output.ModeJSON:
		if err := r.JSON(info); err != nil {
			return err
		}
	case output.ModeMarkdown:
		r.Header(1, "Run "+run.ID)
		r.KeyValue("Environment", run.Environment)
		r.KeyValue("Status", string(run.Status))
		r.KeyValue("Duration", time.Since(start).Round(time.Millisecond).String())
		r.Println()
		renderStepRuns(r, steps)
	default:
		r.Header(1, fmt.Sprintf("Running %d step(s) in %s", len(paths), run.Environment))
		renderStepRuns(r, steps)
		r.Println()
		summary := fmt.Sprintf("Run %s %s in %s", run.ID, run.Status, time.Since(start).Round(time.Millisecond))
		if runErr != nil {
			r.Println(r.Error(summary))
		} else {
			r.Println(r.Success(summary))
		}
	}

	if runErr != nil {
		return fmt.Errorf("run failed: %w", runErr)
	}
	return nil
}
