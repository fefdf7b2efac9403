package commands

import (
	"fmt"

	"github.com/leapstack-labs/etlite/internal/cli/output"
	"github.com/leapstack-labs/etlite/internal/parser"
	"github.com/spf13/cobra"
)

// NewListCommand creates the list command.
func NewListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List step files in execution order",
		Long: `List the steps of the steps directory in the order run executes them,
with their target, engine, strategy, check counts and whether the file
changed since its last successful run.

Output adapts to environment:
  - Terminal: Styled table
  - Piped/Scripted: Markdown format (agent-friendly)

Use --output to override: auto, text, markdown, json`,
		Example: `  # List steps
  etlite list

  # List steps as JSON
  etlite list --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runList(cmd)
		},
	}

	return cmd
}

func runList(cmd *cobra.Command) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	eng := cmdCtx.Engine
	r := cmdCtx.Renderer

	paths, err := resolveStepFiles(eng.StepsDir(), nil)
	if err != nil {
		return err
	}
	steps, parseErr := parser.ParseFiles(cmd.Context(), paths, eng.ParseOptions()...)

	infos := make([]output.StepInfo, 0, len(steps))
	changed := make(map[string]bool, len(steps))
	for _, s := range steps {
		info := stepInfo(s)
		info.Query = ""
		infos = append(infos, info)
		if c, err := eng.Changed(s.Path); err == nil {
			changed[s.Path] = c
		}
	}

	switch r.EffectiveMode() {
	case output.ModeJSON:
		if err := r.JSON(infos); err != nil {
			return err
		}
	default:
		r.Header(1, fmt.Sprintf("Steps (%d total)", len(paths)))
		rows := make([][]string, 0, len(infos))
		for _, info := range infos {
			rows = append(rows, []string{
				orderLabel(info.Order),
				info.Path,
				fmt.Sprintf("%s (%s)", info.Target, info.TargetKind),
				info.Engine,
				info.Strategy,
				fmt.Sprintf("%d", len(info.Invariants)),
				fmt.Sprintf("%d", len(info.Tests)),
				yesNo(changed[info.Path]),
			})
		}
		r.Table([]string{"#", "Step", "Target", "Engine", "Strategy", "Invariants", "Tests", "Changed"}, rows)
	}

	if parseErr != nil {
		return fmt.Errorf("%d step(s) failed to compile:\n%w", len(paths)-len(steps), parseErr)
	}
	return nil
}

func orderLabel(order int) string {
	if order < 0 {
		return "-"
	}
	return fmt.Sprintf("%d", order)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
