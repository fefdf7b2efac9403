package commands

import (
	"strings"

	"github.com/leapstack-labs/etlite/internal/cli/output"
	"github.com/leapstack-labs/etlite/pkg/core"
	"github.com/leapstack-labs/etlite/pkg/funcs"
	"github.com/spf13/cobra"
)

// NewFunctionsCommand creates the functions command.
func NewFunctionsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "functions [engine]",
		Short: "List the annotation functions of each engine",
		Long: `List the implementations registered per engine and category.

An engine without a set for a category uses the whole "sql" set for it.
An engine with a set does not fall back per name: a name missing from its
set is an error even when "sql" defines it.`,
		Example: `  # All engines
  etlite functions

  # Only ClickHouse
  etlite functions clickhouse`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFunctions(cmd, args)
		},
	}
	return cmd
}

func runFunctions(cmd *cobra.Command, args []string) error {
	r := NewCommandContextWithoutEngine(cmd).Renderer
	sets := functionSets(funcs.Default, args)

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(sets)
	}

	rows := make([][]string, 0, len(sets))
	for _, s := range sets {
		names := strings.Join(s.Names, ", ")
		if len(s.Names) == 0 {
			names = "(uses " + core.DefaultEngine + ")"
		}
		rows = append(rows, []string{s.Engine, s.Category, names})
	}
	r.Header(1, "Functions")
	r.Table([]string{"Engine", "Category", "Names"}, rows)
	return nil
}

// functionSets lists every (engine, category) pair. Categories without a
// set of their own have no names.
func functionSets(reg *funcs.Registry, only []string) []output.FunctionSet {
	engines := reg.Engines()
	if len(only) > 0 {
		engines = only
	}

	var sets []output.FunctionSet
	for _, engine := range engines {
		for _, cat := range core.Categories {
			set := output.FunctionSet{Engine: engine, Category: string(cat), Names: []string{}}
			if reg.HasSet(engine, cat) {
				set.Names = reg.Names(engine, cat)
			}
			sets = append(sets, set)
		}
	}
	return sets
}
