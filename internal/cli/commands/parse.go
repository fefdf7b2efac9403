package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/leapstack-labs/etlite/internal/cli/output"
	"github.com/leapstack-labs/etlite/internal/parser"
	"github.com/leapstack-labs/etlite/pkg/core"
	"github.com/spf13/cobra"
)

// ParseOptions holds options for the parse command.
type ParseOptions struct {
	ShowQuery bool
}

// NewParseCommand creates the parse command.
func NewParseCommand() *cobra.Command {
	opts := &ParseOptions{}

	cmd := &cobra.Command{
		Use:   "parse <step file>",
		Short: "Show the compiled form of a step file",
		Long: `Compile one step file and print its target, strategy, invariants,
tests and metadata as resolved for its engine. Nothing is executed.`,
		Example: `  # Show a compiled step
  etlite parse steps/1.city_stats.sql

  # Include the transformation query
  etlite parse steps/1.city_stats.sql --query

  # As JSON
  etlite parse steps/1.city_stats.sql -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(cmd, args[0], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.ShowQuery, "query", false, "Print the transformation query")

	return cmd
}

func runParse(cmd *cobra.Command, path string, opts *ParseOptions) error {
	cmdCtx := NewCommandContextWithoutEngine(cmd)
	r := cmdCtx.Renderer

	step, err := parser.ParseFile(path, cmdCtx.ParseOptions()...)
	if err != nil {
		return err
	}
	info := stepInfo(step)

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(info)
	}

	r.Header(1, step.Path)
	for _, kv := range stepFields(info) {
		r.KeyValue(kv[0], kv[1])
	}
	r.Println()

	renderChecks(r, "Invariants", step.Invariants)
	renderChecks(r, "Tests", step.Tests)

	if opts.ShowQuery {
		r.Header(2, "Query")
		if r.EffectiveMode() == output.ModeMarkdown {
			r.Println("```sql")
			r.Println(step.Query)
			r.Println("```")
		} else {
			r.Println(step.Query)
		}
	}
	return nil
}

// stepFields returns the label/value pairs shown for a step.
func stepFields(info output.StepInfo) [][2]string {
	fields := [][2]string{
		{"Engine", info.Engine},
		{"Target", fmt.Sprintf("%s (%s)", info.Target, info.TargetKind)},
	}
	if info.Strategy != "" {
		fields = append(fields, [2]string{"Strategy", info.Strategy})
	}
	if info.Description != "" {
		fields = append(fields, [2]string{"Description", info.Description})
	}

	kinds := make([]string, 0, len(info.Meta))
	for k := range info.Meta {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		label := strings.ToUpper(k[:1]) + k[1:]
		fields = append(fields, [2]string{label, fmt.Sprint(info.Meta[k])})
	}
	return fields
}

func renderChecks(r *output.Renderer, title string, blocks []*core.Block) {
	if len(blocks) == 0 {
		return
	}
	r.Header(2, fmt.Sprintf("%s (%d)", title, len(blocks)))

	rows := make([][]string, 0, len(blocks))
	for _, b := range blocks {
		rows = append(rows, []string{b.Kind, b.Name(), b.Params.Without("name").Describe(), fmt.Sprintf("%d", b.LineNo)})
	}
	r.Table([]string{"Kind", "Name", "Params", "Line"}, rows)
	if r.EffectiveMode() != output.ModeMarkdown {
		r.Println()
	}
}
