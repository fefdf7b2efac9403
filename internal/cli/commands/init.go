package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/etlite/internal/cli/output"
	intconfig "github.com/leapstack-labs/etlite/internal/config"
	"github.com/spf13/cobra"
)

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool
	var example bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new etlite project",
		Long: `Initialize a new etlite project with a configuration file and a steps directory.

This creates:
  - etlite.yaml configuration file targeting a local DuckDB warehouse
  - steps/ directory with a first annotated step
  - .gitignore for the state directory and warehouse files

Use --example to create a three-step pipeline (view, table with invariants
and tests, append-only log) that runs as-is.`,
		Example: `  # Initialize in current directory
  etlite init

  # Initialize with a working example pipeline
  etlite init my-project --example

  # Force overwrite existing files
  etlite init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			cfg := getConfig()
			r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat))

			template := "minimal"
			if example {
				template = "example"
			}
			return runInit(r, dir, template, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing files")
	cmd.Flags().BoolVar(&example, "example", false, "Create a runnable example pipeline")

	return cmd
}

func runInit(r *output.Renderer, dir, template string, force bool) error {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	configPath := filepath.Join(dir, intconfig.ConfigFileName)
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("%s already exists. Use --force to overwrite", intconfig.ConfigFileName)
	}

	if err := copyTemplate(template, dir, force); err != nil {
		return fmt.Errorf("failed to initialize project: %w", err)
	}

	files, err := listTemplateFiles(template)
	if err != nil {
		return err
	}
	configFiles, stepFiles := groupTemplateFiles(files)

	r.Header(2, "Configuration")
	for _, f := range configFiles {
		r.StatusLine(f, "success", "")
	}
	r.Println("")
	r.Header(2, "Steps")
	for _, f := range stepFiles {
		r.StatusLine(f, "success", "")
	}

	r.Println("")
	r.Println(r.Success("etlite project initialized!"))
	r.Println("")
	r.Println("Next steps:")
	r.Println("  etlite validate   Compile every step without touching the warehouse")
	r.Println("  etlite list       Show steps with their targets and checks")
	r.Println("  etlite run        Execute the steps in order")
	r.Println("  etlite history    Inspect recorded runs")

	return nil
}
