package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/leapstack-labs/etlite/internal/cli/output"
	"github.com/leapstack-labs/etlite/internal/parser"
	"github.com/spf13/cobra"
)

// debounceInterval groups bursts of file events into one validation.
const debounceInterval = 100 * time.Millisecond

// ValidateOptions holds options for the validate command.
type ValidateOptions struct {
	Watch bool
}

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	opts := &ValidateOptions{}

	cmd := &cobra.Command{
		Use:   "validate [step files or directories...]",
		Short: "Check that step files compile",
		Long: `Compile step files without touching the database and report every
annotation error with its file and line.

With --watch the steps are validated again whenever a .sql file changes.`,
		Example: `  # Validate every step of the steps directory
  etlite validate

  # Validate one file
  etlite validate steps/1.city_stats.sql

  # Keep validating while editing
  etlite validate --watch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, args, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "Validate again when step files change")

	return cmd
}

func runValidate(cmd *cobra.Command, args []string, opts *ValidateOptions) error {
	cmdCtx := NewCommandContextWithoutEngine(cmd)
	ctx := cmd.Context()

	validateOnce := func() error {
		paths, err := resolveStepFiles(cmdCtx.Cfg.StepsDir, args)
		if err != nil {
			return err
		}
		results := validateSteps(ctx, paths, cmdCtx)
		return renderValidation(cmdCtx.Renderer, results)
	}

	err := validateOnce()
	if !opts.Watch {
		return err
	}
	if err != nil {
		cmdCtx.Renderer.Println(cmdCtx.Renderer.Error(err.Error()))
	}
	return watchSteps(ctx, cmdCtx, watchDirs(cmdCtx.Cfg.StepsDir, args), validateOnce)
}

// validateSteps compiles paths and returns one result per file.
func validateSteps(ctx context.Context, paths []string, cmdCtx *CommandContext) []output.ValidationResult {
	steps, err := parser.ParseFiles(ctx, paths, cmdCtx.ParseOptions()...)

	parsed := make(map[string]bool, len(steps))
	for _, s := range steps {
		parsed[s.Path] = true
	}
	var errs []error
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs = joined.Unwrap()
	} else if err != nil {
		errs = []error{err}
	}

	results := make([]output.ValidationResult, 0, len(paths))
	for _, p := range paths {
		res := output.ValidationResult{Path: p, Valid: parsed[p]}
		if !res.Valid {
			res.Error = errorFor(p, errs)
		}
		results = append(results, res)
	}
	return results
}

// errorFor returns the message of the error reported for path. Parser
// errors start with "path:line:".
func errorFor(path string, errs []error) string {
	for _, err := range errs {
		if strings.HasPrefix(err.Error(), path+":") {
			return err.Error()
		}
	}
	for _, err := range errs {
		if strings.Contains(err.Error(), path) {
			return err.Error()
		}
	}
	return "not parsed"
}

func renderValidation(r *output.Renderer, results []output.ValidationResult) error {
	invalid := 0
	for _, res := range results {
		if !res.Valid {
			invalid++
		}
	}

	switch r.EffectiveMode() {
	case output.ModeJSON:
		if err := r.JSON(results); err != nil {
			return err
		}
	case output.ModeMarkdown:
		r.Println(output.FormatHeader(1, fmt.Sprintf("Validation (%d files, %d invalid)", len(results), invalid)))
		r.Println()
		for _, res := range results {
			if res.Valid {
				r.Printf("- `%s`: valid\n", res.Path)
				continue
			}
			r.Printf("- `%s`: invalid\n\n```\n%s\n```\n", res.Path, res.Error)
		}
	default:
		for _, res := range results {
			if res.Valid {
				r.StatusLine(res.Path, "success", "")
				continue
			}
			r.StatusLine(res.Path, "failed", "")
			for _, line := range strings.Split(res.Error, "\n") {
				r.Println("    " + r.Error(line))
			}
		}
		if invalid == 0 {
			r.Println(r.Success(fmt.Sprintf("%d step(s) valid", len(results))))
		}
	}

	if invalid > 0 {
		return fmt.Errorf("%d of %d step(s) failed to compile", invalid, len(results))
	}
	return nil
}

// watchDirs returns the directories to watch for the given arguments.
func watchDirs(stepsDir string, args []string) []string {
	if len(args) == 0 {
		return []string{stepsDir}
	}
	seen := make(map[string]bool)
	var dirs []string
	for _, a := range args {
		dir := a
		if filepath.Ext(a) == ".sql" {
			dir = filepath.Dir(a)
		}
		if !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}
	return dirs
}

// watchSteps calls validate after .sql files in dirs change, until ctx is done.
func watchSteps(ctx context.Context, cmdCtx *CommandContext, dirs []string, validate func() error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	r := cmdCtx.Renderer
	r.Println(r.Muted(fmt.Sprintf("Watching %s for changes (Ctrl+C to stop)", strings.Join(dirs, ", "))))

	trigger := make(chan string, 1)
	var debounceTimer *time.Timer

	for {
		select {
		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if filepath.Ext(event.Name) != ".sql" {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			name := event.Name
			debounceTimer = time.AfterFunc(debounceInterval, func() {
				select {
				case trigger <- name:
				default:
				}
			})

		case name := <-trigger:
			cmdCtx.Logger.Debug("step file changed", "path", name)
			r.Println()
			r.Println(r.Muted(fmt.Sprintf("Change detected: %s", filepath.Base(name))))
			if err := validate(); err != nil {
				r.Println(r.Error(err.Error()))
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			cmdCtx.Logger.Warn("watcher error", "error", err)
		}
	}
}
