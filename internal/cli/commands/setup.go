package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/etlite/internal/cli/config"
	"github.com/leapstack-labs/etlite/internal/cli/output"
	intconfig "github.com/leapstack-labs/etlite/internal/config"
	"github.com/leapstack-labs/etlite/internal/engine"
	"github.com/leapstack-labs/etlite/internal/metrics"
	"github.com/leapstack-labs/etlite/internal/metrics/prompush"
	"github.com/leapstack-labs/etlite/internal/parser"
	"github.com/leapstack-labs/etlite/pkg/adapter"
	"github.com/leapstack-labs/etlite/pkg/core"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Engine   *engine.Engine
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext with engine and renderer.
// Returns the context and a cleanup function that must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())

	eng, err := createEngine(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat))

	cleanup := func() {
		if err := eng.Close(); err != nil {
			logger.Warn("failed to close engine", "error", err)
		}
	}

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Engine:   eng,
		Renderer: r,
	}, cleanup, nil
}

// NewCommandContextWithoutEngine creates a CommandContext without an engine.
// Useful for commands that don't need database access.
func NewCommandContextWithoutEngine(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	return &CommandContext{
		Cfg:      cfg,
		Logger:   config.GetLogger(cmd.Context()),
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat)),
	}
}

// ParseOptions returns parser options for the configured default engine
// without connecting to the database.
func (c *CommandContext) ParseOptions() []parser.Option {
	if c.Engine != nil {
		return c.Engine.ParseOptions()
	}
	return []parser.Option{
		parser.WithDefaultEngine(defaultEngine(c.Cfg, c.Logger)),
		parser.WithLogger(c.Logger),
	}
}

// getConfig returns the loaded configuration, or one built from defaults
// when none was loaded.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	cfg, err := config.LoadConfig("", "", nil)
	if err != nil {
		return &config.Config{
			StepsDir:     intconfig.DefaultStepsDir,
			StatePath:    intconfig.DefaultStateFile,
			Environment:  intconfig.DefaultEnv,
			OutputFormat: config.DefaultOutput,
			Target:       &core.TargetConfig{Type: intconfig.DefaultTarget},
		}
	}
	return cfg
}

// defaultEngine returns the configured engine, else the engine of the
// target's adapter.
func defaultEngine(cfg *config.Config, logger *slog.Logger) string {
	if cfg.Engine != "" {
		return cfg.Engine
	}
	if cfg.Target != nil {
		if a, err := adapter.NewAdapter(*intconfig.AdapterConfig(cfg.Target), logger); err == nil {
			return a.Engine()
		}
	}
	return core.DefaultEngine
}

// newMetricsBackend returns the Pushgateway backend when configured.
func newMetricsBackend(cfg *config.Config) (metrics.Backend, error) {
	if !cfg.Metrics.Enabled() {
		return metrics.Nop{}, nil
	}
	b, err := prompush.NewBackend(cfg.Metrics.Job, cfg.Metrics.PushURL)
	if err != nil {
		return nil, fmt.Errorf("failed to configure metrics: %w", err)
	}
	return b, nil
}

func createEngine(cfg *config.Config, logger *slog.Logger) (*engine.Engine, error) {
	// Ensure state directory exists
	if cfg.StatePath != ":memory:" {
		stateDir := filepath.Dir(cfg.StatePath)
		if stateDir != "." && stateDir != "" {
			if err := os.MkdirAll(stateDir, 0750); err != nil {
				return nil, fmt.Errorf("failed to create state directory: %w", err)
			}
		}
	}

	backend, err := newMetricsBackend(cfg)
	if err != nil {
		return nil, err
	}

	return engine.New(engine.Config{
		StepsDir:      cfg.StepsDir,
		StatePath:     cfg.StatePath,
		Environment:   cfg.Environment,
		DefaultEngine: cfg.Engine,
		AdapterConfig: intconfig.AdapterConfig(cfg.Target),
		Metrics:       backend,
		Logger:        logger,
	})
}

// resolveStepFiles returns args as step files, or every step file of the
// steps directory when args is empty.
func resolveStepFiles(stepsDir string, args []string) ([]string, error) {
	if len(args) == 0 {
		paths, err := parser.DiscoverSteps(stepsDir)
		if err != nil {
			return nil, fmt.Errorf("%w\nHint: create the directory or set steps_dir in etlite.yaml", err)
		}
		if len(paths) == 0 {
			return nil, fmt.Errorf("no step files found in %s", stepsDir)
		}
		return paths, nil
	}

	paths := make([]string, 0, len(args))
	for _, a := range args {
		info, err := os.Stat(a)
		if err != nil {
			return nil, fmt.Errorf("step file not found: %s", a)
		}
		if info.IsDir() {
			dirPaths, err := parser.DiscoverSteps(a)
			if err != nil {
				return nil, err
			}
			paths = append(paths, dirPaths...)
			continue
		}
		paths = append(paths, a)
	}
	return paths, nil
}
