package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	intconfig "github.com/leapstack-labs/etlite/internal/config"
	"github.com/spf13/pflag"
)

// loggerKey is used to store the logger in the command context.
type loggerKey struct{}

// maxUpwardSearchLevels limits how far up the directory tree to search for config files.
const maxUpwardSearchLevels = 10

// envPrefix is the prefix of configuration environment variables.
const envPrefix = "ETLITE_"

var (
	configFileUsed string
	currentConfig  *Config
)

// skipFlags are flags that select configuration rather than carry it.
var skipFlags = map[string]bool{"config": true, "target": true, "help": true}

// flagKeys maps flag names to config keys where they differ.
var flagKeys = map[string]string{
	"state":     "state_path",
	"env":       "environment",
	"database":  "target.database",
	"push-url":  "metrics.push_url",
	"steps-dir": "steps_dir",
}

// ResetConfig forgets the loaded configuration. Used for testing.
func ResetConfig() {
	configFileUsed = ""
	currentConfig = nil
}

// LoadConfig loads configuration from file, environment variables, and flags.
// targetOverride selects an entry of environments; empty means the
// configured environment. flags may be nil.
func LoadConfig(cfgFile, targetOverride string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	projectRoot := inferProjectRoot(cfgFile)

	// 1. Defaults
	if err := k.Load(confmap.Provider(map[string]any{
		"steps_dir":   intconfig.DefaultStepsDir,
		"state_path":  intconfig.DefaultStateFile,
		"environment": intconfig.DefaultEnv,
		"verbose":     false,
		"output":      DefaultOutput,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	if cfgFile == "" {
		cfgFile = intconfig.FindConfigFile(projectRoot)
	}
	configFileUsed = cfgFile
	if cfgFile != "" {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", cfgFile, err)
		}
	}

	// 3. Environment variables: ETLITE_STEPS_DIR -> steps_dir,
	// ETLITE_TARGET__HOST -> target.host
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags, only those explicitly set
	var flagPaths map[string]bool
	if flags != nil {
		flagPaths = make(map[string]bool)
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed || skipFlags[f.Name] {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				key = strings.ReplaceAll(f.Name, "-", "_")
			}
			if f.Name == "steps-dir" || f.Name == "state" {
				flagPaths[key] = true
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.ProjectRoot = projectRoot

	envName := cfg.Environment
	if targetOverride != "" {
		envName = targetOverride
		cfg.Environment = targetOverride
	}
	if envCfg, ok := cfg.Environments[envName]; ok {
		applyEnvironment(&cfg, envCfg, flagPaths)
	} else if targetOverride != "" {
		return nil, fmt.Errorf("unknown target environment %q", targetOverride)
	}

	// Paths given as flags are relative to the working directory, the rest
	// to the project root.
	cfg.StepsDir = resolvePath(cfg.StepsDir, projectRoot, flagPaths["steps_dir"])
	if cfg.StatePath != ":memory:" {
		cfg.StatePath = resolvePath(cfg.StatePath, projectRoot, flagPaths["state_path"])
	}

	if cfg.Target == nil {
		cfg.Target = &TargetConfig{}
	}
	intconfig.ApplyTargetDefaults(cfg.Target)
	intconfig.ExpandTargetEnvVars(cfg.Target)
	if cfg.Metrics != nil {
		cfg.Metrics.PushURL = intconfig.ExpandEnvVars(cfg.Metrics.PushURL)
	}

	if err := intconfig.ValidateTarget(cfg.Target); err != nil {
		return nil, fmt.Errorf("invalid target configuration: %w", err)
	}

	currentConfig = &cfg
	return &cfg, nil
}

// applyEnvironment overlays an environments entry. Values set by flags win.
func applyEnvironment(cfg *Config, envCfg EnvConfig, flagPaths map[string]bool) {
	if envCfg.StepsDir != "" && !flagPaths["steps_dir"] {
		cfg.StepsDir = envCfg.StepsDir
	}
	if envCfg.Engine != "" {
		cfg.Engine = envCfg.Engine
	}
	if envCfg.Target != nil {
		cfg.Target = intconfig.MergeTargetConfig(cfg.Target, envCfg.Target)
	}
	if envCfg.Metrics != nil {
		cfg.Metrics = envCfg.Metrics
	}
}

// inferProjectRoot returns the directory of an explicit config file, else
// the nearest ancestor of the working directory holding etlite.yaml, else
// the working directory.
func inferProjectRoot(cfgFile string) string {
	if cfgFile != "" {
		if abs, err := filepath.Abs(cfgFile); err == nil {
			return filepath.Dir(abs)
		}
		return filepath.Dir(cfgFile)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	if root := intconfig.FindProjectRoot(cwd, maxUpwardSearchLevels); root != "" {
		return root
	}
	return cwd
}

// resolvePath makes path absolute. Relative flag values resolve against
// the working directory, other relative values against baseDir.
func resolvePath(path, baseDir string, fromFlag bool) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if fromFlag {
		if abs, err := filepath.Abs(path); err == nil {
			return abs
		}
		return path
	}
	return filepath.Join(baseDir, path)
}

// GetConfigFileUsed returns the path to the config file being used, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// GetCurrentConfig returns the configuration loaded by the last LoadConfig.
func GetCurrentConfig() *Config {
	return currentConfig
}

// WithLogger stores the logger in ctx.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
			return l
		}
	}
	return slog.New(slog.DiscardHandler)
}
