// Package config loads the etlite CLI configuration.
//
// Values are layered with koanf, lowest to highest precedence: built-in
// defaults, etlite.yaml, ETLITE_* environment variables, then command-line
// flags. An environment selected with --target/-t overlays its own settings.
package config

import (
	"github.com/leapstack-labs/etlite/pkg/core"
)

// TargetConfig is an alias for the shared target configuration.
type TargetConfig = core.TargetConfig

// MetricsConfig is an alias for the shared metrics configuration.
type MetricsConfig = core.MetricsConfig

// Config holds all CLI configuration options.
type Config struct {
	StepsDir     string               `koanf:"steps_dir"`
	StatePath    string               `koanf:"state_path"`
	Engine       string               `koanf:"engine"`
	Environment  string               `koanf:"environment"`
	Verbose      bool                 `koanf:"verbose"`
	OutputFormat string               `koanf:"output"`
	Target       *TargetConfig        `koanf:"target"`
	Metrics      *MetricsConfig       `koanf:"metrics"`
	Environments map[string]EnvConfig `koanf:"environments"`

	// ProjectRoot is the directory relative paths are resolved against.
	ProjectRoot string `koanf:"-"`
}

// EnvConfig holds environment-specific configuration overrides.
type EnvConfig struct {
	StepsDir string         `koanf:"steps_dir"`
	Engine   string         `koanf:"engine"`
	Target   *TargetConfig  `koanf:"target"`
	Metrics  *MetricsConfig `koanf:"metrics"`
}

// Default configuration values.
const (
	DefaultOutput = "auto" // Auto-detect: TTY=text, non-TTY=markdown
)
