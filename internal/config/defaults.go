// Package config holds the project configuration helpers shared by the CLI
// commands: defaults, target validation and project root discovery.
package config

import (
	"strings"

	"github.com/leapstack-labs/etlite/pkg/core"
)

// Default configuration values.
const (
	DefaultStepsDir  = "steps"
	DefaultStateFile = ".etlite/state.db"
	DefaultEnv       = "dev"
	DefaultTarget    = "duckdb"
)

var defaultSchemas = map[string]string{
	"duckdb":     "main",
	"sqlite":     "main",
	"postgres":   "public",
	"clickhouse": "default",
}

var defaultPorts = map[string]int{
	"postgres":   5432,
	"clickhouse": 9000,
}

// DefaultSchemaForType returns the default schema for a database type,
// "main" when the type is unknown.
func DefaultSchemaForType(dbType string) string {
	if s, ok := defaultSchemas[strings.ToLower(dbType)]; ok {
		return s
	}
	return "main"
}

// ApplyTargetDefaults applies default values to a TargetConfig based on the target type.
func ApplyTargetDefaults(t *core.TargetConfig) {
	if t == nil {
		return
	}
	if t.Type == "" {
		t.Type = DefaultTarget
	}
	t.Type = strings.ToLower(t.Type)

	if t.Schema == "" {
		t.Schema = DefaultSchemaForType(t.Type)
	}
	if t.Port == 0 && t.Host != "" {
		t.Port = defaultPorts[t.Type]
	}
}
