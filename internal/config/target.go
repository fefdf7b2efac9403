package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/leapstack-labs/etlite/pkg/adapter"
	"github.com/leapstack-labs/etlite/pkg/core"
)

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// ValidateTarget checks the target against the adapter registry.
func ValidateTarget(t *core.TargetConfig) error {
	if t == nil || t.Type == "" {
		return fmt.Errorf("target type is required")
	}
	if !adapter.IsRegistered(strings.ToLower(t.Type)) {
		return &adapter.UnknownAdapterError{
			Type:      t.Type,
			Available: adapter.ListAdapters(),
		}
	}
	return nil
}

// AdapterConfig converts a target into the adapter connection config.
func AdapterConfig(t *core.TargetConfig) *core.AdapterConfig {
	if t == nil {
		return nil
	}
	return &core.AdapterConfig{
		Type:     t.Type,
		Path:     t.Database,
		Host:     t.Host,
		Port:     t.Port,
		Database: t.Database,
		Username: t.User,
		Password: t.Password,
		Schema:   t.Schema,
		Options:  t.Options,
		Params:   t.Params,
	}
}

// ExpandEnvVars replaces ${VAR} with the value of the environment variable.
// Unset variables are left as written.
func ExpandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		return match
	})
}

// ExpandTargetEnvVars expands environment variables in the connection fields.
func ExpandTargetEnvVars(t *core.TargetConfig) {
	if t == nil {
		return
	}
	t.Password = ExpandEnvVars(t.Password)
	t.User = ExpandEnvVars(t.User)
	t.Host = ExpandEnvVars(t.Host)
	t.Database = ExpandEnvVars(t.Database)
	for k, v := range t.Options {
		t.Options[k] = ExpandEnvVars(v)
	}
}

// MergeTargetConfig merges two target configs, with override taking precedence.
func MergeTargetConfig(base, override *core.TargetConfig) *core.TargetConfig {
	if base == nil {
		return override
	}
	if override == nil {
		return base
	}

	merged := *base
	merged.Options = make(map[string]string, len(base.Options)+len(override.Options))
	merged.Params = make(map[string]any, len(base.Params)+len(override.Params))
	for k, v := range base.Options {
		merged.Options[k] = v
	}
	for k, v := range base.Params {
		merged.Params[k] = v
	}

	if override.Type != "" {
		merged.Type = override.Type
	}
	if override.Database != "" {
		merged.Database = override.Database
	}
	if override.Host != "" {
		merged.Host = override.Host
	}
	if override.Port != 0 {
		merged.Port = override.Port
	}
	if override.User != "" {
		merged.User = override.User
	}
	if override.Password != "" {
		merged.Password = override.Password
	}
	if override.Schema != "" {
		merged.Schema = override.Schema
	}
	for k, v := range override.Options {
		merged.Options[k] = v
	}
	for k, v := range override.Params {
		merged.Params[k] = v
	}
	return &merged
}
