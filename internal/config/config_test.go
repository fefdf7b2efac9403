package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/etlite/pkg/adapter"
	"github.com/leapstack-labs/etlite/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/leapstack-labs/etlite/pkg/adapters/postgres"
	_ "github.com/leapstack-labs/etlite/pkg/adapters/sqlite"
)

func TestApplyTargetDefaults(t *testing.T) {
	tests := []struct {
		name   string
		target core.TargetConfig
		want   core.TargetConfig
	}{
		{
			name:   "empty type falls back to duckdb",
			target: core.TargetConfig{},
			want:   core.TargetConfig{Type: "duckdb", Schema: "main"},
		},
		{
			name:   "postgres with host gets port",
			target: core.TargetConfig{Type: "Postgres", Host: "db"},
			want:   core.TargetConfig{Type: "postgres", Host: "db", Port: 5432, Schema: "public"},
		},
		{
			name:   "clickhouse keeps explicit port",
			target: core.TargetConfig{Type: "clickhouse", Host: "ch", Port: 9440},
			want:   core.TargetConfig{Type: "clickhouse", Host: "ch", Port: 9440, Schema: "default"},
		},
		{
			name:   "explicit schema kept",
			target: core.TargetConfig{Type: "sqlite", Schema: "aux"},
			want:   core.TargetConfig{Type: "sqlite", Schema: "aux"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := tt.target
			ApplyTargetDefaults(&target)
			assert.Equal(t, tt.want, target)
		})
	}

	ApplyTargetDefaults(nil)
}

func TestValidateTarget(t *testing.T) {
	require.NoError(t, ValidateTarget(&core.TargetConfig{Type: "sqlite"}))
	require.NoError(t, ValidateTarget(&core.TargetConfig{Type: "Postgres"}))

	err := ValidateTarget(&core.TargetConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "target type is required")

	err = ValidateTarget(&core.TargetConfig{Type: "mysql"})
	var unknown *adapter.UnknownAdapterError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "mysql", unknown.Type)
	assert.Contains(t, unknown.Available, "sqlite")
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("ETLITE_TEST_PASSWORD", "s3cret")

	assert.Equal(t, "s3cret", ExpandEnvVars("${ETLITE_TEST_PASSWORD}"))
	assert.Equal(t, "user:s3cret@", ExpandEnvVars("user:${ETLITE_TEST_PASSWORD}@"))
	assert.Equal(t, "${ETLITE_TEST_UNSET}", ExpandEnvVars("${ETLITE_TEST_UNSET}"))
	assert.Equal(t, "plain", ExpandEnvVars("plain"))

	target := &core.TargetConfig{
		Password: "${ETLITE_TEST_PASSWORD}",
		Options:  map[string]string{"sslmode": "${ETLITE_TEST_PASSWORD}"},
	}
	ExpandTargetEnvVars(target)
	assert.Equal(t, "s3cret", target.Password)
	assert.Equal(t, "s3cret", target.Options["sslmode"])
}

func TestMergeTargetConfig(t *testing.T) {
	base := &core.TargetConfig{
		Type:    "postgres",
		Host:    "localhost",
		User:    "etl",
		Options: map[string]string{"sslmode": "disable"},
		Params:  map[string]any{"a": 1},
	}
	override := &core.TargetConfig{
		Host:    "prod-db",
		Options: map[string]string{"sslmode": "require"},
		Params:  map[string]any{"b": 2},
	}

	merged := MergeTargetConfig(base, override)
	assert.Equal(t, "postgres", merged.Type)
	assert.Equal(t, "prod-db", merged.Host)
	assert.Equal(t, "etl", merged.User)
	assert.Equal(t, "require", merged.Options["sslmode"])
	assert.Equal(t, map[string]any{"a": 1, "b": 2}, merged.Params)

	// The base is not modified.
	assert.Equal(t, "localhost", base.Host)
	assert.Equal(t, "disable", base.Options["sslmode"])

	assert.Same(t, override, MergeTargetConfig(nil, override))
	assert.Same(t, base, MergeTargetConfig(base, nil))
}

func TestAdapterConfig(t *testing.T) {
	assert.Nil(t, AdapterConfig(nil))

	cfg := AdapterConfig(&core.TargetConfig{
		Type:     "sqlite",
		Database: "warehouse.db",
		User:     "etl",
		Schema:   "main",
	})
	assert.Equal(t, "sqlite", cfg.Type)
	assert.Equal(t, "warehouse.db", cfg.Path)
	assert.Equal(t, "warehouse.db", cfg.Database)
	assert.Equal(t, "etl", cfg.Username)
}

func TestFindProjectRoot(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "steps", "daily")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	assert.Empty(t, FindProjectRoot(nested, 10))

	require.NoError(t, os.WriteFile(filepath.Join(root, ConfigFileNameAlt), []byte("steps_dir: steps\n"), 0o644))
	assert.Equal(t, root, FindProjectRoot(nested, 10))
	assert.Equal(t, filepath.Join(root, ConfigFileNameAlt), FindConfigFile(root))

	// The search depth is bounded.
	assert.Empty(t, FindProjectRoot(nested, 1))
}
