package duckdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseParams(t *testing.T) {
	tests := []struct {
		name    string
		input   map[string]any
		want    *Params
		wantErr bool
	}{
		{
			name:  "nil params returns empty struct",
			input: nil,
			want:  &Params{},
		},
		{
			name: "extensions and settings",
			input: map[string]any{
				"extensions": []any{"httpfs", "json"},
				"settings":   map[string]any{"threads": 4},
			},
			want: &Params{
				Extensions: []string{"httpfs", "json"},
				Settings:   map[string]string{"threads": "4"},
			},
		},
		{
			name: "secrets",
			input: map[string]any{
				"secrets": []any{
					map[string]any{"type": "s3", "provider": "credential_chain", "region": "eu-west-1"},
				},
			},
			want: &Params{
				Secrets: []SecretConfig{{Type: "s3", Provider: "credential_chain", Region: "eu-west-1"}},
			},
		},
		{
			name:    "unknown key",
			input:   map[string]any{"extension": "json"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseParams(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSetupStatements(t *testing.T) {
	p := &Params{
		Extensions: []string{"httpfs"},
		Secrets:    []SecretConfig{{Type: "s3"}},
		Settings:   map[string]string{"threads": "2", "memory_limit": "4GB"},
	}

	assert.Equal(t, []string{
		"INSTALL httpfs",
		"LOAD httpfs",
		"CREATE SECRET (\n    TYPE s3\n)",
		"SET memory_limit = '4GB'",
		"SET threads = '2'",
	}, p.setupStatements())
}

func TestBuildCreateSecretSQL(t *testing.T) {
	tests := []struct {
		name string
		cfg  SecretConfig
		want string
	}{
		{
			name: "credential chain",
			cfg:  SecretConfig{Type: "s3", Provider: "credential_chain", Region: "us-west-2"},
			want: "CREATE SECRET (\n    TYPE s3,\n    PROVIDER credential_chain,\n    REGION 'us-west-2'\n)",
		},
		{
			name: "multiple scopes",
			cfg:  SecretConfig{Type: "s3", Scope: []any{"s3://a", "s3://b"}},
			want: "CREATE SECRET (\n    TYPE s3,\n    SCOPE ('s3://a', 's3://b')\n)",
		},
		{
			name: "explicit credentials",
			cfg:  SecretConfig{Type: "s3", KeyID: "key", Secret: "sec'ret", Endpoint: "localhost:9000"},
			want: "CREATE SECRET (\n    TYPE s3,\n    KEY_ID 'key',\n    SECRET 'sec''ret',\n    ENDPOINT 'localhost:9000'\n)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, buildCreateSecretSQL(tt.cfg))
		})
	}
}
