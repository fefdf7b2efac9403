package adapter_test

import (
	"testing"

	"github.com/leapstack-labs/etlite/pkg/adapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/leapstack-labs/etlite/pkg/adapters/clickhouse"
	_ "github.com/leapstack-labs/etlite/pkg/adapters/duckdb"
	_ "github.com/leapstack-labs/etlite/pkg/adapters/postgres"
	_ "github.com/leapstack-labs/etlite/pkg/adapters/sqlite"
)

func TestBuiltinAdapters(t *testing.T) {
	builtin := []string{"clickhouse", "duckdb", "postgres", "sqlite"}

	names := adapter.ListAdapters()
	for _, name := range builtin {
		t.Run(name, func(t *testing.T) {
			assert.Contains(t, names, name)

			a, err := adapter.NewAdapter(adapter.Config{Type: name}, nil)
			require.NoError(t, err)
			conn, ok := a.(interface{ IsConnected() bool })
			require.True(t, ok)
			assert.False(t, conn.IsConnected(), "NewAdapter must not connect")
		})
	}
}

func TestUnknownAdapterListsBuiltins(t *testing.T) {
	_, err := adapter.NewAdapter(adapter.Config{Type: "oracle"}, nil)

	var unknown *adapter.UnknownAdapterError
	require.ErrorAs(t, err, &unknown)
	assert.Subset(t, unknown.Available, []string{"clickhouse", "duckdb", "postgres", "sqlite"})
}

func TestOpen_SQLiteMemory(t *testing.T) {
	a, err := adapter.Open(t.Context(), adapter.Config{Type: "SQLite", Path: ":memory:"}, nil)
	require.NoError(t, err)
	defer func() { _ = a.Close() }()

	require.NoError(t, a.Exec(t.Context(), "CREATE TABLE daily (n INTEGER)"))
	rows, err := a.Query(t.Context(), "SELECT count(*) FROM daily")
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()
	require.True(t, rows.Next())
	var n int
	require.NoError(t, rows.Scan(&n))
	assert.Zero(t, n)
}
