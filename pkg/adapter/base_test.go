package adapter

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/leapstack-labs/etlite/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockBase(t *testing.T) (*BaseSQLAdapter, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(
		sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual),
		sqlmock.MonitorPingsOption(true),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return &BaseSQLAdapter{DB: db}, mock
}

func TestBaseSQLAdapter_Disconnected(t *testing.T) {
	base := &BaseSQLAdapter{}
	ctx := context.Background()

	assert.False(t, base.IsConnected())
	assert.NoError(t, base.Close())

	err := base.Exec(ctx, "DROP TABLE reports.daily")
	require.EqualError(t, err, "database connection not established")

	rows, err := base.Query(ctx, "SELECT count(*) FROM reports.daily")
	require.EqualError(t, err, "database connection not established")
	assert.Nil(t, rows)
}

func TestBaseSQLAdapter_Exec(t *testing.T) {
	tests := []struct {
		name    string
		sql     string
		err     error
		wantErr string
	}{
		{name: "ok", sql: "CREATE TABLE reports.daily AS SELECT 1 AS n"},
		{name: "multi line", sql: "INSERT INTO reports.daily\nSELECT 2"},
		{name: "driver error", sql: "CREATE TABLE", err: assert.AnError, wantErr: "failed to execute SQL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base, mock := newMockBase(t)
			exp := mock.ExpectExec(tt.sql)
			if tt.err != nil {
				exp.WillReturnError(tt.err)
			} else {
				exp.WillReturnResult(sqlmock.NewResult(0, 1))
			}

			err := base.Exec(context.Background(), tt.sql)
			if tt.wantErr != "" {
				require.ErrorIs(t, err, tt.err)
				assert.Contains(t, err.Error(), tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestBaseSQLAdapter_Query(t *testing.T) {
	base, mock := newMockBase(t)
	mock.ExpectQuery("SELECT city, total FROM reports.daily").
		WillReturnRows(sqlmock.NewRows([]string{"city", "total"}).AddRow("Paris", 12).AddRow("Rome", 7))

	rows, err := base.Query(context.Background(), "SELECT city, total FROM reports.daily")
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()

	var cities []string
	for rows.Next() {
		var city string
		var total int
		require.NoError(t, rows.Scan(&city, &total))
		cities = append(cities, city)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"Paris", "Rome"}, cities)

	mock.ExpectQuery("SELECT broken").WillReturnError(assert.AnError)
	_, err = base.Query(context.Background(), "SELECT broken")
	require.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), "failed to execute query")
}

func TestBaseSQLAdapter_PingFailureCloses(t *testing.T) {
	base, mock := newMockBase(t)
	mock.ExpectPing().WillReturnError(assert.AnError)
	mock.ExpectClose()

	err := base.Ping(context.Background())
	require.ErrorIs(t, err, assert.AnError)
	assert.False(t, base.IsConnected())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBaseSQLAdapter_WithSettings(t *testing.T) {
	base, mock := newMockBase(t)
	mock.ExpectExec("SET threads = 4").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("SET memory_limit = '4GB'").WillReturnResult(sqlmock.NewResult(0, 0))

	settings := core.NewParams(
		core.Entry{Key: "threads", Value: core.Int(4)},
		core.Entry{Key: "memory_limit", Value: core.String("4GB")},
	)
	ctx := context.Background()
	got, err := base.WithSettings(ctx, settings)
	require.NoError(t, err)
	assert.Equal(t, ctx, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBaseSQLAdapter_WithSettingsStopsOnError(t *testing.T) {
	base, mock := newMockBase(t)
	mock.ExpectExec("SET threads = 'many'").WillReturnError(assert.AnError)

	settings := core.NewParams(
		core.Entry{Key: "threads", Value: core.String("many")},
		core.Entry{Key: "never_applied", Value: core.Bool(true)},
	)
	_, err := base.WithSettings(context.Background(), settings)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to apply setting threads")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestParseQualifiedName(t *testing.T) {
	tests := []struct {
		table      string
		wantSchema string
		wantName   string
	}{
		{"reports.volume", "reports", "volume"},
		{"volume", "main", "volume"},
		{"db.schema.table", "db", "schema.table"},
	}

	for _, tt := range tests {
		t.Run(tt.table, func(t *testing.T) {
			schema, name := ParseQualifiedName(tt.table, "main")
			assert.Equal(t, tt.wantSchema, schema)
			assert.Equal(t, tt.wantName, name)
		})
	}
}

func TestFirstLine(t *testing.T) {
	assert.Equal(t, "SELECT 1", firstLine("  SELECT 1\n"))
	assert.Equal(t, "INSERT INTO t ...", firstLine("INSERT INTO t\nSELECT 1"))
}
