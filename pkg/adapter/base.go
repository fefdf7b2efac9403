package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/etlite/pkg/core"
)

// BaseSQLAdapter provides common database/sql functionality for adapters.
// Embed this struct in concrete adapter implementations to get standard
// Close, Exec, and Query implementations.
type BaseSQLAdapter struct {
	DB     *sql.DB
	Cfg    core.AdapterConfig
	Logger *slog.Logger
}

// Close closes the database connection.
func (b *BaseSQLAdapter) Close() error {
	if b.DB != nil {
		if b.Logger != nil {
			b.Logger.Debug("closing database connection")
		}
		return b.DB.Close()
	}
	return nil
}

// Exec executes a SQL statement that doesn't return rows.
func (b *BaseSQLAdapter) Exec(ctx context.Context, sqlStr string) error {
	if b.DB == nil {
		return fmt.Errorf("database connection not established")
	}
	if b.Logger != nil {
		b.Logger.Debug("exec", slog.String("sql", firstLine(sqlStr)))
	}
	_, err := b.DB.ExecContext(ctx, sqlStr)
	if err != nil {
		return fmt.Errorf("failed to execute SQL: %w", err)
	}
	return nil
}

// Query executes a SQL statement that returns rows.
func (b *BaseSQLAdapter) Query(ctx context.Context, sqlStr string) (*core.Rows, error) {
	if b.DB == nil {
		return nil, fmt.Errorf("database connection not established")
	}
	//nolint:rowserrcheck // rows.Err() must be checked by caller after iteration completes
	rows, err := b.DB.QueryContext(ctx, sqlStr)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	return &core.Rows{Rows: rows}, nil
}

// IsConnected returns true if the database connection is established.
func (b *BaseSQLAdapter) IsConnected() bool {
	return b.DB != nil
}

// WithSettings applies settings to the session with one SET statement per
// entry. Adapters whose sessions are not pinned to a single connection
// should override it.
func (b *BaseSQLAdapter) WithSettings(ctx context.Context, settings core.Params) (context.Context, error) {
	for _, e := range settings.Entries() {
		if err := b.Exec(ctx, fmt.Sprintf("SET %s = %s", e.Key, e.Value.Literal())); err != nil {
			return ctx, fmt.Errorf("failed to apply setting %s: %w", e.Key, err)
		}
	}
	return ctx, nil
}

// Ping verifies the connection, closing it on failure.
func (b *BaseSQLAdapter) Ping(ctx context.Context) error {
	if err := b.DB.PingContext(ctx); err != nil {
		_ = b.DB.Close()
		b.DB = nil
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}

// ParseQualifiedName splits a table reference into schema and name, using
// defaultSchema when the reference is unqualified.
func ParseQualifiedName(table, defaultSchema string) (schema, name string) {
	if parts := strings.SplitN(table, ".", 2); len(parts) == 2 {
		return parts[0], parts[1]
	}
	return defaultSchema, table
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}
