package core

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
)

// Conn is the database capability consumed by step execution and by the
// invariant and test implementations.
type Conn interface {
	// Exec executes a SQL statement that doesn't return rows.
	Exec(ctx context.Context, sql string) error

	// Query executes a SQL statement that returns rows.
	Query(ctx context.Context, sql string) (*Rows, error)
}

// Adapter defines the interface that all database adapters must implement.
type Adapter interface {
	Conn

	// Connect establishes a connection to the database.
	Connect(ctx context.Context, cfg AdapterConfig) error

	// Close closes the database connection.
	Close() error

	// Engine returns the engine name whose implementation sets match this
	// database, e.g. "clickhouse" or "sql".
	Engine() string
}

// SettingsApplier is implemented by adapters that can apply the settings of
// a meta.engine block to the statements run with the returned context.
type SettingsApplier interface {
	WithSettings(ctx context.Context, settings Params) (context.Context, error)
}

// AdapterConfig holds configuration for connecting to a database.
type AdapterConfig struct {
	Type     string
	Path     string
	Host     string
	Port     int
	Database string
	Username string
	Password string
	Schema   string
	Options  map[string]string
	Params   map[string]any
}

// Rows wraps sql.Rows to provide a consistent interface.
type Rows struct {
	*sql.Rows
}

// QueryScalar runs query and returns the first column of the first row.
func QueryScalar(ctx context.Context, conn Conn, query string) (any, error) {
	rows, err := conn.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("query returned no rows")
	}

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("failed to scan result: %w", err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("query returned no columns")
	}
	return values[0], rows.Err()
}

// ToFloat converts a scanned driver value to float64. NULL is zero.
func ToFloat(v any) (float64, error) {
	switch t := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case int32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case uint64:
		return float64(t), nil
	case uint32:
		return float64(t), nil
	case uint8:
		return float64(t), nil
	case bool:
		if t {
			return 1, nil
		}
		return 0, nil
	case []byte:
		return strconv.ParseFloat(string(t), 64)
	case string:
		return strconv.ParseFloat(t, 64)
	case fmt.Stringer:
		return strconv.ParseFloat(t.String(), 64)
	}
	return 0, fmt.Errorf("cannot convert %T to a number", v)
}

// ToBool converts a scanned driver value to bool. Numbers are true when
// non-zero.
func ToBool(v any) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case []byte:
		return strconv.ParseBool(string(t))
	case string:
		return strconv.ParseBool(t)
	}
	f, err := ToFloat(v)
	if err != nil {
		return false, fmt.Errorf("cannot convert %T to a boolean", v)
	}
	return f != 0, nil
}
