// Package duckdb runs steps against DuckDB.
//
// The adapter registers itself as "duckdb"; link it in with
//
//	import _ "github.com/leapstack-labs/etlite/pkg/adapters/duckdb"
package duckdb

import (
	"log/slog"

	"github.com/leapstack-labs/etlite/pkg/adapter"
)

func init() {
	adapter.Register("duckdb", func(logger *slog.Logger) adapter.Adapter { return New(logger) })
}
