// Package postgres runs steps against PostgreSQL.
//
// The adapter registers itself as "postgres"; link it in with
//
//	import _ "github.com/leapstack-labs/etlite/pkg/adapters/postgres"
package postgres

import (
	"log/slog"

	"github.com/leapstack-labs/etlite/pkg/adapter"
)

func init() {
	adapter.Register("postgres", func(logger *slog.Logger) adapter.Adapter { return New(logger) })
}
