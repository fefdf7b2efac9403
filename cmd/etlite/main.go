// Package main is the etlite command.
package main

import (
	"os"

	"github.com/leapstack-labs/etlite/internal/cli"

	// Database adapters
	_ "github.com/leapstack-labs/etlite/pkg/adapters/clickhouse"
	_ "github.com/leapstack-labs/etlite/pkg/adapters/duckdb"
	_ "github.com/leapstack-labs/etlite/pkg/adapters/postgres"
	_ "github.com/leapstack-labs/etlite/pkg/adapters/sqlite"

	// Engine function sets
	_ "github.com/leapstack-labs/etlite/pkg/engines/clickhouse"
	_ "github.com/leapstack-labs/etlite/pkg/engines/generic"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
