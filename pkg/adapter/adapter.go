// Package adapter provides the database connection contract used to run
// steps, plus the shared database/sql plumbing concrete adapters embed.
//
// Concrete adapters live in pkg/adapters/ subdirectories and register
// themselves from init().
package adapter

import "github.com/leapstack-labs/etlite/pkg/core"

type (
	// Adapter is an alias for core.Adapter.
	Adapter = core.Adapter

	// Config is an alias for core.AdapterConfig.
	Config = core.AdapterConfig

	// Rows is an alias for core.Rows.
	Rows = core.Rows
)
