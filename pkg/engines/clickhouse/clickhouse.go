// Package clickhouse provides the "clickhouse" implementation sets.
//
// Sets replace the generic ones wholesale, so every generic function that
// still applies to ClickHouse is registered here again. There is no
// clickhouse meta set: meta blocks resolve against the generic one.
package clickhouse

import (
	"github.com/leapstack-labs/etlite/pkg/core"
	"github.com/leapstack-labs/etlite/pkg/engines/generic"
	"github.com/leapstack-labs/etlite/pkg/funcs"
)

// Engine is the name the ClickHouse sets are registered under.
const Engine = "clickhouse"

// Register adds the ClickHouse sets to r.
func Register(r *funcs.Registry) {
	r.RegisterSet(Engine, core.CategoryTarget, Targets())
	r.RegisterSet(Engine, core.CategoryStrategy, Strategies())
	r.RegisterSet(Engine, core.CategoryInvariant, Invariants())
	r.RegisterSet(Engine, core.CategoryTest, Tests())
}

// Targets returns the ClickHouse target set. The generic view target is
// not carried over.
func Targets() map[string]core.Implementation {
	return map[string]core.Implementation{
		"table":      core.TargetFunc(Table),
		"merge_tree": core.TargetFunc(MergeTree),
		"log":        core.TargetFunc(Log),
	}
}

// Strategies returns the ClickHouse strategy set.
func Strategies() map[string]core.Implementation {
	set := generic.Strategies()
	set["replace"] = core.StrategyFunc(Replace)
	set["incremental"] = core.StrategyFunc(Incremental)
	return set
}

// Invariants returns the ClickHouse invariant set.
func Invariants() map[string]core.Implementation {
	set := generic.Invariants()
	set["sum"] = core.InvariantFunc(Sum)
	set["array_sum"] = core.InvariantFunc(ArraySum)
	return set
}

// Tests returns the ClickHouse test set.
func Tests() map[string]core.Implementation {
	set := generic.Tests()
	set["no_duplicates"] = core.TestFunc(NoDuplicates)
	set["array_length"] = core.TestFunc(ArrayLength)
	return set
}
