// Package generic provides the "sql" implementation set that every engine
// falls back to when it has no set of its own for a category.
//
// The SQL it emits sticks to constructs shared by DuckDB, PostgreSQL and
// SQLite. Engine plugins build their sets from the exported constructors
// below and replace the entries they override.
package generic

import (
	"github.com/leapstack-labs/etlite/pkg/core"
	"github.com/leapstack-labs/etlite/pkg/funcs"
)

// Engine is the name the generic sets are registered under.
const Engine = core.DefaultEngine

// Register adds the generic sets to r.
func Register(r *funcs.Registry) {
	r.RegisterSet(Engine, core.CategoryMeta, Meta())
	r.RegisterSet(Engine, core.CategoryTarget, Targets())
	r.RegisterSet(Engine, core.CategoryStrategy, Strategies())
	r.RegisterSet(Engine, core.CategoryInvariant, Invariants())
	r.RegisterSet(Engine, core.CategoryTest, Tests())
}

// Meta returns a fresh copy of the generic meta set.
func Meta() map[string]core.Implementation {
	return map[string]core.Implementation{
		"description": core.MetaFunc(Description),
		"owner":       core.MetaFunc(Owner),
		"tags":        core.MetaFunc(Tags),
	}
}

// Targets returns a fresh copy of the generic target set.
func Targets() map[string]core.Implementation {
	return map[string]core.Implementation{
		"table": core.TargetFunc(Table),
		"view":  core.TargetFunc(View),
	}
}

// Strategies returns a fresh copy of the generic strategy set.
func Strategies() map[string]core.Implementation {
	return map[string]core.Implementation{
		"replace":     core.StrategyFunc(Replace),
		"append":      core.StrategyFunc(Append),
		"incremental": core.StrategyFunc(Incremental),
	}
}

// Invariants returns a fresh copy of the generic invariant set.
func Invariants() map[string]core.Implementation {
	return map[string]core.Implementation{
		"sum":    core.InvariantFunc(Sum),
		"count":  core.InvariantFunc(Count),
		"custom": core.InvariantFunc(CustomInvariant),
	}
}

// Tests returns a fresh copy of the generic test set.
func Tests() map[string]core.Implementation {
	return map[string]core.Implementation{
		"no_duplicates":   core.TestFunc(NoDuplicates),
		"range":           core.TestFunc(Range),
		"not_null":        core.TestFunc(NotNull),
		"accepted_values": core.TestFunc(AcceptedValues),
		"custom":          core.TestFunc(CustomTest),
	}
}
