package core

import "context"

// Implementation is a function resolved for an annotation block. Each
// concrete function type belongs to exactly one category.
type Implementation interface {
	Category() Category
}

// TargetTable describes how to materialize a step's destination.
type TargetTable struct {
	// Name is the qualified relation name the step writes into.
	Name string
	// Statements create the destination; they must be idempotent.
	Statements []string
	// View targets are fully created by Statements and take no load strategy.
	View bool
}

// LoadPlan loads the rows of Source into a target.
type LoadPlan struct {
	// Prepare runs first, e.g. emptying the target or deleting a window that
	// is reloaded.
	Prepare []string
	// Source is the relation Load inserts, as a parenthesized subquery with
	// alias. It is evaluated after Prepare and before Load.
	Source string
	// Load inserts Source into the target.
	Load []string
}

// Statements returns every statement of the plan in execution order.
func (p *LoadPlan) Statements() []string {
	out := make([]string, 0, len(p.Prepare)+len(p.Load))
	out = append(out, p.Prepare...)
	return append(out, p.Load...)
}

// TargetFunc derives the destination of a step from the target block
// parameters and the main query.
type TargetFunc func(p Params, query string) (*TargetTable, error)

// StrategyFunc builds the statements loading query into table.
type StrategyFunc func(table, query string, p Params) (*LoadPlan, error)

// InvariantFunc measures an aggregate over rel, a relation name or a
// parenthesized subquery with alias. The measurement is compared before and
// after a step runs.
type InvariantFunc func(ctx context.Context, conn Conn, rel string, p Params) (float64, error)

// TestFunc asserts a data-quality property of rel.
type TestFunc func(ctx context.Context, conn Conn, rel string, p Params) (bool, error)

// MetaFunc normalizes the parameters of a metadata block.
type MetaFunc func(description string, p Params) (Params, error)

// Category implements Implementation.
func (TargetFunc) Category() Category { return CategoryTarget }

// Category implements Implementation.
func (StrategyFunc) Category() Category { return CategoryStrategy }

// Category implements Implementation.
func (InvariantFunc) Category() Category { return CategoryInvariant }

// Category implements Implementation.
func (TestFunc) Category() Category { return CategoryTest }

// Category implements Implementation.
func (MetaFunc) Category() Category { return CategoryMeta }
