package generic

import (
	"fmt"

	"github.com/leapstack-labs/etlite/pkg/core"
)

// IncrementalParams configures an incremental load.
type IncrementalParams struct {
	// Column is the monotonically increasing column rows are loaded by.
	Column string `mapstructure:"column"`
	// Start is "latest" (the default) or the lower bound of Column loaded
	// into an empty table.
	Start string `mapstructure:"start"`
	// Window reloads rows newer than max(Column) - Window, e.g. "3 days".
	Window string `mapstructure:"window"`
}

// EmptyCondition returns the predicate on src that selects rows when the
// target is empty, given the emptiness test isEmpty.
func (ip IncrementalParams) EmptyCondition(isEmpty string) string {
	if ip.Start == "" || ip.Start == "latest" {
		return isEmpty
	}
	return fmt.Sprintf("(%s AND src.%s >= %s)", isEmpty, ip.Column, Quote(ip.Start))
}

// DecodeIncremental decodes and validates incremental parameters.
func DecodeIncremental(p core.Params) (IncrementalParams, error) {
	var ip IncrementalParams
	if err := p.Decode(&ip); err != nil {
		return ip, err
	}
	if ip.Column == "" {
		return ip, &core.ParamError{Key: "column", Message: "is required"}
	}
	return ip, nil
}

func noParams(p core.Params) error {
	var none struct{}
	return p.Decode(&none)
}

// Insert returns the statement loading every row of query into table.
func Insert(table, query string) string {
	return fmt.Sprintf("INSERT INTO %s\n%s", table, query)
}

// Subquery wraps query as a derived table named alias.
func Subquery(query, alias string) string {
	return "(" + query + ") AS " + alias
}

// LoadAll is the plan inserting every row of query into table after the
// prepare statements.
func LoadAll(table, query string, prepare ...string) *core.LoadPlan {
	return &core.LoadPlan{
		Prepare: prepare,
		Source:  Subquery(query, "src"),
		Load:    []string{Insert(table, query)},
	}
}

// LoadNewer is the incremental plan: rows of query whose column is newer than
// max(column) of table, or every row passing ip.EmptyCondition(isEmpty)
// while table is empty.
func LoadNewer(table, query string, ip IncrementalParams, isEmpty string, prepare ...string) *core.LoadPlan {
	sel := fmt.Sprintf("SELECT * FROM %[3]s\nWHERE %[4]s OR src.%[2]s > (SELECT max(%[2]s) FROM %[1]s)",
		table, ip.Column, Subquery(query, "src"), ip.EmptyCondition(isEmpty))
	return &core.LoadPlan{
		Prepare: prepare,
		Source:  Subquery(sel, "inc"),
		Load:    []string{Insert(table, sel)},
	}
}

// Replace empties table and loads query into it.
func Replace(table, query string, p core.Params) (*core.LoadPlan, error) {
	if err := noParams(p); err != nil {
		return nil, err
	}
	return LoadAll(table, query, "DELETE FROM "+table), nil
}

// Append loads query into table, keeping existing rows.
func Append(table, query string, p core.Params) (*core.LoadPlan, error) {
	if err := noParams(p); err != nil {
		return nil, err
	}
	return LoadAll(table, query), nil
}

// Incremental loads the rows of query whose column is newer than anything
// already in table. With a window, the trailing window is deleted and
// reloaded first.
func Incremental(table, query string, p core.Params) (*core.LoadPlan, error) {
	ip, err := DecodeIncremental(p)
	if err != nil {
		return nil, err
	}

	var prepare []string
	if ip.Window != "" {
		prepare = append(prepare, fmt.Sprintf(
			"DELETE FROM %[1]s WHERE %[2]s > (SELECT max(%[2]s) FROM %[1]s) - INTERVAL %[3]s",
			table, ip.Column, Quote(ip.Window)))
	}
	return LoadNewer(table, query, ip, "NOT EXISTS (SELECT 1 FROM "+table+")", prepare...), nil
}
