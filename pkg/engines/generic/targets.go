package generic

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/etlite/pkg/core"
)

type tableParams struct {
	Name         string `mapstructure:"name"`
	Columns      any    `mapstructure:"columns"`
	CreateSchema *bool  `mapstructure:"create_schema"`
}

type viewParams struct {
	Name         string `mapstructure:"name"`
	CreateSchema *bool  `mapstructure:"create_schema"`
}

// SplitName splits "schema.table". ok is false for an unqualified name.
func SplitName(name string) (schema, table string, ok bool) {
	schema, table, ok = strings.Cut(name, ".")
	if !ok {
		return "", name, false
	}
	return schema, table, true
}

// ColumnDefs returns the "name type" definitions of the "columns" parameter
// in declaration order. It accepts a mapping of name to type or a list of
// definitions, and returns nil when the parameter is absent.
func ColumnDefs(p core.Params) ([]string, error) {
	v, ok := p.Get("columns")
	if !ok || v.IsNull() {
		return nil, nil
	}
	if v.Kind() == core.ListKind {
		return p.Strings("columns")
	}
	cols, err := p.Map("columns")
	if err != nil {
		return nil, err
	}
	defs := make([]string, 0, cols.Len())
	for _, e := range cols.Entries() {
		typ := strings.TrimSpace(e.Value.Text())
		if typ == "" {
			return nil, &core.ParamError{Key: "columns", Message: fmt.Sprintf("column %q has no type", e.Key)}
		}
		defs = append(defs, e.Key+" "+typ)
	}
	return defs, nil
}

// Table materializes the step into a table. With "columns" the table is
// declared explicitly; otherwise its shape is taken from the query.
func Table(p core.Params, query string) (*core.TargetTable, error) {
	var tp tableParams
	if err := p.Decode(&tp); err != nil {
		return nil, err
	}
	if tp.Name == "" {
		return nil, &core.ParamError{Key: "name", Message: "is required"}
	}
	defs, err := ColumnDefs(p)
	if err != nil {
		return nil, err
	}

	var stmts []string
	if schema, _, ok := SplitName(tp.Name); ok && (tp.CreateSchema == nil || *tp.CreateSchema) {
		stmts = append(stmts, "CREATE SCHEMA IF NOT EXISTS "+schema)
	}
	if len(defs) > 0 {
		stmts = append(stmts, fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n    %s\n)",
			tp.Name, strings.Join(defs, ",\n    ")))
	} else {
		stmts = append(stmts, fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s AS\nSELECT * FROM (%s) AS src WHERE 1 = 0",
			tp.Name, query))
	}
	return &core.TargetTable{Name: tp.Name, Statements: stmts}, nil
}

// View materializes the step as a view over its query.
func View(p core.Params, query string) (*core.TargetTable, error) {
	var vp viewParams
	if err := p.Decode(&vp); err != nil {
		return nil, err
	}
	if vp.Name == "" {
		return nil, &core.ParamError{Key: "name", Message: "is required"}
	}

	var stmts []string
	if schema, _, ok := SplitName(vp.Name); ok && (vp.CreateSchema == nil || *vp.CreateSchema) {
		stmts = append(stmts, "CREATE SCHEMA IF NOT EXISTS "+schema)
	}
	stmts = append(stmts,
		"DROP VIEW IF EXISTS "+vp.Name,
		fmt.Sprintf("CREATE VIEW %s AS\n%s", vp.Name, query))
	return &core.TargetTable{Name: vp.Name, Statements: stmts, View: true}, nil
}
