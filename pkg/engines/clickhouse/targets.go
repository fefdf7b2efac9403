package clickhouse

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/etlite/pkg/core"
	"github.com/leapstack-labs/etlite/pkg/engines/generic"
)

// Table engines accepted by the target functions, by family.
var (
	mergeTreeEngines = map[string]bool{
		"MergeTree":                    true,
		"ReplacingMergeTree":           true,
		"CollapsingMergeTree":          true,
		"VersionedCollapsingMergeTree": true,
		"SummingMergeTree":             true,
		"AggregatingMergeTree":         true,
	}
	logEngines = map[string]bool{
		"Log":       true,
		"TinyLog":   true,
		"StripeLog": true,
	}
)

type tableParams struct {
	Name           string   `mapstructure:"name"`
	Columns        any      `mapstructure:"columns"`
	Engine         string   `mapstructure:"engine"`
	OrderBy        []string `mapstructure:"order_by"`
	PartitionBy    string   `mapstructure:"partition_by"`
	PrimaryKey     []string `mapstructure:"primary_key"`
	Settings       any      `mapstructure:"settings"`
	CreateDatabase *bool    `mapstructure:"create_database"`
}

type logParams struct {
	Name           string `mapstructure:"name"`
	Columns        any    `mapstructure:"columns"`
	Engine         string `mapstructure:"engine"`
	CreateDatabase *bool  `mapstructure:"create_database"`
}

// engineName strips engine arguments: "ReplacingMergeTree(version)" is a
// ReplacingMergeTree.
func engineName(engine string) string {
	name, _, _ := strings.Cut(engine, "(")
	return strings.TrimSpace(name)
}

// Table materializes the step into a table of any supported engine,
// MergeTree by default.
func Table(p core.Params, query string) (*core.TargetTable, error) {
	var tp tableParams
	if err := p.Decode(&tp); err != nil {
		return nil, err
	}
	if tp.Engine == "" {
		tp.Engine = "MergeTree"
	}
	name := engineName(tp.Engine)
	switch {
	case mergeTreeEngines[name]:
		return buildMergeTree(p, tp, query)
	case logEngines[name]:
		if len(tp.OrderBy) > 0 || len(tp.PrimaryKey) > 0 || tp.PartitionBy != "" || tp.Settings != nil {
			return nil, &core.ParamError{Key: "engine", Message: fmt.Sprintf("%s tables take no order_by, primary_key, partition_by or settings", name)}
		}
		return buildTable(p, tp.Name, tp.Engine, nil, tp.CreateDatabase, query)
	}
	return nil, &core.ParamError{Key: "engine", Message: fmt.Sprintf("unsupported table engine %q", tp.Engine)}
}

// MergeTree materializes the step into a MergeTree family table.
func MergeTree(p core.Params, query string) (*core.TargetTable, error) {
	var tp tableParams
	if err := p.Decode(&tp); err != nil {
		return nil, err
	}
	if tp.Engine == "" {
		tp.Engine = "MergeTree"
	}
	if !mergeTreeEngines[engineName(tp.Engine)] {
		return nil, &core.ParamError{Key: "engine", Message: fmt.Sprintf("%q is not a MergeTree family engine", tp.Engine)}
	}
	return buildMergeTree(p, tp, query)
}

// Log materializes the step into a Log family table.
func Log(p core.Params, query string) (*core.TargetTable, error) {
	var lp logParams
	if err := p.Decode(&lp); err != nil {
		return nil, err
	}
	if lp.Engine == "" {
		lp.Engine = "Log"
	}
	if !logEngines[engineName(lp.Engine)] {
		return nil, &core.ParamError{Key: "engine", Message: fmt.Sprintf("%q is not a Log family engine", lp.Engine)}
	}
	return buildTable(p, lp.Name, lp.Engine, nil, lp.CreateDatabase, query)
}

func buildMergeTree(p core.Params, tp tableParams, query string) (*core.TargetTable, error) {
	orderBy := "tuple()"
	if len(tp.OrderBy) > 0 {
		orderBy = "(" + generic.ColumnList(tp.OrderBy) + ")"
	}
	clauses := []string{"ORDER BY " + orderBy}
	if tp.PartitionBy != "" {
		clauses = append(clauses, "PARTITION BY "+tp.PartitionBy)
	}
	if len(tp.PrimaryKey) > 0 {
		clauses = append(clauses, "PRIMARY KEY ("+generic.ColumnList(tp.PrimaryKey)+")")
	}
	settings, err := p.Map("settings")
	if err != nil {
		return nil, err
	}
	if settings.Len() > 0 {
		clauses = append(clauses, "SETTINGS "+RenderSettings(settings))
	}
	return buildTable(p, tp.Name, tp.Engine, clauses, tp.CreateDatabase, query)
}

func buildTable(p core.Params, name, engine string, clauses []string, createDatabase *bool, query string) (*core.TargetTable, error) {
	if name == "" {
		return nil, &core.ParamError{Key: "name", Message: "is required"}
	}
	defs, err := generic.ColumnDefs(p)
	if err != nil {
		return nil, err
	}

	var stmts []string
	if db, _, ok := generic.SplitName(name); ok && (createDatabase == nil || *createDatabase) {
		stmts = append(stmts, "CREATE DATABASE IF NOT EXISTS "+db)
	}

	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS " + name)
	if len(defs) > 0 {
		b.WriteString(" (\n    " + strings.Join(defs, ",\n    ") + "\n)")
	}
	b.WriteString("\nENGINE = " + engine)
	for _, c := range clauses {
		b.WriteString("\n" + c)
	}
	if len(defs) == 0 {
		fmt.Fprintf(&b, "\nAS SELECT * FROM (%s) AS src LIMIT 0", query)
	}
	stmts = append(stmts, b.String())

	return &core.TargetTable{Name: name, Statements: stmts}, nil
}

// RenderSettings renders settings as "k = v, ..." in declaration order.
// Strings are quoted and booleans become 1 or 0.
func RenderSettings(settings core.Params) string {
	parts := make([]string, 0, settings.Len())
	for _, e := range settings.Entries() {
		parts = append(parts, e.Key+" = "+settingValue(e.Value))
	}
	return strings.Join(parts, ", ")
}

func settingValue(v core.Value) string {
	switch v.Kind() {
	case core.StringKind:
		return generic.Quote(v.Text())
	case core.BoolKind:
		if b, _ := v.AsBool(); b {
			return "1"
		}
		return "0"
	}
	return v.Text()
}
