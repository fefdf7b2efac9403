package commands

import (
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
)

// queryResult holds the rows of a query with their column order.
type queryResult struct {
	Columns []string
	Rows    [][]any
}

func executeAndRenderQuery(ctx context.Context, w io.Writer, db *sql.DB, query, format string) error {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	res, err := collectRows(rows)
	if err != nil {
		return err
	}
	return renderResults(w, res, format)
}

func collectRows(rows *sql.Rows) (*queryResult, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	res := &queryResult{Columns: cols}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		res.Rows = append(res.Rows, values)
	}
	return res, rows.Err()
}

func renderResults(w io.Writer, res *queryResult, format string) error {
	switch format {
	case "json":
		return renderJSON(w, res)
	case "csv":
		return renderCSV(w, res)
	case "md", "markdown":
		return renderTable(w, res, true)
	default:
		return renderTable(w, res, false)
	}
}

func renderTable(w io.Writer, res *queryResult, markdown bool) error {
	if len(res.Rows) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)

	header := make(table.Row, len(res.Columns))
	for i, col := range res.Columns {
		header[i] = col
	}
	t.AppendHeader(header)

	for _, values := range res.Rows {
		row := make(table.Row, len(values))
		for i, v := range values {
			row[i] = formatValue(v)
		}
		t.AppendRow(row)
	}

	if markdown {
		t.RenderMarkdown()
		return nil
	}
	t.SetStyle(table.StyleLight)
	t.Render()
	_, _ = fmt.Fprintf(w, "(%d rows)\n", len(res.Rows))
	return nil
}

func renderJSON(w io.Writer, res *queryResult) error {
	out := make([]map[string]any, 0, len(res.Rows))
	for _, values := range res.Rows {
		row := make(map[string]any, len(values))
		for i, col := range res.Columns {
			row[col] = values[i]
		}
		out = append(out, row)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func renderCSV(w io.Writer, res *queryResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(res.Columns); err != nil {
		return err
	}
	for _, values := range res.Rows {
		record := make([]string, len(values))
		for i, v := range values {
			record[i] = formatValue(v)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatValue(v any) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprintf("%v", v)
}

// stateTableNames lists the user tables of the state database, skipping
// SQLite internals and the migration bookkeeping table.
func stateTableNames(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT name FROM sqlite_master
		WHERE type IN ('table', 'view')
		AND name NOT LIKE 'sqlite_%'
		AND name NOT LIKE 'goose_%'
		ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func listTablesFromDB(ctx context.Context, w io.Writer, db *sql.DB, format string) error {
	names, err := stateTableNames(ctx, db)
	if err != nil {
		return err
	}
	res := &queryResult{Columns: []string{"name"}}
	for _, n := range names {
		res.Rows = append(res.Rows, []any{n})
	}
	return renderResults(w, res, format)
}

// columnInfo describes one column of a state table.
type columnInfo struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
	Default  string `json:"default,omitempty"`
	PK       bool   `json:"pk"`
}

type schemaOutput struct {
	Name    string       `json:"name"`
	Columns []columnInfo `json:"columns"`
	Indexes []string     `json:"indexes,omitempty"`
}

func showSchemaFromDB(ctx context.Context, w io.Writer, db *sql.DB, tableName, format string) error {
	names, err := stateTableNames(ctx, db)
	if err != nil {
		return err
	}
	known := false
	for _, n := range names {
		if strings.EqualFold(n, tableName) {
			tableName, known = n, true
			break
		}
	}
	if !known {
		return fmt.Errorf("table '%s' not found", tableName)
	}

	// tableName is one of the names read from sqlite_master above.
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", tableName))
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	schema := schemaOutput{Name: tableName}
	for rows.Next() {
		var cid, notNull, pk int
		var name, colType string
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
			return err
		}
		schema.Columns = append(schema.Columns, columnInfo{
			Name:     name,
			Type:     colType,
			Nullable: notNull == 0,
			Default:  dflt.String,
			PK:       pk > 0,
		})
	}
	if err := rows.Err(); err != nil {
		return err
	}

	idx, err := db.QueryContext(ctx, `
		SELECT name FROM sqlite_master
		WHERE type = 'index' AND tbl_name = ? AND name NOT LIKE 'sqlite_%'
		ORDER BY name`, tableName)
	if err == nil {
		defer func() { _ = idx.Close() }()
		for idx.Next() {
			var name string
			if idx.Scan(&name) == nil {
				schema.Indexes = append(schema.Indexes, name)
			}
		}
	}

	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(schema)
	}

	_, _ = fmt.Fprintf(w, "Table: %s\n", schema.Name)
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Column", "Type", "Nullable", "Default", "PK"})
	for _, c := range schema.Columns {
		nullable := "YES"
		if !c.Nullable {
			nullable = "NO"
		}
		pk := ""
		if c.PK {
			pk = "✓"
		}
		t.AppendRow(table.Row{c.Name, c.Type, nullable, c.Default, pk})
	}
	t.Render()

	if len(schema.Indexes) > 0 {
		_, _ = fmt.Fprintln(w)
		_, _ = fmt.Fprintln(w, "Indexes:")
		for _, name := range schema.Indexes {
			_, _ = fmt.Fprintf(w, "  %s\n", name)
		}
	}
	return nil
}
