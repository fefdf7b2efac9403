package commands

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leapstack-labs/etlite/internal/state"
	"github.com/leapstack-labs/etlite/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupStateDB creates a state database holding one failed run.
func setupStateDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.db")

	store := state.NewSQLiteStore(nil)
	require.NoError(t, store.Open(path))
	require.NoError(t, store.InitSchema())

	run, err := store.CreateRun("dev")
	require.NoError(t, err)
	sr := &core.StepRun{RunID: run.ID, StepPath: "steps/1.city_totals.sql", Target: "city_totals", Engine: "sql"}
	require.NoError(t, store.RecordStepRun(sr))
	require.NoError(t, store.RecordCheckResult(&core.CheckResult{
		StepRunID: sr.ID,
		Category:  core.CategoryTest,
		Kind:      "not_null",
		Name:      "city_present",
		Observed:  2,
		Message:   "2 violations",
	}))
	require.NoError(t, store.UpdateStepRun(sr.ID, core.StepRunStatusFailed, 3, "test city_present failed", 12))
	require.NoError(t, store.CompleteRun(run.ID, core.RunStatusFailed, "test city_present failed"))
	require.NoError(t, store.Close())

	return path
}

func openTestStateDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := openStateDBReadOnly(setupStateDB(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpenStateDBReadOnly_Missing(t *testing.T) {
	_, err := openStateDBReadOnly(filepath.Join(t.TempDir(), "missing.db"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "state database not found")
}

func TestQuery_ListTables(t *testing.T) {
	db := openTestStateDB(t)

	buf := new(bytes.Buffer)
	require.NoError(t, listTablesFromDB(t.Context(), buf, db, "json"))

	var rows []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rows))

	var names []string
	for _, r := range rows {
		names = append(names, r["name"].(string))
	}
	assert.Equal(t, []string{"check_results", "content_hashes", "runs", "step_runs"}, names)
}

func TestQuery_Formats(t *testing.T) {
	db := openTestStateDB(t)
	query := "SELECT kind, name, passed, message FROM check_results"

	tests := []struct {
		format string
		check  func(t *testing.T, out string)
	}{
		{
			format: "table",
			check: func(t *testing.T, out string) {
				assert.Contains(t, out, "not_null")
				assert.Contains(t, out, "city_present")
				assert.Contains(t, out, "(1 rows)")
			},
		},
		{
			format: "md",
			check: func(t *testing.T, out string) {
				assert.Contains(t, out, "| kind | name | passed | message |")
				assert.Contains(t, out, "| not_null | city_present | 0 | 2 violations |")
			},
		},
		{
			format: "csv",
			check: func(t *testing.T, out string) {
				lines := strings.Split(strings.TrimSpace(out), "\n")
				require.Len(t, lines, 2)
				assert.Equal(t, "kind,name,passed,message", lines[0])
				assert.Equal(t, "not_null,city_present,0,2 violations", lines[1])
			},
		},
		{
			format: "json",
			check: func(t *testing.T, out string) {
				var rows []map[string]any
				require.NoError(t, json.Unmarshal([]byte(out), &rows))
				require.Len(t, rows, 1)
				assert.Equal(t, "city_present", rows[0]["name"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			buf := new(bytes.Buffer)
			require.NoError(t, executeAndRenderQuery(t.Context(), buf, db, query, tt.format))
			tt.check(t, buf.String())
		})
	}
}

func TestQuery_EmptyResult(t *testing.T) {
	db := openTestStateDB(t)

	buf := new(bytes.Buffer)
	require.NoError(t, executeAndRenderQuery(t.Context(), buf, db, "SELECT * FROM runs WHERE status = 'running'", "table"))
	assert.Equal(t, "(0 rows)\n", buf.String())
}

func TestQuery_ReadOnly(t *testing.T) {
	db := openTestStateDB(t)

	err := executeAndRenderQuery(t.Context(), new(bytes.Buffer), db, "DELETE FROM runs", "table")
	assert.Error(t, err)
}

func TestQuery_Schema(t *testing.T) {
	db := openTestStateDB(t)

	buf := new(bytes.Buffer)
	require.NoError(t, showSchemaFromDB(t.Context(), buf, db, "STEP_RUNS", "json"))

	var schema schemaOutput
	require.NoError(t, json.Unmarshal(buf.Bytes(), &schema))
	assert.Equal(t, "step_runs", schema.Name)
	assert.Contains(t, schema.Indexes, "idx_step_runs_run")

	cols := make(map[string]columnInfo)
	for _, c := range schema.Columns {
		cols[c.Name] = c
	}
	require.Contains(t, cols, "content_hash")
	assert.True(t, cols["id"].PK)
	assert.False(t, cols["status"].Nullable)

	buf.Reset()
	require.NoError(t, showSchemaFromDB(t.Context(), buf, db, "runs", "table"))
	assert.Contains(t, buf.String(), "Table: runs")
	assert.Contains(t, buf.String(), "environment")

	err := showSchemaFromDB(t.Context(), buf, db, "models; DROP TABLE runs", "table")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestHandleDotCommand(t *testing.T) {
	db := openTestStateDB(t)

	tests := []struct {
		line     string
		wantQuit bool
		wantOut  string
		wantErr  string
	}{
		{line: ".quit", wantQuit: true},
		{line: ".EXIT", wantQuit: true},
		{line: ".help", wantOut: ".schema <name>"},
		{line: ".tables", wantOut: "check_results"},
		{line: ".schema runs", wantOut: "Table: runs"},
		{line: ".schema", wantErr: "Usage: .schema <table>"},
		{line: ".runs", wantOut: "failed"},
		{line: ".bogus", wantErr: "Unknown command: .bogus"},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			out, errOut := new(bytes.Buffer), new(bytes.Buffer)
			quit := handleDotCommand(t.Context(), out, errOut, db, tt.line, "table")
			assert.Equal(t, tt.wantQuit, quit)
			if tt.wantOut != "" {
				assert.Contains(t, out.String(), tt.wantOut)
			}
			if tt.wantErr != "" {
				assert.Contains(t, errOut.String(), tt.wantErr)
			}
		})
	}
}

func TestNewTableCompleter(t *testing.T) {
	db := openTestStateDB(t)

	completer := newTableCompleter(t.Context(), db)
	var names []string
	for _, child := range completer.GetChildren() {
		names = append(names, strings.TrimSpace(string(child.GetName())))
	}
	assert.Contains(t, names, "runs")
	assert.Contains(t, names, ".schema")
	assert.NotContains(t, names, "goose_db_version")
}
