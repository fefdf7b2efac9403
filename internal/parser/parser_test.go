package parser

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leapstack-labs/etlite/internal/testutil"
	"github.com/leapstack-labs/etlite/pkg/core"
	"github.com/leapstack-labs/etlite/pkg/funcs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tagged records which engine set a stub function came from.
type tagged struct {
	engine   string
	category core.Category
}

func (t tagged) Category() core.Category { return t.category }

func newTestRegistry() *funcs.Registry {
	r := funcs.New()
	for _, engine := range []string{"sql", "clickhouse"} {
		r.Register(engine, core.CategoryTarget, "table", tagged{engine, core.CategoryTarget})
		r.Register(engine, core.CategoryStrategy, "replace", tagged{engine, core.CategoryStrategy})
		r.Register(engine, core.CategoryInvariant, "sum", tagged{engine, core.CategoryInvariant})
		r.Register(engine, core.CategoryTest, "no_duplicates", tagged{engine, core.CategoryTest})
	}
	r.Register("sql", core.CategoryTarget, "view", tagged{"sql", core.CategoryTarget})
	r.Register("sql", core.CategoryInvariant, "count", tagged{"sql", core.CategoryInvariant})
	r.Register("sql", core.CategoryTest, "range", tagged{"sql", core.CategoryTest})
	r.Register("sql", core.CategoryMeta, "description", tagged{"sql", core.CategoryMeta})
	return r
}

func engineOf(t *testing.T, b *core.Block) string {
	t.Helper()
	impl, ok := b.Impl.(tagged)
	require.True(t, ok, "unexpected implementation %T", b.Impl)
	return impl.engine
}

func TestParse_MinimalStep(t *testing.T) {
	content := `-- @target.table
--   name: a.b
-- @main
SELECT 1`

	step, err := Parse(content, WithRegistry(newTestRegistry()))
	require.NoError(t, err)

	require.NotNil(t, step.Target)
	assert.Equal(t, "table", step.Target.Kind)
	assert.Equal(t, "a.b", step.TargetName())
	assert.Equal(t, 1, step.Target.Params.Len())
	assert.Equal(t, "SELECT 1", step.Query)
	assert.Equal(t, "sql", step.Engine())
	assert.Empty(t, step.Invariants)
	assert.Empty(t, step.Tests)
	assert.Empty(t, step.Strategy)
	assert.Len(t, step.Blocks, 1)
}

func TestParse_MissingTarget(t *testing.T) {
	content := `-- @invariant.sum
--   column: amount
-- @main
SELECT 1 AS amount`

	_, err := Parse(content, WithRegistry(newTestRegistry()))
	require.Error(t, err)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, err.Error(), "target definition")
}

func TestParse_MultipleTargets(t *testing.T) {
	content := `-- @target.table
--   name: a.b
-- @target.view
--   name: a.c
-- @main
SELECT 1`

	_, err := Parse(content, WithRegistry(newTestRegistry()))
	require.Error(t, err)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, 3, ve.LineNo)
	assert.Contains(t, err.Error(), "multiple target definitions")
}

func TestParse_Separator(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "missing",
			content: "-- @target.table\n--   name: a.b\nSELECT 1",
			want:    "must contain a '-- @main' separator",
		},
		{
			name:    "duplicated",
			content: "-- @target.table\n--   name: a.b\n-- @main\nSELECT 1\n-- @main\nSELECT 2",
			want:    "found 2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.content, WithRegistry(newTestRegistry()))
			require.Error(t, err)

			var fe *FormatError
			require.ErrorAs(t, err, &fe)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParse_SeparatorWithoutSpace(t *testing.T) {
	content := "--@target.table\n--  name: a.b\n--@main\nSELECT 1"

	step, err := Parse(content, WithRegistry(newTestRegistry()))
	require.NoError(t, err)
	assert.Equal(t, "a.b", step.TargetName())
}

func TestParse_EnginePrecedence(t *testing.T) {
	reg := newTestRegistry()

	t.Run("declared engine wins over default", func(t *testing.T) {
		// meta.engine comes after blocks it affects.
		content := `-- @target.table
--   name: a.b
-- @invariant.sum
--   column: x
-- @meta.engine
--   type: clickhouse
-- @main
SELECT 1 AS x`

		step, err := Parse(content, WithRegistry(reg), WithDefaultEngine("postgres"))
		require.NoError(t, err)
		assert.Equal(t, "clickhouse", step.Engine())
		assert.Equal(t, "clickhouse", engineOf(t, step.Target))
		assert.Equal(t, "clickhouse", engineOf(t, step.Invariants[0]))
	})

	t.Run("default engine without declaration", func(t *testing.T) {
		content := `-- @target.table
--   name: a.b
-- @main
SELECT 1`

		step, err := Parse(content, WithRegistry(reg), WithDefaultEngine("clickhouse"))
		require.NoError(t, err)
		assert.Equal(t, "clickhouse", engineOf(t, step.Target))
	})

	t.Run("meta.engine without type keeps the default", func(t *testing.T) {
		content := `-- @meta.engine
--   settings:
--     max_threads: 4
-- @target.table
--   name: a.b
-- @main
SELECT 1`

		step, err := Parse(content, WithRegistry(reg), WithDefaultEngine("clickhouse"))
		require.NoError(t, err)
		assert.Equal(t, "clickhouse", step.Engine())

		settings := step.EngineSettings()
		threads, err := settings.Int("max_threads")
		require.NoError(t, err)
		assert.Equal(t, int64(4), threads)
	})

	t.Run("unknown engine falls back to the generic set", func(t *testing.T) {
		content := `-- @meta.engine
--   type: duckdb
-- @target.table
--   name: a.b
-- @main
SELECT 1`

		step, err := Parse(content, WithRegistry(reg))
		require.NoError(t, err)
		assert.Equal(t, "duckdb", step.Engine())
		assert.Equal(t, "sql", engineOf(t, step.Target))
	})
}

func TestParse_ResolutionFailure(t *testing.T) {
	content := `-- @target.table
--   name: a.b
-- @invariant.nonexistent_kind
-- @main
SELECT 1`

	_, err := Parse(content, WithRegistry(newTestRegistry()))
	require.Error(t, err)

	var pe *ParsingError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "invariant", pe.Category)
	assert.Equal(t, "nonexistent_kind", pe.Name)
	assert.Equal(t, 3, pe.LineNo)

	var re *funcs.ResolutionError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "sql", re.Engine)

	msg := err.Error()
	assert.Contains(t, msg, "invariant")
	assert.Contains(t, msg, "nonexistent_kind")
	assert.Contains(t, msg, `"sql"`)
}

func TestParse_NoPerNameFallback(t *testing.T) {
	// clickhouse has its own test set, so range is not found there.
	content := `-- @meta.engine
--   type: clickhouse
-- @target.table
--   name: a.b
-- @test.range
--   column: x
-- @main
SELECT 1 AS x`

	_, err := Parse(content, WithRegistry(newTestRegistry()))
	require.Error(t, err)

	var re *funcs.ResolutionError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "clickhouse", re.SetEngine)
}

func TestParse_DuplicateMetaEngine(t *testing.T) {
	content := `-- @meta.engine
--   type: clickhouse
-- @target.table
--   name: a.b
-- @meta.engine
--   type: sql
-- @main
SELECT 1`

	_, err := Parse(content, WithRegistry(newTestRegistry()))
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, 5, ve.LineNo)
	assert.Contains(t, err.Error(), "multiple meta.engine definitions found (first at line 1)")
}

func TestParse_PreservesOrder(t *testing.T) {
	content := `-- @target.table
--   name: a.b
-- @test.range
--   name: second
--   column: x
-- @invariant.count
-- @test.no_duplicates
--   name: first
--   columns: [x]
-- @invariant.sum
--   column: x
-- @test.range
--   name: third
--   column: y
-- @main
SELECT 1 AS x, 2 AS y`

	step, err := Parse(content, WithRegistry(newTestRegistry()))
	require.NoError(t, err)

	var tests []string
	for _, b := range step.Tests {
		tests = append(tests, b.Name())
	}
	assert.Equal(t, []string{"second", "first", "third"}, tests)

	var invariants []string
	for _, b := range step.Invariants {
		invariants = append(invariants, b.Kind)
	}
	assert.Equal(t, []string{"count", "sum"}, invariants)

	var refs []string
	for _, b := range step.Blocks {
		refs = append(refs, b.Ref())
	}
	assert.Equal(t, []string{
		"target.table", "test.range", "invariant.count",
		"test.no_duplicates", "invariant.sum", "test.range",
	}, refs)
}

func TestParse_ParamOrderPreserved(t *testing.T) {
	content := `-- @target.table
--   name: a.b
--   columns:
--     zeta: Int64
--     alpha: String
--     mid: Float64
-- @main
SELECT 1`

	step, err := Parse(content, WithRegistry(newTestRegistry()))
	require.NoError(t, err)

	cols, err := step.Target.Params.Map("columns")
	require.NoError(t, err)
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, cols.Keys())
}

func TestParse_QueryFragment(t *testing.T) {
	content := `-- @target.table
--   name: a.b
-- @invariant.sum
--   column: amount
--   query: |
--     SELECT amount
--       FROM source
--     WHERE amount > 0
-- @main
SELECT 1`

	step, err := Parse(content, WithRegistry(newTestRegistry()))
	require.NoError(t, err)
	require.Len(t, step.Invariants, 1)

	p := step.Invariants[0].Params
	column, err := p.String("column")
	require.NoError(t, err)
	assert.Equal(t, "amount", column)

	query, err := p.String("query")
	require.NoError(t, err)
	assert.Equal(t, "SELECT amount\n  FROM source\nWHERE amount > 0", query)
	assert.Equal(t, []string{"column", "query"}, p.Keys())
}

func TestParse_DescriptionAndMeta(t *testing.T) {
	content := `-- @meta.description:   Daily volume per client
-- @target.table: destination
--   name: a.b
-- @main
SELECT 1`

	step, err := Parse(content, WithRegistry(newTestRegistry()))
	require.NoError(t, err)

	require.Contains(t, step.Meta, "description")
	assert.Equal(t, "Daily volume per client", step.Meta["description"].Description)
	assert.Equal(t, "destination", step.Target.Description)
	assert.Equal(t, "Daily volume per client", step.Description())
}

func TestParse_FreeTextParams(t *testing.T) {
	content := `-- @meta.description
--   Loads the client volume report
-- @target.table
--   name: a.b
-- @main
SELECT 1`

	step, err := Parse(content, WithRegistry(newTestRegistry()))
	require.NoError(t, err)
	assert.Equal(t, "Loads the client volume report", step.Description())
}

func TestParse_BadHeader(t *testing.T) {
	content := `-- @target
--   name: a.b
-- @main
SELECT 1`

	_, err := Parse(content, WithRegistry(newTestRegistry()))
	require.Error(t, err)

	var pe *ParsingError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "target", pe.Line)

	var fe *FormatError
	require.ErrorAs(t, err, &fe)
	assert.Contains(t, err.Error(), "error processing metadata block '@target'")
}

func TestParse_BadYAML(t *testing.T) {
	content := `-- @target.table
--   name: [a.b
-- @main
SELECT 1`

	_, err := Parse(content, WithRegistry(newTestRegistry()))
	require.Error(t, err)

	var fe *FormatError
	require.ErrorAs(t, err, &fe)
	assert.Contains(t, err.Error(), "invalid YAML in target.table block")
}

func TestParse_NonCommentInHeader(t *testing.T) {
	t.Run("preamble", func(t *testing.T) {
		content := `SELECT 0;
-- @target.table
--   name: a.b
-- @main
SELECT 1`

		_, err := Parse(content, WithRegistry(newTestRegistry()))
		var fe *FormatError
		require.ErrorAs(t, err, &fe)
		assert.Equal(t, 1, fe.LineNo)
	})

	t.Run("inside block", func(t *testing.T) {
		content := `-- @target.table
  name: a.b
-- @main
SELECT 1`

		_, err := Parse(content, WithRegistry(newTestRegistry()))
		var fe *FormatError
		require.ErrorAs(t, err, &fe)
	})

	t.Run("leading comments are allowed", func(t *testing.T) {
		content := `-- Loads the volume report.
--
-- @target.table
--   name: a.b
-- @main
SELECT 1`

		_, err := Parse(content, WithRegistry(newTestRegistry()))
		require.NoError(t, err)
	})
}

func TestParse_CRLF(t *testing.T) {
	content := "-- @target.table\r\n--   name: a.b\r\n-- @main\r\nSELECT 1\r\n"

	step, err := Parse(content, WithRegistry(newTestRegistry()))
	require.NoError(t, err)
	assert.Equal(t, "a.b", step.TargetName())
	assert.Equal(t, "SELECT 1", step.Query)
}

func TestParse_Deterministic(t *testing.T) {
	content := `-- @meta.engine
--   type: clickhouse
-- @target.table
--   name: a.b
--   order_by: [x]
-- @invariant.sum
--   column: x
-- @main
SELECT 1 AS x`

	reg := newTestRegistry()
	first, err := Parse(content, WithRegistry(reg))
	require.NoError(t, err)
	second, err := Parse(content, WithRegistry(reg))
	require.NoError(t, err)

	require.Len(t, second.Blocks, len(first.Blocks))
	for i := range first.Blocks {
		a, b := first.Blocks[i], second.Blocks[i]
		assert.Equal(t, a.Ref(), b.Ref())
		assert.True(t, a.Params.Equal(b.Params), "params differ for %s", a.Ref())
		assert.Equal(t, a.Impl, b.Impl)
	}
}

func TestDedent(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"blank lines", "\n  \n\n", ""},
		{"common indent", "    a\n      b\n    c", "a\n  b\nc"},
		{"surrounding blanks", "\n\n  a\n\n  b\n\n", "a\n\nb"},
		{"no indent", "a\n  b", "a\n  b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Dedent(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, Dedent(got), "dedent must be idempotent")
		})
	}
}

func TestTokenize(t *testing.T) {
	content := `-- @target.table: dest
--   name: a.b

-- @test.range
--   column: x
-- @main

  SELECT x
  FROM t
`

	blocks, query, err := Tokenize(content)
	require.NoError(t, err)
	require.Len(t, blocks, 2)

	assert.Equal(t, "target.table: dest", blocks[0].Header())
	assert.Equal(t, 1, blocks[0].LineNo)
	assert.Equal(t, "test.range", blocks[1].Header())
	assert.Equal(t, 4, blocks[1].LineNo)
	assert.Equal(t, "SELECT x\n  FROM t", query)
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "1.volume.sql")
	require.NoError(t, os.WriteFile(path, []byte("-- @target.table\n--   name: a.b\n-- @main\nSELECT 1"), 0o600))

	step, err := ParseFile(path, WithRegistry(newTestRegistry()))
	require.NoError(t, err)
	assert.Equal(t, path, step.Path)

	bad := filepath.Join(dir, "2.bad.sql")
	require.NoError(t, os.WriteFile(bad, []byte("-- @target.table\n--   name: a.b\nSELECT 1"), 0o600))

	_, err = ParseFile(bad, WithRegistry(newTestRegistry()))
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), bad+": "), "error should start with the path: %s", err)

	_, err = ParseFile(filepath.Join(dir, "missing.sql"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestParseFile_TooLarge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.sql")
	require.NoError(t, os.WriteFile(path, make([]byte, MaxFileSize+1), 0o600))

	_, err := ParseFile(path)
	var fe *FormatError
	require.ErrorAs(t, err, &fe)
	assert.Contains(t, err.Error(), "limit")
}

func TestDiscoverSteps_Order(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"10.final.sql", "2.clean.sql", "1.load.sql", "adhoc.sql", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o600))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "3.sub.sql"), 0o750))

	paths, err := DiscoverSteps(dir)
	require.NoError(t, err)

	var names []string
	for _, p := range paths {
		names = append(names, filepath.Base(p))
	}
	assert.Equal(t, []string{"1.load.sql", "2.clean.sql", "10.final.sql", "adhoc.sql"}, names)
}

func TestParseDir(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"1.load.sql":  "-- @target.table\n--   name: s.load\n-- @main\nSELECT 1",
		"2.clean.sql": "-- @target.view\n--   name: s.clean\n-- @main\nSELECT 2",
		"3.bad.sql":   "-- @invariant.sum\n-- @main\nSELECT 3",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	}

	steps, err := ParseDir(context.Background(), dir,
		WithRegistry(newTestRegistry()),
		WithLogger(testutil.NewTestLogger(t)))
	require.Error(t, err)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, err.Error(), "3.bad.sql")

	require.Len(t, steps, 2)
	assert.Equal(t, "s.load", steps[0].TargetName())
	assert.Equal(t, "s.clean", steps[1].TargetName())
}
