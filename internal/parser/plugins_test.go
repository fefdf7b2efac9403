package parser_test

import (
	"errors"
	"testing"

	"github.com/leapstack-labs/etlite/internal/parser"
	"github.com/leapstack-labs/etlite/pkg/core"
	"github.com/leapstack-labs/etlite/pkg/funcs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	// Register the implementation sets via init().
	_ "github.com/leapstack-labs/etlite/pkg/engines/clickhouse"
	_ "github.com/leapstack-labs/etlite/pkg/engines/generic"
)

const clientVolume = `
-- @meta.engine: clickhouse
--   type: clickhouse
--   version: 23.8
--   settings:
--     max_memory_usage: 20000000000
--     max_bytes_before_external_group_by: 20000000000

-- @meta.description: Calculates daily client trading volume
--   This is a multi-line description
--   that provides more details about the step

-- @target.table: Output configuration
--   name: reports.client_volume
--   engine: ReplacingMergeTree
--   order_by: [client_id, trade_date]
--   partition_by: toYYYYMM(trade_date)

-- @strategy.incremental: Process only new data
--   column: trade_date
--   start: latest
--   window: 3 day

-- @invariant.sum: Total volume should stay the same
--   name: total_volume
--   column: amount
--   tolerance: relative(0.001)

-- @test.no_duplicates: Ensure no duplicate records
--   name: unique_clients
--   columns: [client_id, trade_date]

-- @main
SELECT client_id, trade_date, sum(amount)
FROM trades
GROUP BY client_id, trade_date
`

func TestParse_ClickHouseStep(t *testing.T) {
	step, err := parser.Parse(clientVolume)
	require.NoError(t, err)

	assert.Equal(t, "clickhouse", step.Engine())
	assert.Equal(t, "SELECT client_id, trade_date, sum(amount)\nFROM trades\nGROUP BY client_id, trade_date", step.Query)

	settings := step.EngineSettings()
	assert.Equal(t, []string{"max_memory_usage", "max_bytes_before_external_group_by"}, settings.Keys())
	mem, err := settings.Int("max_memory_usage")
	require.NoError(t, err)
	assert.Equal(t, int64(20000000000), mem)

	assert.Equal(t,
		"Calculates daily client trading volume\n\nThis is a multi-line description that provides more details about the step",
		step.Description())

	require.NotNil(t, step.Target)
	assert.Equal(t, "reports.client_volume", step.TargetName())
	target, ok := step.Target.Impl.(core.TargetFunc)
	require.True(t, ok)
	table, err := target(step.Target.Params, step.Query)
	require.NoError(t, err)
	assert.Equal(t, "CREATE DATABASE IF NOT EXISTS reports", table.Statements[0])
	assert.Contains(t, table.Statements[1], "ENGINE = ReplacingMergeTree\nORDER BY (client_id, trade_date)\nPARTITION BY toYYYYMM(trade_date)")

	require.Contains(t, step.Strategy, "incremental")
	strategy, ok := step.Strategy["incremental"].Impl.(core.StrategyFunc)
	require.True(t, ok)
	plan, err := strategy(table.Name, step.Query, step.Strategy["incremental"].Params)
	require.NoError(t, err)
	require.Len(t, plan.Statements(), 2)
	assert.Contains(t, plan.Statements()[0], "ALTER TABLE reports.client_volume DELETE")

	require.Len(t, step.Invariants, 1)
	assert.Equal(t, "total_volume", step.Invariants[0].Name())
	assert.Equal(t, "relative(0.001)", step.Invariants[0].Params.StringOr("tolerance", ""))

	require.Len(t, step.Tests, 1)
	assert.Equal(t, "unique_clients", step.Tests[0].Name())
	assert.IsType(t, core.TestFunc(nil), step.Tests[0].Impl)
}

func TestParse_GenericFallbackForUnknownEngine(t *testing.T) {
	content := `-- @meta.engine
--   type: duckdb
-- @target.view
--   name: marts.v
-- @test.not_null
--   columns: [id]
-- @main
SELECT 1 AS id`

	step, err := parser.Parse(content)
	require.NoError(t, err)
	assert.Equal(t, "duckdb", step.Engine())
	assert.IsType(t, core.TargetFunc(nil), step.Target.Impl)
}

func TestParse_ClickHouseHasNoView(t *testing.T) {
	content := `-- @meta.engine
--   type: clickhouse
-- @target.view
--   name: marts.v
-- @main
SELECT 1`

	_, err := parser.Parse(content)
	require.Error(t, err)

	var pe *parser.ParsingError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "view", pe.Name)
	assert.Contains(t, err.Error(), "Available: log, merge_tree, table")
}

func TestParse_UnknownCategoryWithDefaultRegistry(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "sql engine",
			content: "-- @target.table\n--   name: a.b\n-- @hook.notify\n-- @main\nSELECT 1",
		},
		{
			name:    "clickhouse engine",
			content: "-- @meta.engine\n--   type: clickhouse\n-- @target.table\n--   name: a.b\n-- @hook.notify\n-- @main\nSELECT 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parser.Parse(tt.content)
			require.Error(t, err)

			var ve *parser.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Contains(t, ve.Message, "unknown metadata category: hook")

			var re *funcs.ResolutionError
			assert.False(t, errors.As(err, &re), "unknown category must not be reported as a resolution failure")

			var pe *parser.ParsingError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, "hook", pe.Category)
			assert.Equal(t, "notify", pe.Name)
		})
	}
}
