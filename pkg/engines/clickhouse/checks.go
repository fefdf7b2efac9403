package clickhouse

import (
	"context"
	"fmt"

	"github.com/leapstack-labs/etlite/pkg/core"
	"github.com/leapstack-labs/etlite/pkg/engines/generic"
)

// aggregationSettings lets aggregations over the sorting key stream in order.
const aggregationSettings = "SETTINGS optimize_aggregation_in_order = 1"

type columnParams struct {
	generic.CheckParams `mapstructure:",squash"`
	Column              string `mapstructure:"column"`
}

type columnsParams struct {
	generic.CheckParams `mapstructure:",squash"`
	Columns             []string `mapstructure:"columns"`
}

type arrayLengthParams struct {
	generic.CheckParams `mapstructure:",squash"`
	Column              string `mapstructure:"column"`
	MinLength           int64  `mapstructure:"min_length"`
}

func decodeColumn(p core.Params) (string, error) {
	var cp columnParams
	if err := p.Decode(&cp); err != nil {
		return "", err
	}
	if cp.Column == "" {
		return "", &core.ParamError{Key: "column", Message: "is required"}
	}
	return cp.Column, nil
}

// Sum measures sum(column) over rel, aggregating in sorting-key order.
func Sum(ctx context.Context, conn core.Conn, rel string, p core.Params) (float64, error) {
	column, err := decodeColumn(p)
	if err != nil {
		return 0, err
	}
	return generic.Measure(ctx, conn, fmt.Sprintf("SELECT sum(%s) FROM %s %s", column, rel, aggregationSettings))
}

// ArraySum measures the sum of every element of an array column.
func ArraySum(ctx context.Context, conn core.Conn, rel string, p core.Params) (float64, error) {
	column, err := decodeColumn(p)
	if err != nil {
		return 0, err
	}
	return generic.Measure(ctx, conn, fmt.Sprintf("SELECT sum(arraySum(%s)) FROM %s", column, rel))
}

// NoDuplicates passes when no combination of columns occurs twice in rel.
// At most 100 duplicate groups are counted.
func NoDuplicates(ctx context.Context, conn core.Conn, rel string, p core.Params) (bool, error) {
	var cp columnsParams
	if err := p.Decode(&cp); err != nil {
		return false, err
	}
	if len(cp.Columns) == 0 {
		return false, &core.ParamError{Key: "columns", Message: "is required"}
	}
	cols := generic.ColumnList(cp.Columns)
	return generic.NoViolations(ctx, conn, fmt.Sprintf(
		"SELECT count() FROM (SELECT %s FROM %s GROUP BY %s HAVING count() > 1 LIMIT 100) %s",
		cols, rel, cols, aggregationSettings))
}

// ArrayLength passes when every array in column has at least min_length
// elements.
func ArrayLength(ctx context.Context, conn core.Conn, rel string, p core.Params) (bool, error) {
	var ap arrayLengthParams
	if err := p.Decode(&ap); err != nil {
		return false, err
	}
	if ap.Column == "" {
		return false, &core.ParamError{Key: "column", Message: "is required"}
	}
	if !p.Has("min_length") {
		return false, &core.ParamError{Key: "min_length", Message: "is required"}
	}
	return generic.NoViolations(ctx, conn, fmt.Sprintf(
		"SELECT count() FROM %s WHERE length(%s) < %d", rel, ap.Column, ap.MinLength))
}
