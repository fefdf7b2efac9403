package generic

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/leapstack-labs/etlite/pkg/core"
)

type columnsParams struct {
	CheckParams `mapstructure:",squash"`
	Columns     []string `mapstructure:"columns"`
}

type rangeParams struct {
	CheckParams `mapstructure:",squash"`
	Column      string   `mapstructure:"column"`
	Min         *float64 `mapstructure:"min"`
	Max         *float64 `mapstructure:"max"`
}

type acceptedValuesParams struct {
	CheckParams `mapstructure:",squash"`
	Column      string   `mapstructure:"column"`
	Values      []string `mapstructure:"values"`
}

func decodeColumns(p core.Params) ([]string, error) {
	var cp columnsParams
	if err := p.Decode(&cp); err != nil {
		return nil, err
	}
	if len(cp.Columns) == 0 {
		return nil, &core.ParamError{Key: "columns", Message: "is required"}
	}
	return cp.Columns, nil
}

// NoDuplicates passes when no combination of columns occurs twice in rel.
func NoDuplicates(ctx context.Context, conn core.Conn, rel string, p core.Params) (bool, error) {
	columns, err := decodeColumns(p)
	if err != nil {
		return false, err
	}
	cols := ColumnList(columns)
	return NoViolations(ctx, conn, fmt.Sprintf(
		"SELECT count(*) FROM (SELECT %s FROM %s GROUP BY %s HAVING count(*) > 1) AS dup",
		cols, rel, cols))
}

// Range passes when every non-null value of column lies within [min, max].
// Either bound may be omitted, not both.
func Range(ctx context.Context, conn core.Conn, rel string, p core.Params) (bool, error) {
	var rp rangeParams
	if err := p.Decode(&rp); err != nil {
		return false, err
	}
	if rp.Column == "" {
		return false, &core.ParamError{Key: "column", Message: "is required"}
	}
	var conds []string
	if rp.Min != nil {
		conds = append(conds, fmt.Sprintf("%s < %s", rp.Column, formatNumber(*rp.Min)))
	}
	if rp.Max != nil {
		conds = append(conds, fmt.Sprintf("%s > %s", rp.Column, formatNumber(*rp.Max)))
	}
	if len(conds) == 0 {
		return false, &core.ParamError{Key: "min", Message: "or max is required"}
	}
	return NoViolations(ctx, conn, fmt.Sprintf(
		"SELECT count(*) FROM %s WHERE %s", rel, strings.Join(conds, " OR ")))
}

// NotNull passes when none of columns holds NULL.
func NotNull(ctx context.Context, conn core.Conn, rel string, p core.Params) (bool, error) {
	columns, err := decodeColumns(p)
	if err != nil {
		return false, err
	}
	conds := make([]string, len(columns))
	for i, c := range columns {
		conds[i] = c + " IS NULL"
	}
	return NoViolations(ctx, conn, fmt.Sprintf(
		"SELECT count(*) FROM %s WHERE %s", rel, strings.Join(conds, " OR ")))
}

// AcceptedValues passes when every non-null value of column is one of values.
func AcceptedValues(ctx context.Context, conn core.Conn, rel string, p core.Params) (bool, error) {
	var ap acceptedValuesParams
	if err := p.Decode(&ap); err != nil {
		return false, err
	}
	if ap.Column == "" {
		return false, &core.ParamError{Key: "column", Message: "is required"}
	}
	if len(ap.Values) == 0 {
		return false, &core.ParamError{Key: "values", Message: "is required"}
	}
	quoted := make([]string, len(ap.Values))
	for i, v := range ap.Values {
		quoted[i] = Quote(v)
	}
	return NoViolations(ctx, conn, fmt.Sprintf(
		"SELECT count(*) FROM %s WHERE %s NOT IN (%s)", rel, ap.Column, strings.Join(quoted, ", ")))
}

// CustomTest passes when the first value of the "query" parameter equals
// "expect" (zero by default).
func CustomTest(ctx context.Context, conn core.Conn, rel string, p core.Params) (bool, error) {
	var cp customParams
	if err := p.Decode(&cp); err != nil {
		return false, err
	}
	if cp.Query == "" {
		return false, &core.ParamError{Key: "query", Message: "is required"}
	}
	got, err := Measure(ctx, conn, Expand(cp.Query, rel))
	if err != nil {
		return false, err
	}
	return got == cp.Expect, nil
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
