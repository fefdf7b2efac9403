package generic

import (
	"context"
	"fmt"
	"strings"

	"github.com/leapstack-labs/etlite/pkg/core"
)

// TablePlaceholder is replaced by the checked relation in custom queries.
const TablePlaceholder = "{table}"

// CheckParams holds the parameters every invariant and test block accepts
// in addition to its own. Embed it with `mapstructure:",squash"`.
type CheckParams struct {
	Name      string `mapstructure:"name"`
	Tolerance string `mapstructure:"tolerance"`
	Severity  string `mapstructure:"severity"`
}

// Expand substitutes rel for every {table} placeholder in query.
func Expand(query, rel string) string {
	return strings.ReplaceAll(query, TablePlaceholder, rel)
}

// Measure runs a single-value query and returns the value as a number.
// NULL measures as zero.
func Measure(ctx context.Context, conn core.Conn, query string) (float64, error) {
	v, err := core.QueryScalar(ctx, conn, query)
	if err != nil {
		return 0, err
	}
	f, err := core.ToFloat(v)
	if err != nil {
		return 0, fmt.Errorf("invalid measure: %w", err)
	}
	return f, nil
}

// NoViolations runs a query counting offending rows and reports whether the
// count is zero.
func NoViolations(ctx context.Context, conn core.Conn, query string) (bool, error) {
	n, err := Measure(ctx, conn, query)
	if err != nil {
		return false, err
	}
	return n == 0, nil
}

// ColumnList joins column names for a SELECT or GROUP BY list.
func ColumnList(columns []string) string {
	return strings.Join(columns, ", ")
}

// Quote renders s as a single-quoted SQL string literal.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
