package generic

import (
	"context"
	"fmt"

	"github.com/leapstack-labs/etlite/pkg/core"
)

type sumParams struct {
	CheckParams `mapstructure:",squash"`
	Column      string `mapstructure:"column"`
}

type customParams struct {
	CheckParams `mapstructure:",squash"`
	Query       string  `mapstructure:"query"`
	Expect      float64 `mapstructure:"expect"`
}

// Sum measures sum(column) over rel.
func Sum(ctx context.Context, conn core.Conn, rel string, p core.Params) (float64, error) {
	var sp sumParams
	if err := p.Decode(&sp); err != nil {
		return 0, err
	}
	if sp.Column == "" {
		return 0, &core.ParamError{Key: "column", Message: "is required"}
	}
	return Measure(ctx, conn, fmt.Sprintf("SELECT sum(%s) FROM %s", sp.Column, rel))
}

// Count measures the number of rows of rel.
func Count(ctx context.Context, conn core.Conn, rel string, p core.Params) (float64, error) {
	var cp CheckParams
	if err := p.Decode(&cp); err != nil {
		return 0, err
	}
	return Measure(ctx, conn, "SELECT count(*) FROM "+rel)
}

// CustomInvariant measures the first value of the "query" parameter, with
// {table} standing for rel.
func CustomInvariant(ctx context.Context, conn core.Conn, rel string, p core.Params) (float64, error) {
	var cp customParams
	if err := p.Decode(&cp); err != nil {
		return 0, err
	}
	if cp.Query == "" {
		return 0, &core.ParamError{Key: "query", Message: "is required"}
	}
	return Measure(ctx, conn, Expand(cp.Query, rel))
}
