package clickhouse

import (
	"log/slog"

	"github.com/leapstack-labs/etlite/pkg/adapter"
)

func init() {
	adapter.Register(Engine, func(logger *slog.Logger) adapter.Adapter { return New(logger) })
}
