// Package clickhouse provides a ClickHouse database adapter built on the
// official clickhouse-go driver.
package clickhouse

import (
	"context"
	"log/slog"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/leapstack-labs/etlite/pkg/adapter"
	"github.com/leapstack-labs/etlite/pkg/core"
)

// Engine is the implementation set used for ClickHouse steps.
const Engine = "clickhouse"

// Adapter implements core.Adapter for ClickHouse.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new ClickHouse adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: logger},
	}
}

// Engine returns "clickhouse".
func (a *Adapter) Engine() string {
	return Engine
}

// Connect establishes a connection to ClickHouse.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	opts, err := buildOptions(cfg)
	if err != nil {
		return err
	}

	a.Logger.Debug("connecting to clickhouse",
		slog.Any("addr", opts.Addr),
		slog.String("database", cfg.Database),
		slog.String("protocol", opts.Protocol.String()))

	a.DB = clickhouse.OpenDB(opts)
	a.Cfg = cfg
	return a.Ping(ctx)
}

// WithSettings attaches settings to ctx; every statement executed with the
// returned context carries them. ClickHouse sessions are not pinned to a
// connection, so SET statements would not persist.
func (a *Adapter) WithSettings(ctx context.Context, settings core.Params) (context.Context, error) {
	if settings.Len() == 0 {
		return ctx, nil
	}
	return clickhouse.Context(ctx, clickhouse.WithSettings(toSettings(settings))), nil
}

func toSettings(p core.Params) clickhouse.Settings {
	s := make(clickhouse.Settings, p.Len())
	for _, e := range p.Entries() {
		s[e.Key] = e.Value.Any()
	}
	return s
}

var _ core.Adapter = (*Adapter)(nil)
