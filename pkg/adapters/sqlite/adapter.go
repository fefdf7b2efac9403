// Package sqlite provides a SQLite database adapter backed by the pure Go
// modernc.org/sqlite driver.
//
// SQLite has no schemas: qualified target names refer to attached
// databases, so targets should set create_schema: false.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"

	"github.com/leapstack-labs/etlite/pkg/adapter"
	"github.com/leapstack-labs/etlite/pkg/core"

	_ "modernc.org/sqlite" // sqlite driver
)

// Adapter implements core.Adapter for SQLite.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new SQLite adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: logger},
	}
}

// Engine returns the implementation set used for SQLite steps.
func (a *Adapter) Engine() string {
	return core.DefaultEngine
}

// Connect opens the database file at cfg.Path (":memory:" when empty) and
// applies cfg.Options as pragmas.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}

	a.Logger.Debug("connecting to sqlite", slog.String("path", path))

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// Each connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	a.DB = db
	a.Cfg = cfg
	if err := a.Ping(ctx); err != nil {
		return err
	}

	keys := make([]string, 0, len(cfg.Options))
	for k := range cfg.Options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := a.Exec(ctx, fmt.Sprintf("PRAGMA %s = %s", k, cfg.Options[k])); err != nil {
			_ = a.Close()
			a.DB = nil
			return fmt.Errorf("failed to apply pragma %s: %w", k, err)
		}
	}
	return nil
}

// WithSettings applies settings as pragmas.
func (a *Adapter) WithSettings(ctx context.Context, settings core.Params) (context.Context, error) {
	for _, e := range settings.Entries() {
		if err := a.Exec(ctx, fmt.Sprintf("PRAGMA %s = %s", e.Key, e.Value.Literal())); err != nil {
			return ctx, fmt.Errorf("failed to apply pragma %s: %w", e.Key, err)
		}
	}
	return ctx, nil
}

var _ core.Adapter = (*Adapter)(nil)
