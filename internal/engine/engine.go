// Package engine executes compiled steps against a database and records the
// outcome in the state store.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/leapstack-labs/etlite/internal/metrics"
	"github.com/leapstack-labs/etlite/internal/parser"
	"github.com/leapstack-labs/etlite/internal/state"
	"github.com/leapstack-labs/etlite/pkg/adapter"
	"github.com/leapstack-labs/etlite/pkg/core"
	"github.com/leapstack-labs/etlite/pkg/funcs"
)

// Engine runs step files.
type Engine struct {
	// Database adapter, connected lazily
	db          adapter.Adapter
	dbConfig    adapter.Config
	dbConnected bool
	dbMu        sync.Mutex

	logger   *slog.Logger
	store    core.Store
	metrics  metrics.Backend
	registry *funcs.Registry

	stepsDir      string
	environment   string
	defaultEngine string
}

// Config holds engine configuration.
type Config struct {
	// StepsDir is the directory holding the step files.
	StepsDir string
	// StatePath is the path to the SQLite state database.
	StatePath string
	// Environment names the runs recorded in the state store.
	Environment string
	// DefaultEngine is used for steps without meta.engine. Empty means the
	// engine of the adapter.
	DefaultEngine string
	// AdapterConfig selects and configures the database adapter.
	AdapterConfig *adapter.Config
	// Adapter, when set, is used as is instead of creating one from
	// AdapterConfig. It must already be connected.
	Adapter adapter.Adapter
	// Store, when set, replaces the SQLite store at StatePath.
	Store core.Store
	// Registry resolves functions; funcs.Default when nil.
	Registry *funcs.Registry
	// Metrics receives run metrics; discarded when nil.
	Metrics metrics.Backend
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// New creates an engine. The database is only connected when a step runs.
func New(cfg Config) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	logger.Debug("initializing engine", "steps_dir", cfg.StepsDir, "environment", cfg.Environment)

	e := &Engine{
		logger:        logger,
		metrics:       metrics.OrNop(cfg.Metrics),
		registry:      cfg.Registry,
		stepsDir:      cfg.StepsDir,
		environment:   cfg.Environment,
		defaultEngine: cfg.DefaultEngine,
	}
	if e.registry == nil {
		e.registry = funcs.Default
	}
	if e.environment == "" {
		e.environment = "dev"
	}

	switch {
	case cfg.Adapter != nil:
		e.db = cfg.Adapter
		e.dbConnected = true
	default:
		if cfg.AdapterConfig != nil {
			e.dbConfig = *cfg.AdapterConfig
		}
		if e.dbConfig.Type == "" {
			e.dbConfig.Type = "duckdb"
		}
		db, err := adapter.NewAdapter(e.dbConfig, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create database adapter: %w", err)
		}
		e.db = db
	}
	if e.defaultEngine == "" {
		e.defaultEngine = e.db.Engine()
	}

	e.store = cfg.Store
	if e.store == nil {
		statePath := cfg.StatePath
		if statePath == "" {
			statePath = ":memory:"
		}
		store := state.NewSQLiteStore(logger)
		if err := store.Open(statePath); err != nil {
			return nil, fmt.Errorf("failed to open state store: %w", err)
		}
		e.store = store
	}
	if err := e.store.InitSchema(); err != nil {
		_ = e.store.Close()
		return nil, fmt.Errorf("failed to initialize state schema: %w", err)
	}

	return e, nil
}

// ensureDBConnected lazily connects to the database.
func (e *Engine) ensureDBConnected(ctx context.Context) error {
	e.dbMu.Lock()
	defer e.dbMu.Unlock()

	if e.dbConnected {
		return nil
	}

	e.logger.Debug("connecting to database", "adapter_type", e.dbConfig.Type)

	if err := e.db.Connect(ctx, e.dbConfig); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	e.dbConnected = true

	e.logger.Debug("database connected", "engine", e.db.Engine())
	return nil
}

// Close releases the database connection and the state store.
func (e *Engine) Close() error {
	e.logger.Debug("closing engine")

	var errs []error
	if e.db != nil && e.dbConnected {
		if err := e.db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors closing engine: %w", errors.Join(errs...))
	}
	return nil
}

// ParseOptions returns the parser options matching the engine's registry
// and default engine.
func (e *Engine) ParseOptions() []parser.Option {
	return []parser.Option{
		parser.WithDefaultEngine(e.defaultEngine),
		parser.WithRegistry(e.registry),
		parser.WithLogger(e.logger),
	}
}

// --- Getters (public accessors) ---

// GetStateStore returns the state store.
func (e *Engine) GetStateStore() core.Store {
	return e.store
}

// DefaultEngine returns the engine steps without meta.engine resolve against.
func (e *Engine) DefaultEngine() string {
	return e.defaultEngine
}

// StepsDir returns the configured steps directory.
func (e *Engine) StepsDir() string {
	return e.stepsDir
}
