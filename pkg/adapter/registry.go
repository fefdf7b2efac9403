package adapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
)

// Factory builds an unconnected adapter.
type Factory func(logger *slog.Logger) Adapter

// ErrNoType is returned when a target names no adapter type.
var ErrNoType = errors.New("adapter type not specified")

var (
	factoriesMu sync.RWMutex
	factories   = map[string]Factory{}
)

// Register makes an adapter available under name. Adapter packages call it
// from init(); registering a name twice panics.
func Register(name string, factory Factory) {
	key := strings.ToLower(name)
	if key == "" || factory == nil {
		panic("adapter: Register needs a name and a factory")
	}

	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	if _, dup := factories[key]; dup {
		panic("adapter: Register called twice for " + key)
	}
	factories[key] = factory
}

// Get returns the factory registered under name.
func Get(name string) (Factory, bool) {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	f, ok := factories[strings.ToLower(name)]
	return f, ok
}

// IsRegistered reports whether an adapter named name exists.
func IsRegistered(name string) bool {
	_, ok := Get(name)
	return ok
}

// ListAdapters returns the registered adapter names, sorted.
func ListAdapters() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	return slices.Sorted(maps.Keys(factories))
}

// NewAdapter builds the adapter for cfg.Type without connecting it.
// A nil logger discards output.
func NewAdapter(cfg Config, logger *slog.Logger) (Adapter, error) {
	if cfg.Type == "" {
		return nil, ErrNoType
	}
	factory, ok := Get(cfg.Type)
	if !ok {
		return nil, &UnknownAdapterError{Type: cfg.Type, Available: ListAdapters()}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return factory(logger.With("adapter", strings.ToLower(cfg.Type))), nil
}

// Open builds the adapter for cfg.Type and connects it.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (Adapter, error) {
	a, err := NewAdapter(cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := a.Connect(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Type, err)
	}
	return a, nil
}

// UnknownAdapterError reports a target type with no registered adapter.
type UnknownAdapterError struct {
	Type      string
	Available []string
}

func (e *UnknownAdapterError) Error() string {
	return fmt.Sprintf("unknown adapter type %q (available: %s); check target.type in etlite.yaml",
		e.Type, strings.Join(e.Available, ", "))
}
