// Package funcs resolves annotation functions to engine-specific
// implementations.
//
// Implementations are grouped in sets keyed by (engine, category). Engine
// plugins register their sets from init(); resolution prefers the set of the
// declared engine and falls back to the generic "sql" set only when the
// engine has no set for the category at all. A set that exists but lacks the
// requested name is a resolution failure: plugins that want to inherit a
// generic function must register it in their own set.
package funcs

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/leapstack-labs/etlite/pkg/core"
)

type setKey struct {
	engine   string
	category core.Category
}

// Registry holds implementation sets. The zero value is not usable; use New.
type Registry struct {
	mu   sync.RWMutex
	sets map[setKey]map[string]core.Implementation
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{sets: make(map[setKey]map[string]core.Implementation)}
}

// Default is the process-wide registry populated by engine plugins.
var Default = New()

// Register adds impl to the set for (engine, category) under name, creating
// the set if needed. It panics when impl is nil or belongs to another
// category, since both are programming errors in a plugin.
func (r *Registry) Register(engine string, category core.Category, name string, impl core.Implementation) {
	if impl == nil {
		panic(fmt.Sprintf("funcs: nil implementation for %s.%s (engine %s)", category, name, engine))
	}
	if impl.Category() != category {
		panic(fmt.Sprintf("funcs: %s.%s (engine %s) registered with a %s implementation",
			category, name, engine, impl.Category()))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	key := setKey{engine: engine, category: category}
	set, ok := r.sets[key]
	if !ok {
		set = make(map[string]core.Implementation)
		r.sets[key] = set
	}
	set[name] = impl
}

// RegisterSet registers every implementation of set under (engine, category).
func (r *Registry) RegisterSet(engine string, category core.Category, set map[string]core.Implementation) {
	for name, impl := range set {
		r.Register(engine, category, name, impl)
	}
}

// HasSet reports whether engine registered any implementation for category.
func (r *Registry) HasSet(engine string, category core.Category) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sets[setKey{engine: engine, category: category}]
	return ok
}

// Resolve returns the implementation of category.name for engine.
func (r *Registry) Resolve(category core.Category, name, engine string) (core.Implementation, error) {
	if engine == "" {
		engine = core.DefaultEngine
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	setEngine := engine
	set, ok := r.sets[setKey{engine: engine, category: category}]
	if !ok {
		setEngine = core.DefaultEngine
		set, ok = r.sets[setKey{engine: core.DefaultEngine, category: category}]
	}
	if !ok {
		return nil, &ResolutionError{Category: category, Name: name, Engine: engine}
	}

	impl, ok := set[name]
	if !ok {
		return nil, &ResolutionError{
			Category:  category,
			Name:      name,
			Engine:    engine,
			SetEngine: setEngine,
			Available: sortedNames(set),
		}
	}
	return impl, nil
}

// Engines returns every engine with at least one registered set (sorted).
func (r *Registry) Engines() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]struct{})
	for key := range r.sets {
		seen[key.engine] = struct{}{}
	}
	engines := make([]string, 0, len(seen))
	for e := range seen {
		engines = append(engines, e)
	}
	sort.Strings(engines)
	return engines
}

// Names returns the names registered in the (engine, category) set, sorted.
// It does not apply the generic fallback.
func (r *Registry) Names(engine string, category core.Category) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedNames(r.sets[setKey{engine: engine, category: category}])
}

func sortedNames(set map[string]core.Implementation) []string {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Register adds impl to the Default registry.
func Register(engine string, category core.Category, name string, impl core.Implementation) {
	Default.Register(engine, category, name, impl)
}

// Resolve looks up category.name for engine in the Default registry.
func Resolve(category core.Category, name, engine string) (core.Implementation, error) {
	return Default.Resolve(category, name, engine)
}

// ResolutionError is returned when no implementation exists for a
// category.name under the declared engine or the generic fallback.
type ResolutionError struct {
	Category core.Category
	Name     string
	Engine   string
	// SetEngine is the engine whose set was searched; empty when neither
	// the engine nor the generic engine has a set for the category.
	SetEngine string
	Available []string
}

func (e *ResolutionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "unknown function %s.%s for engine %q", e.Category, e.Name, e.Engine)
	switch {
	case e.SetEngine == "" && e.Engine == core.DefaultEngine:
		fmt.Fprintf(&b, ": no %s implementations registered for %q", e.Category, e.Engine)
	case e.SetEngine == "":
		fmt.Fprintf(&b, ": no %s implementations registered for %q or %q", e.Category, e.Engine, core.DefaultEngine)
	case e.SetEngine != e.Engine:
		fmt.Fprintf(&b, " (searched the generic %q %s set)", e.SetEngine, e.Category)
	default:
		fmt.Fprintf(&b, " (searched the %q %s set; generic functions are not inherited per name)", e.SetEngine, e.Category)
	}
	if len(e.Available) > 0 {
		fmt.Fprintf(&b, "\nAvailable: %s", strings.Join(e.Available, ", "))
	}
	return b.String()
}
