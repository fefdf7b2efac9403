// Package parser compiles annotated SQL step files into core.Step values.
//
// A step file is a header of "-- @category.name[: description]" comment
// blocks, each followed by YAML parameter lines, then a "-- @main" separator
// and the main query:
//
//	-- @target.table: daily volume
//	--   name: reports.client_volume
//	-- @test.no_duplicates
//	--   columns: [client_id, trade_date]
//	-- @main
//	SELECT client_id, trade_date, sum(amount) FROM trades GROUP BY 1, 2
//
// Parsing is pure: it performs no I/O besides reading the file in ParseFile
// and never returns a partially built Step.
package parser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"github.com/leapstack-labs/etlite/pkg/core"
	"github.com/leapstack-labs/etlite/pkg/funcs"
	"golang.org/x/sync/errgroup"
)

// MaxFileSize is the largest step file ParseFile accepts.
const MaxFileSize = 4 << 20

// Option configures parsing.
type Option func(*options)

type options struct {
	defaultEngine string
	registry      *funcs.Registry
	logger        *slog.Logger
}

// WithDefaultEngine sets the engine used when a file declares no meta.engine.
func WithDefaultEngine(engine string) Option {
	return func(o *options) {
		if engine != "" {
			o.defaultEngine = engine
		}
	}
}

// WithRegistry resolves functions in reg instead of funcs.Default.
func WithRegistry(reg *funcs.Registry) Option {
	return func(o *options) { o.registry = reg }
}

// WithLogger sets the logger used by ParseDir.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

func buildOptions(opts []Option) *options {
	o := &options{
		defaultEngine: core.DefaultEngine,
		registry:      funcs.Default,
		logger:        slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	return o
}

// Parse compiles the content of a step file.
func Parse(content string, opts ...Option) (*core.Step, error) {
	return parse("", content, buildOptions(opts))
}

// ParseFile reads and compiles the step file at path.
func ParseFile(path string, opts ...Option) (*core.Step, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read step file: %w", err)
	}
	if info.Size() > MaxFileSize {
		return nil, &FormatError{Path: path, Message: fmt.Sprintf("step file is %d bytes, limit is %d", info.Size(), MaxFileSize)}
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read step file: %w", err)
	}
	return parse(path, string(content), buildOptions(opts))
}

func parse(path, content string, o *options) (*core.Step, error) {
	blocks, query, err := Tokenize(content)
	if err != nil {
		var fe *FormatError
		if errors.As(err, &fe) {
			fe.Path = path
		}
		return nil, err
	}
	c := &compiler{path: path, reg: o.registry}
	return c.assemble(blocks, query, o.defaultEngine)
}

// Assemble compiles blocks against the engine declared by their meta.engine
// block (defaultEngine when absent) and collects them into a Step.
func Assemble(blocks []RawBlock, query, defaultEngine string, reg *funcs.Registry) (*core.Step, error) {
	c := &compiler{reg: reg}
	return c.assemble(blocks, query, defaultEngine)
}

func (c *compiler) assemble(blocks []RawBlock, query, defaultEngine string) (*core.Step, error) {
	if defaultEngine == "" {
		defaultEngine = core.DefaultEngine
	}

	// Pass 1: the engine decides which implementation sets every other
	// block resolves against, so it must be known first.
	engine := defaultEngine
	for _, rb := range blocks {
		if !strings.HasPrefix(rb.Header(), "meta.engine") {
			continue
		}
		b, err := c.compile(rb, defaultEngine)
		if err != nil {
			return nil, err
		}
		engine = b.Params.StringOr("type", defaultEngine)
		break
	}

	// Pass 2: compile everything against the resolved engine.
	step := &core.Step{
		Path:     c.path,
		Meta:     make(map[string]*core.Block),
		Strategy: make(map[string]*core.Block),
		Query:    query,
	}
	for _, rb := range blocks {
		b, err := c.compile(rb, engine)
		if err != nil {
			return nil, err
		}
		if err := c.route(step, b); err != nil {
			return nil, err
		}
	}

	if step.Target == nil {
		return nil, &ValidationError{Path: c.path, Message: "SQL file must contain a target definition"}
	}
	if step.Invariants == nil {
		step.Invariants = []*core.Block{}
	}
	if step.Tests == nil {
		step.Tests = []*core.Block{}
	}
	return step, nil
}

func (c *compiler) route(step *core.Step, b *core.Block) error {
	switch b.Category {
	case core.CategoryMeta:
		if prev, ok := step.Meta[b.Kind]; ok && b.Kind == "engine" {
			return &ValidationError{
				Path:    c.path,
				LineNo:  b.LineNo,
				Message: fmt.Sprintf("multiple meta.engine definitions found (first at line %d)", prev.LineNo),
			}
		}
		step.Meta[b.Kind] = b
	case core.CategoryTarget:
		if step.Target != nil {
			return &ValidationError{
				Path:    c.path,
				LineNo:  b.LineNo,
				Message: fmt.Sprintf("multiple target definitions found (first at line %d)", step.Target.LineNo),
			}
		}
		step.Target = b
	case core.CategoryStrategy:
		step.Strategy[b.Kind] = b
	case core.CategoryInvariant:
		step.Invariants = append(step.Invariants, b)
	case core.CategoryTest:
		step.Tests = append(step.Tests, b)
	default:
		return &ValidationError{
			Path:    c.path,
			LineNo:  b.LineNo,
			Message: fmt.Sprintf("unknown metadata category: %s", b.Category),
		}
	}
	step.Blocks = append(step.Blocks, b)
	return nil
}

// stepOrderPattern matches the numeric prefix of "1.city_stats.sql".
var stepOrderPattern = regexp.MustCompile(`^(\d+)[._-]`)

// StepOrder returns the numeric prefix of a step file name, or -1.
func StepOrder(path string) int {
	m := stepOrderPattern.FindStringSubmatch(filepath.Base(path))
	if m == nil {
		return -1
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return -1
	}
	return n
}

// DiscoverSteps returns the .sql files directly under dir in step order:
// numbered files ascending, then unnumbered files by name.
func DiscoverSteps(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read steps directory: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".sql" {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	SortSteps(paths)
	return paths, nil
}

// SortSteps sorts step file paths in execution order.
func SortSteps(paths []string) {
	sort.SliceStable(paths, func(i, j int) bool {
		oi, oj := StepOrder(paths[i]), StepOrder(paths[j])
		switch {
		case oi >= 0 && oj >= 0 && oi != oj:
			return oi < oj
		case oi >= 0 && oj < 0:
			return true
		case oi < 0 && oj >= 0:
			return false
		}
		return filepath.Base(paths[i]) < filepath.Base(paths[j])
	})
}

// ParseFiles compiles many step files concurrently. Steps are returned in
// the order of paths; files that fail are omitted and their errors joined.
func ParseFiles(ctx context.Context, paths []string, opts ...Option) ([]*core.Step, error) {
	o := buildOptions(opts)

	steps := make([]*core.Step, len(paths))
	errs := make([]error, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			content, err := os.ReadFile(path)
			if err != nil {
				errs[i] = fmt.Errorf("failed to read step file %s: %w", path, err)
				return nil
			}
			step, err := parse(path, string(content), o)
			if err != nil {
				o.logger.Debug("step failed to parse", slog.String("path", path), slog.String("error", err.Error()))
				errs[i] = err
				return nil
			}
			o.logger.Debug("parsed step",
				slog.String("path", path),
				slog.String("engine", step.Engine()),
				slog.Int("tests", len(step.Tests)),
				slog.Int("invariants", len(step.Invariants)))
			steps[i] = step
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]*core.Step, 0, len(steps))
	for _, s := range steps {
		if s != nil {
			out = append(out, s)
		}
	}
	return out, errors.Join(errs...)
}

// ParseDir discovers and compiles every step file in dir.
func ParseDir(ctx context.Context, dir string, opts ...Option) ([]*core.Step, error) {
	paths, err := DiscoverSteps(dir)
	if err != nil {
		return nil, err
	}
	return ParseFiles(ctx, paths, opts...)
}
