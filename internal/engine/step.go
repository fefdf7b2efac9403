package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/leapstack-labs/etlite/internal/metrics"
	"github.com/leapstack-labs/etlite/pkg/core"
)

// StepResult is the outcome of executing one step.
type StepResult struct {
	Step   *core.Step
	Target *core.TargetTable
	// Rows is the row count of the target after loading.
	Rows     int64
	Checks   []*core.CheckResult
	Duration time.Duration
}

// Failed returns the failed checks whose severity is error.
func (r *StepResult) Failed() []*core.CheckResult {
	var out []*core.CheckResult
	for _, c := range r.Checks {
		if !c.Passed && c.Severity == core.SeverityError {
			out = append(out, c)
		}
	}
	return out
}

// CheckFailedError is returned when a step loaded its target but one or more
// of its tests or invariants with severity error failed.
type CheckFailedError struct {
	Path   string
	Failed []*core.CheckResult
}

func (e *CheckFailedError) Error() string {
	parts := make([]string, len(e.Failed))
	for i, c := range e.Failed {
		parts[i] = fmt.Sprintf("%s.%s %s", c.Category, c.Kind, c.Name)
		if c.Message != "" {
			parts[i] += " (" + c.Message + ")"
		}
	}
	return fmt.Sprintf("%s: %d check(s) failed: %s", e.Path, len(e.Failed), strings.Join(parts, "; "))
}

// RunStep executes a compiled step without recording it in the state store.
// A non-nil result is returned whenever the target was loaded, including
// when checks failed.
func (e *Engine) RunStep(ctx context.Context, step *core.Step) (*StepResult, error) {
	if err := e.ensureDBConnected(ctx); err != nil {
		return nil, err
	}
	return e.executeStep(ctx, step)
}

// pendingInvariant carries the measures of an invariant across the load.
type pendingInvariant struct {
	block   *core.Block
	fn      core.InvariantFunc
	source  float64
	before  float64
	measErr error
}

func (e *Engine) executeStep(ctx context.Context, step *core.Step) (*StepResult, error) {
	start := time.Now()
	res := &StepResult{Step: step}

	if se := step.Engine(); se != core.DefaultEngine && se != e.db.Engine() {
		return nil, fmt.Errorf("%s: step engine %q cannot run on a %q adapter", step.Path, se, e.db.Engine())
	}

	ctx, err := e.applySettings(ctx, step)
	if err != nil {
		return nil, err
	}

	targetFn, ok := step.Target.Impl.(core.TargetFunc)
	if !ok {
		return nil, fmt.Errorf("%s: %s has no target implementation", step.Path, step.Target.Ref())
	}
	target, err := targetFn(step.Target.Params, step.Query)
	if err != nil {
		return nil, fmt.Errorf("%s: %s: %w", step.Path, step.Target.Ref(), err)
	}
	res.Target = target

	e.logger.Debug("creating target", "step", step.Path, "target", target.Name, "view", target.View)
	if err := e.execAll(ctx, target.Statements); err != nil {
		return nil, fmt.Errorf("%s: failed to create target %s: %w", step.Path, target.Name, err)
	}

	invariants, err := e.invariants(step)
	if err != nil {
		return nil, err
	}

	if target.View {
		if len(step.Strategy) > 0 {
			e.logger.Warn("strategy ignored for view target", "step", step.Path, "target", target.Name)
		}
		// A view is rebuilt from scratch, so it starts from nothing.
		source := sourceRelation(step.Query)
		for _, inv := range invariants {
			inv.source, inv.measErr = inv.fn(ctx, e.db, source, inv.block.Params)
		}
	} else {
		plan, err := e.loadPlan(step, target.Name)
		if err != nil {
			return nil, err
		}
		if err := e.execAll(ctx, plan.Prepare); err != nil {
			return nil, fmt.Errorf("%s: failed to prepare %s: %w", step.Path, target.Name, err)
		}
		for _, inv := range invariants {
			inv.before, inv.measErr = inv.fn(ctx, e.db, target.Name, inv.block.Params)
			if inv.measErr != nil {
				continue
			}
			inv.source, inv.measErr = inv.fn(ctx, e.db, plan.Source, inv.block.Params)
		}
		e.logger.Debug("loading target", "step", step.Path, "target", target.Name, "statements", len(plan.Load))
		if err := e.execAll(ctx, plan.Load); err != nil {
			return nil, fmt.Errorf("%s: failed to load %s: %w", step.Path, target.Name, err)
		}
	}

	for _, inv := range invariants {
		res.Checks = append(res.Checks, e.verifyInvariant(ctx, target.Name, inv))
	}
	for _, b := range step.Tests {
		res.Checks = append(res.Checks, e.runTest(ctx, target.Name, b))
	}

	rows, err := e.countRows(ctx, target.Name)
	if err != nil {
		e.logger.Warn("failed to count target rows", "target", target.Name, "error", err)
	}
	res.Rows = rows
	res.Duration = time.Since(start)

	for _, c := range res.Checks {
		metrics.RecordCheck(e.metrics, string(c.Category), c.Kind, c.Passed)
	}
	metrics.RecordRows(e.metrics, step.Path, rows)

	if failed := res.Failed(); len(failed) > 0 {
		return res, &CheckFailedError{Path: step.Path, Failed: failed}
	}
	return res, nil
}

func (e *Engine) applySettings(ctx context.Context, step *core.Step) (context.Context, error) {
	settings := step.EngineSettings()
	if settings.Len() == 0 {
		return ctx, nil
	}
	applier, ok := e.db.(core.SettingsApplier)
	if !ok {
		return nil, fmt.Errorf("%s: adapter for engine %q does not support engine settings", step.Path, e.db.Engine())
	}
	e.logger.Debug("applying engine settings", "step", step.Path, "settings", settings.Keys())
	ctx, err := applier.WithSettings(ctx, settings)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to apply engine settings: %w", step.Path, err)
	}
	return ctx, nil
}

// loadPlan resolves the step strategy, replace when none is declared.
func (e *Engine) loadPlan(step *core.Step, table string) (*core.LoadPlan, error) {
	var block *core.Block
	switch len(step.Strategy) {
	case 0:
		impl, err := e.registry.Resolve(core.CategoryStrategy, "replace", step.Engine())
		if err != nil {
			return nil, fmt.Errorf("%s: no strategy declared: %w", step.Path, err)
		}
		block = &core.Block{Category: core.CategoryStrategy, Kind: "replace", Impl: impl}
	case 1:
		for _, b := range step.Strategy {
			block = b
		}
	default:
		kinds := make([]string, 0, len(step.Strategy))
		for k := range step.Strategy {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		return nil, fmt.Errorf("%s: ambiguous strategy: %s", step.Path, strings.Join(kinds, ", "))
	}

	fn, ok := block.Impl.(core.StrategyFunc)
	if !ok {
		return nil, fmt.Errorf("%s: %s has no strategy implementation", step.Path, block.Ref())
	}
	plan, err := fn(table, step.Query, block.Params)
	if err != nil {
		return nil, fmt.Errorf("%s: %s: %w", step.Path, block.Ref(), err)
	}
	return plan, nil
}

func (e *Engine) invariants(step *core.Step) ([]*pendingInvariant, error) {
	out := make([]*pendingInvariant, 0, len(step.Invariants))
	for _, b := range step.Invariants {
		fn, ok := b.Impl.(core.InvariantFunc)
		if !ok {
			return nil, fmt.Errorf("%s: %s has no invariant implementation", step.Path, b.Ref())
		}
		out = append(out, &pendingInvariant{block: b, fn: fn})
	}
	return out, nil
}

// verifyInvariant checks that the target changed by what the loaded rows
// measure: after - before must equal source within the tolerance.
func (e *Engine) verifyInvariant(ctx context.Context, table string, inv *pendingInvariant) *core.CheckResult {
	b := inv.block
	res := &core.CheckResult{Category: b.Category, Kind: b.Kind, Name: b.Name(), Expected: inv.source}

	if inv.measErr != nil {
		return e.finishCheck(b, res, false, "measure failed: "+inv.measErr.Error())
	}
	tol, err := b.Tolerance()
	if err != nil {
		return e.finishCheck(b, res, false, err.Error())
	}
	after, err := inv.fn(ctx, e.db, table, b.Params)
	if err != nil {
		return e.finishCheck(b, res, false, "measure failed: "+err.Error())
	}

	res.Observed = after - inv.before
	if tol.Within(res.Expected, res.Observed) {
		return e.finishCheck(b, res, true, "")
	}
	return e.finishCheck(b, res, false, fmt.Sprintf("target changed by %g, loaded rows measure %g (tolerance %s)",
		res.Observed, res.Expected, tol))
}

func (e *Engine) runTest(ctx context.Context, table string, b *core.Block) *core.CheckResult {
	res := &core.CheckResult{Category: b.Category, Kind: b.Kind, Name: b.Name()}

	fn, ok := b.Impl.(core.TestFunc)
	if !ok {
		return e.finishCheck(b, res, false, "no test implementation")
	}
	passed, err := fn(ctx, e.db, table, b.Params)
	if err != nil {
		return e.finishCheck(b, res, false, "test failed to run: "+err.Error())
	}
	if !passed {
		return e.finishCheck(b, res, false, "assertion failed")
	}
	return e.finishCheck(b, res, true, "")
}

// finishCheck sets the outcome of a check and applies the block severity.
func (e *Engine) finishCheck(b *core.Block, res *core.CheckResult, passed bool, msg string) *core.CheckResult {
	res.Passed = passed
	res.Message = msg
	if passed {
		e.logger.Debug("check passed", "check", b.Ref(), "name", res.Name)
		return res
	}

	sev, err := b.Severity()
	if err != nil {
		res.Message += "; " + err.Error()
	}
	res.Severity = sev
	if sev == core.SeverityWarning {
		e.logger.Warn("check failed", "check", b.Ref(), "name", res.Name, "message", msg)
		return res
	}
	e.logger.Info("check failed", "check", b.Ref(), "name", res.Name, "message", msg)
	return res
}

func (e *Engine) execAll(ctx context.Context, stmts []string) error {
	for _, stmt := range stmts {
		if err := e.db.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) countRows(ctx context.Context, table string) (int64, error) {
	v, err := core.QueryScalar(ctx, e.db, "SELECT count(*) FROM "+table)
	if err != nil {
		return 0, err
	}
	f, err := core.ToFloat(v)
	if err != nil {
		return 0, err
	}
	return int64(f), nil
}

func sourceRelation(query string) string {
	return "(" + query + ") AS src"
}
