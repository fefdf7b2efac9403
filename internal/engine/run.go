package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/leapstack-labs/etlite/internal/metrics"
	"github.com/leapstack-labs/etlite/internal/parser"
	"github.com/leapstack-labs/etlite/internal/state"
	"github.com/leapstack-labs/etlite/pkg/core"
)

// preparedStep holds a step ready for execution after a successful parse.
type preparedStep struct {
	step    *core.Step
	stepRun *core.StepRun
}

// Run executes every step file of the steps directory in step order:
// numbered files ascending, then the rest by name.
func (e *Engine) Run(ctx context.Context) (*core.Run, error) {
	paths, err := parser.DiscoverSteps(e.stepsDir)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no step files found in %s", e.stepsDir)
	}
	return e.RunFiles(ctx, paths)
}

// RunFiles executes the given step files in the order given, using a
// two-phase approach:
// Phase 1: Parse every step (fail fast if any fail)
// Phase 2: Execute steps, stopping at the first failure
func (e *Engine) RunFiles(ctx context.Context, paths []string) (*core.Run, error) {
	e.logger.Info("starting run", "environment", e.environment, "steps", len(paths))

	if err := e.ensureDBConnected(ctx); err != nil {
		return nil, err
	}

	run, err := e.store.CreateRun(e.environment)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	e.logger.Debug("created run", "run_id", run.ID)

	prepared, parseErrors := e.prepareSteps(ctx, run.ID, paths)
	if len(parseErrors) > 0 {
		for _, p := range prepared {
			_ = e.store.UpdateStepRun(p.stepRun.ID, core.StepRunStatusSkipped, 0,
				"run aborted: other steps failed to parse", 0)
		}

		errMsg := fmt.Sprintf("%d step(s) failed to parse", len(parseErrors))
		_ = e.store.CompleteRun(run.ID, core.RunStatusFailed, errMsg)

		e.logger.Error("run failed during parsing", "run_id", run.ID, "parse_errors", len(parseErrors))
		e.flushMetrics()
		run, _ = e.store.GetRun(run.ID)
		return run, errors.Join(parseErrors...)
	}

	e.logger.Debug("executing steps", "count", len(prepared))
	runErr := e.executeSteps(ctx, prepared)

	switch {
	case runErr == nil:
		e.logger.Info("run completed", "run_id", run.ID)
		_ = e.store.CompleteRun(run.ID, core.RunStatusCompleted, "")
	case ctx.Err() != nil:
		e.logger.Info("run cancelled", "run_id", run.ID)
		_ = e.store.CompleteRun(run.ID, core.RunStatusCancelled, runErr.Error())
	default:
		e.logger.Info("run failed", "run_id", run.ID, "error", runErr.Error())
		_ = e.store.CompleteRun(run.ID, core.RunStatusFailed, runErr.Error())
	}

	e.flushMetrics()

	run, _ = e.store.GetRun(run.ID)
	return run, runErr
}

func (e *Engine) flushMetrics() {
	if err := e.metrics.Flush(); err != nil {
		e.logger.Warn("failed to push metrics", "error", err)
	}
}

// prepareSteps parses every file and records a pending step run for each.
func (e *Engine) prepareSteps(ctx context.Context, runID string, paths []string) ([]preparedStep, []error) {
	var prepared []preparedStep
	var parseErrors []error

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return prepared, append(parseErrors, err)
		}

		stepRun := &core.StepRun{RunID: runID, StepPath: path, Status: core.StepRunStatusPending}

		content, err := os.ReadFile(path)
		if err == nil {
			stepRun.ContentHash = state.Fingerprint(content)
		}

		step, parseErr := parser.ParseFile(path, e.ParseOptions()...)
		if parseErr != nil {
			stepRun.Status = core.StepRunStatusFailed
			stepRun.Error = parseErr.Error()
			_ = e.store.RecordStepRun(stepRun)
			parseErrors = append(parseErrors, parseErr)
			continue
		}
		stepRun.Target = step.TargetName()
		stepRun.Engine = step.Engine()

		if err := e.store.RecordStepRun(stepRun); err != nil {
			parseErrors = append(parseErrors, fmt.Errorf("%s: failed to record step run: %w", path, err))
			continue
		}
		e.logger.Debug("step parsed", "step", path, "target", stepRun.Target, "engine", stepRun.Engine)

		prepared = append(prepared, preparedStep{step: step, stepRun: stepRun})
	}

	return prepared, parseErrors
}

// executeSteps executes all prepared steps in order.
func (e *Engine) executeSteps(ctx context.Context, prepared []preparedStep) error {
	for i, p := range prepared {
		_ = e.store.UpdateStepRun(p.stepRun.ID, core.StepRunStatusRunning, 0, "", 0)

		start := time.Now()
		res, err := e.executeStep(ctx, p.step)
		duration := time.Since(start)
		metrics.RecordStep(e.metrics, p.step.Path, err, duration)

		var rows int64
		if res != nil {
			rows = res.Rows
			for _, c := range res.Checks {
				c.StepRunID = p.stepRun.ID
				if recErr := e.store.RecordCheckResult(c); recErr != nil {
					e.logger.Warn("failed to record check result", "step", p.step.Path, "error", recErr)
				}
			}
		}

		if err != nil {
			e.logger.Debug("step execution failed", "step", p.step.Path, "error", err)
			_ = e.store.UpdateStepRun(p.stepRun.ID, core.StepRunStatusFailed, rows, err.Error(), duration.Milliseconds())

			for j := i + 1; j < len(prepared); j++ {
				_ = e.store.UpdateStepRun(prepared[j].stepRun.ID, core.StepRunStatusSkipped, 0,
					fmt.Sprintf("skipped: step %s failed", p.step.Path), 0)
			}
			return err
		}

		e.logger.Debug("step executed", "step", p.step.Path, "rows", rows, "exec_ms", duration.Milliseconds())
		_ = e.store.UpdateStepRun(p.stepRun.ID, core.StepRunStatusSuccess, rows, "", duration.Milliseconds())
		if p.stepRun.ContentHash != "" {
			_ = e.store.SetContentHash(p.step.Path, p.stepRun.ContentHash)
		}
	}

	return nil
}

// Changed reports whether the step file at path differs from the version
// last executed successfully.
func (e *Engine) Changed(path string) (bool, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("failed to read step file: %w", err)
	}
	stored, err := e.store.GetContentHash(path)
	if err != nil {
		return false, err
	}
	return stored != state.Fingerprint(content), nil
}
