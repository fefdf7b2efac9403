package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/leapstack-labs/etlite/internal/cli/output"
	"github.com/leapstack-labs/etlite/internal/parser"
	"github.com/leapstack-labs/etlite/pkg/core"
)

func stepInfo(step *core.Step) output.StepInfo {
	info := output.StepInfo{
		Path:        step.Path,
		Order:       parser.StepOrder(step.Path),
		Engine:      step.Engine(),
		Target:      step.TargetName(),
		Description: step.Description(),
		Invariants:  checkInfos(step.Invariants),
		Tests:       checkInfos(step.Tests),
		Query:       step.Query,
	}
	if step.Target != nil {
		info.TargetKind = step.Target.Kind
	}
	info.Strategy = strategyName(step)

	if len(step.Meta) > 0 {
		info.Meta = make(map[string]any, len(step.Meta))
		for kind, b := range step.Meta {
			if kind == "description" {
				continue
			}
			info.Meta[kind] = b.Params.Any()
		}
	}
	return info
}

func checkInfos(blocks []*core.Block) []output.CheckInfo {
	infos := make([]output.CheckInfo, 0, len(blocks))
	for _, b := range blocks {
		ci := output.CheckInfo{Kind: b.Kind, Name: b.Name()}
		if b.Params.Len() > 0 {
			ci.Params = b.Params
		}
		infos = append(infos, ci)
	}
	return infos
}

// strategyName returns the declared strategies, or "replace (default)".
func strategyName(step *core.Step) string {
	if len(step.Strategy) == 0 {
		if step.Target != nil && step.Target.Kind == "view" {
			return ""
		}
		return "replace (default)"
	}
	names := make([]string, 0, len(step.Strategy))
	for name := range step.Strategy {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

func stepRunInfo(sr *core.StepRun, checks []*core.CheckResult) output.StepRunInfo {
	info := output.StepRunInfo{
		Path:         sr.StepPath,
		Target:       sr.Target,
		Status:       string(sr.Status),
		RowsAffected: sr.RowsAffected,
		ExecutionMS:  sr.ExecutionMS,
		Error:        sr.Error,
	}
	for _, c := range checks {
		info.Checks = append(info.Checks, output.CheckResultInfo{
			Category: string(c.Category),
			Kind:     c.Kind,
			Name:     c.Name,
			Passed:   c.Passed,
			Severity: c.Severity.String(),
			Observed: c.Observed,
			Expected: c.Expected,
			Message:  c.Message,
		})
	}
	return info
}

func runInfo(run *core.Run) output.RunInfo {
	return output.RunInfo{
		ID:          run.ID,
		Environment: run.Environment,
		Status:      string(run.Status),
		StartedAt:   run.StartedAt,
		CompletedAt: run.CompletedAt,
		Error:       run.Error,
	}
}

// loadRunSteps reads the step runs of a run with their check results.
func loadRunSteps(store core.Store, runID string) ([]output.StepRunInfo, error) {
	stepRuns, err := store.GetStepRunsForRun(runID)
	if err != nil {
		return nil, err
	}
	infos := make([]output.StepRunInfo, 0, len(stepRuns))
	for _, sr := range stepRuns {
		checks, err := store.GetCheckResults(sr.ID)
		if err != nil {
			return nil, err
		}
		infos = append(infos, stepRunInfo(sr, checks))
	}
	return infos, nil
}

// checkStatus returns passed, failed or warning for a recorded check.
func checkStatus(c output.CheckResultInfo) string {
	switch {
	case c.Passed:
		return "passed"
	case c.Severity == core.SeverityWarning.String():
		return "warning"
	}
	return "failed"
}

// stepDetail summarizes a step run on one line.
func stepDetail(s output.StepRunInfo) string {
	var parts []string
	if s.Target != "" {
		parts = append(parts, s.Target)
	}
	if s.Status == string(core.StepRunStatusSuccess) {
		parts = append(parts, fmt.Sprintf("%d rows", s.RowsAffected), fmt.Sprintf("%dms", s.ExecutionMS))
	}
	return strings.Join(parts, "  ")
}

// renderStepRuns writes step outcomes and their checks.
func renderStepRuns(r *output.Renderer, steps []output.StepRunInfo) {
	if r.EffectiveMode() == output.ModeMarkdown {
		for _, s := range steps {
			r.Println(output.FormatHeader(3, s.Path))
			r.Println(output.FormatKeyValue("Status", s.Status))
			if s.Target != "" {
				r.Println(output.FormatKeyValue("Target", s.Target))
			}
			if s.Status == string(core.StepRunStatusSuccess) {
				r.Println(output.FormatKeyValue("Rows", fmt.Sprintf("%d", s.RowsAffected)))
			}
			if s.Error != "" {
				r.Println(output.FormatKeyValue("Error", s.Error))
			}
			for _, c := range s.Checks {
				r.Printf("- %s.%s `%s`: %s", c.Category, c.Kind, c.Name, checkStatus(c))
				if c.Message != "" {
					r.Printf(" (%s)", c.Message)
				}
				r.Println()
			}
			r.Println()
		}
		return
	}

	for _, s := range steps {
		r.StatusLine(s.Path, s.Status, stepDetail(s))
		for _, c := range s.Checks {
			r.Printf("    ")
			r.StatusLine(fmt.Sprintf("%s.%s %s", c.Category, c.Kind, c.Name), checkStatus(c), c.Message)
		}
		if s.Error != "" && s.Status == string(core.StepRunStatusFailed) {
			r.Println("    " + r.Error(s.Error))
		}
	}
}
