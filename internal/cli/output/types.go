package output

import "time"

// StepInfo describes a compiled step.
type StepInfo struct {
	Path        string         `json:"path"`
	Order       int            `json:"order"`
	Engine      string         `json:"engine"`
	Target      string         `json:"target"`
	TargetKind  string         `json:"target_kind"`
	Strategy    string         `json:"strategy,omitempty"`
	Description string         `json:"description,omitempty"`
	Invariants  []CheckInfo    `json:"invariants"`
	Tests       []CheckInfo    `json:"tests"`
	Meta        map[string]any `json:"meta,omitempty"`
	Query       string         `json:"query,omitempty"`
	LastRun     *StepRunInfo   `json:"last_run,omitempty"`
}

// CheckInfo describes an invariant or test declaration.
type CheckInfo struct {
	Kind   string `json:"kind"`
	Name   string `json:"name"`
	Params any    `json:"params,omitempty"`
}

// StepRunInfo is the outcome of a step in a run.
type StepRunInfo struct {
	Path         string            `json:"path"`
	Target       string            `json:"target,omitempty"`
	Status       string            `json:"status"`
	RowsAffected int64             `json:"rows_affected"`
	ExecutionMS  int64             `json:"execution_ms"`
	Error        string            `json:"error,omitempty"`
	Checks       []CheckResultInfo `json:"checks,omitempty"`
}

// CheckResultInfo is a recorded check outcome.
type CheckResultInfo struct {
	Category string  `json:"category"`
	Kind     string  `json:"kind"`
	Name     string  `json:"name"`
	Passed   bool    `json:"passed"`
	Severity string  `json:"severity"`
	Observed float64 `json:"observed"`
	Expected float64 `json:"expected"`
	Message  string  `json:"message,omitempty"`
}

// RunInfo summarizes a pipeline run.
type RunInfo struct {
	ID          string        `json:"id"`
	Environment string        `json:"environment"`
	Status      string        `json:"status"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	Error       string        `json:"error,omitempty"`
	Steps       []StepRunInfo `json:"steps,omitempty"`
}

// ValidationResult is the parse outcome of one step file.
type ValidationResult struct {
	Path  string `json:"path"`
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// FunctionSet lists the implementations of one engine and category.
type FunctionSet struct {
	Engine   string   `json:"engine"`
	Category string   `json:"category"`
	Names    []string `json:"names"`
}
