package core

import "time"

// Store defines the interface for run history operations.
type Store interface {
	Open(path string) error
	Close() error
	InitSchema() error

	// Run operations
	CreateRun(env string) (*Run, error)
	GetRun(id string) (*Run, error)
	CompleteRun(id string, status RunStatus, errMsg string) error
	GetLatestRun(env string) (*Run, error)
	ListRuns(limit int) ([]*Run, error)

	// Step run operations
	RecordStepRun(stepRun *StepRun) error
	UpdateStepRun(id string, status StepRunStatus, rowsAffected int64, errMsg string, executionMS int64) error
	GetStepRunsForRun(runID string) ([]*StepRun, error)

	// Check results (tests and invariants)
	RecordCheckResult(result *CheckResult) error
	GetCheckResults(stepRunID string) ([]*CheckResult, error)

	// File hash tracking
	GetContentHash(filePath string) (string, error)
	SetContentHash(filePath, hash string) error
}

// RunStatus represents the status of a pipeline run.
type RunStatus string

// Run status constants.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// Run represents a pipeline execution session.
type Run struct {
	ID          string
	Environment string
	Status      RunStatus
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       string
}

// StepRunStatus represents the status of an individual step execution.
type StepRunStatus string

// Step run status constants.
const (
	StepRunStatusPending StepRunStatus = "pending"
	StepRunStatusRunning StepRunStatus = "running"
	StepRunStatusSuccess StepRunStatus = "success"
	StepRunStatusFailed  StepRunStatus = "failed"
	StepRunStatusSkipped StepRunStatus = "skipped"
)

// StepRun represents a single execution of a step file within a run.
type StepRun struct {
	ID           string
	RunID        string
	StepPath     string
	Target       string
	Engine       string
	ContentHash  string
	Status       StepRunStatus
	RowsAffected int64
	StartedAt    time.Time
	CompletedAt  *time.Time
	Error        string
	ExecutionMS  int64
}

// CheckResult is the outcome of one test or invariant block.
type CheckResult struct {
	ID        string
	StepRunID string
	Category  Category
	Kind      string
	Name      string
	Passed    bool
	Severity  Severity
	// Observed holds the measurement: the invariant delta or the test value.
	Observed  float64
	Expected  float64
	Message   string
	CreatedAt time.Time
}
