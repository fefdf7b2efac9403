package state

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/leapstack-labs/etlite/pkg/core"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// SQLiteStore implements core.Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite state store instance.
func NewSQLiteStore(logger *slog.Logger) *SQLiteStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SQLiteStore{logger: logger}
}

// Open opens a connection to the SQLite database.
// Use ":memory:" for an in-memory database.
func (s *SQLiteStore) Open(path string) error {
	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if path != ":memory:" {
		dsn += "&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// A second connection to ":memory:" would see an empty database.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s.db = db
	s.path = path
	s.logger.Debug("opened state store", slog.String("path", path))
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// InitSchema brings the schema up to date.
func (s *SQLiteStore) InitSchema() error {
	return s.Migrate()
}

func generateID() string {
	return uuid.New().String()
}

func (s *SQLiteStore) ready() error {
	if s.db == nil {
		return errNotOpened
	}
	return nil
}

// --- Runs ---

// CreateRun creates a new pipeline run.
func (s *SQLiteStore) CreateRun(env string) (*core.Run, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	run := &core.Run{
		ID:          generateID(),
		Environment: env,
		Status:      core.RunStatusRunning,
		StartedAt:   time.Now().UTC(),
	}
	s.logger.Debug("creating run", slog.String("id", run.ID), slog.String("environment", env))

	_, err := s.db.Exec(
		`INSERT INTO runs (id, environment, status, started_at) VALUES (?, ?, ?, ?)`,
		run.ID, run.Environment, string(run.Status), run.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	return run, nil
}

const runColumns = `id, environment, status, started_at, completed_at, error`

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(id string) (*core.Run, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	run, err := scanRun(s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// CompleteRun marks a run as completed with the given status.
func (s *SQLiteStore) CompleteRun(id string, status core.RunStatus, errMsg string) error {
	if err := s.ready(); err != nil {
		return err
	}

	_, err := s.db.Exec(
		`UPDATE runs SET status = ?, completed_at = ?, error = ? WHERE id = ?`,
		string(status), time.Now().UTC(), nullString(errMsg), id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	return nil
}

// GetLatestRun retrieves the most recent run for an environment, or nil.
func (s *SQLiteStore) GetLatestRun(env string) (*core.Run, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	run, err := scanRun(s.db.QueryRow(
		`SELECT `+runColumns+` FROM runs WHERE environment = ? ORDER BY started_at DESC LIMIT 1`, env))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}
	return run, nil
}

// ListRuns retrieves the most recent runs up to the given limit.
func (s *SQLiteStore) ListRuns(limit int) ([]*core.Run, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*core.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*core.Run, error) {
	var (
		run         core.Run
		status      string
		completedAt sql.NullTime
		errMsg      sql.NullString
	)
	if err := row.Scan(&run.ID, &run.Environment, &status, &run.StartedAt, &completedAt, &errMsg); err != nil {
		return nil, err
	}
	run.Status = core.RunStatus(status)
	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	run.Error = errMsg.String
	return &run, nil
}

// --- Step runs ---

// RecordStepRun inserts a step run. ID and StartedAt are filled in when empty.
func (s *SQLiteStore) RecordStepRun(sr *core.StepRun) error {
	if err := s.ready(); err != nil {
		return err
	}
	if sr.ID == "" {
		sr.ID = generateID()
	}
	if sr.StartedAt.IsZero() {
		sr.StartedAt = time.Now().UTC()
	}
	if sr.Status == "" {
		sr.Status = core.StepRunStatusPending
	}

	_, err := s.db.Exec(
		`INSERT INTO step_runs (id, run_id, step_path, target, engine, content_hash, status, rows_affected, started_at, error, execution_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sr.ID, sr.RunID, sr.StepPath, sr.Target, sr.Engine, sr.ContentHash, string(sr.Status),
		sr.RowsAffected, sr.StartedAt, nullString(sr.Error), sr.ExecutionMS,
	)
	if err != nil {
		return fmt.Errorf("failed to record step run: %w", err)
	}
	return nil
}

// UpdateStepRun sets the outcome of a step run. Terminal statuses also stamp
// completed_at.
func (s *SQLiteStore) UpdateStepRun(id string, status core.StepRunStatus, rowsAffected int64, errMsg string, executionMS int64) error {
	if err := s.ready(); err != nil {
		return err
	}

	var completedAt any
	switch status {
	case core.StepRunStatusSuccess, core.StepRunStatusFailed, core.StepRunStatusSkipped:
		completedAt = time.Now().UTC()
	}

	res, err := s.db.Exec(
		`UPDATE step_runs SET status = ?, rows_affected = ?, error = ?, execution_ms = ?, completed_at = ? WHERE id = ?`,
		string(status), rowsAffected, nullString(errMsg), executionMS, completedAt, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update step run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("step run not found: %s", id)
	}
	return nil
}

// GetStepRunsForRun returns the step runs of a run in execution order.
func (s *SQLiteStore) GetStepRunsForRun(runID string) ([]*core.StepRun, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(
		`SELECT id, run_id, step_path, target, engine, content_hash, status, rows_affected, started_at, completed_at, error, execution_ms
		 FROM step_runs WHERE run_id = ? ORDER BY started_at, rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get step runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*core.StepRun
	for rows.Next() {
		var (
			sr          core.StepRun
			status      string
			completedAt sql.NullTime
			errMsg      sql.NullString
		)
		if err := rows.Scan(&sr.ID, &sr.RunID, &sr.StepPath, &sr.Target, &sr.Engine, &sr.ContentHash,
			&status, &sr.RowsAffected, &sr.StartedAt, &completedAt, &errMsg, &sr.ExecutionMS); err != nil {
			return nil, fmt.Errorf("failed to scan step run: %w", err)
		}
		sr.Status = core.StepRunStatus(status)
		if completedAt.Valid {
			sr.CompletedAt = &completedAt.Time
		}
		sr.Error = errMsg.String
		out = append(out, &sr)
	}
	return out, rows.Err()
}

// --- Check results ---

// RecordCheckResult stores the outcome of a test or invariant.
func (s *SQLiteStore) RecordCheckResult(r *core.CheckResult) error {
	if err := s.ready(); err != nil {
		return err
	}
	if r.ID == "" {
		r.ID = generateID()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.Exec(
		`INSERT INTO check_results (id, step_run_id, category, kind, name, passed, severity, observed, expected, message, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.StepRunID, string(r.Category), r.Kind, r.Name, r.Passed, r.Severity.String(),
		r.Observed, r.Expected, r.Message, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record check result: %w", err)
	}
	return nil
}

// GetCheckResults returns the check results of a step run in recording order.
func (s *SQLiteStore) GetCheckResults(stepRunID string) ([]*core.CheckResult, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(
		`SELECT id, step_run_id, category, kind, name, passed, severity, observed, expected, message, created_at
		 FROM check_results WHERE step_run_id = ? ORDER BY created_at, rowid`, stepRunID)
	if err != nil {
		return nil, fmt.Errorf("failed to get check results: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*core.CheckResult
	for rows.Next() {
		var (
			r        core.CheckResult
			category string
			severity string
		)
		if err := rows.Scan(&r.ID, &r.StepRunID, &category, &r.Kind, &r.Name, &r.Passed, &severity,
			&r.Observed, &r.Expected, &r.Message, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan check result: %w", err)
		}
		r.Category = core.Category(category)
		// Unknown values read back as error.
		r.Severity, _ = core.ParseSeverity(severity)
		out = append(out, &r)
	}
	return out, rows.Err()
}

// --- Content hashes ---

// GetContentHash returns the stored hash for a file path, or "" when unknown.
func (s *SQLiteStore) GetContentHash(filePath string) (string, error) {
	if err := s.ready(); err != nil {
		return "", err
	}

	var hash string
	err := s.db.QueryRow(`SELECT content_hash FROM content_hashes WHERE file_path = ?`, filePath).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get content hash: %w", err)
	}
	return hash, nil
}

// SetContentHash stores the hash for a file path.
func (s *SQLiteStore) SetContentHash(filePath, hash string) error {
	if err := s.ready(); err != nil {
		return err
	}

	_, err := s.db.Exec(
		`INSERT INTO content_hashes (file_path, content_hash, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (file_path) DO UPDATE SET content_hash = excluded.content_hash, updated_at = excluded.updated_at`,
		filePath, hash, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to set content hash: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
