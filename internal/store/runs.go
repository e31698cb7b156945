package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/streakgate/internal/harness"
)

// ErrRunNotFound is returned by GetRun for an unknown id.
var ErrRunNotFound = errors.New("run not found")

// Run is one persisted harness run.
type Run struct {
	ID          string    `json:"id"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	BaseURL     string    `json:"base_url"`
	Scenarios   []string  `json:"scenarios"`
	Cases       int       `json:"cases"`
	FailedCases int       `json:"failed_cases"`
	Pass        bool      `json:"pass"`
	TraceDigest string    `json:"trace_digest,omitempty"`

	// FailureCount is filled by ListRuns and GetRun.
	FailureCount int `json:"failure_count"`

	// Failures is filled by GetRun only.
	Failures []harness.Failure `json:"failures,omitempty"`
}

// SaveRun inserts run and its failures in one transaction.
// Saving an id twice is an error.
func (s *Store) SaveRun(ctx context.Context, run Run) error {
	scenarios, err := marshalScenarios(run.Scenarios)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save run: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, started_at, finished_at, base_url, scenarios, cases, failed_cases, pass, trace_digest)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		formatTime(run.StartedAt),
		formatTime(run.FinishedAt),
		run.BaseURL,
		scenarios,
		run.Cases,
		run.FailedCases,
		boolToInt(run.Pass),
		run.TraceDigest,
	)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}

	for i, f := range run.Failures {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO failures
			(run_id, idx, scenario, case_name, step, field, expected, actual, message)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, run.ID, i, f.Scenario, f.Case, f.Step, f.Field, f.Expected, f.Actual, f.Message)
		if err != nil {
			return fmt.Errorf("save run: failure %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save run: commit: %w", err)
	}
	return nil
}

const runColumns = `
	r.id, r.started_at, r.finished_at, r.base_url, r.scenarios,
	r.cases, r.failed_cases, r.pass, r.trace_digest,
	(SELECT COUNT(*) FROM failures f WHERE f.run_id = r.id)
`

// ListRuns returns up to limit runs, newest first. limit <= 0 means all.
// Returns an empty slice (not nil) when there are no runs.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs r ORDER BY r.started_at DESC, r.id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// GetRun returns the run with id and its failures in recorded order.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs r WHERE r.id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return Run{}, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT scenario, case_name, step, field, expected, actual, message
		FROM failures
		WHERE run_id = ?
		ORDER BY idx ASC
	`, id)
	if err != nil {
		return Run{}, fmt.Errorf("query failures: %w", err)
	}
	defer rows.Close()

	run.Failures = []harness.Failure{}
	for rows.Next() {
		var f harness.Failure
		if err := rows.Scan(&f.Scenario, &f.Case, &f.Step, &f.Field, &f.Expected, &f.Actual, &f.Message); err != nil {
			return Run{}, fmt.Errorf("scan failure: %w", err)
		}
		run.Failures = append(run.Failures, f)
	}
	if err := rows.Err(); err != nil {
		return Run{}, fmt.Errorf("iterate failures: %w", err)
	}
	return run, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		run               Run
		started, finished string
		scenarios         string
		pass              int
	)
	err := row.Scan(
		&run.ID, &started, &finished, &run.BaseURL, &scenarios,
		&run.Cases, &run.FailedCases, &pass, &run.TraceDigest,
		&run.FailureCount,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, err
	}
	if err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}

	if run.StartedAt, err = parseTime(started); err != nil {
		return Run{}, fmt.Errorf("run %s: started_at: %w", run.ID, err)
	}
	if run.FinishedAt, err = parseTime(finished); err != nil {
		return Run{}, fmt.Errorf("run %s: finished_at: %w", run.ID, err)
	}
	if run.Scenarios, err = unmarshalScenarios(scenarios); err != nil {
		return Run{}, fmt.Errorf("run %s: %w", run.ID, err)
	}
	run.Pass = pass == 1
	return run, nil
}
