package persistence

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/studiosoft/lessonscheduler/internal/scheduling/domain"
)

// SQLiteSolutionStore is the single-process counterpart to
// PostgresSolutionStore, for embedding the scheduler in a CLI or
// desktop host without standing up a Postgres instance.
type SQLiteSolutionStore struct {
	dbConn *sql.DB
}

// NewSQLiteSolutionStore builds a store over an already-migrated
// *sql.DB opened against the "sqlite" driver (modernc.org/sqlite,
// registered under that name — no cgo).
func NewSQLiteSolutionStore(dbConn *sql.DB) *SQLiteSolutionStore {
	return &SQLiteSolutionStore{dbConn: dbConn}
}

// Save persists a solve run's assignments and metadata.
func (s *SQLiteSolutionStore) Save(ctx context.Context, studioID string, solution domain.ScheduleSolution) error {
	tx, err := s.dbConn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	runID := solution.Metadata.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO solution_runs (run_id, studio_id, total_students, scheduled_students, utilization_percent, compute_time_ms, backtrack_count, strategy_used, cache_hit_rate, stop_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, runID, studioID, solution.Metadata.TotalStudents, solution.Metadata.ScheduledStudents, solution.Metadata.AverageUtilizationPercent,
		solution.Metadata.ComputeTimeMs, solution.Metadata.BacktrackCount, solution.Metadata.StrategyUsed, solution.Metadata.CacheHitRate,
		solution.Metadata.StopReason)
	if err != nil {
		return err
	}

	for _, a := range solution.Assignments {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO solution_assignments (run_id, student_id, day_of_week, start_minute, duration_minutes)
			VALUES (?, ?, ?, ?, ?)
		`, runID, a.StudentID, a.DayOfWeek, a.StartMinute, a.DurationMinutes)
		if err != nil {
			return err
		}
	}

	for _, studentID := range solution.Unscheduled {
		_, err = tx.ExecContext(ctx, `INSERT INTO solution_unscheduled (run_id, student_id) VALUES (?, ?)`, runID, studentID)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// LoadLatest retrieves the most recently computed solution for a
// studio, or ErrSolutionNotFound if none has ever been saved.
func (s *SQLiteSolutionStore) LoadLatest(ctx context.Context, studioID string) (domain.ScheduleSolution, error) {
	var runID string
	var meta domain.SolutionMetadata
	row := s.dbConn.QueryRowContext(ctx, `
		SELECT run_id, total_students, scheduled_students, utilization_percent, compute_time_ms, backtrack_count, strategy_used, cache_hit_rate, stop_reason
		FROM solution_runs
		WHERE studio_id = ?
		ORDER BY rowid DESC
		LIMIT 1
	`, studioID)
	err := row.Scan(&runID, &meta.TotalStudents, &meta.ScheduledStudents, &meta.AverageUtilizationPercent,
		&meta.ComputeTimeMs, &meta.BacktrackCount, &meta.StrategyUsed, &meta.CacheHitRate, &meta.StopReason)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ScheduleSolution{}, ErrSolutionNotFound
		}
		return domain.ScheduleSolution{}, err
	}
	meta.RunID = runID

	assignments, err := s.loadAssignments(ctx, runID)
	if err != nil {
		return domain.ScheduleSolution{}, err
	}
	unscheduled, err := s.loadUnscheduled(ctx, runID)
	if err != nil {
		return domain.ScheduleSolution{}, err
	}

	return domain.ScheduleSolution{Assignments: assignments, Unscheduled: unscheduled, Metadata: meta}, nil
}

func (s *SQLiteSolutionStore) loadAssignments(ctx context.Context, runID string) ([]domain.LessonAssignment, error) {
	rows, err := s.dbConn.QueryContext(ctx, `
		SELECT student_id, day_of_week, start_minute, duration_minutes
		FROM solution_assignments
		WHERE run_id = ?
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	assignments := make([]domain.LessonAssignment, 0)
	for rows.Next() {
		var a domain.LessonAssignment
		if err := rows.Scan(&a.StudentID, &a.DayOfWeek, &a.StartMinute, &a.DurationMinutes); err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

func (s *SQLiteSolutionStore) loadUnscheduled(ctx context.Context, runID string) ([]string, error) {
	rows, err := s.dbConn.QueryContext(ctx, `SELECT student_id FROM solution_unscheduled WHERE run_id = ?`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	unscheduled := make([]string, 0)
	for rows.Next() {
		var studentID string
		if err := rows.Scan(&studentID); err != nil {
			return nil, err
		}
		unscheduled = append(unscheduled, studentID)
	}
	return unscheduled, rows.Err()
}

// Migrate creates the solution-store schema if it does not already
// exist. Called once at startup by the CLI before any Save/LoadLatest.
func Migrate(ctx context.Context, dbConn *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS solution_runs (
			run_id TEXT PRIMARY KEY,
			studio_id TEXT NOT NULL,
			total_students INTEGER NOT NULL,
			scheduled_students INTEGER NOT NULL,
			utilization_percent REAL NOT NULL,
			compute_time_ms INTEGER NOT NULL,
			backtrack_count INTEGER NOT NULL,
			strategy_used TEXT NOT NULL,
			cache_hit_rate REAL NOT NULL,
			stop_reason TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS solution_assignments (
			run_id TEXT NOT NULL REFERENCES solution_runs(run_id),
			student_id TEXT NOT NULL,
			day_of_week INTEGER NOT NULL,
			start_minute INTEGER NOT NULL,
			duration_minutes INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS solution_unscheduled (
			run_id TEXT NOT NULL REFERENCES solution_runs(run_id),
			student_id TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_solution_runs_studio ON solution_runs(studio_id)`,
	}
	for _, stmt := range statements {
		if _, err := dbConn.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
