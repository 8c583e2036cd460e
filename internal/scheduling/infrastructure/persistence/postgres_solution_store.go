// Package persistence stores computed schedule solutions for later
// retrieval and for incremental-reuse diffing against the next solve
// request.
package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/studiosoft/lessonscheduler/internal/scheduling/domain"
)

// ErrSolutionNotFound is returned when a studio has no stored solution.
var ErrSolutionNotFound = errors.New("solution not found")

// PostgresSolutionStore persists ScheduleSolution runs for a studio so
// a later incremental solve can load the most recent one to diff
// against.
type PostgresSolutionStore struct {
	pool *pgxpool.Pool
}

// NewPostgresSolutionStore builds a store over an existing pool.
func NewPostgresSolutionStore(pool *pgxpool.Pool) *PostgresSolutionStore {
	return &PostgresSolutionStore{pool: pool}
}

// Save persists a solve run's assignments and metadata as a new run for
// the studio; earlier runs stay stored, and LoadLatest reads back only
// the most recent one.
func (s *PostgresSolutionStore) Save(ctx context.Context, studioID string, solution domain.ScheduleSolution) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	runID := solution.Metadata.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO solution_runs (run_id, studio_id, total_students, scheduled_students, utilization_percent, compute_time_ms, backtrack_count, strategy_used, cache_hit_rate, stop_reason, computed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, runID, studioID, solution.Metadata.TotalStudents, solution.Metadata.ScheduledStudents, solution.Metadata.AverageUtilizationPercent,
		solution.Metadata.ComputeTimeMs, solution.Metadata.BacktrackCount, solution.Metadata.StrategyUsed, solution.Metadata.CacheHitRate,
		solution.Metadata.StopReason, time.Now())
	if err != nil {
		return err
	}

	for _, a := range solution.Assignments {
		_, err = tx.Exec(ctx, `
			INSERT INTO solution_assignments (run_id, student_id, day_of_week, start_minute, duration_minutes)
			VALUES ($1, $2, $3, $4, $5)
		`, runID, a.StudentID, a.DayOfWeek, a.StartMinute, a.DurationMinutes)
		if err != nil {
			return err
		}
	}

	for _, studentID := range solution.Unscheduled {
		_, err = tx.Exec(ctx, `INSERT INTO solution_unscheduled (run_id, student_id) VALUES ($1, $2)`, runID, studentID)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// LoadLatest retrieves the most recently computed solution for a
// studio, or ErrSolutionNotFound if none has ever been saved.
func (s *PostgresSolutionStore) LoadLatest(ctx context.Context, studioID string) (domain.ScheduleSolution, error) {
	var runID string
	var meta domain.SolutionMetadata
	err := s.pool.QueryRow(ctx, `
		SELECT run_id, total_students, scheduled_students, utilization_percent, compute_time_ms, backtrack_count, strategy_used, cache_hit_rate, stop_reason
		FROM solution_runs
		WHERE studio_id = $1
		ORDER BY computed_at DESC
		LIMIT 1
	`, studioID).Scan(&runID, &meta.TotalStudents, &meta.ScheduledStudents, &meta.AverageUtilizationPercent,
		&meta.ComputeTimeMs, &meta.BacktrackCount, &meta.StrategyUsed, &meta.CacheHitRate, &meta.StopReason)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
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

func (s *PostgresSolutionStore) loadAssignments(ctx context.Context, runID string) ([]domain.LessonAssignment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT student_id, day_of_week, start_minute, duration_minutes
		FROM solution_assignments
		WHERE run_id = $1
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

func (s *PostgresSolutionStore) loadUnscheduled(ctx context.Context, runID string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT student_id FROM solution_unscheduled WHERE run_id = $1`, runID)
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
