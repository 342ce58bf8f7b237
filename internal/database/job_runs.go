package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/benvon/habitflow/internal/models"
	"github.com/google/uuid"
)

// JobRunRepository tracks which daily maintenance operations have run for
// which users. It replaces an in-memory "have I run today" flag with durable
// state so process restarts cannot cause duplicate or missed runs.
type JobRunRepository struct {
	db *DB
}

// NewJobRunRepository creates a new job run repository
func NewJobRunRepository(db *DB) *JobRunRepository {
	return &JobRunRepository{db: db}
}

// MarkRun records that an operation ran for a user on the given day. Returns
// true on the first call for that (user, operation, day) and false when the
// run was already recorded, which makes it usable as an idempotence guard by
// concurrent workers.
func (r *JobRunRepository) MarkRun(ctx context.Context, userID uuid.UUID, op models.MaintenanceOp, day time.Time) (bool, error) {
	query := `
		INSERT INTO job_runs (user_id, operation, run_date, ran_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, operation, run_date) DO NOTHING
		RETURNING ran_at
	`

	var ranAt time.Time
	err := r.db.QueryRowContext(ctx, query, userID, op, day, time.Now()).Scan(&ranAt)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to mark job run: %w", err)
	}

	return true, nil
}

// GetLastRun retrieves the most recent run of an operation for a user, or nil
func (r *JobRunRepository) GetLastRun(ctx context.Context, userID uuid.UUID, op models.MaintenanceOp) (*models.JobRun, error) {
	query := `
		SELECT user_id, operation, run_date, ran_at
		FROM job_runs
		WHERE user_id = $1 AND operation = $2
		ORDER BY run_date DESC
		LIMIT 1
	`

	run := &models.JobRun{}
	err := r.db.QueryRowContext(ctx, query, userID, op).Scan(&run.UserID, &run.Operation, &run.RunDate, &run.RanAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last run: %w", err)
	}

	return run, nil
}

// ListUsersDue returns users with at least one streak who have no recorded
// run of the operation for the given day. The scheduler enqueues maintenance
// jobs from this list.
func (r *JobRunRepository) ListUsersDue(ctx context.Context, op models.MaintenanceOp, day time.Time) ([]uuid.UUID, error) {
	query := `
		SELECT DISTINCT s.user_id
		FROM user_streaks s
		LEFT JOIN job_runs j ON j.user_id = s.user_id AND j.operation = $1 AND j.run_date = $2
		WHERE j.user_id IS NULL
	`

	rows, err := r.db.QueryContext(ctx, query, op, day)
	if err != nil {
		return nil, fmt.Errorf("failed to query users due: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			// Log error but continue - rows may already be closed
			_ = err
		}
	}()

	var userIDs []uuid.UUID
	for rows.Next() {
		var userID uuid.UUID
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("failed to scan user ID: %w", err)
		}
		userIDs = append(userIDs, userID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return userIDs, nil
}
