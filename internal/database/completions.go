package database

import (
	"context"
	"fmt"
	"time"

	"github.com/benvon/habitflow/internal/models"
	"github.com/google/uuid"
)

// CompletionRepository handles task completion database operations
type CompletionRepository struct {
	db *DB
}

// NewCompletionRepository creates a new completion repository
func NewCompletionRepository(db *DB) *CompletionRepository {
	return &CompletionRepository{db: db}
}

// Create records a task completion. The task_id unique constraint guarantees
// at most one live completion record per task.
func (r *CompletionRepository) Create(ctx context.Context, completion *models.TaskCompletion) error {
	query := `
		INSERT INTO task_completions (id, task_id, completed_by, completed_at, completion_type, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`

	err := r.db.QueryRowContext(ctx, query,
		completion.ID,
		completion.TaskID,
		completion.CompletedBy,
		completion.CompletedAt,
		completion.CompletionType,
		completion.Notes,
		time.Now(),
	).Scan(&completion.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create completion: %w", err)
	}

	return nil
}

// DeleteByTaskID removes the live completion record for a task. It is a
// no-op when no record exists.
func (r *CompletionRepository) DeleteByTaskID(ctx context.Context, taskID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM task_completions WHERE task_id = $1`, taskID)
	if err != nil {
		return fmt.Errorf("failed to delete completion: %w", err)
	}
	return nil
}

// ListByUserSince retrieves a user's completions on or after the given instant
func (r *CompletionRepository) ListByUserSince(ctx context.Context, userID uuid.UUID, since time.Time) ([]*models.TaskCompletion, error) {
	query := `
		SELECT id, task_id, completed_by, completed_at, completion_type, notes, created_at
		FROM task_completions
		WHERE completed_by = $1 AND completed_at >= $2
		ORDER BY completed_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query completions: %w", err)
	}
	defer rows.Close()

	var completions []*models.TaskCompletion
	for rows.Next() {
		c := &models.TaskCompletion{}
		err := rows.Scan(
			&c.ID,
			&c.TaskID,
			&c.CompletedBy,
			&c.CompletedAt,
			&c.CompletionType,
			&c.Notes,
			&c.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan completion: %w", err)
		}
		completions = append(completions, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating completions: %w", err)
	}

	return completions, nil
}

// CountBetween counts a user's completions within [from, to)
func (r *CompletionRepository) CountBetween(ctx context.Context, userID uuid.UUID, from, to time.Time) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM task_completions WHERE completed_by = $1 AND completed_at >= $2 AND completed_at < $3`
	if err := r.db.QueryRowContext(ctx, query, userID, from, to).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count completions: %w", err)
	}
	return count, nil
}

// CountHabitBetween counts a user's habit-type completions within [from, to)
func (r *CompletionRepository) CountHabitBetween(ctx context.Context, userID uuid.UUID, from, to time.Time) (int, error) {
	var count int
	query := `
		SELECT COUNT(*) FROM task_completions
		WHERE completed_by = $1 AND completed_at >= $2 AND completed_at < $3 AND completion_type = $4
	`
	if err := r.db.QueryRowContext(ctx, query, userID, from, to, models.CompletionTypeHabit).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count habit completions: %w", err)
	}
	return count, nil
}
