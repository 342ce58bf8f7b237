package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/benvon/habitflow/internal/models"
	"github.com/google/uuid"
)

// ReminderRepository handles reminder database operations
type ReminderRepository struct {
	db *DB
}

// NewReminderRepository creates a new reminder repository
func NewReminderRepository(db *DB) *ReminderRepository {
	return &ReminderRepository{db: db}
}

const reminderColumns = `id, user_id, task_id, hour, minute, day_of_week, recurrence, enabled, created_at, updated_at`

// Create creates a new reminder
func (r *ReminderRepository) Create(ctx context.Context, reminder *models.Reminder) error {
	query := `
		INSERT INTO reminders (id, user_id, task_id, hour, minute, day_of_week, recurrence, enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		RETURNING created_at, updated_at
	`

	var dayOfWeek sql.NullInt64
	if reminder.DayOfWeek != nil {
		dayOfWeek = sql.NullInt64{Int64: int64(*reminder.DayOfWeek), Valid: true}
	}

	err := r.db.QueryRowContext(ctx, query,
		reminder.ID,
		reminder.UserID,
		reminder.TaskID,
		reminder.Hour,
		reminder.Minute,
		dayOfWeek,
		reminder.Recurrence,
		reminder.Enabled,
		time.Now(),
	).Scan(&reminder.CreatedAt, &reminder.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create reminder: %w", err)
	}

	return nil
}

// GetByID retrieves a reminder by ID, or nil if none exists
func (r *ReminderRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Reminder, error) {
	query := `SELECT ` + reminderColumns + ` FROM reminders WHERE id = $1`
	reminder, err := scanReminder(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reminder: %w", err)
	}
	return reminder, nil
}

// ListEnabledByUser retrieves a user's enabled reminders
func (r *ReminderRepository) ListEnabledByUser(ctx context.Context, userID uuid.UUID) ([]*models.Reminder, error) {
	query := `SELECT ` + reminderColumns + ` FROM reminders WHERE user_id = $1 AND enabled = true ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query reminders: %w", err)
	}
	defer rows.Close()

	var reminders []*models.Reminder
	for rows.Next() {
		reminder, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reminder: %w", err)
		}
		reminders = append(reminders, reminder)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reminders: %w", err)
	}

	return reminders, nil
}

// UpdateTiming moves a reminder to a new hour/minute
func (r *ReminderRepository) UpdateTiming(ctx context.Context, id uuid.UUID, hour, minute int) error {
	query := `UPDATE reminders SET hour = $2, minute = $3, updated_at = $4 WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, hour, minute, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update reminder timing: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("reminder not found")
	}

	return nil
}

// Delete deletes a reminder by ID
func (r *ReminderRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM reminders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete reminder: %w", err)
	}
	return nil
}

// DeleteByTaskID deletes all reminders for a task
func (r *ReminderRepository) DeleteByTaskID(ctx context.Context, taskID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM reminders WHERE task_id = $1`, taskID)
	if err != nil {
		return fmt.Errorf("failed to delete reminders: %w", err)
	}
	return nil
}

func scanReminder(row rowScanner) (*models.Reminder, error) {
	reminder := &models.Reminder{}
	var dayOfWeek sql.NullInt64

	err := row.Scan(
		&reminder.ID,
		&reminder.UserID,
		&reminder.TaskID,
		&reminder.Hour,
		&reminder.Minute,
		&dayOfWeek,
		&reminder.Recurrence,
		&reminder.Enabled,
		&reminder.CreatedAt,
		&reminder.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if dayOfWeek.Valid {
		d := int(dayOfWeek.Int64)
		reminder.DayOfWeek = &d
	}

	return reminder, nil
}
