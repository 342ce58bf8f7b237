package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/benvon/habitflow/internal/models"
	"github.com/google/uuid"
)

// DailyActivityRepository handles daily activity database operations
type DailyActivityRepository struct {
	db *DB
}

// NewDailyActivityRepository creates a new daily activity repository
func NewDailyActivityRepository(db *DB) *DailyActivityRepository {
	return &DailyActivityRepository{db: db}
}

// Upsert creates or updates the activity row for (user, day)
func (r *DailyActivityRepository) Upsert(ctx context.Context, activity *models.DailyActivity) error {
	query := `
		INSERT INTO daily_activity (id, user_id, activity_date, tasks_completed, tasks_created, total_tasks,
			completion_rate, active_time_minutes, habit_completions, streak_days, goals_achieved, metadata,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)
		ON CONFLICT (user_id, activity_date) DO UPDATE
		SET tasks_completed = EXCLUDED.tasks_completed,
		    tasks_created = EXCLUDED.tasks_created,
		    total_tasks = EXCLUDED.total_tasks,
		    completion_rate = EXCLUDED.completion_rate,
		    active_time_minutes = EXCLUDED.active_time_minutes,
		    habit_completions = EXCLUDED.habit_completions,
		    streak_days = EXCLUDED.streak_days,
		    goals_achieved = EXCLUDED.goals_achieved,
		    metadata = EXCLUDED.metadata,
		    updated_at = EXCLUDED.updated_at
		RETURNING id, created_at, updated_at
	`

	metadataJSON, err := json.Marshal(activity.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	if activity.ID == uuid.Nil {
		activity.ID = uuid.New()
	}

	err = r.db.QueryRowContext(ctx, query,
		activity.ID,
		activity.UserID,
		activity.ActivityDate,
		activity.TasksCompleted,
		activity.TasksCreated,
		activity.TotalTasks,
		activity.CompletionRate,
		activity.ActiveTimeMinutes,
		activity.HabitCompletions,
		activity.StreakDays,
		activity.GoalsAchieved,
		metadataJSON,
		time.Now(),
	).Scan(&activity.ID, &activity.CreatedAt, &activity.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to upsert daily activity: %w", err)
	}

	return nil
}

// InsertIfAbsent creates a zero-valued activity row for the day unless one
// already exists. Used by the midnight reset so repeated invocations do not
// clobber a day's accumulated counts.
func (r *DailyActivityRepository) InsertIfAbsent(ctx context.Context, activity *models.DailyActivity) error {
	query := `
		INSERT INTO daily_activity (id, user_id, activity_date, tasks_completed, tasks_created, total_tasks,
			completion_rate, active_time_minutes, habit_completions, streak_days, goals_achieved, metadata,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)
		ON CONFLICT (user_id, activity_date) DO NOTHING
	`

	metadataJSON, err := json.Marshal(activity.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	if activity.ID == uuid.Nil {
		activity.ID = uuid.New()
	}

	_, err = r.db.ExecContext(ctx, query,
		activity.ID,
		activity.UserID,
		activity.ActivityDate,
		activity.TasksCompleted,
		activity.TasksCreated,
		activity.TotalTasks,
		activity.CompletionRate,
		activity.ActiveTimeMinutes,
		activity.HabitCompletions,
		activity.StreakDays,
		activity.GoalsAchieved,
		metadataJSON,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert daily activity: %w", err)
	}

	return nil
}

// GetByUserAndDate retrieves the activity row for (user, day), or nil if none
func (r *DailyActivityRepository) GetByUserAndDate(ctx context.Context, userID uuid.UUID, date time.Time) (*models.DailyActivity, error) {
	query := `
		SELECT id, user_id, activity_date, tasks_completed, tasks_created, total_tasks,
			completion_rate, active_time_minutes, habit_completions, streak_days, goals_achieved, metadata,
			created_at, updated_at
		FROM daily_activity
		WHERE user_id = $1 AND activity_date = $2
	`

	activity := &models.DailyActivity{}
	var metadataJSON []byte

	err := r.db.QueryRowContext(ctx, query, userID, date).Scan(
		&activity.ID,
		&activity.UserID,
		&activity.ActivityDate,
		&activity.TasksCompleted,
		&activity.TasksCreated,
		&activity.TotalTasks,
		&activity.CompletionRate,
		&activity.ActiveTimeMinutes,
		&activity.HabitCompletions,
		&activity.StreakDays,
		&activity.GoalsAchieved,
		&metadataJSON,
		&activity.CreatedAt,
		&activity.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get daily activity: %w", err)
	}

	if err := json.Unmarshal(metadataJSON, &activity.Metadata); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}

	return activity, nil
}
