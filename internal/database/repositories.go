package database

import (
	"context"
	"time"

	"github.com/benvon/habitflow/internal/models"
	"github.com/google/uuid"
)

// TaskRepositoryInterface defines the interface for task repository operations
// This interface enables better testability by allowing mock implementations
type TaskRepositoryInterface interface {
	Create(ctx context.Context, task *models.Task) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error)
	GetByUserIDPaginated(ctx context.Context, userID uuid.UUID, status *models.TaskStatus, page, pageSize int) ([]*models.Task, int, error)
	Update(ctx context.Context, task *models.Task) error
	Delete(ctx context.Context, id uuid.UUID) error
	CountCreatedBetween(ctx context.Context, userID uuid.UUID, from, to time.Time) (int, error)
	CountAsOf(ctx context.Context, userID uuid.UUID, asOf time.Time) (int, error)
}

// CompletionRepositoryInterface defines the interface for completion repository operations
type CompletionRepositoryInterface interface {
	Create(ctx context.Context, completion *models.TaskCompletion) error
	DeleteByTaskID(ctx context.Context, taskID uuid.UUID) error
	ListByUserSince(ctx context.Context, userID uuid.UUID, since time.Time) ([]*models.TaskCompletion, error)
	CountBetween(ctx context.Context, userID uuid.UUID, from, to time.Time) (int, error)
	CountHabitBetween(ctx context.Context, userID uuid.UUID, from, to time.Time) (int, error)
}

// DailyActivityRepositoryInterface defines the interface for daily activity repository operations
type DailyActivityRepositoryInterface interface {
	Upsert(ctx context.Context, activity *models.DailyActivity) error
	InsertIfAbsent(ctx context.Context, activity *models.DailyActivity) error
	GetByUserAndDate(ctx context.Context, userID uuid.UUID, date time.Time) (*models.DailyActivity, error)
}

// StreakRepositoryInterface defines the interface for streak repository operations
type StreakRepositoryInterface interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.UserStreak, error)
	GetByUserAndType(ctx context.Context, userID uuid.UUID, streakType models.StreakType) (*models.UserStreak, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.UserStreak, error)
	Create(ctx context.Context, streak *models.UserStreak) error
	Update(ctx context.Context, streak *models.UserStreak) error
	ApplyProtection(ctx context.Context, streak *models.UserStreak, protection *models.StreakProtection) (bool, error)
}

// ProfileRepositoryInterface defines the interface for notification profile storage
type ProfileRepositoryInterface interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.NotificationProfile, error)
	Upsert(ctx context.Context, profile *models.NotificationProfile) error
}

// SettingsRepositoryInterface defines the interface for personalization settings storage
type SettingsRepositoryInterface interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.PersonalizationSettings, error)
	Upsert(ctx context.Context, settings *models.PersonalizationSettings) error
}

// ReminderRepositoryInterface defines the interface for reminder repository operations
type ReminderRepositoryInterface interface {
	Create(ctx context.Context, reminder *models.Reminder) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Reminder, error)
	ListEnabledByUser(ctx context.Context, userID uuid.UUID) ([]*models.Reminder, error)
	UpdateTiming(ctx context.Context, id uuid.UUID, hour, minute int) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByTaskID(ctx context.Context, taskID uuid.UUID) error
}

// InteractionRepositoryInterface defines the interface for the interaction log
type InteractionRepositoryInterface interface {
	Create(ctx context.Context, interaction *models.NotificationInteraction) error
	ListByUserSince(ctx context.Context, userID uuid.UUID, since time.Time) ([]*models.NotificationInteraction, error)
}

// JobRunRepositoryInterface defines the interface for maintenance run bookkeeping
type JobRunRepositoryInterface interface {
	MarkRun(ctx context.Context, userID uuid.UUID, op models.MaintenanceOp, day time.Time) (bool, error)
	GetLastRun(ctx context.Context, userID uuid.UUID, op models.MaintenanceOp) (*models.JobRun, error)
	ListUsersDue(ctx context.Context, op models.MaintenanceOp, day time.Time) ([]uuid.UUID, error)
}

// ProtectionRepositoryInterface defines the interface for the protection audit log
type ProtectionRepositoryInterface interface {
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.StreakProtection, error)
	CountForStreakOnDay(ctx context.Context, streakID uuid.UUID, day time.Time) (int, error)
}

// Ensure concrete types implement the interfaces
var (
	_ TaskRepositoryInterface          = (*TaskRepository)(nil)
	_ ProtectionRepositoryInterface    = (*ProtectionRepository)(nil)
	_ CompletionRepositoryInterface    = (*CompletionRepository)(nil)
	_ DailyActivityRepositoryInterface = (*DailyActivityRepository)(nil)
	_ StreakRepositoryInterface        = (*StreakRepository)(nil)
	_ ProfileRepositoryInterface       = (*ProfileRepository)(nil)
	_ SettingsRepositoryInterface      = (*SettingsRepository)(nil)
	_ ReminderRepositoryInterface      = (*ReminderRepository)(nil)
	_ InteractionRepositoryInterface   = (*InteractionRepository)(nil)
	_ JobRunRepositoryInterface        = (*JobRunRepository)(nil)
)
