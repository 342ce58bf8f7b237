package models

import (
	"time"

	"github.com/google/uuid"
)

// StreakType identifies what kind of activity a streak tracks. It is an open
// string enum: daily_completion is the only type that drives logic today,
// other values are data placeholders.
type StreakType string

const (
	StreakTypeDailyCompletion StreakType = "daily_completion"
)

// UserStreak tracks consecutive days of qualifying activity for one
// (user, streak type) pair. LongestCount is a monotonic high-water mark and
// is always >= CurrentCount.
type UserStreak struct {
	ID                   uuid.UUID  `json:"id"`
	UserID               uuid.UUID  `json:"user_id"`
	StreakType           StreakType `json:"streak_type"`
	CurrentCount         int        `json:"current_count"`
	LongestCount         int        `json:"longest_count"`
	LastActivityDate     *time.Time `json:"last_activity_date,omitempty"` // day granularity
	StreakStartDate      *time.Time `json:"streak_start_date,omitempty"`
	IsActive             bool       `json:"is_active"`
	AvailableProtections int        `json:"available_protections"`
	UsedProtections      int        `json:"used_protections"`
	ProtectionResetDate  time.Time  `json:"protection_reset_date"` // first of next month, midnight
	IsProtectedToday     bool       `json:"is_protected_today"`
	Metadata             Metadata   `json:"metadata"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}
