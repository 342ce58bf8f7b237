package models

import (
	"time"

	"github.com/google/uuid"
)

// Recurrence represents how often a reminder fires
type Recurrence string

const (
	RecurrenceDaily  Recurrence = "daily"
	RecurrenceWeekly Recurrence = "weekly"
	RecurrenceOnce   Recurrence = "once"
)

// Reminder is a scheduled notification for a task. Hour/Minute hold the
// currently scheduled timing, which the reoptimization pass may move.
type Reminder struct {
	ID         uuid.UUID  `json:"id"`
	UserID     uuid.UUID  `json:"user_id"`
	TaskID     uuid.UUID  `json:"task_id"`
	Hour       int        `json:"hour"`
	Minute     int        `json:"minute"`
	DayOfWeek  *int       `json:"day_of_week,omitempty"` // weekly reminders only
	Recurrence Recurrence `json:"recurrence"`
	Enabled    bool       `json:"enabled"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
