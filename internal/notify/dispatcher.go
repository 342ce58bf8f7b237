// Package notify delivers reminder schedule changes to the notification
// backend. The core treats reminder IDs as opaque handles; the dispatcher
// owns how and where a reminder is actually queued for delivery.
package notify

import (
	"context"
	"time"

	"github.com/benvon/habitflow/internal/models"
	"github.com/google/uuid"
)

// Timing is a reminder's delivery schedule as handed to the dispatcher.
type Timing struct {
	Hour       int               `json:"hour"`
	Minute     int               `json:"minute"`
	DayOfWeek  *int              `json:"day_of_week,omitempty"`
	Recurrence models.Recurrence `json:"recurrence"`
}

// Dispatcher schedules, reschedules, and cancels reminders by ID. State
// changes in the core are never rolled back on a dispatch failure; callers
// log and move on.
type Dispatcher interface {
	Schedule(ctx context.Context, reminder *models.Reminder) error
	Update(ctx context.Context, reminderID uuid.UUID, timing Timing) error
	Cancel(ctx context.Context, reminderID uuid.UUID) error
	// Notify sends a one-off informational notification, used for streak
	// at-risk warnings.
	Notify(ctx context.Context, userID uuid.UUID, kind, message string) error
}

// NextFireTime computes the first instant at or after now that a timing
// fires. Weekly timings without a day of week behave as daily.
func NextFireTime(now time.Time, timing Timing) time.Time {
	fire := time.Date(now.Year(), now.Month(), now.Day(), timing.Hour, timing.Minute, 0, 0, now.Location())

	if timing.Recurrence == models.RecurrenceWeekly && timing.DayOfWeek != nil {
		target := time.Weekday(*timing.DayOfWeek)
		for fire.Weekday() != target || fire.Before(now) {
			fire = fire.AddDate(0, 0, 1)
		}
		return fire
	}

	if fire.Before(now) {
		fire = fire.AddDate(0, 0, 1)
	}
	return fire
}
