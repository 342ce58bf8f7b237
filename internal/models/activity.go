package models

import (
	"time"

	"github.com/google/uuid"
)

// DailyActivity is one row per (user, calendar day) summarizing that day's
// activity. Rows are upserted keyed on (user_id, activity_date) and never
// deleted.
type DailyActivity struct {
	ID                uuid.UUID `json:"id"`
	UserID            uuid.UUID `json:"user_id"`
	ActivityDate      time.Time `json:"activity_date"` // normalized to local midnight
	TasksCompleted    int       `json:"tasks_completed"`
	TasksCreated      int       `json:"tasks_created"`
	TotalTasks        int       `json:"total_tasks"`
	CompletionRate    float64   `json:"completion_rate"` // 0-100, derived
	ActiveTimeMinutes int       `json:"active_time_minutes"`
	HabitCompletions  int       `json:"habit_completions"`
	StreakDays        int       `json:"streak_days"` // snapshot of current streak
	GoalsAchieved     int       `json:"goals_achieved"`
	Metadata          Metadata  `json:"metadata"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}
