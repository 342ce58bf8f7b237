package models

import (
	"time"

	"github.com/google/uuid"
)

// ProfileStaleAfter is how long a notification profile stays fresh. Reads of
// a profile older than this trigger synchronous recomputation.
const ProfileStaleAfter = 7 * 24 * time.Hour

// CompletionPattern is a (hour, weekday) bucket of historical completion
// frequency.
type CompletionPattern struct {
	Hour        int     `json:"hour"`
	DayOfWeek   int     `json:"day_of_week"` // time.Weekday int, Sunday=0
	Count       int     `json:"count"`
	SuccessRate float64 `json:"success_rate"`
}

// NotificationProfile is a derived, cached view of a user's historical
// completion behavior. It is rebuilt in full from completion history and is
// not canonical data. TotalCompletions == 0 marks a cold-start default
// profile rather than a learned one.
type NotificationProfile struct {
	UserID                 uuid.UUID           `json:"user_id"`
	MostActiveHours        []int               `json:"most_active_hours"` // top 3, rank order
	PreferredDays          []int               `json:"preferred_days"`    // top 4 weekdays
	AverageResponseMinutes float64             `json:"average_response_minutes"`
	CompletionPatterns     []CompletionPattern `json:"completion_patterns"`
	LastAnalyzed           time.Time           `json:"last_analyzed"`
	TotalCompletions       int                 `json:"total_completions"`
	HourEffectiveness      map[int]float64     `json:"hour_effectiveness"` // hour -> [0,1], peak = 1
	CreatedAt              time.Time           `json:"created_at"`
	UpdatedAt              time.Time           `json:"updated_at"`
}

// IsDefault reports whether this profile is the cold-start fallback rather
// than one learned from data.
func (p *NotificationProfile) IsDefault() bool {
	return p.TotalCompletions == 0
}

// IsStale reports whether the profile is older than the staleness TTL.
func (p *NotificationProfile) IsStale(now time.Time) bool {
	return now.Sub(p.LastAnalyzed) > ProfileStaleAfter
}
