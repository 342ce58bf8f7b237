package models

import (
	"time"

	"github.com/google/uuid"
)

// AdaptationSensitivity controls how far an optimized reminder may move from
// its original time.
type AdaptationSensitivity string

const (
	SensitivityLow    AdaptationSensitivity = "low"
	SensitivityMedium AdaptationSensitivity = "medium"
	SensitivityHigh   AdaptationSensitivity = "high"
)

// PersonalizationSettings is per-user notification personalization
// configuration. MinHour < MaxHour is enforced at the edit boundary, not as
// a stored invariant.
type PersonalizationSettings struct {
	UserID          uuid.UUID             `json:"user_id"`
	SmartEnabled    bool                  `json:"smart_enabled"`
	MinHour         int                   `json:"min_hour"`
	MaxHour         int                   `json:"max_hour"`
	ExcludedDays    []int                 `json:"excluded_days"` // weekday ints
	Sensitivity     AdaptationSensitivity `json:"adaptation_sensitivity"`
	LearningEnabled bool                  `json:"learning_enabled"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

// DefaultPersonalizationSettings returns the settings materialized on a
// user's first read: smart notifications on, 8-22 window, no excluded days,
// medium sensitivity, learning on.
func DefaultPersonalizationSettings(userID uuid.UUID) *PersonalizationSettings {
	return &PersonalizationSettings{
		UserID:          userID,
		SmartEnabled:    true,
		MinHour:         8,
		MaxHour:         22,
		ExcludedDays:    []int{},
		Sensitivity:     SensitivityMedium,
		LearningEnabled: true,
	}
}
