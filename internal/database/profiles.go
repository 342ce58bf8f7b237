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

// ProfileRepository handles notification profile storage. Profiles are a
// derived cache keyed by user, rebuilt in full on every analysis.
type ProfileRepository struct {
	db *DB
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// GetByUserID retrieves a user's profile, or nil if none exists
func (r *ProfileRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.NotificationProfile, error) {
	query := `
		SELECT user_id, most_active_hours, preferred_days, average_response_minutes, completion_patterns,
			last_analyzed, total_completions, hour_effectiveness, created_at, updated_at
		FROM notification_profiles
		WHERE user_id = $1
	`

	profile := &models.NotificationProfile{}
	var hoursJSON, daysJSON, patternsJSON, effectivenessJSON []byte

	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&profile.UserID,
		&hoursJSON,
		&daysJSON,
		&profile.AverageResponseMinutes,
		&patternsJSON,
		&profile.LastAnalyzed,
		&profile.TotalCompletions,
		&effectivenessJSON,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	if err := json.Unmarshal(hoursJSON, &profile.MostActiveHours); err != nil {
		return nil, fmt.Errorf("failed to unmarshal most_active_hours: %w", err)
	}
	if err := json.Unmarshal(daysJSON, &profile.PreferredDays); err != nil {
		return nil, fmt.Errorf("failed to unmarshal preferred_days: %w", err)
	}
	if err := json.Unmarshal(patternsJSON, &profile.CompletionPatterns); err != nil {
		return nil, fmt.Errorf("failed to unmarshal completion_patterns: %w", err)
	}
	if err := json.Unmarshal(effectivenessJSON, &profile.HourEffectiveness); err != nil {
		return nil, fmt.Errorf("failed to unmarshal hour_effectiveness: %w", err)
	}

	return profile, nil
}

// Upsert overwrites the profile for a user
func (r *ProfileRepository) Upsert(ctx context.Context, profile *models.NotificationProfile) error {
	query := `
		INSERT INTO notification_profiles (user_id, most_active_hours, preferred_days, average_response_minutes,
			completion_patterns, last_analyzed, total_completions, hour_effectiveness, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		ON CONFLICT (user_id) DO UPDATE
		SET most_active_hours = EXCLUDED.most_active_hours,
		    preferred_days = EXCLUDED.preferred_days,
		    average_response_minutes = EXCLUDED.average_response_minutes,
		    completion_patterns = EXCLUDED.completion_patterns,
		    last_analyzed = EXCLUDED.last_analyzed,
		    total_completions = EXCLUDED.total_completions,
		    hour_effectiveness = EXCLUDED.hour_effectiveness,
		    updated_at = EXCLUDED.updated_at
		RETURNING created_at, updated_at
	`

	hoursJSON, err := json.Marshal(profile.MostActiveHours)
	if err != nil {
		return fmt.Errorf("failed to marshal most_active_hours: %w", err)
	}
	daysJSON, err := json.Marshal(profile.PreferredDays)
	if err != nil {
		return fmt.Errorf("failed to marshal preferred_days: %w", err)
	}
	patternsJSON, err := json.Marshal(profile.CompletionPatterns)
	if err != nil {
		return fmt.Errorf("failed to marshal completion_patterns: %w", err)
	}
	effectivenessJSON, err := json.Marshal(profile.HourEffectiveness)
	if err != nil {
		return fmt.Errorf("failed to marshal hour_effectiveness: %w", err)
	}

	err = r.db.QueryRowContext(ctx, query,
		profile.UserID,
		hoursJSON,
		daysJSON,
		profile.AverageResponseMinutes,
		patternsJSON,
		profile.LastAnalyzed,
		profile.TotalCompletions,
		effectivenessJSON,
		time.Now(),
	).Scan(&profile.CreatedAt, &profile.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}

	return nil
}
