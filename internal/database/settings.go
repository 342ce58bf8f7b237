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

// SettingsRepository handles personalization settings storage
type SettingsRepository struct {
	db *DB
}

// NewSettingsRepository creates a new settings repository
func NewSettingsRepository(db *DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// GetByUserID retrieves a user's settings, or nil if none exist
func (r *SettingsRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.PersonalizationSettings, error) {
	query := `
		SELECT user_id, smart_enabled, min_hour, max_hour, excluded_days, adaptation_sensitivity,
			learning_enabled, created_at, updated_at
		FROM personalization_settings
		WHERE user_id = $1
	`

	settings := &models.PersonalizationSettings{}
	var excludedJSON []byte

	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&settings.UserID,
		&settings.SmartEnabled,
		&settings.MinHour,
		&settings.MaxHour,
		&excludedJSON,
		&settings.Sensitivity,
		&settings.LearningEnabled,
		&settings.CreatedAt,
		&settings.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}

	if err := json.Unmarshal(excludedJSON, &settings.ExcludedDays); err != nil {
		return nil, fmt.Errorf("failed to unmarshal excluded_days: %w", err)
	}

	return settings, nil
}

// Upsert creates or updates a user's settings
func (r *SettingsRepository) Upsert(ctx context.Context, settings *models.PersonalizationSettings) error {
	query := `
		INSERT INTO personalization_settings (user_id, smart_enabled, min_hour, max_hour, excluded_days,
			adaptation_sensitivity, learning_enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		ON CONFLICT (user_id) DO UPDATE
		SET smart_enabled = EXCLUDED.smart_enabled,
		    min_hour = EXCLUDED.min_hour,
		    max_hour = EXCLUDED.max_hour,
		    excluded_days = EXCLUDED.excluded_days,
		    adaptation_sensitivity = EXCLUDED.adaptation_sensitivity,
		    learning_enabled = EXCLUDED.learning_enabled,
		    updated_at = EXCLUDED.updated_at
		RETURNING created_at, updated_at
	`

	excludedJSON, err := json.Marshal(settings.ExcludedDays)
	if err != nil {
		return fmt.Errorf("failed to marshal excluded_days: %w", err)
	}

	err = r.db.QueryRowContext(ctx, query,
		settings.UserID,
		settings.SmartEnabled,
		settings.MinHour,
		settings.MaxHour,
		excludedJSON,
		settings.Sensitivity,
		settings.LearningEnabled,
		time.Now(),
	).Scan(&settings.CreatedAt, &settings.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to upsert settings: %w", err)
	}

	return nil
}
