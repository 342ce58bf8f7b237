package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/benvon/habitflow/internal/models"
)

const defaultEngineConfigKey = "default"

// EngineConfigRepository handles streak engine configuration in the database.
type EngineConfigRepository struct {
	db *DB
}

// NewEngineConfigRepository creates a new engine config repository.
func NewEngineConfigRepository(db *DB) *EngineConfigRepository {
	return &EngineConfigRepository{db: db}
}

// Get retrieves the engine config, or nil if none has been stored.
func (r *EngineConfigRepository) Get(ctx context.Context) (*models.EngineConfig, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT config_key, protection_quota, evening_cutoff_hour, grace_days, created_at, updated_at
		FROM engine_config WHERE config_key = $1
	`, defaultEngineConfigKey)
	c := &models.EngineConfig{}
	err := row.Scan(&c.ConfigKey, &c.ProtectionQuota, &c.EveningCutoffHour, &c.GraceDays, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get engine config: %w", err)
	}
	return c, nil
}

// GetOrDefault retrieves the stored engine config, falling back to the
// built-in defaults when none has been stored.
func (r *EngineConfigRepository) GetOrDefault(ctx context.Context) (*models.EngineConfig, error) {
	c, err := r.Get(ctx)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return models.DefaultEngineConfig(), nil
	}
	return c, nil
}

// Set upserts the engine config.
func (r *EngineConfigRepository) Set(ctx context.Context, c *models.EngineConfig) error {
	if c.ProtectionQuota < 0 {
		return fmt.Errorf("protection quota cannot be negative")
	}
	if c.EveningCutoffHour < 0 || c.EveningCutoffHour > 23 {
		return fmt.Errorf("evening cutoff hour must be 0-23")
	}
	if c.GraceDays < 0 {
		return fmt.Errorf("grace days cannot be negative")
	}
	now := time.Now()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO engine_config (config_key, protection_quota, evening_cutoff_hour, grace_days, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (config_key) DO UPDATE SET
			protection_quota = EXCLUDED.protection_quota,
			evening_cutoff_hour = EXCLUDED.evening_cutoff_hour,
			grace_days = EXCLUDED.grace_days,
			updated_at = EXCLUDED.updated_at
	`, defaultEngineConfigKey, c.ProtectionQuota, c.EveningCutoffHour, c.GraceDays, now)
	if err != nil {
		return fmt.Errorf("set engine config: %w", err)
	}
	return nil
}
