package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/benvon/habitflow/internal/models"
)

// The API currently uses a single shared limit row.
const ratelimitConfigKey = "default"

// RatelimitConfigRepository stores the API rate limit in Postgres so it
// can be changed without a redeploy.
type RatelimitConfigRepository struct {
	db *DB
}

func NewRatelimitConfigRepository(db *DB) *RatelimitConfigRepository {
	return &RatelimitConfigRepository{db: db}
}

// Get returns the stored rate limit, or nil when none has been set yet.
func (r *RatelimitConfigRepository) Get(ctx context.Context) (*models.RatelimitConfig, error) {
	const query = `
		SELECT config_key, rate, created_at, updated_at
		FROM ratelimit_config WHERE config_key = $1`

	var c models.RatelimitConfig
	err := r.db.QueryRowContext(ctx, query, ratelimitConfigKey).
		Scan(&c.ConfigKey, &c.Rate, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get ratelimit config: %w", err)
	}
	return &c, nil
}

// Set upserts the rate limit. Rate uses the limiter formatted syntax,
// e.g. "5-S" or "100-M".
func (r *RatelimitConfigRepository) Set(ctx context.Context, c *models.RatelimitConfig) error {
	rate := strings.TrimSpace(c.Rate)
	if rate == "" {
		return fmt.Errorf("rate cannot be empty")
	}

	const query = `
		INSERT INTO ratelimit_config (config_key, rate, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (config_key) DO UPDATE SET
			rate = EXCLUDED.rate,
			updated_at = EXCLUDED.updated_at`

	now := time.Now()
	if _, err := r.db.ExecContext(ctx, query, ratelimitConfigKey, rate, now, now); err != nil {
		return fmt.Errorf("set ratelimit config: %w", err)
	}
	return nil
}
