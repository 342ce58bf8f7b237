package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // postgres driver
)

// DB wraps the sql.DB connection pool
type DB struct {
	*sql.DB
}

// New opens a Postgres connection pool and ensures the schema exists
func New(databaseURL string) (*DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			_ = closeErr
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	wrapped := &DB{DB: db}
	if err := wrapped.migrate(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			_ = closeErr
		}
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return wrapped, nil
}

// migrate creates tables if they do not exist yet
func (db *DB) migrate() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS tasks (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL,
			title TEXT NOT NULL,
			notes TEXT NOT NULL DEFAULT '',
			is_habit BOOLEAN NOT NULL DEFAULT false,
			due_date TIMESTAMPTZ,
			status TEXT NOT NULL DEFAULT 'pending',
			metadata JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			completed_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_user ON tasks (user_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS task_completions (
			id UUID PRIMARY KEY,
			task_id UUID NOT NULL UNIQUE,
			completed_by UUID NOT NULL,
			completed_at TIMESTAMPTZ NOT NULL,
			completion_type TEXT NOT NULL,
			notes TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_completions_user_time ON task_completions (completed_by, completed_at)`,
		`CREATE TABLE IF NOT EXISTS daily_activity (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL,
			activity_date DATE NOT NULL,
			tasks_completed INT NOT NULL DEFAULT 0,
			tasks_created INT NOT NULL DEFAULT 0,
			total_tasks INT NOT NULL DEFAULT 0,
			completion_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
			active_time_minutes INT NOT NULL DEFAULT 0,
			habit_completions INT NOT NULL DEFAULT 0,
			streak_days INT NOT NULL DEFAULT 0,
			goals_achieved INT NOT NULL DEFAULT 0,
			metadata JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			UNIQUE (user_id, activity_date)
		)`,
		`CREATE TABLE IF NOT EXISTS user_streaks (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL,
			streak_type TEXT NOT NULL,
			current_count INT NOT NULL DEFAULT 0,
			longest_count INT NOT NULL DEFAULT 0,
			last_activity_date DATE,
			streak_start_date DATE,
			is_active BOOLEAN NOT NULL DEFAULT false,
			available_protections INT NOT NULL DEFAULT 0,
			used_protections INT NOT NULL DEFAULT 0,
			protection_reset_date TIMESTAMPTZ NOT NULL,
			is_protected_today BOOLEAN NOT NULL DEFAULT false,
			metadata JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			UNIQUE (user_id, streak_type)
		)`,
		`CREATE TABLE IF NOT EXISTS streak_protections (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL,
			streak_id UUID NOT NULL,
			task_id UUID,
			protection_date DATE NOT NULL,
			protection_type TEXT NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			protections_remaining INT NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_protections_streak ON streak_protections (streak_id, protection_date)`,
		`CREATE TABLE IF NOT EXISTS notification_profiles (
			user_id UUID PRIMARY KEY,
			most_active_hours JSONB NOT NULL DEFAULT '[]',
			preferred_days JSONB NOT NULL DEFAULT '[]',
			average_response_minutes DOUBLE PRECISION NOT NULL DEFAULT 0,
			completion_patterns JSONB NOT NULL DEFAULT '[]',
			last_analyzed TIMESTAMPTZ NOT NULL,
			total_completions INT NOT NULL DEFAULT 0,
			hour_effectiveness JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS personalization_settings (
			user_id UUID PRIMARY KEY,
			smart_enabled BOOLEAN NOT NULL DEFAULT true,
			min_hour INT NOT NULL DEFAULT 8,
			max_hour INT NOT NULL DEFAULT 22,
			excluded_days JSONB NOT NULL DEFAULT '[]',
			adaptation_sensitivity TEXT NOT NULL DEFAULT 'medium',
			learning_enabled BOOLEAN NOT NULL DEFAULT true,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS reminders (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL,
			task_id UUID NOT NULL,
			hour INT NOT NULL,
			minute INT NOT NULL,
			day_of_week INT,
			recurrence TEXT NOT NULL DEFAULT 'daily',
			enabled BOOLEAN NOT NULL DEFAULT true,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reminders_user ON reminders (user_id, enabled)`,
		`CREATE TABLE IF NOT EXISTS notification_interactions (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL,
			notification_id TEXT NOT NULL DEFAULT '',
			task_id UUID,
			interaction_type TEXT NOT NULL,
			response_latency_minutes INT,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_interactions_user_time ON notification_interactions (user_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS job_runs (
			user_id UUID NOT NULL,
			operation TEXT NOT NULL,
			run_date DATE NOT NULL,
			ran_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (user_id, operation, run_date)
		)`,
		`CREATE TABLE IF NOT EXISTS engine_config (
			config_key TEXT PRIMARY KEY,
			protection_quota INT NOT NULL,
			evening_cutoff_hour INT NOT NULL,
			grace_days INT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS ratelimit_config (
			config_key TEXT PRIMARY KEY,
			rate TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}

	return nil
}
