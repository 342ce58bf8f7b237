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

// StreakRepository handles user streak database operations
type StreakRepository struct {
	db *DB
}

// NewStreakRepository creates a new streak repository
func NewStreakRepository(db *DB) *StreakRepository {
	return &StreakRepository{db: db}
}

const streakColumns = `id, user_id, streak_type, current_count, longest_count, last_activity_date,
	streak_start_date, is_active, available_protections, used_protections, protection_reset_date,
	is_protected_today, metadata, created_at, updated_at`

// GetByID retrieves a streak by ID, or nil if none exists
func (r *StreakRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.UserStreak, error) {
	query := `SELECT ` + streakColumns + ` FROM user_streaks WHERE id = $1`
	streak, err := scanStreak(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get streak: %w", err)
	}
	return streak, nil
}

// GetByUserAndType retrieves the streak for (user, type), or nil if none exists
func (r *StreakRepository) GetByUserAndType(ctx context.Context, userID uuid.UUID, streakType models.StreakType) (*models.UserStreak, error) {
	query := `SELECT ` + streakColumns + ` FROM user_streaks WHERE user_id = $1 AND streak_type = $2`
	streak, err := scanStreak(r.db.QueryRowContext(ctx, query, userID, streakType))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get streak: %w", err)
	}
	return streak, nil
}

// ListByUser retrieves all streaks for a user
func (r *StreakRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.UserStreak, error) {
	query := `SELECT ` + streakColumns + ` FROM user_streaks WHERE user_id = $1 ORDER BY streak_type`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query streaks: %w", err)
	}
	defer rows.Close()

	var streaks []*models.UserStreak
	for rows.Next() {
		streak, err := scanStreak(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan streak: %w", err)
		}
		streaks = append(streaks, streak)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating streaks: %w", err)
	}

	return streaks, nil
}

// Create creates a new streak record
func (r *StreakRepository) Create(ctx context.Context, streak *models.UserStreak) error {
	query := `
		INSERT INTO user_streaks (id, user_id, streak_type, current_count, longest_count, last_activity_date,
			streak_start_date, is_active, available_protections, used_protections, protection_reset_date,
			is_protected_today, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14)
		RETURNING created_at, updated_at
	`

	metadataJSON, err := json.Marshal(streak.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	err = r.db.QueryRowContext(ctx, query,
		streak.ID,
		streak.UserID,
		streak.StreakType,
		streak.CurrentCount,
		streak.LongestCount,
		nullDay(streak.LastActivityDate),
		nullDay(streak.StreakStartDate),
		streak.IsActive,
		streak.AvailableProtections,
		streak.UsedProtections,
		streak.ProtectionResetDate,
		streak.IsProtectedToday,
		metadataJSON,
		time.Now(),
	).Scan(&streak.CreatedAt, &streak.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create streak: %w", err)
	}

	return nil
}

// Update updates an existing streak record
func (r *StreakRepository) Update(ctx context.Context, streak *models.UserStreak) error {
	query := `
		UPDATE user_streaks
		SET current_count = $2, longest_count = $3, last_activity_date = $4, streak_start_date = $5,
		    is_active = $6, available_protections = $7, used_protections = $8, protection_reset_date = $9,
		    is_protected_today = $10, metadata = $11, updated_at = $12
		WHERE id = $1
		RETURNING updated_at
	`

	metadataJSON, err := json.Marshal(streak.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	err = r.db.QueryRowContext(ctx, query,
		streak.ID,
		streak.CurrentCount,
		streak.LongestCount,
		nullDay(streak.LastActivityDate),
		nullDay(streak.StreakStartDate),
		streak.IsActive,
		streak.AvailableProtections,
		streak.UsedProtections,
		streak.ProtectionResetDate,
		streak.IsProtectedToday,
		metadataJSON,
		time.Now(),
	).Scan(&streak.UpdatedAt)

	if err == sql.ErrNoRows {
		return fmt.Errorf("streak not found")
	}
	if err != nil {
		return fmt.Errorf("failed to update streak: %w", err)
	}

	return nil
}

// ApplyProtection atomically spends one protection and writes the audit
// record in a single transaction. The guarded UPDATE is the mutual-exclusion
// boundary for concurrent protection attempts on the same streak: when two
// requests race, exactly one matches the WHERE clause. Returns false when
// the streak was not eligible (no budget, already protected, or concurrently
// protected).
func (r *StreakRepository) ApplyProtection(ctx context.Context, streak *models.UserStreak, protection *models.StreakProtection) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	updateQuery := `
		UPDATE user_streaks
		SET is_protected_today = true,
		    used_protections = used_protections + 1,
		    available_protections = available_protections - 1,
		    updated_at = $2
		WHERE id = $1 AND available_protections > 0 AND is_protected_today = false
		RETURNING available_protections, used_protections, updated_at
	`

	err = tx.QueryRowContext(ctx, updateQuery, streak.ID, time.Now()).Scan(
		&streak.AvailableProtections,
		&streak.UsedProtections,
		&streak.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to apply protection: %w", err)
	}
	streak.IsProtectedToday = true
	protection.ProtectionsRemaining = streak.AvailableProtections

	metadataJSON, err := json.Marshal(protection.Metadata)
	if err != nil {
		return false, fmt.Errorf("failed to marshal protection metadata: %w", err)
	}

	insertQuery := `
		INSERT INTO streak_protections (id, user_id, streak_id, task_id, protection_date, protection_type,
			reason, protections_remaining, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`

	var taskID any
	if protection.TaskID != nil {
		taskID = *protection.TaskID
	}

	err = tx.QueryRowContext(ctx, insertQuery,
		protection.ID,
		protection.UserID,
		protection.StreakID,
		taskID,
		protection.ProtectionDate,
		protection.ProtectionType,
		protection.Reason,
		protection.ProtectionsRemaining,
		metadataJSON,
		time.Now(),
	).Scan(&protection.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to create protection record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit protection: %w", err)
	}

	return true, nil
}

func scanStreak(row rowScanner) (*models.UserStreak, error) {
	streak := &models.UserStreak{}
	var metadataJSON []byte
	var lastActivity, streakStart sql.NullTime

	err := row.Scan(
		&streak.ID,
		&streak.UserID,
		&streak.StreakType,
		&streak.CurrentCount,
		&streak.LongestCount,
		&lastActivity,
		&streakStart,
		&streak.IsActive,
		&streak.AvailableProtections,
		&streak.UsedProtections,
		&streak.ProtectionResetDate,
		&streak.IsProtectedToday,
		&metadataJSON,
		&streak.CreatedAt,
		&streak.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(metadataJSON, &streak.Metadata); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}

	if lastActivity.Valid {
		streak.LastActivityDate = &lastActivity.Time
	}
	if streakStart.Valid {
		streak.StreakStartDate = &streakStart.Time
	}

	return streak, nil
}

func nullDay(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
