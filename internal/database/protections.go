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

// ProtectionRepository handles streak protection audit records
type ProtectionRepository struct {
	db *DB
}

// NewProtectionRepository creates a new protection repository
func NewProtectionRepository(db *DB) *ProtectionRepository {
	return &ProtectionRepository{db: db}
}

// ListByUser retrieves a user's protection history, newest first
func (r *ProtectionRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.StreakProtection, error) {
	query := `
		SELECT id, user_id, streak_id, task_id, protection_date, protection_type, reason,
			protections_remaining, metadata, created_at
		FROM streak_protections
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query protections: %w", err)
	}
	defer rows.Close()

	var protections []*models.StreakProtection
	for rows.Next() {
		p := &models.StreakProtection{}
		var metadataJSON []byte
		var taskID sql.NullString

		err := rows.Scan(
			&p.ID,
			&p.UserID,
			&p.StreakID,
			&taskID,
			&p.ProtectionDate,
			&p.ProtectionType,
			&p.Reason,
			&p.ProtectionsRemaining,
			&metadataJSON,
			&p.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan protection: %w", err)
		}

		if err := json.Unmarshal(metadataJSON, &p.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}

		if taskID.Valid {
			id, err := uuid.Parse(taskID.String)
			if err == nil {
				p.TaskID = &id
			}
		}

		protections = append(protections, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating protections: %w", err)
	}

	return protections, nil
}

// CountForStreakOnDay counts protections applied to a streak on a given day
func (r *ProtectionRepository) CountForStreakOnDay(ctx context.Context, streakID uuid.UUID, day time.Time) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM streak_protections WHERE streak_id = $1 AND protection_date = $2`
	if err := r.db.QueryRowContext(ctx, query, streakID, day).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count protections: %w", err)
	}
	return count, nil
}
