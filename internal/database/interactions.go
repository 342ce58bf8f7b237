package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/benvon/habitflow/internal/models"
	"github.com/google/uuid"
)

// InteractionRepository handles the append-only notification interaction log
type InteractionRepository struct {
	db *DB
}

// NewInteractionRepository creates a new interaction repository
func NewInteractionRepository(db *DB) *InteractionRepository {
	return &InteractionRepository{db: db}
}

// Create appends an interaction record
func (r *InteractionRepository) Create(ctx context.Context, interaction *models.NotificationInteraction) error {
	query := `
		INSERT INTO notification_interactions (id, user_id, notification_id, task_id, interaction_type,
			response_latency_minutes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`

	var taskID any
	if interaction.TaskID != nil {
		taskID = *interaction.TaskID
	}

	var latency sql.NullInt64
	if interaction.ResponseLatencyMinutes != nil {
		latency = sql.NullInt64{Int64: int64(*interaction.ResponseLatencyMinutes), Valid: true}
	}

	err := r.db.QueryRowContext(ctx, query,
		interaction.ID,
		interaction.UserID,
		interaction.NotificationID,
		taskID,
		interaction.InteractionType,
		latency,
		time.Now(),
	).Scan(&interaction.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create interaction: %w", err)
	}

	return nil
}

// ListByUserSince retrieves a user's interactions on or after the given instant
func (r *InteractionRepository) ListByUserSince(ctx context.Context, userID uuid.UUID, since time.Time) ([]*models.NotificationInteraction, error) {
	query := `
		SELECT id, user_id, notification_id, task_id, interaction_type, response_latency_minutes, created_at
		FROM notification_interactions
		WHERE user_id = $1 AND created_at >= $2
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query interactions: %w", err)
	}
	defer rows.Close()

	var interactions []*models.NotificationInteraction
	for rows.Next() {
		i := &models.NotificationInteraction{}
		var taskID sql.NullString
		var latency sql.NullInt64

		err := rows.Scan(
			&i.ID,
			&i.UserID,
			&i.NotificationID,
			&taskID,
			&i.InteractionType,
			&latency,
			&i.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan interaction: %w", err)
		}

		if taskID.Valid {
			id, err := uuid.Parse(taskID.String)
			if err == nil {
				i.TaskID = &id
			}
		}
		if latency.Valid {
			l := int(latency.Int64)
			i.ResponseLatencyMinutes = &l
		}

		interactions = append(interactions, i)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating interactions: %w", err)
	}

	return interactions, nil
}
