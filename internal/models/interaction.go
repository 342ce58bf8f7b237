package models

import (
	"time"

	"github.com/google/uuid"
)

// InteractionType represents how a user responded to a notification
type InteractionType string

const (
	InteractionTypeOpened    InteractionType = "opened"
	InteractionTypeDismissed InteractionType = "dismissed"
	InteractionTypeSnoozed   InteractionType = "snoozed"
	InteractionTypeCompleted InteractionType = "completed"
)

// NotificationInteraction is an append-only log entry recording how a user
// reacted to a delivered notification.
type NotificationInteraction struct {
	ID                     uuid.UUID       `json:"id"`
	UserID                 uuid.UUID       `json:"user_id"`
	NotificationID         string          `json:"notification_id"`
	TaskID                 *uuid.UUID      `json:"task_id,omitempty"`
	InteractionType        InteractionType `json:"interaction_type"`
	ResponseLatencyMinutes *int            `json:"response_latency_minutes,omitempty"`
	CreatedAt              time.Time       `json:"created_at"`
}
