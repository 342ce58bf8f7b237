package models

import (
	"time"

	"github.com/google/uuid"
)

// CompletionType represents how a task was completed
type CompletionType string

const (
	CompletionTypeManual    CompletionType = "manual"
	CompletionTypeAutomatic CompletionType = "automatic"
	CompletionTypeHabit     CompletionType = "habit"
)

// TaskCompletion records a task being completed. There is at most one live
// completion record per task; uncompleting a task deletes the record.
type TaskCompletion struct {
	ID             uuid.UUID      `json:"id"`
	TaskID         uuid.UUID      `json:"task_id"`
	CompletedBy    uuid.UUID      `json:"completed_by"`
	CompletedAt    time.Time      `json:"completed_at"`
	CompletionType CompletionType `json:"completion_type"`
	Notes          string         `json:"notes,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}
