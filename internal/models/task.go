package models

import (
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the status of a task
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusCompleted TaskStatus = "completed"
)

// Task represents a single task or habit item
type Task struct {
	ID          uuid.UUID  `json:"id"`
	UserID      uuid.UUID  `json:"user_id"`
	Title       string     `json:"title"`
	Notes       string     `json:"notes,omitempty"`
	IsHabit     bool       `json:"is_habit"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Status      TaskStatus `json:"status"`
	Metadata    Metadata   `json:"metadata"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// IsCompleted reports whether the task is currently completed. Completion is
// derived from the task's own status, not from the existence of a completion
// record (the completion record is removed when a task is uncompleted).
func (t *Task) IsCompleted() bool {
	return t.Status == TaskStatusCompleted
}
