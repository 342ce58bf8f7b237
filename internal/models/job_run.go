package models

import (
	"time"

	"github.com/google/uuid"
)

// MaintenanceOp identifies a daily per-user maintenance operation
type MaintenanceOp string

const (
	MaintenanceOpMidnightReset MaintenanceOp = "midnight_reset"
	MaintenanceOpEveningSweep  MaintenanceOp = "evening_sweep"
)

// JobRun records that a maintenance operation ran for a user on a given day.
// It is the durable replacement for an in-memory "have I run today" flag, so
// process restarts cannot cause duplicate or missed runs.
type JobRun struct {
	UserID    uuid.UUID     `json:"user_id"`
	Operation MaintenanceOp `json:"operation"`
	RunDate   time.Time     `json:"run_date"` // day granularity
	RanAt     time.Time     `json:"ran_at"`
}
