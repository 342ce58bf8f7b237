package models

import (
	"time"

	"github.com/google/uuid"
)

// ProtectionType represents how a streak protection was applied
type ProtectionType string

const (
	ProtectionTypeAuto    ProtectionType = "auto"
	ProtectionTypeManual  ProtectionType = "manual"
	ProtectionTypePremium ProtectionType = "premium"
)

// StreakProtection is an immutable audit record created exactly once per
// successful protection application. It is never mutated.
type StreakProtection struct {
	ID                   uuid.UUID      `json:"id"`
	UserID               uuid.UUID      `json:"user_id"`
	StreakID             uuid.UUID      `json:"streak_id"`
	TaskID               *uuid.UUID     `json:"task_id,omitempty"`
	ProtectionDate       time.Time      `json:"protection_date"`
	ProtectionType       ProtectionType `json:"protection_type"`
	Reason               string         `json:"reason"`
	ProtectionsRemaining int            `json:"protections_remaining"` // budget after this apply
	Metadata             Metadata       `json:"metadata"`              // pre-protection streak snapshot
	CreatedAt            time.Time      `json:"created_at"`
}
