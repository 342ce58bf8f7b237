package models

import "time"

const (
	// DefaultProtectionQuota is the monthly streak protection budget per streak
	DefaultProtectionQuota = 3
	// DefaultEveningCutoffHour is the hour after which the evening sweep may run
	DefaultEveningCutoffHour = 18
	// DefaultGraceDays is how many missed days a streak survives before breaking
	DefaultGraceDays = 1
)

// EngineConfig holds operator-tunable streak engine configuration, stored in
// the database so it can be changed without a deploy.
type EngineConfig struct {
	ConfigKey         string    `json:"config_key"`
	ProtectionQuota   int       `json:"protection_quota"`
	EveningCutoffHour int       `json:"evening_cutoff_hour"`
	GraceDays         int       `json:"grace_days"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// DefaultEngineConfig returns the built-in defaults used when no row exists.
func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		ConfigKey:         "default",
		ProtectionQuota:   DefaultProtectionQuota,
		EveningCutoffHour: DefaultEveningCutoffHour,
		GraceDays:         DefaultGraceDays,
	}
}
