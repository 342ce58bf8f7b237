package models

import "time"

// RatelimitConfig is a stored rate limit override, keyed by config name.
// Rate uses the limiter formatted syntax, e.g. "5-S" or "100-M".
type RatelimitConfig struct {
	ConfigKey string    `json:"config_key"`
	Rate      string    `json:"rate"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
