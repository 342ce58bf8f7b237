package models

// Metadata holds opaque extra attributes attached to tasks, streaks, activity
// rows and protection records. It round-trips through JSONB unchanged.
type Metadata map[string]any
