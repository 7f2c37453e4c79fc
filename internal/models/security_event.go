package models

import "time"

// Defaults applied to accepted security events.
const (
	DefaultSeverity        = "medium"
	SecurityStatusActive   = "active"
	SecurityStatusResolved = "resolved"
	DefaultResolutionNotes = "Resolved by admin"
)

// SecurityEvent is one row of the security_events table. After creation the
// only permitted mutation is resolution, which sets status, resolved_at and
// resolution_notes.
type SecurityEvent struct {
	EventID         string     `json:"event_id"`
	SensorID        string     `json:"sensor_id"`
	EventType       string     `json:"event_type"`
	Description     string     `json:"description"`
	Severity        string     `json:"severity"`
	Status          string     `json:"status"`
	Duration        float64    `json:"duration"`
	CreatedAt       time.Time  `json:"created_at"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
	ResolutionNotes *string    `json:"resolution_notes,omitempty"`
}

// SecurityEventCandidate is the raw JSON shape accepted on the security
// topic, before validation and defaulting.
type SecurityEventCandidate struct {
	SensorID    string `json:"sensor_id"`
	EventType   string `json:"event_type"`
	Description string `json:"description"`
	Severity string `json:"severity"`
	Status   string `json:"status"`

	// Sensors report seconds and some send fractions; an integral type here
	// would reject the whole payload on a fractional value.
	Duration float64 `json:"duration"`
}
