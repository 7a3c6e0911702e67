package activity

import "time"

// Record is an immutable, append-only activity log entry for a property.
//
// Invariants:
// - Records are never updated or deleted.
// - property_id is required on every record.
// - Duration is meaningful only for completed calls; a missed or declined
//   call never carries one.
type Record struct {
	ID         string `json:"id" db:"id"`
	PropertyID string `json:"property_id" db:"property_id"`

	Type RecordType `json:"type" db:"type"`

	// CallerLabel is the visitor display label at ring time.
	CallerLabel string `json:"caller_label,omitempty" db:"caller_label"`
	// RoomName ties the record to the conferencing room of the attempt.
	RoomName string `json:"room_name,omitempty" db:"room_name"`

	// DurationSeconds is set only for RecordCallCompleted.
	DurationSeconds int `json:"duration_seconds,omitempty" db:"duration_seconds"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type RecordType string

const (
	RecordRing          RecordType = "ring"
	RecordCallCompleted RecordType = "call_completed"
	RecordCallMissed    RecordType = "call_missed"
	RecordCallDeclined  RecordType = "call_declined"
)
