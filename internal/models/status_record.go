package models

import "time"

// StatusRecord is the persisted current status of a trip on the read side.
type StatusRecord struct {
	TripStatus

	PickupAt  *time.Time `json:"pickup_at,omitempty"`
	EndReason *string    `json:"end_reason,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// StatusEvent is one entry of a trip's status history.
type StatusEvent struct {
	ID         uint64     `json:"id"`
	Reference  string     `json:"reference"`
	Kind       string     `json:"kind"`
	Status     StatusCode `json:"status,omitempty"`
	StatusRaw  string     `json:"status_raw,omitempty"`
	ETAMinutes *int       `json:"eta_minutes,omitempty"`
	EndReason  *string    `json:"end_reason,omitempty"`
	ObservedAt time.Time  `json:"observed_at"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Виды записей в истории статусов.
const (
	EventKindStatusChanged = "status_changed"
	EventKindSessionEnded  = "session_ended"
)
