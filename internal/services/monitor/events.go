package monitor

import (
	"time"

	"github.com/BearBump/TripWatch/internal/models"
)

type EventKind string

const (
	EventStatusChanged EventKind = "status_changed"
	EventSessionEnded  EventKind = "session_ended"
)

// EndReason says why a session ended.
type EndReason string

const (
	ReasonTerminal     EndReason = "terminal"
	ReasonExpired      EndReason = "expired"
	ReasonStopped      EndReason = "stopped"
	ReasonUnauthorized EndReason = "unauthorized"
	ReasonDecodeFailed EndReason = "decode_failed"
)

// Event is published on every successful fetch and on every session end.
// Status is set for status_changed and for self-terminations that follow a fetch.
type Event struct {
	Kind      EventKind          `json:"kind"`
	Reference string             `json:"reference"`
	Trip      models.Trip        `json:"trip"`
	Status    *models.TripStatus `json:"status,omitempty"`
	Reason    EndReason          `json:"reason,omitempty"`
	At        time.Time          `json:"at"`
}
