package messages

import (
	"time"

	"github.com/BearBump/TripWatch/internal/models"
)

const (
	KindStatusChanged = models.EventKindStatusChanged
	KindSessionEnded  = models.EventKindSessionEnded
)

// TripStatusChanged is published to the trip status topic, keyed by trip reference.
type TripStatusChanged struct {
	EventID   string    `json:"event_id"`
	Kind      string    `json:"kind"`
	Reference string    `json:"reference"`
	At        time.Time `json:"at"`

	PickupAt *time.Time `json:"pickup_at,omitempty"`

	Status    models.StatusCode `json:"status,omitempty"`
	StatusRaw string            `json:"status_raw,omitempty"`
	Driver    *models.Driver    `json:"driver,omitempty"`
	Vehicle   *models.Vehicle   `json:"vehicle,omitempty"`
	ETA       *models.ETA       `json:"eta,omitempty"`
	Location  *models.Location  `json:"location,omitempty"`

	// EndReason is set for session_ended.
	EndReason string `json:"end_reason,omitempty"`
}

// TripStatus returns the observation carried by a status_changed message.
func (m TripStatusChanged) TripStatus() models.TripStatus {
	return models.TripStatus{
		Reference:  m.Reference,
		Status:     m.Status,
		StatusRaw:  m.StatusRaw,
		Driver:     m.Driver,
		Vehicle:    m.Vehicle,
		ETA:        m.ETA,
		Location:   m.Location,
		ObservedAt: m.At,
	}
}
