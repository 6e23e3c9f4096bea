package models

import (
	"strings"
	"time"
)

type StatusCode string

// Статусы поездки, которые отдаёт источник статусов.
const (
	StatusAssigned     StatusCode = "assigned"
	StatusEnRoute      StatusCode = "en_route"
	StatusNearby       StatusCode = "nearby"
	StatusArrived      StatusCode = "arrived"
	StatusWaiting      StatusCode = "waiting"
	StatusInProgress   StatusCode = "in_progress"
	StatusCompleted    StatusCode = "completed"
	StatusCancelled    StatusCode = "cancelled"
	StatusUnrecognized StatusCode = "unknown"
)

// ParseStatusCode normalizes a raw status. Anything outside the closed set maps to
// StatusUnrecognized so newer server statuses do not break older clients.
func ParseStatusCode(raw string) StatusCode {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "-", "_")
	switch StatusCode(s) {
	case StatusAssigned, StatusEnRoute, StatusNearby, StatusArrived, StatusWaiting,
		StatusInProgress, StatusCompleted, StatusCancelled:
		return StatusCode(s)
	case "canceled":
		return StatusCancelled
	default:
		return StatusUnrecognized
	}
}

// IsActive reports whether a live activity should be shown for the status.
func (c StatusCode) IsActive() bool {
	switch c {
	case StatusEnRoute, StatusNearby, StatusArrived, StatusWaiting:
		return true
	}
	return false
}

func (c StatusCode) IsTerminal() bool {
	return c == StatusCompleted || c == StatusCancelled
}

// Trip is a booking record. It is created by the booking flow and never mutated here.
type Trip struct {
	Reference       string    `json:"reference"`
	PickupAt        time.Time `json:"pickup_at"`
	PickupText      string    `json:"pickup_text,omitempty"`
	DestinationText string    `json:"destination_text,omitempty"`
	VehicleClass    string    `json:"vehicle_class,omitempty"`
	Passengers      int       `json:"passengers,omitempty"`
}

// HasPickup is false when the pickup time could not be resolved.
func (t Trip) HasPickup() bool {
	return !t.PickupAt.IsZero()
}

type Driver struct {
	Name     string  `json:"name"`
	Phone    *string `json:"phone,omitempty"`
	PhotoURL *string `json:"photo_url,omitempty"`
}

type Vehicle struct {
	Make  string `json:"make,omitempty"`
	Model string `json:"model,omitempty"`
	Color string `json:"color,omitempty"`
	Plate string `json:"plate,omitempty"`
}

type ETA struct {
	Minutes    int      `json:"minutes"`
	DistanceKM *float64 `json:"distance_km,omitempty"`
}

type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type TripStatus struct {
	Reference  string     `json:"reference"`
	Status     StatusCode `json:"status"`
	StatusRaw  string     `json:"status_raw,omitempty"`
	Driver     *Driver    `json:"driver,omitempty"`
	Vehicle    *Vehicle   `json:"vehicle,omitempty"`
	ETA        *ETA       `json:"eta,omitempty"`
	Location   *Location  `json:"location,omitempty"`
	ObservedAt time.Time  `json:"observed_at"`
}

// Bucket is the trip list section a trip is shown in.
type Bucket string

const (
	BucketUpcoming Bucket = "upcoming"
	BucketPast     Bucket = "past"
)
