package liveactivity

import (
	"context"
	"strings"
	"time"

	"github.com/BearBump/TripWatch/internal/models"
)

// Handle identifies one live presentation instance on the external surface.
type Handle string

type Presenter interface {
	StartActivity(ctx context.Context, trip models.Trip, st models.TripStatus) (Handle, error)
	UpdateActivity(ctx context.Context, h Handle, st models.TripStatus) error
	EndActivity(ctx context.Context, h Handle) error
}

// ContentState is what the ambient surface renders for a trip.
type ContentState struct {
	Status     models.StatusCode `json:"status"`
	Headline   string            `json:"headline"`
	DriverName string            `json:"driver_name,omitempty"`
	Vehicle    string            `json:"vehicle,omitempty"`
	Plate      string            `json:"plate,omitempty"`
	ETAMinutes *int              `json:"eta_minutes,omitempty"`
	Lat        *float64          `json:"lat,omitempty"`
	Lng        *float64          `json:"lng,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

func NewContentState(st models.TripStatus) ContentState {
	cs := ContentState{
		Status:    st.Status,
		Headline:  Headline(st.Status),
		UpdatedAt: st.ObservedAt,
	}
	if st.Driver != nil {
		cs.DriverName = st.Driver.Name
	}
	if st.Vehicle != nil {
		cs.Vehicle = strings.TrimSpace(strings.Join([]string{st.Vehicle.Color, st.Vehicle.Make, st.Vehicle.Model}, " "))
		cs.Plate = st.Vehicle.Plate
	}
	if st.ETA != nil {
		m := st.ETA.Minutes
		cs.ETAMinutes = &m
	}
	if st.Location != nil {
		lat, lng := st.Location.Lat, st.Location.Lng
		cs.Lat, cs.Lng = &lat, &lng
	}
	return cs
}

func Headline(c models.StatusCode) string {
	switch c {
	case models.StatusAssigned:
		return "Chauffeur assigned"
	case models.StatusEnRoute:
		return "Chauffeur on the way"
	case models.StatusNearby:
		return "Chauffeur is nearby"
	case models.StatusArrived:
		return "Chauffeur has arrived"
	case models.StatusWaiting:
		return "Chauffeur is waiting"
	case models.StatusInProgress:
		return "On the way to destination"
	case models.StatusCompleted:
		return "Trip completed"
	case models.StatusCancelled:
		return "Trip cancelled"
	default:
		return "Trip update"
	}
}
