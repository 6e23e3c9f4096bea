package logpresenter

import (
	"context"
	"log/slog"

	"github.com/BearBump/TripWatch/internal/integrations/liveactivity"
	"github.com/BearBump/TripWatch/internal/models"
	"github.com/google/uuid"
)

// Presenter only logs activity lifecycle calls. Used when no device surface is configured.
type Presenter struct {
	log *slog.Logger
}

func New(log *slog.Logger) *Presenter {
	if log == nil {
		log = slog.Default()
	}
	return &Presenter{log: log}
}

func (p *Presenter) StartActivity(_ context.Context, trip models.Trip, st models.TripStatus) (liveactivity.Handle, error) {
	h := liveactivity.Handle(uuid.NewString())
	p.log.Info("live activity start", "trip_ref", trip.Reference, "handle", h, "headline", liveactivity.Headline(st.Status))
	return h, nil
}

func (p *Presenter) UpdateActivity(_ context.Context, h liveactivity.Handle, st models.TripStatus) error {
	cs := liveactivity.NewContentState(st)
	p.log.Info("live activity update", "handle", h, "status", cs.Status, "headline", cs.Headline, "driver", cs.DriverName)
	return nil
}

func (p *Presenter) EndActivity(_ context.Context, h liveactivity.Handle) error {
	p.log.Info("live activity end", "handle", h)
	return nil
}
