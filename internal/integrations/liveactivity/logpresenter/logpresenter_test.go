package logpresenter

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/BearBump/TripWatch/internal/models"
	"github.com/stretchr/testify/require"
)

func TestPresenter_Logs(t *testing.T) {
	var buf bytes.Buffer
	p := New(slog.New(slog.NewTextHandler(&buf, nil)))
	ctx := context.Background()

	h, err := p.StartActivity(ctx, models.Trip{Reference: "BK-3"}, models.TripStatus{Status: models.StatusNearby})
	require.NoError(t, err)
	require.NotEmpty(t, h)
	require.NoError(t, p.UpdateActivity(ctx, h, models.TripStatus{Status: models.StatusArrived}))
	require.NoError(t, p.EndActivity(ctx, h))

	out := buf.String()
	require.Contains(t, out, "trip_ref=BK-3")
	require.Contains(t, out, "live activity update")
	require.Contains(t, out, "live activity end")
}
