package fcm

import (
	"context"
	"sync"
	"testing"
	"time"

	"firebase.google.com/go/messaging"
	"github.com/BearBump/TripWatch/internal/integrations/liveactivity"
	"github.com/BearBump/TripWatch/internal/models"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type captureSender struct {
	mu   sync.Mutex
	msgs []*messaging.Message
	err  error
}

func (s *captureSender) Send(_ context.Context, m *messaging.Message) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.msgs = append(s.msgs, m)
	return "projects/x/messages/1", nil
}

func fixedNow() time.Time { return time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC) }

func TestPresenter_Lifecycle(t *testing.T) {
	s := &captureSender{}
	p := New(s, "device-token", "com.example.trips").WithNow(fixedNow)
	ctx := context.Background()
	trip := models.Trip{Reference: "BK-7", PickupText: "Airport T2"}

	h, err := p.StartActivity(ctx, trip, models.TripStatus{Reference: "BK-7", Status: models.StatusEnRoute})
	require.NoError(t, err)
	require.NotEmpty(t, h)
	require.NoError(t, p.UpdateActivity(ctx, h, models.TripStatus{Reference: "BK-7", Status: models.StatusArrived}))
	require.NoError(t, p.EndActivity(ctx, h))

	require.Len(t, s.msgs, 3)
	start := s.msgs[0]
	require.Equal(t, "device-token", start.Token)
	require.Equal(t, "liveactivity", start.APNS.Headers["apns-push-type"])
	require.Equal(t, "com.example.trips.push-type.liveactivity", start.APNS.Headers["apns-topic"])
	aps := start.APNS.Payload.Aps
	require.Equal(t, "start", aps.CustomData["event"])
	require.Equal(t, attributesType, aps.CustomData["attributes-type"])
	require.Equal(t, "Chauffeur on the way", aps.Alert.Title)
	cs := aps.CustomData["content-state"].(liveactivity.ContentState)
	require.Equal(t, models.StatusEnRoute, cs.Status)

	require.Equal(t, "update", s.msgs[1].APNS.Payload.Aps.CustomData["event"])
	require.Equal(t, "BK-7", s.msgs[1].Data["trip_ref"])

	end := s.msgs[2].APNS.Payload.Aps.CustomData
	require.Equal(t, "end", end["event"])
	require.Equal(t, models.StatusArrived, end["content-state"].(liveactivity.ContentState).Status)
	require.Equal(t, fixedNow().Unix(), end["dismissal-date"])
}

func TestPresenter_EndKeepsLastStatus(t *testing.T) {
	s := &captureSender{}
	p := New(s, "tok", "b").WithNow(fixedNow)
	ctx := context.Background()

	h, err := p.StartActivity(ctx, models.Trip{Reference: "BK-8"}, models.TripStatus{Reference: "BK-8", Status: models.StatusEnRoute})
	require.NoError(t, err)
	require.NoError(t, p.EndActivity(ctx, h))
	end := s.msgs[1].APNS.Payload.Aps.CustomData
	require.Equal(t, models.StatusEnRoute, end["content-state"].(liveactivity.ContentState).Status)
	require.Equal(t, fixedNow().Unix(), end["dismissal-date"])

	h, err = p.StartActivity(ctx, models.Trip{Reference: "BK-9"}, models.TripStatus{Reference: "BK-9", Status: models.StatusNearby})
	require.NoError(t, err)
	require.NoError(t, p.UpdateActivity(ctx, h, models.TripStatus{Reference: "BK-9", Status: models.StatusCancelled}))
	require.NoError(t, p.EndActivity(ctx, h))
	end = s.msgs[4].APNS.Payload.Aps.CustomData
	require.Equal(t, models.StatusCancelled, end["content-state"].(liveactivity.ContentState).Status)
	require.Equal(t, fixedNow().Add(15*time.Minute).Unix(), end["dismissal-date"])
}

func TestPresenter_UnknownHandle(t *testing.T) {
	s := &captureSender{}
	p := New(s, "tok", "b")
	require.Error(t, p.UpdateActivity(context.Background(), "nope", models.TripStatus{}))
	require.NoError(t, p.EndActivity(context.Background(), "nope"))
	require.Empty(t, s.msgs)
}

func TestPresenter_SendError(t *testing.T) {
	s := &captureSender{err: errors.New("quota")}
	p := New(s, "tok", "b")
	_, err := p.StartActivity(context.Background(), models.Trip{Reference: "R"}, models.TripStatus{Status: models.StatusNearby})
	require.Error(t, err)
	require.Contains(t, err.Error(), "fcm send")
}
