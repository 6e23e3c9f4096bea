package fcm

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	firebase "firebase.google.com/go"
	"firebase.google.com/go/messaging"
	"github.com/BearBump/TripWatch/internal/integrations/liveactivity"
	"github.com/BearBump/TripWatch/internal/models"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"google.golang.org/api/option"
)

const (
	attributesType = "TripAttributes"
	// сколько завершённая поездка остаётся на экране блокировки
	finalDisplay = 15 * time.Minute
)

// Sender is the part of *messaging.Client the presenter uses.
type Sender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// Presenter drives an iOS Live Activity through APNs pushes relayed by Firebase Cloud Messaging.
type Presenter struct {
	sender      Sender
	deviceToken string
	topic       string
	now         func() time.Time

	mu         sync.Mutex
	activities map[liveactivity.Handle]*activity
}

type activity struct {
	ref  string
	last models.TripStatus
}

func New(sender Sender, deviceToken, bundleID string) *Presenter {
	return &Presenter{
		sender:      sender,
		deviceToken: deviceToken,
		topic:       bundleID + ".push-type.liveactivity",
		now:         func() time.Time { return time.Now().UTC() },
		activities:  make(map[liveactivity.Handle]*activity),
	}
}

// NewFromCredentials builds a messaging client from a service account file.
func NewFromCredentials(ctx context.Context, credentialsFile, deviceToken, bundleID string) (*Presenter, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, errors.Wrap(err, "firebase app")
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "firebase messaging")
	}
	return New(client, deviceToken, bundleID), nil
}

func (p *Presenter) WithNow(now func() time.Time) *Presenter {
	if now != nil {
		p.now = now
	}
	return p
}

func (p *Presenter) StartActivity(ctx context.Context, trip models.Trip, st models.TripStatus) (liveactivity.Handle, error) {
	h := liveactivity.Handle(uuid.NewString())
	data := p.aps("start", st)
	data["attributes-type"] = attributesType
	data["attributes"] = map[string]any{
		"reference":   trip.Reference,
		"pickup":      trip.PickupText,
		"destination": trip.DestinationText,
		"pickup_at":   trip.PickupAt,
		"handle":      string(h),
	}
	if err := p.send(ctx, trip.Reference, liveactivity.Headline(st.Status), data); err != nil {
		return "", err
	}

	p.mu.Lock()
	p.activities[h] = &activity{ref: trip.Reference, last: st}
	p.mu.Unlock()
	return h, nil
}

func (p *Presenter) UpdateActivity(ctx context.Context, h liveactivity.Handle, st models.TripStatus) error {
	p.mu.Lock()
	a, ok := p.activities[h]
	if ok {
		a.last = st
	}
	p.mu.Unlock()
	if !ok {
		return errors.Errorf("unknown live activity %s", h)
	}
	return p.send(ctx, a.ref, "", p.aps("update", st))
}

// EndActivity shows the last known status. A finished trip stays on screen for finalDisplay,
// anything else is dismissed at once.
func (p *Presenter) EndActivity(ctx context.Context, h liveactivity.Handle) error {
	p.mu.Lock()
	a, ok := p.activities[h]
	delete(p.activities, h)
	p.mu.Unlock()
	if !ok {
		return nil
	}

	dismissAt := p.now()
	if a.last.Status.IsTerminal() {
		dismissAt = dismissAt.Add(finalDisplay)
	}
	data := p.aps("end", a.last)
	data["dismissal-date"] = dismissAt.Unix()
	return p.send(ctx, a.ref, "", data)
}

func (p *Presenter) aps(event string, st models.TripStatus) map[string]any {
	return map[string]any{
		"timestamp":     p.now().Unix(),
		"event":         event,
		"content-state": liveactivity.NewContentState(st),
	}
}

func (p *Presenter) send(ctx context.Context, ref, alert string, custom map[string]any) error {
	aps := &messaging.Aps{CustomData: custom}
	if alert != "" {
		aps.Alert = &messaging.ApsAlert{Title: alert}
	}
	msg := &messaging.Message{
		Token: p.deviceToken,
		Data: map[string]string{
			"trip_ref": ref,
			"event":    custom["event"].(string),
		},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{
				"apns-push-type":  "liveactivity",
				"apns-topic":      p.topic,
				"apns-priority":   "10",
				"apns-expiration": strconv.FormatInt(p.now().Add(time.Hour).Unix(), 10),
			},
			Payload: &messaging.APNSPayload{Aps: aps},
		},
	}

	id, err := p.sender.Send(ctx, msg)
	if err != nil {
		return errors.Wrap(err, "fcm send")
	}
	slog.Debug("live activity push sent", "trip_ref", ref, "event", custom["event"], "message_id", id)
	return nil
}
