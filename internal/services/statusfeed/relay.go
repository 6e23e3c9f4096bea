package statusfeed

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/BearBump/TripWatch/internal/broker/messages"
	"github.com/BearBump/TripWatch/internal/services/monitor"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// Relay forwards scheduler events to the trip status topic.
type Relay struct {
	producer Producer
	topic    string

	attempts  int
	retryBase time.Duration

	published atomic.Int64
	failed    atomic.Int64
}

func New(p Producer, topic string) *Relay {
	return &Relay{producer: p, topic: topic, attempts: 10, retryBase: 150 * time.Millisecond}
}

func (r *Relay) WithRetry(attempts int, base time.Duration) *Relay {
	if attempts > 0 {
		r.attempts = attempts
	}
	if base > 0 {
		r.retryBase = base
	}
	return r
}

// Run publishes every event until ctx is done or the stream is closed. A message that still
// fails after all retries is logged and dropped.
func (r *Relay) Run(ctx context.Context, events <-chan monitor.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := r.Publish(ctx, ev); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				r.failed.Add(1)
				slog.Error("publish trip status event", "trip_ref", ev.Reference, "kind", ev.Kind, "error", err.Error())
				continue
			}
			r.published.Add(1)
		}
	}
}

func (r *Relay) Publish(ctx context.Context, ev monitor.Event) error {
	b, err := json.Marshal(ToMessage(ev))
	if err != nil {
		return errors.Wrap(err, "marshal kafka msg")
	}
	key := []byte(ev.Reference)

	// Kafka может быть не готова сразу после старта, поэтому несколько попыток.
	var pubErr error
	for i := 0; i < r.attempts; i++ {
		if pubErr = r.producer.Publish(ctx, r.topic, key, b); pubErr == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(i+1) * r.retryBase):
		}
	}
	return pubErr
}

func (r *Relay) Published() int64 { return r.published.Load() }
func (r *Relay) Failed() int64 { return r.failed.Load() }

func ToMessage(ev monitor.Event) messages.TripStatusChanged {
	msg := messages.TripStatusChanged{
		EventID:   uuid.NewString(),
		Kind:      string(ev.Kind),
		Reference: ev.Reference,
		At:        ev.At,
		EndReason: string(ev.Reason),
	}
	if ev.Trip.HasPickup() {
		p := ev.Trip.PickupAt
		msg.PickupAt = &p
	}
	if st := ev.Status; st != nil {
		msg.Status = st.Status
		msg.StatusRaw = st.StatusRaw
		msg.Driver = st.Driver
		msg.Vehicle = st.Vehicle
		msg.ETA = st.ETA
		msg.Location = st.Location
	}
	return msg
}
