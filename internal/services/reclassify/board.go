package reclassify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/BearBump/TripWatch/internal/models"
	"github.com/BearBump/TripWatch/internal/services/monitor"
	"github.com/jonboulle/clockwork"
)

type Monitor interface {
	StartMonitoring(trip models.Trip) bool
}

type StatusSnapshotter interface {
	Snapshot() map[string]models.TripStatus
}

type Buckets struct {
	Upcoming []models.Trip `json:"upcoming"`
	Past     []models.Trip `json:"past"`
}

// Board keeps the current upcoming/past partition of the signed-in user's trips.
type Board struct {
	monitor  Monitor
	statuses StatusSnapshotter
	clock    clockwork.Clock
	tick     time.Duration

	mu       sync.Mutex
	upcoming []models.Trip
	past     []models.Trip
}

func NewBoard(m Monitor, statuses StatusSnapshotter, clock clockwork.Clock) *Board {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Board{monitor: m, statuses: statuses, clock: clock, tick: time.Minute}
}

// WithTick sets how often Run re-evaluates buckets without a status event.
func (b *Board) WithTick(d time.Duration) *Board {
	if d > 0 {
		b.tick = d
	}
	return b
}

// Load replaces the trip list and starts monitoring every upcoming trip inside the window.
func (b *Board) Load(upcoming, past []models.Trip) Buckets {
	up, ps := ClassifyOnLoad(upcoming, past, b.clock.Now(), b.statuses.Snapshot())

	b.mu.Lock()
	b.upcoming, b.past = up, ps
	out := b.bucketsLocked()
	b.mu.Unlock()

	started := b.startMonitoring(up)
	slog.Info("trip list loaded", "upcoming", len(up), "past", len(ps), "monitoring_started", started)
	return out
}

// StartDue offers every upcoming trip to the monitor again. Trips that have entered the
// window since the last pass get a session; the rest are no-ops.
func (b *Board) StartDue() int {
	b.mu.Lock()
	up := cloneTrips(b.upcoming)
	b.mu.Unlock()

	started := b.startMonitoring(up)
	if started > 0 {
		slog.Info("monitoring started for trips entering the window", "count", started)
	}
	return started
}

func (b *Board) startMonitoring(trips []models.Trip) int {
	if b.monitor == nil {
		return 0
	}
	started := 0
	for _, tr := range trips {
		if b.monitor.StartMonitoring(tr) {
			started++
		}
	}
	return started
}

// Reclassify runs one pass and returns the trips moved to past.
func (b *Board) Reclassify() []models.Trip {
	snap := b.statuses.Snapshot()

	b.mu.Lock()
	defer b.mu.Unlock()
	keep, moved := ReclassifyOnStatusChange(b.upcoming, b.clock.Now(), snap)
	if len(moved) == 0 {
		return nil
	}
	b.upcoming = keep
	b.past = MergePast(b.past, moved)
	for _, tr := range moved {
		slog.Info("trip moved to past", "trip_ref", tr.Reference)
	}
	return moved
}

func (b *Board) Buckets() Buckets {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bucketsLocked()
}

// Run reclassifies on every scheduler event. Each tick also reclassifies and starts monitoring
// for trips that reached the window. It returns when ctx is done or the event stream is closed.
func (b *Board) Run(ctx context.Context, events <-chan monitor.Event) error {
	t := b.clock.NewTicker(b.tick)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-events:
			if !ok {
				return nil
			}
			b.Reclassify()
		case <-t.Chan():
			b.Reclassify()
			b.StartDue()
		}
	}
}

func (b *Board) bucketsLocked() Buckets {
	return Buckets{Upcoming: cloneTrips(b.upcoming), Past: cloneTrips(b.past)}
}

func cloneTrips(in []models.Trip) []models.Trip {
	out := make([]models.Trip, len(in))
	copy(out, in)
	return out
}
