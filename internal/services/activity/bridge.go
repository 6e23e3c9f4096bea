package activity

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/BearBump/TripWatch/internal/integrations/liveactivity"
	"github.com/BearBump/TripWatch/internal/models"
)

// Record is a live presentation that is currently shown for a trip.
type Record struct {
	Reference string              `json:"reference"`
	Handle    liveactivity.Handle `json:"handle"`
	Status    models.StatusCode   `json:"status"`
	StartedAt time.Time           `json:"startedAt"`
	UpdatedAt time.Time           `json:"updatedAt"`
}

// Bridge turns status observations into start/update/end calls on a presenter.
// A record exists for a reference only while its latest observed status is active.
type Bridge struct {
	presenter liveactivity.Presenter

	mu      sync.Mutex
	records map[string]*Record

	now func() time.Time
}

func NewBridge(p liveactivity.Presenter) *Bridge {
	return &Bridge{
		presenter: p,
		records:   make(map[string]*Record),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (b *Bridge) WithNow(now func() time.Time) *Bridge {
	if now != nil {
		b.now = now
	}
	return b
}

// Observe applies one status observation. Presenter errors are logged: a failed start leaves
// no record, so the next active observation tries to start again.
func (b *Bridge) Observe(ctx context.Context, trip models.Trip, st models.TripStatus) {
	ref := trip.Reference
	if ref == "" {
		ref = st.Reference
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	rec, ok := b.records[ref]
	switch {
	case st.Status.IsActive():
		if !ok {
			h, err := b.presenter.StartActivity(ctx, trip, st)
			if err != nil {
				slog.Error("start live activity", "trip_ref", ref, "status", st.Status, "error", err.Error())
				return
			}
			now := b.now()
			b.records[ref] = &Record{Reference: ref, Handle: h, Status: st.Status, StartedAt: now, UpdatedAt: now}
			slog.Info("live activity started", "trip_ref", ref, "status", st.Status)
			return
		}
		if err := b.presenter.UpdateActivity(ctx, rec.Handle, st); err != nil {
			slog.Error("update live activity", "trip_ref", ref, "status", st.Status, "error", err.Error())
		}
		rec.Status = st.Status
		rec.UpdatedAt = b.now()
	case st.Status.IsTerminal():
		if ok {
			b.endLocked(ctx, rec)
		}
	}
}

// End ends the presentation for a reference, if any.
func (b *Bridge) End(ctx context.Context, reference string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	rec, ok := b.records[reference]
	if !ok {
		return false
	}
	b.endLocked(ctx, rec)
	return true
}

func (b *Bridge) EndAll(ctx context.Context) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, rec := range b.records {
		b.endLocked(ctx, rec)
		n++
	}
	return n
}

func (b *Bridge) Active() []Record {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Record, 0, len(b.records))
	for _, rec := range b.records {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Reference < out[j].Reference })
	return out
}

func (b *Bridge) Has(reference string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.records[reference]
	return ok
}

// endLocked всегда удаляет запись, даже если презентер вернул ошибку.
func (b *Bridge) endLocked(ctx context.Context, rec *Record) {
	delete(b.records, rec.Reference)
	if err := b.presenter.EndActivity(ctx, rec.Handle); err != nil {
		slog.Error("end live activity", "trip_ref", rec.Reference, "error", err.Error())
		return
	}
	slog.Info("live activity ended", "trip_ref", rec.Reference)
}
