package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/BearBump/TripWatch/internal/integrations/statussource"
	"github.com/BearBump/TripWatch/internal/models"
)

type session struct {
	trip      models.Trip
	cancel    context.CancelFunc
	startedAt time.Time

	// mu serializes applying a fetch result with halt, so nothing is written after a stop.
	mu         sync.Mutex
	stopped    bool
	polls      int64
	failures   int64
	lastStatus models.StatusCode
	nextPollAt time.Time
}

// halt cancels the loop and marks the session stopped. It reports whether this call did it.
func (sess *session) halt() bool {
	sess.cancel()
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.stopped {
		return false
	}
	sess.stopped = true
	return true
}

func (sess *session) info() SessionInfo {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	si := SessionInfo{
		Reference:  sess.trip.Reference,
		PickupAt:   sess.trip.PickupAt,
		StartedAt:  sess.startedAt,
		Polls:      sess.polls,
		Failures:   sess.failures,
		LastStatus: sess.lastStatus,
	}
	if !sess.nextPollAt.IsZero() {
		t := sess.nextPollAt
		si.NextPollAt = &t
	}
	return si
}

func (s *Scheduler) run(ctx context.Context, sess *session) {
	ref := sess.trip.Reference
	log := slog.With("trip_ref", ref)
	log.Info("monitoring started", "pickup_at", sess.trip.PickupAt)

	var attempt, decodeStreak int
	for {
		// точка отмены перед запросом
		if ctx.Err() != nil {
			return
		}

		st, err := s.fetcher.Fetch(ctx, ref)
		now := s.clock.Now().UTC()
		s.totalFetches.Add(1)
		s.lastFetchUnixNano.Store(now.UnixNano())

		var delay time.Duration
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			attempt++
			kind := statussource.Classify(err)
			if kind == statussource.KindDecode {
				decodeStreak++
			} else {
				decodeStreak = 0
			}
			s.totalFailures.Add(1)
			s.setLastError(err)
			sess.recordFailure()
			log.Warn("fetch trip status", "error", err.Error(), "kind", kind, "attempt", attempt)

			if stop, reason := s.planner.OnFailure(kind, decodeStreak); stop {
				s.terminate(sess, reason, nil)
				return
			}
			delay = s.planner.BackoffDelay()
		} else {
			attempt, decodeStreak = 0, 0
			if st.Reference == "" {
				st.Reference = ref
			}
			if st.ObservedAt.IsZero() {
				st.ObservedAt = now
			}
			if !s.apply(ctx, sess, st) {
				return
			}
			if stop, reason := s.planner.ShouldStop(st.Status, sess.trip.PickupAt, now); stop {
				s.terminate(sess, reason, &st)
				return
			}
			delay = s.planner.NextCheckDelay(st.Status)
		}

		sess.scheduleNext(now.Add(delay))
		if !s.sleep(ctx, delay) {
			return
		}
	}
}

// apply writes a successful observation. It is skipped once the session is stopped.
func (s *Scheduler) apply(ctx context.Context, sess *session, st models.TripStatus) bool {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.stopped || ctx.Err() != nil {
		return false
	}
	sess.polls++
	sess.lastStatus = st.Status

	s.cache.Put(sess.trip.Reference, st)
	if s.bridge != nil {
		s.bridge.Observe(ctx, sess.trip, st)
	}
	s.bus.Publish(Event{
		Kind:      EventStatusChanged,
		Reference: sess.trip.Reference,
		Trip:      sess.trip,
		Status:    &st,
		At:        st.ObservedAt,
	})
	return true
}

// terminate is the loop's own exit. The cached status is kept. A live presentation left
// open by a non-terminal exit is ended, since nothing will update it anymore.
func (s *Scheduler) terminate(sess *session, reason EndReason, st *models.TripStatus) {
	if reason != ReasonTerminal && s.bridge != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.teardownTimeout)
		s.bridge.End(ctx, sess.trip.Reference)
		cancel()
	}
	s.removeIfCurrent(sess)
	if !sess.halt() {
		return
	}
	s.ended(sess, reason, st)
}

func (s *Scheduler) sleep(ctx context.Context, d time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	t := s.clock.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.Chan():
		return true
	}
}

func (sess *session) recordFailure() {
	sess.mu.Lock()
	sess.polls++
	sess.failures++
	sess.mu.Unlock()
}

func (sess *session) scheduleNext(at time.Time) {
	sess.mu.Lock()
	sess.nextPollAt = at
	sess.mu.Unlock()
}
