package monitor

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BearBump/TripWatch/internal/broker/localbus"
	"github.com/BearBump/TripWatch/internal/integrations/statussource"
	"github.com/BearBump/TripWatch/internal/models"
	"github.com/jonboulle/clockwork"
)

// StatusStore is the latest-status cache shared with readers.
type StatusStore interface {
	Get(reference string) (models.TripStatus, bool)
	Put(reference string, st models.TripStatus)
	Delete(reference string)
	Clear()
}

type ActivityBridge interface {
	Observe(ctx context.Context, trip models.Trip, st models.TripStatus)
	End(ctx context.Context, reference string) bool
	EndAll(ctx context.Context) int
}

// Scheduler owns one polling session per monitored trip reference.
type Scheduler struct {
	fetcher statussource.Fetcher
	cache   StatusStore
	bridge  ActivityBridge
	clock   clockwork.Clock
	planner *Planner
	bus     *localbus.Bus[Event]

	teardownTimeout time.Duration

	baseCtx    context.Context
	cancelBase context.CancelFunc

	mu       sync.Mutex
	sessions map[string]*session
	closed   bool
	wg       sync.WaitGroup

	startedAtUnixNano int64
	lastFetchUnixNano atomic.Int64
	totalStarted      atomic.Int64
	totalEnded        atomic.Int64
	totalFetches      atomic.Int64
	totalFailures     atomic.Int64
	lastErrorMu       sync.Mutex
	lastError         string
}

// New builds a scheduler. bridge may be nil when no live presentation is wired.
func New(fetcher statussource.Fetcher, cache StatusStore, bridge ActivityBridge, clock clockwork.Clock) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		fetcher:           fetcher,
		cache:             cache,
		bridge:            bridge,
		clock:             clock,
		planner:           NewPlanner(DefaultPlannerConfig()),
		bus:               localbus.New[Event](0),
		teardownTimeout:   5 * time.Second,
		baseCtx:           ctx,
		cancelBase:        cancel,
		sessions:          make(map[string]*session),
		startedAtUnixNano: clock.Now().UTC().UnixNano(),
	}
}

func (s *Scheduler) WithPlanner(cfg PlannerConfig) *Scheduler {
	s.planner = NewPlanner(cfg)
	return s
}

func (s *Scheduler) WithEventBuffer(n int) *Scheduler {
	s.bus = localbus.New[Event](n)
	return s
}

func (s *Scheduler) Planner() *Planner {
	return s.planner
}

// StartMonitoring starts a session for the trip if it is inside the monitoring window and
// not already monitored. It reports whether a new session was created.
func (s *Scheduler) StartMonitoring(trip models.Trip) bool {
	if trip.Reference == "" || !trip.HasPickup() {
		return false
	}
	now := s.clock.Now()
	if !s.planner.InWindow(trip.PickupAt, now) {
		slog.Debug("trip outside monitoring window", "trip_ref", trip.Reference, "pickup_at", trip.PickupAt)
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if _, ok := s.sessions[trip.Reference]; ok {
		return false
	}

	ctx, cancel := context.WithCancel(s.baseCtx)
	sess := &session{trip: trip, cancel: cancel, startedAt: now.UTC()}
	s.sessions[trip.Reference] = sess
	s.totalStarted.Add(1)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx, sess)
	}()
	return true
}

// StopMonitoring cancels the session, drops the cached status and ends the live presentation.
// Cache and presentation are cleaned up even when no session is running.
func (s *Scheduler) StopMonitoring(reference string) bool {
	s.mu.Lock()
	sess, ok := s.sessions[reference]
	if ok {
		delete(s.sessions, reference)
	}
	s.mu.Unlock()

	var emit bool
	if ok {
		emit = sess.halt()
	}

	// пока halt ждал, по той же ссылке мог стартовать новый сеанс; его статус не трогаем
	s.mu.Lock()
	_, replaced := s.sessions[reference]
	if !replaced {
		s.cache.Delete(reference)
	}
	s.mu.Unlock()
	if s.bridge != nil && !replaced {
		ctx, cancel := context.WithTimeout(context.Background(), s.teardownTimeout)
		s.bridge.End(ctx, reference)
		cancel()
	}

	if emit {
		s.ended(sess, ReasonStopped, nil)
	}
	return ok
}

// StopAll cancels every session, clears the cache and ends every live presentation.
func (s *Scheduler) StopAll() int {
	s.mu.Lock()
	all := s.sessions
	s.sessions = make(map[string]*session)
	s.mu.Unlock()

	stopped := make([]*session, 0, len(all))
	for _, sess := range all {
		if sess.halt() {
			stopped = append(stopped, sess)
		}
	}

	s.mu.Lock()
	if len(s.sessions) == 0 {
		s.cache.Clear()
	} else {
		for ref := range all {
			if _, ok := s.sessions[ref]; !ok {
				s.cache.Delete(ref)
			}
		}
	}
	s.mu.Unlock()
	if s.bridge != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.teardownTimeout)
		n := s.bridge.EndAll(ctx)
		cancel()
		slog.Info("live activities ended", "count", n)
	}

	for _, sess := range stopped {
		s.ended(sess, ReasonStopped, nil)
	}
	return len(all)
}

func (s *Scheduler) CurrentStatus(reference string) (models.TripStatus, bool) {
	return s.cache.Get(reference)
}

// Subscribe returns a stream of scheduler events. Slow subscribers lose events instead of
// blocking sessions.
func (s *Scheduler) Subscribe() (<-chan Event, func()) {
	return s.bus.Subscribe()
}

// SubscribeQueued returns a stream that keeps every event, for consumers that must not miss
// a status change. After Close the remaining backlog is delivered before the channel closes.
func (s *Scheduler) SubscribeQueued() (<-chan Event, func()) {
	return s.bus.SubscribeQueued()
}

func (s *Scheduler) IsMonitoring(reference string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[reference]
	return ok
}

type SessionInfo struct {
	Reference  string            `json:"reference"`
	PickupAt   time.Time         `json:"pickupAt"`
	StartedAt  time.Time         `json:"startedAt"`
	Polls      int64             `json:"polls"`
	Failures   int64             `json:"failures"`
	LastStatus models.StatusCode `json:"lastStatus,omitempty"`
	NextPollAt *time.Time        `json:"nextPollAt,omitempty"`
}

func (s *Scheduler) Sessions() []SessionInfo {
	s.mu.Lock()
	list := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		list = append(list, sess)
	}
	s.mu.Unlock()

	out := make([]SessionInfo, 0, len(list))
	for _, sess := range list {
		out = append(out, sess.info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Reference < out[j].Reference })
	return out
}

type Stats struct {
	StartedAt      time.Time  `json:"startedAt"`
	LastFetchAt    *time.Time `json:"lastFetchAt,omitempty"`
	ActiveSessions int        `json:"activeSessions"`
	TotalStarted   int64      `json:"totalStarted"`
	TotalEnded     int64      `json:"totalEnded"`
	TotalFetches   int64      `json:"totalFetches"`
	TotalFailures  int64      `json:"totalFailures"`
	DroppedEvents  int64      `json:"droppedEvents"`
	EventBacklog   int        `json:"eventBacklog"`
	LastError      string     `json:"lastError,omitempty"`
}

func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	active := len(s.sessions)
	s.mu.Unlock()

	st := Stats{
		StartedAt:      time.Unix(0, s.startedAtUnixNano).UTC(),
		ActiveSessions: active,
		TotalStarted:   s.totalStarted.Load(),
		TotalEnded:     s.totalEnded.Load(),
		TotalFetches:   s.totalFetches.Load(),
		TotalFailures:  s.totalFailures.Load(),
		DroppedEvents:  s.bus.Dropped(),
		EventBacklog:   s.bus.Backlog(),
	}
	if n := s.lastFetchUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastFetchAt = &t
	}
	s.lastErrorMu.Lock()
	st.LastError = s.lastError
	s.lastErrorMu.Unlock()
	return st
}

// Wait blocks until every session goroutine has exited.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// Close stops all sessions, waits for them and closes event subscriptions.
// The scheduler cannot be reused afterwards.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.StopAll()
	s.cancelBase()
	s.wg.Wait()
	s.bus.Close()
}

// removeIfCurrent drops sess from the session set unless it was already replaced.
func (s *Scheduler) removeIfCurrent(sess *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.sessions[sess.trip.Reference]; ok && cur == sess {
		delete(s.sessions, sess.trip.Reference)
	}
}

func (s *Scheduler) ended(sess *session, reason EndReason, st *models.TripStatus) {
	s.totalEnded.Add(1)
	slog.Info("monitoring ended", "trip_ref", sess.trip.Reference, "reason", reason)
	s.bus.Publish(Event{
		Kind:      EventSessionEnded,
		Reference: sess.trip.Reference,
		Trip:      sess.trip,
		Status:    st,
		Reason:    reason,
		At:        s.clock.Now().UTC(),
	})
}

func (s *Scheduler) setLastError(err error) {
	s.lastErrorMu.Lock()
	s.lastError = err.Error()
	s.lastErrorMu.Unlock()
}
