package monitor

import (
	"time"

	"github.com/BearBump/TripWatch/internal/integrations/statussource"
	"github.com/BearBump/TripWatch/internal/models"
)

type PlannerConfig struct {
	ActiveInterval time.Duration // default: 60 seconds
	IdleInterval   time.Duration // default: 300 seconds
	FailureBackoff time.Duration // default: 30 seconds

	// Окно мониторинга относительно времени подачи: от LeadTime до подачи до LateStart после.
	LeadTime  time.Duration // default: 1 hour
	LateStart time.Duration // default: 2 hours

	Expiry time.Duration // default: 2 hours

	// MaxDecodeFailures caps consecutive malformed responses. Zero means default, negative means unlimited.
	MaxDecodeFailures int // default: 5
	// RetryUnauthorized keeps polling on auth failures instead of ending the session.
	RetryUnauthorized bool
}

func DefaultPlannerConfig() PlannerConfig {
	return PlannerConfig{
		ActiveInterval:    60 * time.Second,
		IdleInterval:      300 * time.Second,
		FailureBackoff:    30 * time.Second,
		LeadTime:          1 * time.Hour,
		LateStart:         2 * time.Hour,
		Expiry:            2 * time.Hour,
		MaxDecodeFailures: 5,
	}
}

type Planner struct {
	cfg PlannerConfig
}

func NewPlanner(cfg PlannerConfig) *Planner {
	def := DefaultPlannerConfig()
	if cfg.ActiveInterval <= 0 {
		cfg.ActiveInterval = def.ActiveInterval
	}
	if cfg.IdleInterval <= 0 {
		cfg.IdleInterval = def.IdleInterval
	}
	if cfg.FailureBackoff <= 0 {
		cfg.FailureBackoff = def.FailureBackoff
	}
	if cfg.LeadTime <= 0 {
		cfg.LeadTime = def.LeadTime
	}
	if cfg.LateStart <= 0 {
		cfg.LateStart = def.LateStart
	}
	if cfg.Expiry <= 0 {
		cfg.Expiry = def.Expiry
	}
	if cfg.MaxDecodeFailures == 0 {
		cfg.MaxDecodeFailures = def.MaxDecodeFailures
	}
	return &Planner{cfg: cfg}
}

func (p *Planner) Config() PlannerConfig {
	return p.cfg
}

// NextCheckDelay is the sleep after a successful fetch.
func (p *Planner) NextCheckDelay(status models.StatusCode) time.Duration {
	if status.IsActive() {
		return p.cfg.ActiveInterval
	}
	return p.cfg.IdleInterval
}

func (p *Planner) BackoffDelay() time.Duration {
	return p.cfg.FailureBackoff
}

// InWindow reports whether a trip may start monitoring: -LateStart <= pickup-now <= LeadTime.
func (p *Planner) InWindow(pickup, now time.Time) bool {
	if pickup.IsZero() {
		return false
	}
	until := pickup.Sub(now)
	return until >= -p.cfg.LateStart && until <= p.cfg.LeadTime
}

// ShouldStop is evaluated after every successful fetch.
func (p *Planner) ShouldStop(status models.StatusCode, pickup, now time.Time) (bool, EndReason) {
	if status.IsTerminal() {
		return true, ReasonTerminal
	}
	if !pickup.IsZero() && now.Sub(pickup) > p.cfg.Expiry {
		return true, ReasonExpired
	}
	return false, ""
}

// OnFailure decides whether a failed fetch ends the session. decodeStreak is the number of
// consecutive decode failures including this one.
func (p *Planner) OnFailure(kind statussource.Kind, decodeStreak int) (bool, EndReason) {
	switch kind {
	case statussource.KindUnauthorized:
		if !p.cfg.RetryUnauthorized {
			return true, ReasonUnauthorized
		}
	case statussource.KindDecode:
		if p.cfg.MaxDecodeFailures > 0 && decodeStreak >= p.cfg.MaxDecodeFailures {
			return true, ReasonDecodeFailed
		}
	}
	return false, ""
}
