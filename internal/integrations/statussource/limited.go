package statussource

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BearBump/TripWatch/internal/models"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
)

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

// Limited caps calls to the wrapped Fetcher per wall-clock minute, shared across
// every process using the same limiter backend.
type Limited struct {
	next      Fetcher
	rl        RateLimiter
	perMinute int64
	name      string
	clock     clockwork.Clock
}

func NewLimited(next Fetcher, rl RateLimiter, perMinute int64, name string) *Limited {
	if name == "" {
		name = "default"
	}
	return &Limited{next: next, rl: rl, perMinute: perMinute, name: name, clock: clockwork.NewRealClock()}
}

// WithClock sets the clock that picks the minute bucket.
func (l *Limited) WithClock(c clockwork.Clock) *Limited {
	if c != nil {
		l.clock = c
	}
	return l
}

func (l *Limited) Fetch(ctx context.Context, reference string) (models.TripStatus, error) {
	if l.rl != nil && l.perMinute > 0 {
		key := fmt.Sprintf("rl:status:%s:%s", l.name, l.clock.Now().UTC().Format("200601021504"))
		allowed, n, err := l.rl.Allow(ctx, key, l.perMinute, 70*time.Second)
		if err != nil {
			// Лимитер недоступен: не блокируем опрос.
			slog.Warn("status rate limiter unavailable", "error", err.Error())
		} else if !allowed {
			return models.TripStatus{}, errors.Wrapf(ErrRateLimited, "%d calls this minute", n)
		}
	}
	return l.next.Fetch(ctx, reference)
}
