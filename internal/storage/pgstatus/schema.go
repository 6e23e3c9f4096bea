package pgstatus

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS trip_status (
  reference TEXT PRIMARY KEY,
  status TEXT NOT NULL,
  status_raw TEXT NOT NULL DEFAULT '',
  driver JSONB NULL,
  vehicle JSONB NULL,
  eta JSONB NULL,
  location JSONB NULL,
  observed_at TIMESTAMPTZ NOT NULL,
  pickup_at TIMESTAMPTZ NULL,
  end_reason TEXT NULL,
  ended_at TIMESTAMPTZ NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
		`
CREATE TABLE IF NOT EXISTS trip_status_events (
  id BIGSERIAL PRIMARY KEY,
  reference TEXT NOT NULL,
  kind TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT '',
  status_raw TEXT NOT NULL DEFAULT '',
  eta_minutes INT NULL,
  end_reason TEXT NULL,
  observed_at TIMESTAMPTZ NOT NULL,
  created_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_trip_status_events_ref_observed ON trip_status_events(reference, observed_at DESC)`,
		// Повторная доставка из Kafka не должна плодить дубли.
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_trip_status_events_dedup ON trip_status_events(reference, kind, status, observed_at)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
