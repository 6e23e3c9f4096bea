package pgstatus

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/BearBump/TripWatch/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// StatusChange is one status observation or session end to persist.
type StatusChange struct {
	Kind      string
	Reference string
	At        time.Time

	Status   models.TripStatus
	PickupAt *time.Time

	EndReason string
}

// ApplyStatusChange upserts the current row and appends to the history in one transaction.
// An observation older than the stored one only lands in the history.
func (s *Storage) ApplyStatusChange(ctx context.Context, ch StatusChange) error {
	if ch.Reference == "" {
		return errors.New("reference is required")
	}
	at := ch.At.UTC()

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var etaMinutes *int
	var endReason *string
	status := ""

	switch ch.Kind {
	case models.EventKindStatusChanged:
		st := ch.Status
		status = string(st.Status)
		if st.ETA != nil {
			m := st.ETA.Minutes
			etaMinutes = &m
		}
		_, err := tx.Exec(ctx, `
INSERT INTO trip_status (
  reference, status, status_raw, driver, vehicle, eta, location, observed_at, pickup_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9, now())
ON CONFLICT (reference) DO UPDATE SET
  status = EXCLUDED.status,
  status_raw = EXCLUDED.status_raw,
  driver = EXCLUDED.driver,
  vehicle = EXCLUDED.vehicle,
  eta = EXCLUDED.eta,
  location = EXCLUDED.location,
  observed_at = EXCLUDED.observed_at,
  pickup_at = COALESCE(EXCLUDED.pickup_at, trip_status.pickup_at),
  end_reason = NULL,
  ended_at = NULL,
  updated_at = now()
WHERE trip_status.observed_at <= EXCLUDED.observed_at
`, ch.Reference, st.Status, st.StatusRaw, st.Driver, st.Vehicle, st.ETA, st.Location, at, ch.PickupAt)
		if err != nil {
			return errors.Wrap(err, "upsert trip status")
		}
	case models.EventKindSessionEnded:
		r := ch.EndReason
		endReason = &r
		_, err := tx.Exec(ctx, `
UPDATE trip_status
SET end_reason = $2, ended_at = $3, updated_at = now()
WHERE reference = $1
`, ch.Reference, r, at)
		if err != nil {
			return errors.Wrap(err, "end trip status")
		}
	default:
		return errors.Errorf("unknown status change kind %q", ch.Kind)
	}

	_, err = tx.Exec(ctx, `
INSERT INTO trip_status_events (
  reference, kind, status, status_raw, eta_minutes, end_reason, observed_at, created_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7, now())
ON CONFLICT (reference, kind, status, observed_at) DO NOTHING
`, ch.Reference, ch.Kind, status, ch.Status.StatusRaw, etaMinutes, endReason, at)
	if err != nil {
		return errors.Wrap(err, "insert trip status event")
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit tx")
	}
	return nil
}

func (s *Storage) GetCurrentStatus(ctx context.Context, reference string) (*models.StatusRecord, error) {
	var rec models.StatusRecord
	err := s.db.QueryRow(ctx, `
SELECT
  reference, status, status_raw,
  driver, vehicle, eta, location,
  observed_at, pickup_at, end_reason, ended_at, updated_at
FROM trip_status
WHERE reference = $1
`, reference).Scan(
		&rec.Reference, &rec.Status, &rec.StatusRaw,
		&rec.Driver, &rec.Vehicle, &rec.ETA, &rec.Location,
		&rec.ObservedAt, &rec.PickupAt, &rec.EndReason, &rec.EndedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "select trip status")
	}
	return &rec, nil
}

func (s *Storage) ListStatusEvents(ctx context.Context, reference string, limit, offset int) ([]*models.StatusEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.Query(ctx, `
SELECT
  id, reference, kind, status, status_raw,
  eta_minutes, end_reason, observed_at, created_at
FROM trip_status_events
WHERE reference = $1
ORDER BY observed_at DESC, id DESC
LIMIT $2 OFFSET $3
`, reference, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "select events")
	}
	defer rows.Close()

	out := make([]*models.StatusEvent, 0)
	for rows.Next() {
		var e models.StatusEvent
		if err := rows.Scan(
			&e.ID, &e.Reference, &e.Kind, &e.Status, &e.StatusRaw,
			&e.ETAMinutes, &e.EndReason, &e.ObservedAt, &e.CreatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "scan event")
		}
		out = append(out, &e)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}
