package statusview

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/BearBump/TripWatch/internal/broker/messages"
	"github.com/BearBump/TripWatch/internal/cache"
	"github.com/BearBump/TripWatch/internal/models"
	"github.com/BearBump/TripWatch/internal/storage/pgstatus"
	"github.com/pkg/errors"
)

var ErrInvalidReference = errors.New("reference is required")

type Repository interface {
	ApplyStatusChange(ctx context.Context, ch pgstatus.StatusChange) error
	GetCurrentStatus(ctx context.Context, reference string) (*models.StatusRecord, error)
	ListStatusEvents(ctx context.Context, reference string, limit, offset int) ([]*models.StatusEvent, error)
}

// Service is the read side: it persists status messages and serves current status and history.
type Service struct {
	repo       Repository
	cache      cache.BytesCache
	currentTTL time.Duration
}

func New(repo Repository, c cache.BytesCache, currentTTL time.Duration) *Service {
	return &Service{repo: repo, cache: c, currentTTL: currentTTL}
}

func (s *Service) cacheEnabled() bool {
	return s.cache != nil && s.currentTTL > 0
}

// GetCurrentStatus reads through the redis cache. Cache errors and bad entries count as a miss.
func (s *Service) GetCurrentStatus(ctx context.Context, reference string) (*models.StatusRecord, error) {
	if reference == "" {
		return nil, ErrInvalidReference
	}

	if s.cacheEnabled() {
		b, ok, err := s.cache.Get(ctx, currentKey(reference))
		if err == nil && ok {
			var rec models.StatusRecord
			if json.Unmarshal(b, &rec) == nil {
				return &rec, nil
			}
		}
	}

	rec, err := s.repo.GetCurrentStatus(ctx, reference)
	if err != nil {
		return nil, err
	}
	s.store(ctx, rec)
	return rec, nil
}

func (s *Service) ListStatusEvents(ctx context.Context, reference string, limit, offset int) ([]*models.StatusEvent, error) {
	if reference == "" {
		return nil, ErrInvalidReference
	}
	return s.repo.ListStatusEvents(ctx, reference, limit, offset)
}

func (s *Service) ApplyKafkaMessage(ctx context.Context, msg messages.TripStatusChanged) error {
	if msg.Reference == "" {
		return ErrInvalidReference
	}
	if msg.At.IsZero() {
		msg.At = time.Now().UTC()
	}

	ch := pgstatus.StatusChange{
		Kind:      msg.Kind,
		Reference: msg.Reference,
		At:        msg.At,
		PickupAt:  msg.PickupAt,
		EndReason: msg.EndReason,
	}
	if msg.Kind == messages.KindStatusChanged {
		ch.Status = msg.TripStatus()
	}
	if err := s.repo.ApplyStatusChange(ctx, ch); err != nil {
		return err
	}

	// Перечитываем строку из БД: она могла не обновиться, если сообщение запоздало.
	if s.cacheEnabled() {
		rec, err := s.repo.GetCurrentStatus(ctx, msg.Reference)
		if err == nil {
			s.store(ctx, rec)
		}
	}
	return nil
}

// HandleMessage is the kafka consumer handler. Malformed payloads are logged and skipped so
// they do not block the partition.
func (s *Service) HandleMessage(ctx context.Context, key, value []byte) error {
	var msg messages.TripStatusChanged
	if err := json.Unmarshal(value, &msg); err != nil {
		slog.Error("bad trip status message", "key", string(key), "error", err.Error())
		return nil
	}
	if msg.Reference == "" {
		msg.Reference = string(key)
	}
	if err := s.ApplyKafkaMessage(ctx, msg); err != nil {
		return errors.Wrapf(err, "apply message for %s", msg.Reference)
	}
	return nil
}

func (s *Service) store(ctx context.Context, rec *models.StatusRecord) {
	if !s.cacheEnabled() || rec == nil {
		return
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return
	}
	_ = s.cache.Set(ctx, currentKey(rec.Reference), b, s.currentTTL)
}

func currentKey(reference string) string {
	return fmt.Sprintf("trip:%s:current", reference)
}
