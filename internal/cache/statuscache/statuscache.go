package statuscache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/BearBump/TripWatch/internal/cache"
	"github.com/BearBump/TripWatch/internal/models"
)

// Cache holds the latest observed status per trip reference.
// Put always overwrites: it keeps the most recent observation, not a deduplicated value.
type Cache struct {
	mu       sync.RWMutex
	statuses map[string]models.TripStatus

	mirror    cache.BytesCache
	mirrorTTL time.Duration
}

func New() *Cache {
	return &Cache{statuses: make(map[string]models.TripStatus)}
}

// WithMirror enables best-effort write-through of every Put/Delete to a shared bytes cache,
// so that other processes can read current statuses.
func (c *Cache) WithMirror(m cache.BytesCache, ttl time.Duration) *Cache {
	c.mirror = m
	c.mirrorTTL = ttl
	return c
}

func Key(reference string) string {
	return fmt.Sprintf("trip:%s:status", reference)
}

func (c *Cache) Get(reference string) (models.TripStatus, bool) {
	c.mu.RLock()
	st, ok := c.statuses[reference]
	c.mu.RUnlock()
	return st, ok
}

func (c *Cache) Put(reference string, st models.TripStatus) {
	c.mu.Lock()
	c.statuses[reference] = st
	c.mu.Unlock()

	if c.mirror == nil {
		return
	}
	b, err := json.Marshal(st)
	if err != nil {
		slog.Error("marshal status for mirror", "trip_ref", reference, "error", err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.mirror.Set(ctx, Key(reference), b, c.mirrorTTL); err != nil {
		slog.Warn("mirror status", "trip_ref", reference, "error", err.Error())
	}
}

func (c *Cache) Delete(reference string) {
	c.mu.Lock()
	delete(c.statuses, reference)
	c.mu.Unlock()
	c.mirrorDel(reference)
}

func (c *Cache) Clear() {
	c.mu.Lock()
	refs := make([]string, 0, len(c.statuses))
	for ref := range c.statuses {
		refs = append(refs, ref)
	}
	c.statuses = make(map[string]models.TripStatus)
	c.mu.Unlock()
	c.mirrorDel(refs...)
}

// Snapshot returns a copy that is safe to read without holding the lock.
func (c *Cache) Snapshot() map[string]models.TripStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]models.TripStatus, len(c.statuses))
	for ref, st := range c.statuses {
		out[ref] = st
	}
	return out
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.statuses)
}

func (c *Cache) mirrorDel(refs ...string) {
	if c.mirror == nil || len(refs) == 0 {
		return
	}
	keys := make([]string, 0, len(refs))
	for _, ref := range refs {
		keys = append(keys, Key(ref))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.mirror.Del(ctx, keys...); err != nil {
		slog.Warn("mirror delete", "count", len(keys), "error", err.Error())
	}
}
