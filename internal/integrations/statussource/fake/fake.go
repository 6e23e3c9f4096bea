package fake

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/BearBump/TripWatch/internal/models"
)

var progression = []models.StatusCode{
	models.StatusAssigned,
	models.StatusEnRoute,
	models.StatusNearby,
	models.StatusArrived,
	models.StatusWaiting,
	models.StatusInProgress,
	models.StatusCompleted,
}

// Client: локальная заглушка источника статусов для демо.
// Каждый Fetch продвигает поездку на один шаг; часть поездок (по хэшу reference) отменяется.
type Client struct {
	mu    sync.Mutex
	steps map[string]int
}

func New() *Client { return &Client{steps: make(map[string]int)} }

func (c *Client) Fetch(ctx context.Context, reference string) (models.TripStatus, error) {
	if err := ctx.Err(); err != nil {
		return models.TripStatus{}, err
	}

	c.mu.Lock()
	step := c.steps[reference]
	if step < len(progression)-1 {
		c.steps[reference] = step + 1
	}
	c.mu.Unlock()

	h := fnv.New32a()
	_, _ = h.Write([]byte(reference))
	cancelled := h.Sum32()%5 == 0

	status := progression[step]
	if cancelled && step >= 2 {
		status = models.StatusCancelled
	}

	st := models.TripStatus{
		Reference:  reference,
		Status:     status,
		StatusRaw:  string(status),
		ObservedAt: time.Now().UTC(),
	}
	if step >= 1 && status != models.StatusCancelled {
		st.Driver = &models.Driver{Name: "Test Driver", Phone: ptr("+10000000000")}
		st.Vehicle = &models.Vehicle{Make: "Mercedes-Benz", Model: "E-Class", Color: "black", Plate: "FAKE-" + string(rune('A'+h.Sum32()%26))}
	}
	if status.IsActive() {
		st.ETA = &models.ETA{Minutes: max(0, 12-3*step)}
	}
	return st, nil
}

func ptr(s string) *string { return &s }
