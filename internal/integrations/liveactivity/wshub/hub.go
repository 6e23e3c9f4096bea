package wshub

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/BearBump/TripWatch/internal/integrations/liveactivity"
	"github.com/BearBump/TripWatch/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

const writeTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Frame is one live activity message sent to subscribed clients.
type Frame struct {
	Event     string                     `json:"event"`
	Handle    liveactivity.Handle        `json:"handle"`
	Reference string                     `json:"reference"`
	State     *liveactivity.ContentState `json:"state,omitempty"`
	At        time.Time                  `json:"at"`
}

// gorilla/websocket допускает только одного писателя на соединение.
type conn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func (c *conn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteJSON(v)
}

// Hub presents live activities to websocket clients subscribed per trip reference.
// A client that connects while an activity is live receives its latest frame first.
type Hub struct {
	mu      sync.RWMutex
	conns   map[string][]*conn
	handles map[liveactivity.Handle]string
	last    map[string]Frame
}

func New() *Hub {
	return &Hub{
		conns:   make(map[string][]*conn),
		handles: make(map[liveactivity.Handle]string),
		last:    make(map[string]Frame),
	}
}

// Routes is mounted under /ws.
func (h *Hub) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/trips/{reference}", h.HandleWS)
	return r
}

func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "reference")
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade", "trip_ref", ref, "error", err.Error())
		return
	}
	c := &conn{ws: ws}

	h.mu.Lock()
	h.conns[ref] = append(h.conns[ref], c)
	last, hasLast := h.last[ref]
	h.mu.Unlock()
	slog.Info("live activity client connected", "trip_ref", ref)

	if hasLast {
		if err := c.writeJSON(last); err != nil {
			slog.Warn("websocket write", "trip_ref", ref, "error", err.Error())
		}
	}

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}

	h.removeConn(ref, c)
	_ = ws.Close()
	slog.Info("live activity client disconnected", "trip_ref", ref)
}

func (h *Hub) StartActivity(_ context.Context, trip models.Trip, st models.TripStatus) (liveactivity.Handle, error) {
	hd := liveactivity.Handle(uuid.NewString())
	h.mu.Lock()
	h.handles[hd] = trip.Reference
	h.mu.Unlock()

	h.broadcast(h.frame("start", hd, trip.Reference, &st))
	return hd, nil
}

func (h *Hub) UpdateActivity(_ context.Context, hd liveactivity.Handle, st models.TripStatus) error {
	ref, ok := h.refFor(hd)
	if !ok {
		return errors.Errorf("unknown live activity %s", hd)
	}
	h.broadcast(h.frame("update", hd, ref, &st))
	return nil
}

func (h *Hub) EndActivity(_ context.Context, hd liveactivity.Handle) error {
	h.mu.Lock()
	ref, ok := h.handles[hd]
	delete(h.handles, hd)
	h.mu.Unlock()
	if !ok {
		return nil
	}
	h.broadcast(h.frame("end", hd, ref, nil))
	return nil
}

// Clients returns the number of connected clients for a reference.
func (h *Hub) Clients(reference string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[reference])
}

func (h *Hub) frame(event string, hd liveactivity.Handle, ref string, st *models.TripStatus) Frame {
	f := Frame{Event: event, Handle: hd, Reference: ref, At: time.Now().UTC()}
	if st != nil {
		cs := liveactivity.NewContentState(*st)
		f.State = &cs
	}
	return f
}

func (h *Hub) refFor(hd liveactivity.Handle) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ref, ok := h.handles[hd]
	return ref, ok
}

func (h *Hub) broadcast(f Frame) {
	h.mu.Lock()
	if f.Event == "end" {
		delete(h.last, f.Reference)
	} else {
		h.last[f.Reference] = f
	}
	conns := append([]*conn(nil), h.conns[f.Reference]...)
	h.mu.Unlock()

	for _, c := range conns {
		if err := c.writeJSON(f); err != nil {
			slog.Warn("websocket write", "trip_ref", f.Reference, "error", err.Error())
		}
	}
}

func (h *Hub) removeConn(ref string, c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns := h.conns[ref]
	for i, x := range conns {
		if x == c {
			h.conns[ref] = append(conns[:i], conns[i+1:]...)
			break
		}
	}
	if len(h.conns[ref]) == 0 {
		delete(h.conns, ref)
	}
}
