package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/BearBump/TripWatch/internal/cache/statuscache"
	"github.com/BearBump/TripWatch/internal/integrations/statussource/fake"
	"github.com/BearBump/TripWatch/internal/models"
	"github.com/BearBump/TripWatch/internal/services/monitor"
	"github.com/BearBump/TripWatch/internal/services/reclassify"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, swaggerPath string) (*httptest.Server, *monitor.Scheduler) {
	t.Helper()
	clk := clockwork.NewFakeClockAt(t0)
	statuses := statuscache.New()
	sched := monitor.New(fake.New(), statuses, nil, clk)
	board := reclassify.NewBoard(sched, statuses, clk)
	t.Cleanup(sched.Close)

	srv := httptest.NewServer(newMonitorRouter(monitorHTTPOpts{
		swaggerPath: swaggerPath,
		scheduler:   sched,
		board:       board,
	}))
	t.Cleanup(srv.Close)
	return srv, sched
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestMonitorRouter_Healthz(t *testing.T) {
	srv, _ := newTestServer(t, "")
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out map[string]string
	decode(t, resp, &out)
	require.Equal(t, "ok", out["status"])
}

func TestMonitorRouter_StartValidation(t *testing.T) {
	srv, _ := newTestServer(t, "")

	resp, err := http.Post(srv.URL+"/monitor/trips", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/monitor/trips", "application/json", strings.NewReader(`{"pickup_at":"2026-03-14T09:10:00Z"}`))
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMonitorRouter_StartOutsideWindow(t *testing.T) {
	srv, sched := newTestServer(t, "")
	body, _ := json.Marshal(models.Trip{Reference: "FAR", PickupAt: t0.Add(5 * time.Hour)})

	resp, err := http.Post(srv.URL+"/monitor/trips", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	var out map[string]any
	decode(t, resp, &out)
	require.Equal(t, false, out["started"])
	require.False(t, sched.IsMonitoring("FAR"))
}

func TestMonitorRouter_StatusSessionsAndStop(t *testing.T) {
	srv, sched := newTestServer(t, "")

	resp, err := http.Get(srv.URL + "/monitor/trips/BK-1/status")
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	body, _ := json.Marshal(models.Trip{Reference: "BK-1", PickupAt: t0.Add(30 * time.Minute)})
	resp, err = http.Post(srv.URL+"/monitor/trips", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	_ = resp.Body.Close()

	require.Eventually(t, func() bool {
		_, ok := sched.CurrentStatus("BK-1")
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	resp, err = http.Get(srv.URL + "/monitor/trips/BK-1/status")
	require.NoError(t, err)
	var st models.TripStatus
	decode(t, resp, &st)
	require.Equal(t, models.StatusAssigned, st.Status)

	resp, err = http.Get(srv.URL + "/monitor/sessions")
	require.NoError(t, err)
	var sessions []monitor.SessionInfo
	decode(t, resp, &sessions)
	require.Len(t, sessions, 1)
	require.Equal(t, "BK-1", sessions[0].Reference)

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/monitor/trips/BK-1", nil)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	var stopped map[string]any
	decode(t, resp, &stopped)
	require.Equal(t, true, stopped["stopped"])
	require.False(t, sched.IsMonitoring("BK-1"))

	// повторная остановка не ошибка
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	decode(t, resp, &stopped)
	require.Equal(t, false, stopped["stopped"])
}

func TestMonitorRouter_BoardLoadAndStopAll(t *testing.T) {
	srv, sched := newTestServer(t, "")

	body, _ := json.Marshal(loadBoardRequest{
		Upcoming: []models.Trip{
			{Reference: "U2", PickupAt: t0.Add(50 * time.Minute)},
			{Reference: "U1", PickupAt: t0.Add(10 * time.Minute)},
		},
		Past: []models.Trip{{Reference: "P1", PickupAt: t0.Add(-5 * time.Hour)}},
	})
	resp, err := http.Post(srv.URL+"/board/load", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	var buckets reclassify.Buckets
	decode(t, resp, &buckets)
	require.Len(t, buckets.Upcoming, 2)
	require.Equal(t, "U1", buckets.Upcoming[0].Reference)
	require.Len(t, buckets.Past, 1)
	require.True(t, sched.IsMonitoring("U1"))
	require.True(t, sched.IsMonitoring("U2"))

	resp, err = http.Get(srv.URL + "/board")
	require.NoError(t, err)
	decode(t, resp, &buckets)
	require.Equal(t, "P1", buckets.Past[0].Reference)

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/monitor/trips", nil)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	var out map[string]int
	decode(t, resp, &out)
	require.Equal(t, 2, out["stopped"])

	resp, err = http.Get(srv.URL + "/stats")
	require.NoError(t, err)
	var stats map[string]monitor.Stats
	decode(t, resp, &stats)
	require.Equal(t, 0, stats["scheduler"].ActiveSessions)
	require.Equal(t, int64(2), stats["scheduler"].TotalStarted)
}

func TestMonitorRouter_CORSAndSwagger(t *testing.T) {
	dir := t.TempDir()
	sw := filepath.Join(dir, "swagger.json")
	require.NoError(t, os.WriteFile(sw, []byte(`{"swagger":"2.0"}`), 0o600))
	srv, _ := newTestServer(t, sw)

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/monitor/trips", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	resp, err = http.Get(srv.URL + "/swagger.json")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "no-store", resp.Header.Get("Cache-Control"))
}
