package httpv1

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BearBump/TripWatch/internal/integrations/statussource"
	"github.com/BearBump/TripWatch/internal/models"
	"github.com/stretchr/testify/require"
)

func TestClient_Fetch_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/trips/BK-123/status", r.URL.Path)
		require.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
  "reference": "BK-123",
  "status": "EN_ROUTE",
  "driver": {"name": "Marat", "phone": "+77010000000"},
  "vehicle": {"make": "Mercedes", "model": "S-Class", "color": "black", "plate": "777AAA02"},
  "eta": {"minutes": 7, "distance_km": 3.4},
  "location": {"lat": 43.25, "lng": 76.9},
  "updated_at": "2025-01-01T10:00:00Z"
}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "k")
	st, err := c.Fetch(context.Background(), "BK-123")
	require.NoError(t, err)
	require.Equal(t, models.StatusEnRoute, st.Status)
	require.Equal(t, "EN_ROUTE", st.StatusRaw)
	require.Equal(t, "BK-123", st.Reference)
	require.NotNil(t, st.Driver)
	require.Equal(t, "Marat", st.Driver.Name)
	require.Equal(t, "777AAA02", st.Vehicle.Plate)
	require.Equal(t, 7, st.ETA.Minutes)
	require.InDelta(t, 43.25, st.Location.Lat, 1e-9)
	require.WithinDuration(t, time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC), st.ObservedAt, time.Second)
}

func TestClient_Fetch_UnknownStatusFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"driver_on_break"}`))
	}))
	defer srv.Close()

	st, err := New(srv.URL, "").Fetch(context.Background(), "R")
	require.NoError(t, err)
	require.Equal(t, models.StatusUnrecognized, st.Status)
	require.False(t, st.ObservedAt.IsZero())
}

func TestClient_Fetch_ErrorKinds(t *testing.T) {
	cases := []struct {
		name string
		code int
		body string
		kind statussource.Kind
	}{
		{"unauthorized", http.StatusUnauthorized, "", statussource.KindUnauthorized},
		{"forbidden", http.StatusForbidden, "", statussource.KindUnauthorized},
		{"rate limited", http.StatusTooManyRequests, "", statussource.KindRateLimited},
		{"server error", http.StatusBadGateway, "", statussource.KindTransport},
		{"malformed", http.StatusOK, `{"status":`, statussource.KindDecode},
		{"missing status", http.StatusOK, `{"reference":"R"}`, statussource.KindDecode},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.code)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := New(srv.URL, "k").Fetch(context.Background(), "R")
			require.Error(t, err)
			require.Equal(t, tc.kind, statussource.Classify(err))
		})
	}
}
