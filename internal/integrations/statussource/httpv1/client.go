package httpv1

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/BearBump/TripWatch/internal/integrations/statussource"
	"github.com/BearBump/TripWatch/internal/models"
	"github.com/pkg/errors"
)

type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

func New(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:9000"
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type respDriver struct {
	Name     string  `json:"name"`
	Phone    *string `json:"phone,omitempty"`
	PhotoURL *string `json:"photo_url,omitempty"`
}

type respVehicle struct {
	Make  string `json:"make"`
	Model string `json:"model"`
	Color string `json:"color"`
	Plate string `json:"plate"`
}

type respETA struct {
	Minutes    int      `json:"minutes"`
	DistanceKM *float64 `json:"distance_km,omitempty"`
}

type respLocation struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type respBody struct {
	Reference string        `json:"reference"`
	Status    string        `json:"status"`
	Driver    *respDriver   `json:"driver,omitempty"`
	Vehicle   *respVehicle  `json:"vehicle,omitempty"`
	ETA       *respETA      `json:"eta,omitempty"`
	Location  *respLocation `json:"location,omitempty"`
	UpdatedAt *time.Time    `json:"updated_at,omitempty"`
}

func (c *Client) Fetch(ctx context.Context, reference string) (models.TripStatus, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return models.TripStatus{}, errors.Wrap(err, "parse base url")
	}
	u.Path = fmt.Sprintf("/v1/trips/%s/status", url.PathEscape(reference))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return models.TripStatus{}, errors.Wrap(err, "new request")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return models.TripStatus{}, errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return models.TripStatus{}, errors.Wrapf(statussource.ErrUnauthorized, "http %d", resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return models.TripStatus{}, errors.Wrap(statussource.ErrRateLimited, "http 429")
	case resp.StatusCode/100 != 2:
		return models.TripStatus{}, errors.Errorf("status source http %d", resp.StatusCode)
	}

	var rb respBody
	if err := json.NewDecoder(resp.Body).Decode(&rb); err != nil {
		return models.TripStatus{}, statussource.DecodeError(errors.Wrap(err, "decode"))
	}
	if rb.Status == "" {
		return models.TripStatus{}, statussource.DecodeError(errors.New("status is missing"))
	}

	st := models.TripStatus{
		Reference:  reference,
		Status:     models.ParseStatusCode(rb.Status),
		StatusRaw:  rb.Status,
		ObservedAt: time.Now().UTC(),
	}
	if rb.UpdatedAt != nil {
		st.ObservedAt = rb.UpdatedAt.UTC()
	}
	if rb.Driver != nil {
		st.Driver = &models.Driver{Name: rb.Driver.Name, Phone: rb.Driver.Phone, PhotoURL: rb.Driver.PhotoURL}
	}
	if rb.Vehicle != nil {
		st.Vehicle = &models.Vehicle{Make: rb.Vehicle.Make, Model: rb.Vehicle.Model, Color: rb.Vehicle.Color, Plate: rb.Vehicle.Plate}
	}
	if rb.ETA != nil {
		st.ETA = &models.ETA{Minutes: rb.ETA.Minutes, DistanceKM: rb.ETA.DistanceKM}
	}
	if rb.Location != nil {
		st.Location = &models.Location{Lat: rb.Location.Lat, Lng: rb.Location.Lng}
	}
	return st, nil
}
