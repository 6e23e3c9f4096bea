package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/BearBump/TripWatch/config"
	"github.com/BearBump/TripWatch/internal/broker/messages"
	"github.com/BearBump/TripWatch/internal/cache"
	"github.com/BearBump/TripWatch/internal/integrations/liveactivity"
	"github.com/BearBump/TripWatch/internal/integrations/liveactivity/logpresenter"
	"github.com/BearBump/TripWatch/internal/integrations/liveactivity/wshub"
	"github.com/BearBump/TripWatch/internal/integrations/statussource"
	"github.com/BearBump/TripWatch/internal/integrations/statussource/fake"
	"github.com/BearBump/TripWatch/internal/integrations/statussource/httpv1"
	"github.com/BearBump/TripWatch/internal/models"
	"github.com/BearBump/TripWatch/internal/services/statusfeed"
	"github.com/stretchr/testify/require"
)

func TestDefaultMonitorFactories_SelectFetcher(t *testing.T) {
	f := defaultMonitorFactories()

	c1, closeFn := f.newFetcher(&config.Config{TripWatch: config.TripWatchConfig{
		StatusSourceMode:    "http",
		StatusSourceBaseURL: "http://localhost:9000",
		StatusSourceAPIKey:  "k",
	}})
	_, ok := c1.(*httpv1.Client)
	require.True(t, ok)
	require.Nil(t, closeFn)

	// без base_url падаем на fake
	c2, _ := f.newFetcher(&config.Config{TripWatch: config.TripWatchConfig{StatusSourceMode: "http"}})
	_, ok = c2.(*fake.Client)
	require.True(t, ok)

	c3, closeFn := f.newFetcher(&config.Config{
		Redis:     config.RedisConfig{Host: "127.0.0.1", Port: 6379},
		TripWatch: config.TripWatchConfig{StatusSourceRateLimitPerMinute: 60},
	})
	_, ok = c3.(*statussource.Limited)
	require.True(t, ok)
	require.NotNil(t, closeFn)
	closeFn()
}

func TestDefaultMonitorFactories_SelectPresenter(t *testing.T) {
	f := defaultMonitorFactories()
	ctx := context.Background()

	p, err := f.newPresenter(ctx, &config.Config{TripWatch: config.TripWatchConfig{LiveActivityMode: "ws"}})
	require.NoError(t, err)
	_, ok := p.(*wshub.Hub)
	require.True(t, ok)

	p, err = f.newPresenter(ctx, &config.Config{})
	require.NoError(t, err)
	_, ok = p.(*logpresenter.Presenter)
	require.True(t, ok)
}

func TestDefaultMonitorFactories_OptionalBackends(t *testing.T) {
	f := defaultMonitorFactories()

	m, closeFn := f.newMirror(&config.Config{})
	require.Nil(t, m)
	require.Nil(t, closeFn)

	p, closeFn := f.newProducer(&config.Config{})
	require.Nil(t, p)
	require.Nil(t, closeFn)
}

func TestPlannerConfig_FromConfig(t *testing.T) {
	pc := plannerConfig(&config.Config{TripWatch: config.TripWatchConfig{
		ActiveIntervalSeconds: 20,
		IdleIntervalSeconds:   90,
		LeadTimeMinutes:       30,
		MaxDecodeFailures:     -1,
		RetryUnauthorized:     true,
	}})
	require.Equal(t, 20*time.Second, pc.ActiveInterval)
	require.Equal(t, 90*time.Second, pc.IdleInterval)
	require.Equal(t, 30*time.Minute, pc.LeadTime)
	require.Equal(t, time.Duration(0), pc.Expiry)
	require.Equal(t, -1, pc.MaxDecodeFailures)
	require.True(t, pc.RetryUnauthorized)
}

type captureProducer struct {
	mu   sync.Mutex
	msgs []messages.TripStatusChanged
}

func (p *captureProducer) Publish(_ context.Context, _ string, _, value []byte) error {
	var m messages.TripStatusChanged
	if err := json.Unmarshal(value, &m); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, m)
	return nil
}

func (p *captureProducer) kinds(ref string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, m := range p.msgs {
		if m.Reference == ref {
			out = append(out, m.Kind)
		}
	}
	return out
}

func testFactories(prod *captureProducer) monitorFactories {
	return monitorFactories{
		newFetcher: func(*config.Config) (statussource.Fetcher, func()) { return fake.New(), nil },
		newPresenter: func(context.Context, *config.Config) (liveactivity.Presenter, error) {
			return wshub.New(), nil
		},
		newMirror:   func(*config.Config) (cache.BytesCache, func()) { return nil, nil },
		newProducer: func(*config.Config) (statusfeed.Producer, func()) { return prod, nil },
	}
}

func TestRunTripMonitor_EndToEnd(t *testing.T) {
	prod := &captureProducer{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addrCh := make(chan string, 1)
	errCh := make(chan error, 1)
	go func() {
		errCh <- RunTripMonitor(ctx, &config.Config{}, testFactories(prod), monitorHTTPOpts{
			httpAddr: "127.0.0.1:0",
			onListen: func(addr string) { addrCh <- addr },
		})
	}()
	base := "http://" + <-addrCh

	trip := models.Trip{Reference: "BK-E2E", PickupAt: time.Now().UTC().Add(20 * time.Minute)}
	body, _ := json.Marshal(trip)
	resp, err := http.Post(base+"/monitor/trips", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	var started map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&started))
	_ = resp.Body.Close()
	require.Equal(t, true, started["started"])

	require.Eventually(t, func() bool {
		r, err := http.Get(base + "/monitor/trips/BK-E2E/status")
		if err != nil {
			return false
		}
		defer r.Body.Close()
		return r.StatusCode == http.StatusOK
	}, 3*time.Second, 20*time.Millisecond)

	require.Eventually(t, func() bool {
		return len(prod.kinds("BK-E2E")) >= 1
	}, 3*time.Second, 20*time.Millisecond)

	req, _ := http.NewRequest(http.MethodDelete, base+"/monitor/trips/BK-E2E", nil)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()

	require.Eventually(t, func() bool {
		kinds := prod.kinds("BK-E2E")
		return len(kinds) >= 2 && kinds[len(kinds)-1] == messages.KindSessionEnded
	}, 3*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case <-errCh:
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting trip monitor to stop")
	}
}
