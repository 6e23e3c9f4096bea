package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/BearBump/TripWatch/config"
	"github.com/BearBump/TripWatch/internal/broker/kafka"
	"github.com/BearBump/TripWatch/internal/cache"
	"github.com/BearBump/TripWatch/internal/cache/rediscache"
	"github.com/BearBump/TripWatch/internal/cache/statuscache"
	"github.com/BearBump/TripWatch/internal/integrations/liveactivity"
	"github.com/BearBump/TripWatch/internal/integrations/liveactivity/fcm"
	"github.com/BearBump/TripWatch/internal/integrations/liveactivity/logpresenter"
	"github.com/BearBump/TripWatch/internal/integrations/liveactivity/wshub"
	"github.com/BearBump/TripWatch/internal/integrations/statussource"
	"github.com/BearBump/TripWatch/internal/integrations/statussource/fake"
	"github.com/BearBump/TripWatch/internal/integrations/statussource/httpv1"
	"github.com/BearBump/TripWatch/internal/services/activity"
	"github.com/BearBump/TripWatch/internal/services/monitor"
	"github.com/BearBump/TripWatch/internal/services/reclassify"
	"github.com/BearBump/TripWatch/internal/services/statusfeed"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

const relayDrainTimeout = 5 * time.Second

type monitorFactories struct {
	newFetcher   func(cfg *config.Config) (statussource.Fetcher, func())
	newPresenter func(ctx context.Context, cfg *config.Config) (liveactivity.Presenter, error)
	newMirror    func(cfg *config.Config) (cache.BytesCache, func())
	newProducer  func(cfg *config.Config) (statusfeed.Producer, func())
	clock        clockwork.Clock
}

func defaultMonitorFactories() monitorFactories {
	return monitorFactories{
		newFetcher: func(cfg *config.Config) (statussource.Fetcher, func()) {
			tw := cfg.TripWatch
			var f statussource.Fetcher
			// Без base_url работаем на локальном fake.
			if tw.StatusSourceMode == "http" && tw.StatusSourceBaseURL != "" {
				f = httpv1.New(tw.StatusSourceBaseURL, tw.StatusSourceAPIKey)
			} else {
				f = fake.New()
			}
			if tw.StatusSourceRateLimitPerMinute <= 0 || cfg.Redis.Host == "" {
				return f, nil
			}
			rl := rediscache.NewRateLimiter(cfg.RedisAddr())
			return statussource.NewLimited(f, rl, int64(tw.StatusSourceRateLimitPerMinute), tw.StatusSourceMode),
				func() { _ = rl.Close() }
		},
		newPresenter: func(ctx context.Context, cfg *config.Config) (liveactivity.Presenter, error) {
			tw := cfg.TripWatch
			switch tw.LiveActivityMode {
			case "fcm":
				return fcm.NewFromCredentials(ctx, tw.LiveActivityCredentialsFile, tw.LiveActivityDeviceToken, tw.LiveActivityBundleID)
			case "ws":
				return wshub.New(), nil
			default:
				return logpresenter.New(slog.Default()), nil
			}
		},
		newMirror: func(cfg *config.Config) (cache.BytesCache, func()) {
			if cfg.Redis.Host == "" {
				return nil, nil
			}
			rc := rediscache.New(cfg.RedisAddr())
			return rc, func() { _ = rc.Close() }
		},
		newProducer: func(cfg *config.Config) (statusfeed.Producer, func()) {
			if cfg.Kafka.Host == "" {
				return nil, nil
			}
			p := kafka.NewProducer(cfg.KafkaBrokers())
			return p, func() { _ = p.Close() }
		},
	}
}

func plannerConfig(cfg *config.Config) monitor.PlannerConfig {
	tw := cfg.TripWatch
	return monitor.PlannerConfig{
		ActiveInterval:    tw.ActiveInterval(),
		IdleInterval:      tw.IdleInterval(),
		FailureBackoff:    tw.FailureBackoff(),
		LeadTime:          tw.LeadTime(),
		LateStart:         tw.LateStart(),
		Expiry:            tw.Expiry(),
		MaxDecodeFailures: tw.MaxDecodeFailures,
		RetryUnauthorized: tw.RetryUnauthorized,
	}
}

// RunTripMonitor wires the scheduler, the board and the kafka relay and serves the ops HTTP API
// until ctx is done. Every session is stopped and its live activity ended before it returns.
func RunTripMonitor(ctx context.Context, cfg *config.Config, f monitorFactories, httpOpts monitorHTTPOpts) error {
	fetcher, closeFetcher := f.newFetcher(cfg)
	if closeFetcher != nil {
		defer closeFetcher()
	}
	if l, ok := fetcher.(*statussource.Limited); ok {
		l.WithClock(f.clock)
	}
	presenter, err := f.newPresenter(ctx, cfg)
	if err != nil {
		return err
	}

	statuses := statuscache.New()
	mirror, closeMirror := f.newMirror(cfg)
	if mirror != nil {
		statuses.WithMirror(mirror, cfg.TripWatch.StatusMirrorTTL())
	}
	if closeMirror != nil {
		defer closeMirror()
	}

	bridge := activity.NewBridge(presenter)
	sched := monitor.New(fetcher, statuses, bridge, f.clock).WithPlanner(plannerConfig(cfg))
	board := reclassify.NewBoard(sched, statuses, f.clock)
	if n := cfg.TripWatch.ReclassifyTickSeconds; n > 0 {
		board.WithTick(time.Duration(n) * time.Second)
	}

	g, gctx := errgroup.WithContext(ctx)

	boardEvents, _ := sched.Subscribe()
	g.Go(func() error { return board.Run(gctx, boardEvents) })

	producer, closeProducer := f.newProducer(cfg)
	if closeProducer != nil {
		defer closeProducer()
	}
	var relay *statusfeed.Relay
	if producer != nil {
		relay = statusfeed.New(producer, cfg.StatusChangedTopic())
		relayEvents, unsubRelay := sched.SubscribeQueued()
		g.Go(func() error {
			defer unsubRelay()
			// После остановки дочитываем события stopped, но не дольше relayDrainTimeout.
			relayCtx, cancel := drainContext(gctx, relayDrainTimeout)
			defer cancel()
			return relay.Run(relayCtx, relayEvents)
		})
	}

	httpOpts.scheduler = sched
	httpOpts.board = board
	httpOpts.bridge = bridge
	httpOpts.relay = relay
	if hub, ok := presenter.(*wshub.Hub); ok {
		httpOpts.hub = hub
	}
	g.Go(func() error { return runMonitorHTTPServer(gctx, httpOpts) })

	g.Go(func() error {
		<-gctx.Done()
		sched.Close()
		slog.Info("trip monitor stopped", "stats", sched.Stats())
		return nil
	})

	slog.Info("trip monitor started",
		"status_source", cfg.TripWatch.StatusSourceMode,
		"live_activity", cfg.TripWatch.LiveActivityMode,
		"relay", relay != nil,
	)
	return g.Wait()
}

// drainContext is cancelled grace after parent is done.
func drainContext(parent context.Context, grace time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	stop := context.AfterFunc(parent, func() {
		time.AfterFunc(grace, cancel)
	})
	return ctx, func() {
		stop()
		cancel()
	}
}
