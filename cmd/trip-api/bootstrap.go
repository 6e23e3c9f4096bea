package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BearBump/TripWatch/config"
	"github.com/BearBump/TripWatch/internal/broker/kafka"
	"github.com/BearBump/TripWatch/internal/cache/rediscache"
	"github.com/BearBump/TripWatch/internal/services/statusview"
	"github.com/BearBump/TripWatch/internal/storage/pgstatus"
)

type tripAPIApp struct {
	ctx      context.Context
	cancel   context.CancelFunc
	opts     tripAPIOpts
	svc      *statusview.Service
	consumer *kafka.Consumer
	closers  []func()
}

func optsFromConfig(cfg *config.Config, swaggerPath string) tripAPIOpts {
	tw := cfg.TripWatch
	opts := tripAPIOpts{
		grpcAddr:      tw.GRPCAddr,
		httpAddr:      tw.HTTPAddr,
		swaggerPath:   swaggerPath,
		topic:         cfg.StatusChangedTopic(),
		consumerGroup: tw.KafkaConsumerGroup,
	}
	if opts.grpcAddr == "" {
		opts.grpcAddr = ":50051"
	}
	if opts.httpAddr == "" {
		opts.httpAddr = ":8080"
	}
	if opts.consumerGroup == "" {
		opts.consumerGroup = "trip-api"
	}
	opts.grpcDialAddr = opts.grpcAddr
	return opts
}

func mustBootstrapTripAPI() *tripAPIApp {
	cfg, err := config.LoadConfig(os.Getenv("configPath"))
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}
	opts := optsFromConfig(cfg, os.Getenv("swaggerPath"))

	st := mustOpenPostgresWithRetry(cfg.PostgresConnString(), 60*time.Second)
	opts.ready = st.Ping
	rc := rediscache.New(cfg.RedisAddr())
	svc := statusview.New(st, rc, cfg.TripWatch.CurrentStatusTTL())
	consumer := kafka.NewConsumer(cfg.KafkaBrokers(), opts.topic, opts.consumerGroup)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	return &tripAPIApp{
		ctx:      ctx,
		cancel:   cancel,
		opts:     opts,
		svc:      svc,
		consumer: consumer,
		closers: []func(){
			func() { _ = rc.Close() },
			st.Close,
		},
	}
}

func mustOpenPostgresWithRetry(connString string, wait time.Duration) *pgstatus.Storage {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		st, err := pgstatus.New(ctx, connString)
		cancel()
		if err == nil {
			return st
		}
		lastErr = err
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("postgres is not ready after %s: %v", wait, lastErr))
}

func (a *tripAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.consumer != nil {
		_ = a.consumer.Close()
	}
	for _, c := range a.closers {
		c()
	}
}

func (a *tripAPIApp) Run() error {
	return runTripAPI(a.ctx, a.opts, a.svc, a.consumer)
}
