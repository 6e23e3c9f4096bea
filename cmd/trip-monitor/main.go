package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/BearBump/TripWatch/config"
	"github.com/joho/godotenv"
)

func main() {
	// .env необязателен
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(os.Getenv("configPath"))
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	opts := monitorHTTPOpts{
		httpAddr:    cfg.TripWatch.MonitorHTTPAddr,
		swaggerPath: os.Getenv("swaggerPath"),
	}
	if err := RunTripMonitor(ctx, cfg, defaultMonitorFactories(), opts); err != nil && !errors.Is(err, context.Canceled) {
		panic(err)
	}
}
