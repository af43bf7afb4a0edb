// internal/app/app.go
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/andresuchdata/shelfwise/internal/cache"
	"github.com/andresuchdata/shelfwise/internal/config"
	"github.com/andresuchdata/shelfwise/internal/forecast"
	"github.com/andresuchdata/shelfwise/internal/notification"
	"github.com/andresuchdata/shelfwise/internal/realtime"
	"github.com/andresuchdata/shelfwise/internal/refresh"
	"github.com/andresuchdata/shelfwise/internal/repository"
	"github.com/andresuchdata/shelfwise/internal/service"
	"github.com/andresuchdata/shelfwise/internal/storage"
	"github.com/rs/zerolog/log"
)

// App holds the wired services shared by the server and the CLI
type App struct {
	Config      *config.Config
	Repos       repository.Repositories
	Cache       *cache.PredictionCache
	Broker      realtime.Broker
	Predictions *service.PredictionService
	Alerts      *service.AlertService

	relay   *realtime.RedisBroker
	closers []func() error
}

// New wires caching, realtime fan-out, forecasting and the services on top of repos
func New(cfg *config.Config, repos repository.Repositories) (*App, error) {
	a := &App{Config: cfg, Repos: repos}

	store, err := cache.NewStore(cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}
	a.closers = append(a.closers, store.Close)
	a.Cache = cache.NewPredictionCache(store, cache.TTL(cfg.Cache))

	switch cfg.Realtime.Backend {
	case "redis":
		client, err := cache.NewRedisClient(cfg.Cache)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to initialize realtime relay: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		a.relay = realtime.NewRedisBroker(client, cfg.Realtime.ChannelPrefix)
		a.Broker = a.relay
	default:
		a.Broker = realtime.NewHub()
	}

	opts := service.PredictionOptionsFromConfig(cfg.Prediction)
	a.Predictions = service.NewPredictionService(
		repos,
		newForecaster(cfg.Forecast, opts.MovingAveragePeriod),
		notification.NewGate(repos.Notifications, cfg.Notification.Cooldown, opts.Now),
		a.Cache,
		a.Broker,
		opts,
	)
	a.Alerts = service.NewAlertService(repos, opts.Now)

	log.Info().
		Str("cache", cfg.Cache.Backend).
		Str("realtime", cfg.Realtime.Backend).
		Bool("forecast_model", cfg.Forecast.ModelEnabled).
		Msg("services initialized")

	return a, nil
}

func newForecaster(cfg config.ForecastConfig, period int) forecast.Provider {
	statistical := forecast.NewStatistical(period)
	if !cfg.ModelEnabled || cfg.ModelURL == "" {
		return statistical
	}
	return forecast.NewFallback(forecast.NewRemote(cfg.ModelURL, cfg.ModelTimeout), statistical, true, cfg.ModelMinRecords)
}

// RunRelay blocks relaying redis events into the local hub. It returns at once
// for the in-process broker.
func (a *App) RunRelay(ctx context.Context) error {
	if a.relay == nil {
		return nil
	}
	return a.relay.Run(ctx)
}

// Refresher builds the periodic prediction refresh
func (a *App) Refresher() *refresh.Orchestrator {
	cfg := refresh.DefaultConfig()
	if a.Config.Refresh.Interval > 0 {
		cfg.Interval = a.Config.Refresh.Interval
	}
	return refresh.NewOrchestrator(a.Repos.Stores, a.Predictions, cfg)
}

// Exporter connects object storage for snapshots
func (a *App) Exporter(ctx context.Context) (*storage.Exporter, error) {
	objects, err := storage.NewMinioClient(ctx, a.Config.Storage)
	if err != nil {
		return nil, err
	}
	return storage.NewExporter(objects, a.Predictions, a.Alerts, time.Now), nil
}

// Close releases cache and redis connections
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warn().Err(err).Msg("failed to close resource")
		}
	}
	a.closers = nil
}
