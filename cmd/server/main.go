// cmd/server/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/andresuchdata/shelfwise/internal/api"
	"github.com/andresuchdata/shelfwise/internal/app"
	"github.com/andresuchdata/shelfwise/internal/config"
	"github.com/andresuchdata/shelfwise/internal/listener"
	"github.com/andresuchdata/shelfwise/internal/repository"
	"github.com/andresuchdata/shelfwise/internal/repository/memory"
	"github.com/andresuchdata/shelfwise/internal/repository/postgres"
	"github.com/andresuchdata/shelfwise/pkg/logger"
	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	logger.SetLevel(cfg.LogLevel)
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize storage
	var (
		repos repository.Repositories
		ping  func(context.Context) error
	)
	switch cfg.Database.Driver {
	case "memory":
		logger.Log.Warn().Msg("using in-memory storage, data is lost on restart")
		repos = memory.New().Repositories()
	default:
		db, err := postgres.NewDB(&cfg.Database)
		if err != nil {
			logger.Log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer db.Close()

		if err := db.Migrate(ctx); err != nil {
			logger.Log.Fatal().Err(err).Msg("Failed to apply schema")
		}
		repos = db.Repositories()
		ping = db.PingContext
	}

	// Initialize services
	application, err := app.New(cfg, repos)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer application.Close()

	go func() {
		if err := application.RunRelay(ctx); err != nil {
			logger.Log.Error().Err(err).Msg("realtime relay stopped")
		}
	}()

	if cfg.Refresh.Interval > 0 {
		go application.Refresher().Start(ctx)
	}

	if len(cfg.Kafka.Brokers) > 0 {
		sales := listener.NewSalesListener(listener.NewKafkaReader(cfg.Kafka), application.Predictions)
		defer sales.Close()
		go sales.Start(ctx)
	}

	// Initialize HTTP server
	router := api.NewRouter(&api.Services{
		PredictionService: application.Predictions,
		AlertService:      application.Alerts,
		Broker:            application.Broker,
		Ping:              ping,
	}, cfg.Server.AllowedOrigins)

	srv := &http.Server{
		Addr:        ":" + cfg.Server.Port,
		Handler:     router,
		ReadTimeout: time.Duration(cfg.Server.ReadTimeout) * time.Second,
		// event streams stay open, so only bound writes when configured
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Log.Info().Str("port", cfg.Server.Port).Str("storage", cfg.Database.Driver).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	<-ctx.Done()
	logger.Log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error().Err(err).Msg("Server forced to shutdown")
	}

	logger.Log.Info().Msg("Server exiting")
}
