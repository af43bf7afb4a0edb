package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/andresuchdata/shelfwise/internal/app"
	"github.com/andresuchdata/shelfwise/internal/config"
	"github.com/andresuchdata/shelfwise/internal/listener"
	"github.com/andresuchdata/shelfwise/internal/repository/postgres"
	"github.com/andresuchdata/shelfwise/pkg/logger"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/urfave/cli/v2"
)

type ctxKey string

const (
	dbKey  ctxKey = "db"
	appKey ctxKey = "app"
)

func newDBURLFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "db-url",
		Usage:   "Database connection string, defaults to the DB_* settings",
		EnvVars: []string{"DATABASE_URL"},
	}
}

func newStoreFlag(required bool) *cli.StringSliceFlag {
	return &cli.StringSliceFlag{
		Name:     "store",
		Usage:    "Store id, repeatable",
		Required: required,
	}
}

func openDB(c *cli.Context) error {
	cfg := config.Load()
	logger.SetLevel(cfg.LogLevel)

	dsn := c.String("db-url")
	if dsn == "" {
		dsn = postgres.DSN(&cfg.Database)
	}

	raw, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := raw.PingContext(c.Context); err != nil {
		raw.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	db := postgres.Wrap(sqlx.NewDb(raw, "pgx"))
	c.Context = context.WithValue(c.Context, dbKey, db)
	return nil
}

func openApp(c *cli.Context) error {
	if err := openDB(c); err != nil {
		return err
	}

	db := c.Context.Value(dbKey).(*postgres.DB)
	application, err := app.New(config.Load(), db.Repositories())
	if err != nil {
		return err
	}
	c.Context = context.WithValue(c.Context, appKey, application)
	return nil
}

func closeAll(c *cli.Context) error {
	if application, ok := c.Context.Value(appKey).(*app.App); ok && application != nil {
		application.Close()
	}
	if db, ok := c.Context.Value(dbKey).(*postgres.DB); ok && db != nil {
		return db.Close()
	}
	return nil
}

func appFrom(c *cli.Context) *app.App {
	return c.Context.Value(appKey).(*app.App)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cliApp := &cli.App{
		Name:  "predictions",
		Usage: "Operate the inventory prediction engine",
		Commands: []*cli.Command{
			{
				Name:   "migrate",
				Usage:  "Apply the database schema",
				Flags:  []cli.Flag{newDBURLFlag()},
				Before: openDB,
				After:  closeAll,
				Action: func(c *cli.Context) error {
					return c.Context.Value(dbKey).(*postgres.DB).Migrate(c.Context)
				},
			},
			{
				Name:   "init",
				Usage:  "Recompute every prediction once, for all stores or the given ones",
				Flags:  []cli.Flag{newDBURLFlag(), newStoreFlag(false)},
				Before: openApp,
				After:  closeAll,
				Action: runInit,
			},
			{
				Name:   "refresh",
				Usage:  "Run the periodic refresh in the foreground",
				Flags:  []cli.Flag{newDBURLFlag()},
				Before: openApp,
				After:  closeAll,
				Action: func(c *cli.Context) error {
					appFrom(c).Refresher().Start(c.Context)
					return nil
				},
			},
			{
				Name:   "listen",
				Usage:  "Consume sale events from kafka and refresh predictions",
				Flags:  []cli.Flag{newDBURLFlag()},
				Before: openApp,
				After:  closeAll,
				Action: runListen,
			},
			{
				Name:   "flush-cache",
				Usage:  "Drop cached prediction reads, for every store unless --store is given",
				Flags:  []cli.Flag{newDBURLFlag(), newStoreFlag(false)},
				Before: openApp,
				After:  closeAll,
				Action: runFlushCache,
			},
			{
				Name:   "export",
				Usage:  "Write prediction and alert snapshots to object storage",
				Flags:  []cli.Flag{newDBURLFlag(), newStoreFlag(true)},
				Before: openApp,
				After:  closeAll,
				Action: runExport,
			},
			{
				Name:  "snapshots",
				Usage: "List exported snapshots of a store",
				Flags: []cli.Flag{
					newDBURLFlag(),
					newStoreFlag(true),
					&cli.BoolFlag{
						Name:  "latest",
						Usage: "Load the newest snapshot and print its totals",
					},
				},
				Before: openApp,
				After:  closeAll,
				Action: runSnapshots,
			},
		},
	}

	if err := cliApp.RunContext(ctx, os.Args); err != nil {
		logger.Log.Fatal().Err(err).Msg("command failed")
	}
}

func runInit(c *cli.Context) error {
	runs, err := appFrom(c).Refresher().RunOnce(c.Context, c.StringSlice("store")...)
	if err != nil {
		return err
	}

	failed := 0
	for _, run := range runs {
		event := logger.Log.Info()
		if run.ErrorMessage != "" {
			failed++
			event = logger.Log.Error().Str("error", run.ErrorMessage)
		}
		event.
			Str("store_id", run.StoreID).
			Str("status", string(run.Status)).
			Int("attempts", run.Attempts).
			Int("total", run.Result.Total).
			Int("succeeded", run.Result.Succeeded).
			Int("failed", run.Result.Failed).
			Msg("store initialized")
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d stores failed", failed, len(runs))
	}
	return nil
}

func runListen(c *cli.Context) error {
	cfg := config.Load()
	if len(cfg.Kafka.Brokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS must be set")
	}

	sales := listener.NewSalesListener(listener.NewKafkaReader(cfg.Kafka), appFrom(c).Predictions)
	defer sales.Close()

	sales.Start(c.Context)
	return nil
}

func runExport(c *cli.Context) error {
	exporter, err := appFrom(c).Exporter(c.Context)
	if err != nil {
		return err
	}

	for _, storeID := range c.StringSlice("store") {
		key, err := exporter.Export(c.Context, storeID)
		if err != nil {
			return fmt.Errorf("export %s: %w", storeID, err)
		}
		logger.Log.Info().Str("store_id", storeID).Str("key", key).Msg("snapshot exported")
	}
	return nil
}

func runFlushCache(c *cli.Context) error {
	stores := c.StringSlice("store")
	if len(stores) == 0 {
		stores = []string{""}
	}

	for _, storeID := range stores {
		if err := appFrom(c).Predictions.FlushCache(c.Context, storeID); err != nil {
			return err
		}
		logger.Log.Info().Str("store_id", storeID).Msg("cache flushed")
	}
	return nil
}

func runSnapshots(c *cli.Context) error {
	exporter, err := appFrom(c).Exporter(c.Context)
	if err != nil {
		return err
	}

	for _, storeID := range c.StringSlice("store") {
		objects, err := exporter.List(c.Context, storeID)
		if err != nil {
			return fmt.Errorf("list snapshots of %s: %w", storeID, err)
		}
		for _, obj := range objects {
			logger.Log.Info().
				Str("store_id", storeID).
				Str("key", obj.Key).
				Int64("size", obj.Size).
				Time("last_modified", obj.LastModified).
				Msg("snapshot")
		}

		if !c.Bool("latest") || len(objects) == 0 {
			continue
		}
		snap, err := exporter.Load(c.Context, objects[0].Key)
		if err != nil {
			return fmt.Errorf("load %s: %w", objects[0].Key, err)
		}
		event := logger.Log.Info().
			Str("store_id", snap.StoreID).
			Time("generated_at", snap.GeneratedAt).
			Int("predictions", len(snap.Predictions))
		if snap.Alerts != nil {
			event = event.Int("alerts", snap.Alerts.Summary.Total).Int("urgent", snap.Alerts.Summary.Urgent)
		}
		event.Msg("latest snapshot")
	}
	return nil
}
