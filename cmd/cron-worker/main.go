package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/gamestore-backend/internal/app"
	"github.com/angelmondragon/gamestore-backend/internal/cron"
	"github.com/angelmondragon/gamestore-backend/pkg/config"
	"github.com/angelmondragon/gamestore-backend/pkg/db"
	"github.com/angelmondragon/gamestore-backend/pkg/logger"
	"github.com/angelmondragon/gamestore-backend/pkg/metrics"
	"github.com/angelmondragon/gamestore-backend/pkg/migrate"
	"github.com/angelmondragon/gamestore-backend/pkg/redis"
)

const lockTTL = 10 * time.Minute

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.FromConfig("cron-worker", cfg.App)

	if err := cfg.Validate(); err != nil {
		logg.Error(context.Background(), "invalid configuration", err)
		os.Exit(1)
	}

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRun(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	services, err := app.Build(context.Background(), app.Params{
		Config:     cfg,
		DB:         dbClient.DB(),
		Logger:     logg,
		Registerer: registry,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to wire services", err)
		os.Exit(1)
	}

	paymentJob, err := cron.NewPaymentStatusJob(cron.PaymentStatusJobParams{
		Logger:    logg,
		Orders:    services.OrdersRepo,
		Syncer:    services.Reconciliation,
		Interval:  cfg.Jobs.PaymentInterval(),
		MinAge:    cfg.Jobs.PaymentAge(),
		BatchSize: cfg.Jobs.PaymentBatchSize,
		DryRun:    cfg.Jobs.PaymentDryRun,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payment status job", err)
		os.Exit(1)
	}
	shipmentJob, err := cron.NewShipmentPollingJob(cron.ShipmentPollingJobParams{
		Logger:    logg,
		Orders:    services.OrdersRepo,
		Shipping:  services.Shipping,
		Interval:  cfg.Jobs.ShipmentInterval(),
		BatchSize: cfg.Jobs.ShipmentBatchSize,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create shipment polling job", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(paymentJob, shipmentJob),
		Locks:    cron.RedisLockFactory(redisClient, lockTTL),
		Metrics:  metrics.NewCronJobMetrics(registry),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"dry_run":     cfg.Jobs.PaymentDryRun,
	})

	metricsServer := &http.Server{
		Addr:              ":" + cfg.Jobs.MetricsPort,
		Handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "metrics server stopped", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}
