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
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/gamestore-backend/api/routes"
	"github.com/angelmondragon/gamestore-backend/internal/app"
	"github.com/angelmondragon/gamestore-backend/internal/auth"
	"github.com/angelmondragon/gamestore-backend/internal/users"
	"github.com/angelmondragon/gamestore-backend/internal/webhooks"
	"github.com/angelmondragon/gamestore-backend/pkg/config"
	"github.com/angelmondragon/gamestore-backend/pkg/db"
	"github.com/angelmondragon/gamestore-backend/pkg/logger"
	"github.com/angelmondragon/gamestore-backend/pkg/metrics"
	"github.com/angelmondragon/gamestore-backend/pkg/migrate"
	"github.com/angelmondragon/gamestore-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "api"

	logg = logger.FromConfig("api", cfg.App)

	if err := cfg.Validate(); err != nil {
		logg.Error(context.Background(), "invalid configuration", err)
		os.Exit(1)
	}
	if cfg.Stripe.MockMode {
		logg.Warn(context.Background(), "payments mock mode enabled; no real charges will be made")
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
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

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
	if err := services.Orders.SeedCatalog(context.Background()); err != nil {
		logg.Error(context.Background(), "failed to seed catalog", err)
		os.Exit(1)
	}

	webhookSvc, err := webhooks.NewService(webhooks.ServiceParams{
		Verifier: webhooks.NewVerifier(cfg.Stripe.Secret, cfg.Webhook.HMACSecret),
		Ledger:   webhooks.NewLedger(dbClient.DB()),
		Orders:   services.OrdersRepo,
		Applier:  services.Reconciliation,
		Metrics:  metrics.NewWebhookMetrics(registry),
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}
	guard, err := webhooks.NewInFlightGuard(redisClient, cfg.Webhook.GuardTTL, "webhook")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook guard", err)
		os.Exit(1)
	}

	authService, err := auth.NewService(auth.ServiceParams{
		Users:    users.NewRepository(dbClient.DB()),
		JWT:      cfg.JWT,
		Password: cfg.Password,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":       cfg.App.Env,
		"addr":      addr,
		"mock_mode": cfg.Stripe.MockMode,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		ReadHeaderTimeout: 10 * time.Second,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:         cfg,
			Logger:         logg,
			DB:             dbClient,
			Redis:          redisClient,
			Idempotency:    redisClient,
			Gatherer:       registry,
			Auth:           authService,
			Orders:         services.Orders,
			Gateway:        services.Gateway,
			Reconciliation: services.Reconciliation,
			Shipping:       services.Shipping,
			Webhooks:       webhookSvc,
			WebhookGuard:   guard,
		}),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "graceful shutdown failed", err)
		}
		logg.Info(shutdownCtx, "api server shut down")
	}
}
