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

	"github.com/angelmondragon/settlement-engine/api/controllers"
	"github.com/angelmondragon/settlement-engine/api/routes"
	"github.com/angelmondragon/settlement-engine/internal/bootstrap"
	"github.com/angelmondragon/settlement-engine/internal/payouts"
	"github.com/angelmondragon/settlement-engine/internal/webhooks"
	courierwebhook "github.com/angelmondragon/settlement-engine/internal/webhooks/courier"
	stripewebhook "github.com/angelmondragon/settlement-engine/internal/webhooks/stripe"
	"github.com/angelmondragon/settlement-engine/pkg/config"
	"github.com/angelmondragon/settlement-engine/pkg/db"
	"github.com/angelmondragon/settlement-engine/pkg/instance"
	"github.com/angelmondragon/settlement-engine/pkg/logger"
	"github.com/angelmondragon/settlement-engine/pkg/metrics"
	"github.com/angelmondragon/settlement-engine/pkg/migrate"
	"github.com/angelmondragon/settlement-engine/pkg/redis"
	"github.com/angelmondragon/settlement-engine/pkg/stripe"
)

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

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	var provider payouts.Provider
	stripeClient, err := stripe.NewClient(ctx, cfg.Stripe, logg)
	if err != nil {
		logg.Warn(ctx, "stripe not configured; payouts stay pending until resolved by an admin")
		stripeClient = nil
	} else {
		provider = payouts.NewStripeProvider(stripeClient)
	}

	services, err := bootstrap.NewServices(bootstrap.Params{
		Config:   cfg,
		Logger:   logg,
		DB:       dbClient,
		Provider: provider,
		Metrics:  metrics.NewSettlementMetrics(registry),
	})
	if err != nil {
		logg.Error(ctx, "failed to build settlement services", err)
		os.Exit(1)
	}

	routeServices := routes.Services{
		Escrow:   services.Escrow,
		Wallet:   services.Wallet,
		Payouts:  services.Payouts,
		Disputes: services.Disputes,
		Delivery: services.Delivery,
	}

	if stripeClient != nil {
		if err := wireStripeWebhook(cfg, logg, redisClient, services, stripeClient, &routeServices); err != nil {
			logg.Error(ctx, "failed to wire stripe webhook", err)
			os.Exit(1)
		}
	}

	if cfg.Courier.WebhookSecret != "" {
		courierSvc, err := courierwebhook.NewService(services.Delivery, cfg.Courier.WebhookSecret)
		if err != nil {
			logg.Error(ctx, "failed to create courier webhook service", err)
			os.Exit(1)
		}
		guard, err := webhooks.NewIdempotencyGuard(redisClient, cfg.Eventing.WebhookIdempotencyTTL, "courier-webhook")
		if err != nil {
			logg.Error(ctx, "failed to create courier webhook guard", err)
			os.Exit(1)
		}
		routeServices.CourierWebhook = courierSvc
		routeServices.CourierGuard = guard
	} else {
		logg.Warn(ctx, "courier webhook secret not set; courier webhook disabled")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID("local"),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, routes.Dependencies{
			Health: map[string]controllers.Pinger{
				"database": dbClient,
				"redis":    redisClient,
			},
			Idempotency: redisClient,
			RateLimiter: redisClient,
			Gatherer:    registry,
		}, routeServices),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "graceful shutdown failed", err)
		}
	}
}

func wireStripeWebhook(cfg *config.Config, logg *logger.Logger, store redis.IdempotencyStore, services *bootstrap.Services, client *stripe.Client, out *routes.Services) error {
	svc, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Payouts: services.Payouts,
		Logger:  logg,
	})
	if err != nil {
		return err
	}
	guard, err := webhooks.NewIdempotencyGuard(store, cfg.Eventing.WebhookIdempotencyTTL, "stripe-webhook")
	if err != nil {
		return err
	}
	out.StripeWebhook = svc
	out.StripeSigner = client
	out.StripeGuard = guard
	return nil
}
