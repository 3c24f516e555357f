package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/settlement-engine/internal/bootstrap"
	"github.com/angelmondragon/settlement-engine/internal/cron"
	"github.com/angelmondragon/settlement-engine/internal/payouts"
	"github.com/angelmondragon/settlement-engine/pkg/config"
	"github.com/angelmondragon/settlement-engine/pkg/db"
	"github.com/angelmondragon/settlement-engine/pkg/instance"
	"github.com/angelmondragon/settlement-engine/pkg/logger"
	"github.com/angelmondragon/settlement-engine/pkg/metrics"
	"github.com/angelmondragon/settlement-engine/pkg/migrate"
	"github.com/angelmondragon/settlement-engine/pkg/outbox"
	"github.com/angelmondragon/settlement-engine/pkg/redis"
	"github.com/angelmondragon/settlement-engine/pkg/stripe"
)

const payoutDispatchBatch = 100

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

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

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

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
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

	var provider payouts.Provider
	if stripeClient, err := stripe.NewClient(context.Background(), cfg.Stripe, logg); err == nil {
		provider = payouts.NewStripeProvider(stripeClient)
	} else {
		logg.Warn(context.Background(), "stripe not configured; payout dispatch job disabled")
	}

	services, err := bootstrap.NewServices(bootstrap.Params{
		Config:   cfg,
		Logger:   logg,
		DB:       dbClient,
		Provider: provider,
		Metrics:  metrics.NewSettlementMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to build settlement services", err)
		os.Exit(1)
	}

	jobs, err := buildJobs(cfg, logg, dbClient, services, provider != nil)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron jobs", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(lockName(cfg.App.Env)), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	registry := cron.NewRegistry(jobs...)
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
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
		"instance":    instance.GetID("cron-0"),
		"jobs":        registry.Names(),
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func buildJobs(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, services *bootstrap.Services, dispatch bool) ([]cron.Job, error) {
	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: outbox.NewRepository(dbClient.DB()),
		Retention:  cfg.Cron.OutboxRetention,
	})
	if err != nil {
		return nil, fmt.Errorf("outbox retention job: %w", err)
	}

	reconcile, err := cron.NewWalletReconcileJob(cron.WalletReconcileJobParams{
		Logger:  logg,
		Vendors: services.WalletRepo,
		Wallet:  services.Wallet,
	})
	if err != nil {
		return nil, fmt.Errorf("wallet reconcile job: %w", err)
	}

	jobs := []cron.Job{retention, reconcile}
	if !dispatch {
		return jobs, nil
	}

	payoutDispatch, err := cron.NewPayoutDispatchJob(cron.PayoutDispatchJobParams{
		Logger:    logg,
		Payouts:   services.Payouts,
		Age:       cfg.Cron.PayoutDispatchAge,
		BatchSize: payoutDispatchBatch,
	})
	if err != nil {
		return nil, fmt.Errorf("payout dispatch job: %w", err)
	}
	return append(jobs, payoutDispatch), nil
}

func lockName(env string) string {
	if env == "" {
		env = "local"
	}
	return "cron-worker:" + env
}
