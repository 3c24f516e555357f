package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/settlement-engine/internal/bootstrap"
	"github.com/angelmondragon/settlement-engine/internal/consumers/payments"
	"github.com/angelmondragon/settlement-engine/internal/refunds"
	"github.com/angelmondragon/settlement-engine/pkg/config"
	"github.com/angelmondragon/settlement-engine/pkg/db"
	"github.com/angelmondragon/settlement-engine/pkg/instance"
	"github.com/angelmondragon/settlement-engine/pkg/logger"
	"github.com/angelmondragon/settlement-engine/pkg/metrics"
	"github.com/angelmondragon/settlement-engine/pkg/migrate"
	"github.com/angelmondragon/settlement-engine/pkg/outbox/idempotency"
	"github.com/angelmondragon/settlement-engine/pkg/pubsub"
	"github.com/angelmondragon/settlement-engine/pkg/redis"
	"github.com/angelmondragon/settlement-engine/pkg/square"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"instance": instance.GetID("worker-0"),
	})

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

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub", err)
		}
	}()

	settlementMetrics := metrics.NewSettlementMetrics(prometheus.DefaultRegisterer)

	// Payouts are dispatched by the api and cron binaries; this worker only
	// opens holds, so it runs without a provider.
	services, err := bootstrap.NewServices(bootstrap.Params{
		Config:  cfg,
		Logger:  logg,
		DB:      dbClient,
		Metrics: settlementMetrics,
	})
	if err != nil {
		logg.Error(ctx, "failed to build settlement services", err)
		os.Exit(1)
	}

	paymentConsumer, err := payments.NewConsumer(services.Escrow, pubsubClient.PaymentsSubscription(), logg)
	if err != nil {
		logg.Error(ctx, "failed to create payment consumer", err)
		os.Exit(1)
	}
	consumers := map[string]runner{"payments": paymentConsumer}

	refundConsumer, err := buildRefundConsumer(ctx, cfg, logg, dbClient, redisClient, pubsubClient, settlementMetrics)
	switch {
	case errors.Is(err, errRefundsDisabled):
		logg.Warn(ctx, "square not configured; refund consumer disabled")
	case err != nil:
		logg.Error(ctx, "failed to create refund consumer", err)
		os.Exit(1)
	default:
		consumers["refunds"] = refundConsumer
	}

	svc, err := NewService(ServiceParams{
		Config: cfg,
		Logger: logg,
		Dependencies: []namedDependency{
			{name: "database", dep: dbClient},
			{name: "redis", dep: redisClient},
			{name: "pubsub", dep: pubsubClient},
		},
		Consumers: consumers,
	})
	if err != nil {
		logg.Error(ctx, "failed to create worker service", err)
		os.Exit(1)
	}

	logg.Info(ctx, "starting worker")
	if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(context.Background(), "worker shutting down gracefully")
}

var errRefundsDisabled = errors.New("refunds disabled")

func buildRefundConsumer(
	ctx context.Context,
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *redis.Client,
	pubsubClient *pubsub.Client,
	m *metrics.SettlementMetrics,
) (*refunds.Consumer, error) {
	if cfg.Square.AccessToken == "" {
		return nil, errRefundsDisabled
	}
	squareClient, err := square.NewClient(ctx, cfg.Square, logg)
	if err != nil {
		return nil, err
	}
	refundSvc, err := refunds.NewService(refunds.ServiceParams{
		Repo:     refunds.NewRepository(dbClient.DB()),
		Refunder: squareClient,
		Logger:   logg,
		Metrics:  m,
	})
	if err != nil {
		return nil, err
	}
	manager, err := idempotency.NewManager(redisClient, cfg.Eventing.OutboxIdempotencyTTL)
	if err != nil {
		return nil, err
	}
	return refunds.NewConsumer(refundSvc, pubsubClient.RefundsSubscription(), manager, logg)
}
