package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/mariselaquino/tradepost-backend/internal/analytics"
	"github.com/mariselaquino/tradepost-backend/pkg/bigquery"
	"github.com/mariselaquino/tradepost-backend/pkg/config"
	"github.com/mariselaquino/tradepost-backend/pkg/logger"
	"github.com/mariselaquino/tradepost-backend/pkg/outbox/idempotency"
	"github.com/mariselaquino/tradepost-backend/pkg/pubsub"
	"github.com/mariselaquino/tradepost-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "analytics-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "analytics-worker"

	logg = logger.New(logger.Options{
		ServiceName: "analytics-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	redisClient, err := redis.New(ctx, cfg.Redis)
	requireResource(ctx, logg, "redis", err)

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	requireResource(ctx, logg, "pubsub", err)

	bqClient, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg)
	requireResource(ctx, logg, "bigquery", err)

	defer func() {
		closeErr := multierr.Combine(redisClient.Close(), pubsubClient.Close(), bqClient.Close())
		if closeErr != nil {
			logg.Error(context.Background(), "error closing resources", closeErr)
		}
	}()

	manager, err := idempotency.NewManager(redisClient, cfg.Outbox.IdempotencyTTL)
	requireResource(ctx, logg, "idempotency manager", err)

	consumer, err := analytics.NewConsumer(bqClient, cfg.BigQuery.RevenueTable, manager, logg)
	requireResource(ctx, logg, "analytics consumer", err)

	worker, err := analytics.NewWorker(pubsubClient.DomainSubscription(), consumer, logg)
	requireResource(ctx, logg, "analytics worker", err)

	logCtx := logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(logCtx, "starting analytics worker")

	if err := worker.Run(logCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(logCtx, "analytics worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(logCtx, "analytics worker shutting down gracefully")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
