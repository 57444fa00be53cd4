package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/mariselaquino/tradepost-backend/internal/cron"
	"github.com/mariselaquino/tradepost-backend/internal/disputes"
	"github.com/mariselaquino/tradepost-backend/internal/inventory"
	"github.com/mariselaquino/tradepost-backend/internal/notifications"
	"github.com/mariselaquino/tradepost-backend/internal/orders"
	"github.com/mariselaquino/tradepost-backend/internal/refunds"
	"github.com/mariselaquino/tradepost-backend/pkg/config"
	"github.com/mariselaquino/tradepost-backend/pkg/db"
	"github.com/mariselaquino/tradepost-backend/pkg/logger"
	"github.com/mariselaquino/tradepost-backend/pkg/metrics"
	"github.com/mariselaquino/tradepost-backend/pkg/migrate"
	"github.com/mariselaquino/tradepost-backend/pkg/outbox"
	"github.com/mariselaquino/tradepost-backend/pkg/redis"
	"github.com/mariselaquino/tradepost-backend/pkg/square"
)

const lockKeyFormat = "tp:cron-worker:lock:%s"

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags, logg)
	requireResource(ctx, logg, "database", err)

	requireResource(ctx, logg, "migrations", migrate.MaybeRunDev(ctx, cfg, logg, dbClient))

	redisClient, err := redis.New(ctx, cfg.Redis)
	requireResource(ctx, logg, "redis", err)

	squareClient, err := square.NewClient(ctx, cfg.Square, logg)
	requireResource(ctx, logg, "square", err)

	defer func() {
		closeErr := multierr.Combine(dbClient.Close(), redisClient.Close())
		if closeErr != nil {
			logg.Error(context.Background(), "error closing resources", closeErr)
		}
	}()

	outboxEmitter := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	inventoryRepo := inventory.NewRepository(dbClient.DB())
	inventorySvc, err := inventory.NewService(inventoryRepo, dbClient, outboxEmitter, logg, cfg.Lifecycle.ReservationTTL)
	requireResource(ctx, logg, "inventory service", err)

	ordersRepo := orders.NewRepository(dbClient.DB())
	ordersSvc, err := orders.NewService(ordersRepo, dbClient, outboxEmitter, inventorySvc)
	requireResource(ctx, logg, "orders service", err)

	refundsSvc, err := refunds.NewService(refunds.NewRepository(dbClient.DB()), ordersRepo, ordersSvc, inventoryRepo, squareClient, dbClient, outboxEmitter, logg)
	requireResource(ctx, logg, "refunds service", err)

	disputesSvc, err := disputes.NewService(disputes.NewRepository(dbClient.DB()), ordersRepo, dbClient, outboxEmitter, logg, cfg.Lifecycle.DisputeWindow, cfg.Lifecycle.DisputeVendorSLA)
	requireResource(ctx, logg, "disputes service", err)

	notificationsSvc, err := notifications.NewService(notifications.NewRepository(dbClient.DB()), logg)
	requireResource(ctx, logg, "notifications service", err)

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)

	sweepJob, err := cron.NewReservationSweepJob(cron.ReservationSweepJobParams{
		Logger:    logg,
		Inventory: inventorySvc,
		Metrics:   metricsCollector,
	})
	requireResource(ctx, logg, "reservation sweep job", err)

	slaJob, err := cron.NewDisputeSLAJob(cron.DisputeSLAJobParams{
		Logger:   logg,
		Disputes: disputesSvc,
		Metrics:  metricsCollector,
	})
	requireResource(ctx, logg, "dispute sla job", err)

	refundRetryJob, err := cron.NewRefundRetryJob(cron.RefundRetryJobParams{
		Logger:    logg,
		Refunds:   refundsSvc,
		Metrics:   metricsCollector,
		BatchSize: cfg.Lifecycle.RefundRetryBatchMax,
	})
	requireResource(ctx, logg, "refund retry job", err)

	cleanupJob, err := cron.NewNotificationCleanupJob(cron.NotificationCleanupJobParams{
		Logger:        logg,
		Notifications: notificationsSvc,
		Metrics:       metricsCollector,
		Retention:     cfg.Lifecycle.NotificationMaxAge,
	})
	requireResource(ctx, logg, "notification cleanup job", err)

	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
	requireResource(ctx, logg, "cron lock", err)

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(sweepJob, slaJob, refundRetryJob, cleanupJob),
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Lifecycle.CronInterval,
	})
	requireResource(ctx, logg, "cron service", err)

	logCtx := logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(logCtx, "starting cron worker")

	if err := service.Run(logCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(logCtx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(logCtx, "cron worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
