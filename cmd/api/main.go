package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/mariselaquino/tradepost-backend/api/controllers"
	"github.com/mariselaquino/tradepost-backend/api/routes"
	"github.com/mariselaquino/tradepost-backend/internal/checkout"
	"github.com/mariselaquino/tradepost-backend/internal/disputes"
	"github.com/mariselaquino/tradepost-backend/internal/inventory"
	"github.com/mariselaquino/tradepost-backend/internal/notifications"
	"github.com/mariselaquino/tradepost-backend/internal/orders"
	"github.com/mariselaquino/tradepost-backend/internal/payments"
	"github.com/mariselaquino/tradepost-backend/internal/refunds"
	"github.com/mariselaquino/tradepost-backend/pkg/config"
	"github.com/mariselaquino/tradepost-backend/pkg/db"
	"github.com/mariselaquino/tradepost-backend/pkg/logger"
	"github.com/mariselaquino/tradepost-backend/pkg/migrate"
	"github.com/mariselaquino/tradepost-backend/pkg/outbox"
	"github.com/mariselaquino/tradepost-backend/pkg/redis"
	"github.com/mariselaquino/tradepost-backend/pkg/square"
)

const shutdownGrace = 15 * time.Second

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

	checkoutSvc, err := checkout.NewService(checkout.NewRepository(dbClient.DB()), ordersRepo, inventorySvc, dbClient, outboxEmitter, logg)
	requireResource(ctx, logg, "checkout service", err)

	paymentsSvc, err := payments.NewService(ordersRepo, dbClient, squareClient, inventorySvc, ordersSvc, outboxEmitter)
	requireResource(ctx, logg, "payments service", err)

	refundsSvc, err := refunds.NewService(refunds.NewRepository(dbClient.DB()), ordersRepo, ordersSvc, inventoryRepo, squareClient, dbClient, outboxEmitter, logg)
	requireResource(ctx, logg, "refunds service", err)

	disputesSvc, err := disputes.NewService(disputes.NewRepository(dbClient.DB()), ordersRepo, dbClient, outboxEmitter, logg, cfg.Lifecycle.DisputeWindow, cfg.Lifecycle.DisputeVendorSLA)
	requireResource(ctx, logg, "disputes service", err)

	notificationsSvc, err := notifications.NewService(notifications.NewRepository(dbClient.DB()), logg)
	requireResource(ctx, logg, "notifications service", err)

	router := routes.NewRouter(cfg, logg, map[string]controllers.Pinger{
		"db":    dbClient,
		"redis": redisClient,
	}, redisClient, routes.Services{
		Checkout:      checkoutSvc,
		Orders:        ordersSvc,
		Payments:      paymentsSvc,
		Refunds:       refundsSvc,
		Disputes:      disputesSvc,
		Notifications: notificationsSvc,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	logCtx := logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(logCtx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(logCtx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(logCtx, "api server shutdown failed", err)
		}
	}

	logg.Info(logCtx, "api server shutting down gracefully")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
