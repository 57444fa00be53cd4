package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/mariselaquino/tradepost-backend/pkg/logger"
	"github.com/mariselaquino/tradepost-backend/pkg/metrics"
)

const defaultNotificationRetention = 90 * 24 * time.Hour

type notificationPurger interface {
	PurgeOld(ctx context.Context, maxAge time.Duration) (int64, error)
}

// NotificationCleanupJobParams configure the retention sweep.
type NotificationCleanupJobParams struct {
	Logger        *logger.Logger
	Notifications notificationPurger
	Metrics       *metrics.CronJobMetrics
	Retention     time.Duration
}

// NewNotificationCleanupJob builds the cron job that deletes notifications
// past the retention window.
func NewNotificationCleanupJob(params NotificationCleanupJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Notifications == nil {
		return nil, fmt.Errorf("notifications service required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultNotificationRetention
	}
	return &notificationCleanupJob{
		logg:      params.Logger,
		purger:    params.Notifications,
		metrics:   params.Metrics,
		retention: retention,
	}, nil
}

type notificationCleanupJob struct {
	logg      *logger.Logger
	purger    notificationPurger
	metrics   *metrics.CronJobMetrics
	retention time.Duration
}

func (j *notificationCleanupJob) Name() string { return "notification-cleanup" }

func (j *notificationCleanupJob) Run(ctx context.Context) error {
	deleted, err := j.purger.PurgeOld(ctx, j.retention)
	if err != nil {
		return fmt.Errorf("purge old notifications: %w", err)
	}
	j.metrics.AddProcessed(j.Name(), int(deleted))
	logCtx := j.logg.WithFields(ctx, map[string]any{"deleted": deleted})
	j.logg.Info(logCtx, "notification cleanup complete")
	return nil
}
