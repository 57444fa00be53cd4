package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/mariselaquino/tradepost-backend/pkg/logger"
	"github.com/mariselaquino/tradepost-backend/pkg/metrics"
)

const (
	defaultRetryMaxAttempts = 5
	defaultRetryBatch       = 50

	// stalePendingAge is how long a pending refund may sit unprocessed
	// before the retry job picks it up alongside failed ones.
	stalePendingAge = 15 * time.Minute
)

type refundRetrier interface {
	RetryUnsettled(ctx context.Context, maxAttempts int, olderThan time.Time, limit int) (int, error)
}

// RefundRetryJobParams configure the refund settlement retry.
type RefundRetryJobParams struct {
	Logger      *logger.Logger
	Refunds     refundRetrier
	Metrics     *metrics.CronJobMetrics
	MaxAttempts int
	BatchSize   int
}

// NewRefundRetryJob builds the cron job that reprocesses failed and stale
// pending refunds.
func NewRefundRetryJob(params RefundRetryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Refunds == nil {
		return nil, fmt.Errorf("refund retrier required")
	}
	attempts := params.MaxAttempts
	if attempts <= 0 {
		attempts = defaultRetryMaxAttempts
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultRetryBatch
	}
	return &refundRetryJob{
		logg:     params.Logger,
		retrier:  params.Refunds,
		metrics:  params.Metrics,
		attempts: attempts,
		batch:    batch,
		now:      time.Now,
	}, nil
}

type refundRetryJob struct {
	logg     *logger.Logger
	retrier  refundRetrier
	metrics  *metrics.CronJobMetrics
	attempts int
	batch    int
	now      func() time.Time
}

func (j *refundRetryJob) Name() string { return "refund-retry" }

func (j *refundRetryJob) Run(ctx context.Context) error {
	olderThan := j.now().UTC().Add(-stalePendingAge)
	settled, err := j.retrier.RetryUnsettled(ctx, j.attempts, olderThan, j.batch)
	if err != nil {
		return fmt.Errorf("retry unsettled refunds: %w", err)
	}
	j.metrics.AddProcessed(j.Name(), settled)
	logCtx := j.logg.WithFields(ctx, map[string]any{"settled": settled})
	j.logg.Info(logCtx, "refund retry complete")
	return nil
}
