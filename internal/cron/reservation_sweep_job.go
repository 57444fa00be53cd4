package cron

import (
	"context"
	"fmt"

	"github.com/mariselaquino/tradepost-backend/pkg/logger"
	"github.com/mariselaquino/tradepost-backend/pkg/metrics"
)

const defaultSweepBatch = 200

type expiredHoldSweeper interface {
	SweepExpired(ctx context.Context, limit int) (int, error)
}

// ReservationSweepJobParams configure the expired-hold sweep.
type ReservationSweepJobParams struct {
	Logger    *logger.Logger
	Inventory expiredHoldSweeper
	Metrics   *metrics.CronJobMetrics
	BatchSize int
}

// NewReservationSweepJob builds the cron job that folds expired stock holds
// back into availability.
func NewReservationSweepJob(params ReservationSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Inventory == nil {
		return nil, fmt.Errorf("inventory sweeper required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultSweepBatch
	}
	return &reservationSweepJob{
		logg:    params.Logger,
		sweeper: params.Inventory,
		metrics: params.Metrics,
		batch:   batch,
	}, nil
}

type reservationSweepJob struct {
	logg    *logger.Logger
	sweeper expiredHoldSweeper
	metrics *metrics.CronJobMetrics
	batch   int
}

func (j *reservationSweepJob) Name() string { return "reservation-sweep" }

func (j *reservationSweepJob) Run(ctx context.Context) error {
	released, err := j.sweeper.SweepExpired(ctx, j.batch)
	if err != nil {
		return fmt.Errorf("sweep expired reservations: %w", err)
	}
	j.metrics.AddProcessed(j.Name(), released)
	logCtx := j.logg.WithFields(ctx, map[string]any{"released": released})
	j.logg.Info(logCtx, "reservation sweep complete")
	return nil
}
