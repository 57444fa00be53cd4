package cron

import (
	"context"
	"fmt"

	"github.com/mariselaquino/tradepost-backend/pkg/logger"
	"github.com/mariselaquino/tradepost-backend/pkg/metrics"
)

const defaultEscalationBatch = 100

type slaSweeper interface {
	SweepVendorSLA(ctx context.Context, limit int) (int, error)
}

// DisputeSLAJobParams configure the vendor-response escalation sweep.
type DisputeSLAJobParams struct {
	Logger    *logger.Logger
	Disputes  slaSweeper
	Metrics   *metrics.CronJobMetrics
	BatchSize int
}

// NewDisputeSLAJob builds the cron job that escalates vendor-pending
// disputes past their response deadline.
func NewDisputeSLAJob(params DisputeSLAJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Disputes == nil {
		return nil, fmt.Errorf("dispute sweeper required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultEscalationBatch
	}
	return &disputeSLAJob{
		logg:    params.Logger,
		sweeper: params.Disputes,
		metrics: params.Metrics,
		batch:   batch,
	}, nil
}

type disputeSLAJob struct {
	logg    *logger.Logger
	sweeper slaSweeper
	metrics *metrics.CronJobMetrics
	batch   int
}

func (j *disputeSLAJob) Name() string { return "dispute-sla" }

func (j *disputeSLAJob) Run(ctx context.Context) error {
	escalated, err := j.sweeper.SweepVendorSLA(ctx, j.batch)
	if err != nil {
		return fmt.Errorf("sweep sla-breached disputes: %w", err)
	}
	j.metrics.AddProcessed(j.Name(), escalated)
	logCtx := j.logg.WithFields(ctx, map[string]any{"escalated": escalated})
	j.logg.Info(logCtx, "dispute sla sweep complete")
	return nil
}
