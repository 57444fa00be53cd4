package cron

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeSweeper struct {
	released int
	err      error
	calls    int
	limit    int
}

func (f *fakeSweeper) SweepExpired(ctx context.Context, limit int) (int, error) {
	f.calls++
	f.limit = limit
	return f.released, f.err
}

type fakeSLASweeper struct {
	escalated int
	err       error
	limit     int
}

func (f *fakeSLASweeper) SweepVendorSLA(ctx context.Context, limit int) (int, error) {
	f.limit = limit
	return f.escalated, f.err
}

type fakeRetrier struct {
	settled   int
	attempts  int
	olderThan time.Time
	limit     int
}

func (f *fakeRetrier) RetryUnsettled(ctx context.Context, maxAttempts int, olderThan time.Time, limit int) (int, error) {
	f.attempts = maxAttempts
	f.olderThan = olderThan
	f.limit = limit
	return f.settled, nil
}

type fakePurger struct {
	deleted int64
	maxAge  time.Duration
}

func (f *fakePurger) PurgeOld(ctx context.Context, maxAge time.Duration) (int64, error) {
	f.maxAge = maxAge
	return f.deleted, nil
}

func TestReservationSweepJob(t *testing.T) {
	sweeper := &fakeSweeper{released: 3}
	job, err := NewReservationSweepJob(ReservationSweepJobParams{Logger: testLogger(), Inventory: sweeper, BatchSize: 25})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if job.Name() != "reservation-sweep" {
		t.Fatalf("name = %s", job.Name())
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if sweeper.calls != 1 || sweeper.limit != 25 {
		t.Fatalf("sweeper called %d times with limit %d", sweeper.calls, sweeper.limit)
	}

	sweeper.err = errors.New("db down")
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected sweep error to propagate")
	}
}

func TestDisputeSLAJob(t *testing.T) {
	sweeper := &fakeSLASweeper{escalated: 2}
	job, err := NewDisputeSLAJob(DisputeSLAJobParams{Logger: testLogger(), Disputes: sweeper})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if sweeper.limit != defaultEscalationBatch {
		t.Fatalf("limit = %d, want default %d", sweeper.limit, defaultEscalationBatch)
	}
}

func TestRefundRetryJobPassesCutoff(t *testing.T) {
	retrier := &fakeRetrier{settled: 1}
	job, err := NewRefundRetryJob(RefundRetryJobParams{Logger: testLogger(), Refunds: retrier, MaxAttempts: 7, BatchSize: 10})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	before := time.Now().UTC()
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if retrier.attempts != 7 || retrier.limit != 10 {
		t.Fatalf("params = attempts %d limit %d, want 7/10", retrier.attempts, retrier.limit)
	}
	wantCutoff := before.Add(-stalePendingAge)
	if retrier.olderThan.Before(wantCutoff.Add(-time.Minute)) || retrier.olderThan.After(wantCutoff.Add(time.Minute)) {
		t.Fatalf("olderThan = %v, want ~%v", retrier.olderThan, wantCutoff)
	}
}

func TestNotificationCleanupJobDefaultsRetention(t *testing.T) {
	purger := &fakePurger{deleted: 4}
	job, err := NewNotificationCleanupJob(NotificationCleanupJobParams{Logger: testLogger(), Notifications: purger})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if purger.maxAge != defaultNotificationRetention {
		t.Fatalf("maxAge = %v, want %v", purger.maxAge, defaultNotificationRetention)
	}
}
