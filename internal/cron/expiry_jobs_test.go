package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/commerce-core/pkg/logger"
)

type fakeExpirer struct {
	cutoff time.Time
	limit  int
	count  int
	err    error
}

func (f *fakeExpirer) ExpirePending(_ context.Context, cutoff time.Time, limit int) (int, error) {
	f.cutoff, f.limit = cutoff, limit
	return f.count, f.err
}

func (f *fakeExpirer) ExpireStaleIntents(_ context.Context, cutoff time.Time, limit int) (int, error) {
	f.cutoff, f.limit = cutoff, limit
	return f.count, f.err
}

type fakeRecorder map[string]int

func (f fakeRecorder) AddProcessed(job string, count int) { f[job] += count }

func TestCancellationExpiryJobUsesTTL(t *testing.T) {
	now := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)
	expirer := &fakeExpirer{count: 3}
	recorder := fakeRecorder{}
	jobIface, err := NewCancellationExpiryJob(CancellationExpiryJobParams{
		Logger:        logger.New(logger.Options{ServiceName: "test"}),
		Cancellations: expirer,
		Metrics:       recorder,
	})
	if err != nil {
		t.Fatalf("NewCancellationExpiryJob: %v", err)
	}
	job := jobIface.(*cancellationExpiryJob)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := now.Add(-7 * 24 * time.Hour); !expirer.cutoff.Equal(want) {
		t.Fatalf("expected cutoff %s, got %s", want, expirer.cutoff)
	}
	if expirer.limit != defaultExpiryBatch {
		t.Fatalf("expected batch %d, got %d", defaultExpiryBatch, expirer.limit)
	}
	if recorder["cancellation-expiry"] != 3 {
		t.Fatalf("expected 3 processed, got %d", recorder["cancellation-expiry"])
	}
}

func TestPaymentIntentExpiryJobReportsPartialFailure(t *testing.T) {
	now := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)
	expirer := &fakeExpirer{count: 1, err: errors.New("one payment failed")}
	recorder := fakeRecorder{}
	jobIface, err := NewPaymentIntentExpiryJob(PaymentIntentExpiryJobParams{
		Logger:    logger.New(logger.Options{ServiceName: "test"}),
		Payments:  expirer,
		TTL:       24 * time.Hour,
		BatchSize: 10,
		Metrics:   recorder,
	})
	if err != nil {
		t.Fatalf("NewPaymentIntentExpiryJob: %v", err)
	}
	job := jobIface.(*paymentIntentExpiryJob)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if want := now.Add(-24 * time.Hour); !expirer.cutoff.Equal(want) {
		t.Fatalf("expected cutoff %s, got %s", want, expirer.cutoff)
	}
	if expirer.limit != 10 {
		t.Fatalf("expected batch 10, got %d", expirer.limit)
	}
	if recorder["payment-intent-expiry"] != 1 {
		t.Fatalf("expected expired rows to be recorded before the error")
	}
}

func TestExpiryJobsRequireDependencies(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "test"})
	if _, err := NewCancellationExpiryJob(CancellationExpiryJobParams{Logger: logg}); err == nil {
		t.Fatal("expected missing service error")
	}
	if _, err := NewPaymentIntentExpiryJob(PaymentIntentExpiryJobParams{Logger: logg}); err == nil {
		t.Fatal("expected missing service error")
	}
}
