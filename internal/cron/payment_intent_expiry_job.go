package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/commerce-core/pkg/logger"
)

const defaultPaymentIntentTTL = 72 * time.Hour

type paymentExpirer interface {
	ExpireStaleIntents(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

// PaymentIntentExpiryJobParams configure the stale payment attempt sweep.
type PaymentIntentExpiryJobParams struct {
	Logger    *logger.Logger
	Payments  paymentExpirer
	TTL       time.Duration
	BatchSize int
	Metrics   itemRecorder
}

// NewPaymentIntentExpiryJob fails PENDING attempts without a receipt once they
// outlive TTL. Orders stay open for a new attempt.
func NewPaymentIntentExpiryJob(params PaymentIntentExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payments service required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultPaymentIntentTTL
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultExpiryBatch
	}
	return &paymentIntentExpiryJob{
		logg:      params.Logger,
		payments:  params.Payments,
		ttl:       ttl,
		batchSize: batch,
		metrics:   params.Metrics,
		now:       time.Now,
	}, nil
}

type paymentIntentExpiryJob struct {
	logg      *logger.Logger
	payments  paymentExpirer
	ttl       time.Duration
	batchSize int
	metrics   itemRecorder
	now       func() time.Time
}

func (j *paymentIntentExpiryJob) Name() string { return "payment-intent-expiry" }

func (j *paymentIntentExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	expired, err := j.payments.ExpireStaleIntents(ctx, cutoff, j.batchSize)
	if j.metrics != nil {
		j.metrics.AddProcessed(j.Name(), expired)
	}
	if err != nil {
		return fmt.Errorf("payment intent expiry: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":  cutoff,
		"ttl":     j.ttl.String(),
		"expired": expired,
	})
	j.logg.Info(logCtx, "payment intent expiry complete")
	return nil
}
