package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/commerce-core/pkg/logger"
)

const (
	defaultCancellationTTL = 7 * 24 * time.Hour
	defaultExpiryBatch     = 200
)

type cancellationExpirer interface {
	ExpirePending(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

// CancellationExpiryJobParams configure the auto-rejection of unreviewed requests.
type CancellationExpiryJobParams struct {
	Logger        *logger.Logger
	Cancellations cancellationExpirer
	TTL           time.Duration
	BatchSize     int
	Metrics       itemRecorder
}

// NewCancellationExpiryJob rejects PENDING cancellation requests older than TTL.
func NewCancellationExpiryJob(params CancellationExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Cancellations == nil {
		return nil, fmt.Errorf("cancellation service required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultCancellationTTL
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultExpiryBatch
	}
	return &cancellationExpiryJob{
		logg:      params.Logger,
		service:   params.Cancellations,
		ttl:       ttl,
		batchSize: batch,
		metrics:   params.Metrics,
		now:       time.Now,
	}, nil
}

type cancellationExpiryJob struct {
	logg      *logger.Logger
	service   cancellationExpirer
	ttl       time.Duration
	batchSize int
	metrics   itemRecorder
	now       func() time.Time
}

func (j *cancellationExpiryJob) Name() string { return "cancellation-expiry" }

func (j *cancellationExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	expired, err := j.service.ExpirePending(ctx, cutoff, j.batchSize)
	if j.metrics != nil {
		j.metrics.AddProcessed(j.Name(), expired)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":  cutoff,
		"expired": expired,
	})
	if err != nil {
		return fmt.Errorf("cancellation expiry: %w", err)
	}
	j.logg.Info(logCtx, "cancellation expiry complete")
	return nil
}
