package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/commerce-core/pkg/logger"
)

const (
	day                     = 24 * time.Hour
	defaultOutboxDays       = 30
	defaultDLQDays          = 90
	defaultTerminalAttempts = 10
)

type outboxPruner interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, minAttemptCount int) (int64, error)
}

type dlqPruner interface {
	PurgeBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

// OutboxRetentionJobParams configure outbox and dead-letter cleanup.
// TerminalAttempts must match the publisher's attempt ceiling so rows still
// being retried are never pruned.
type OutboxRetentionJobParams struct {
	Logger           *logger.Logger
	DB               txRunner
	Outbox           outboxPruner
	DLQ              dlqPruner
	OutboxDays       int
	DLQDays          int
	TerminalAttempts int
	Metrics          itemRecorder
}

// NewOutboxRetentionJob deletes delivered or parked outbox rows past the
// outbox window, then dead letters past the longer DLQ window, in one
// transaction.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.DB == nil:
		return nil, errors.New("db runner required")
	case params.Outbox == nil || params.DLQ == nil:
		return nil, errors.New("outbox and dlq repositories required")
	}
	job := &outboxRetentionJob{
		logg:       params.Logger,
		db:         params.DB,
		outbox:     params.Outbox,
		dlq:        params.DLQ,
		outboxDays: params.OutboxDays,
		dlqDays:    params.DLQDays,
		terminal:   params.TerminalAttempts,
		metrics:    params.Metrics,
		now:        time.Now,
	}
	if job.outboxDays <= 0 {
		job.outboxDays = defaultOutboxDays
	}
	if job.dlqDays <= 0 {
		job.dlqDays = defaultDLQDays
	}
	if job.terminal <= 0 {
		job.terminal = defaultTerminalAttempts
	}
	return job, nil
}

type outboxRetentionJob struct {
	logg       *logger.Logger
	db         txRunner
	outbox     outboxPruner
	dlq        dlqPruner
	outboxDays int
	dlqDays    int
	terminal   int
	metrics    itemRecorder
	now        func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	outboxCutoff := now.Add(-time.Duration(j.outboxDays) * day)
	dlqCutoff := now.Add(-time.Duration(j.dlqDays) * day)

	var events, letters int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		if events, err = j.outbox.DeletePublishedBefore(ctx, tx, outboxCutoff, j.terminal); err != nil {
			return fmt.Errorf("prune outbox: %w", err)
		}
		if letters, err = j.dlq.PurgeBefore(ctx, tx, dlqCutoff); err != nil {
			return fmt.Errorf("prune dlq: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if j.metrics != nil {
		j.metrics.AddProcessed(j.Name(), int(events+letters))
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"outbox_cutoff":  outboxCutoff,
		"dlq_cutoff":     dlqCutoff,
		"events_deleted": events,
		"dlq_deleted":    letters,
	}), "outbox retention complete")
	return nil
}
