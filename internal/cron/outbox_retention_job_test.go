package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/commerce-core/pkg/logger"
)

type fakePruner struct {
	outboxCutoff time.Time
	dlqCutoff    time.Time
	terminal     int
	outboxErr    error
	dlqCalls     int
}

func (f *fakePruner) DeletePublishedBefore(_ context.Context, _ *gorm.DB, cutoff time.Time, minAttemptCount int) (int64, error) {
	f.outboxCutoff, f.terminal = cutoff, minAttemptCount
	return 7, f.outboxErr
}

func (f *fakePruner) PurgeBefore(_ context.Context, _ *gorm.DB, cutoff time.Time) (int64, error) {
	f.dlqCalls++
	f.dlqCutoff = cutoff
	return 2, nil
}

type inlineTx struct{}

func (inlineTx) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error { return fn(nil) }

func newRetentionJob(t *testing.T, pruner *fakePruner, recorder itemRecorder, params OutboxRetentionJobParams) *outboxRetentionJob {
	t.Helper()
	params.Logger = logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	params.DB = inlineTx{}
	params.Outbox, params.DLQ, params.Metrics = pruner, pruner, recorder
	job, err := NewOutboxRetentionJob(params)
	require.NoError(t, err)
	return job.(*outboxRetentionJob)
}

func TestOutboxRetentionJobUsesBothWindows(t *testing.T) {
	now := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	pruner := &fakePruner{}
	recorder := fakeRecorder{}
	job := newRetentionJob(t, pruner, recorder, OutboxRetentionJobParams{DLQDays: 60, TerminalAttempts: 5})
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, now.Add(-30*day), pruner.outboxCutoff)
	assert.Equal(t, now.Add(-60*day), pruner.dlqCutoff)
	assert.Equal(t, 5, pruner.terminal)
	assert.Equal(t, 9, recorder["outbox-retention"])
}

func TestOutboxRetentionJobStopsOnOutboxError(t *testing.T) {
	pruner := &fakePruner{outboxErr: errors.New("boom")}
	job := newRetentionJob(t, pruner, nil, OutboxRetentionJobParams{})

	require.Error(t, job.Run(context.Background()))
	assert.Zero(t, pruner.dlqCalls)
	assert.Equal(t, defaultTerminalAttempts, job.terminal)
}

func TestNewOutboxRetentionJobRequiresRepositories(t *testing.T) {
	_, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger: logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		DB:     inlineTx{},
		Outbox: &fakePruner{},
	})
	assert.Error(t, err)
}
