package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/angelmondragon/commerce-core/pkg/logger"
)

type countingJob struct {
	name string
	err  error
	runs int
}

func (j *countingJob) Name() string { return j.name }

func (j *countingJob) Run(context.Context) error {
	j.runs++
	return j.err
}

// memoryLocker grants each job name to one holder at a time.
type memoryLocker struct {
	held     map[string]bool
	acquired []string
	err      error
}

func newMemoryLocker() *memoryLocker { return &memoryLocker{held: map[string]bool{}} }

func (m *memoryLocker) Acquire(_ context.Context, job string, _ time.Duration) (Lease, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.held[job] {
		return nil, nil
	}
	m.held[job] = true
	m.acquired = append(m.acquired, job)
	return memoryLease{m: m, job: job}, nil
}

type memoryLease struct {
	m   *memoryLocker
	job string
}

func (l memoryLease) Release(context.Context) error {
	delete(l.m.held, l.job)
	return nil
}

type observed struct {
	ok, failed, skipped map[string]int
}

func newObserved() *observed {
	return &observed{ok: map[string]int{}, failed: map[string]int{}, skipped: map[string]int{}}
}

func (o *observed) Observe(job string, _ time.Duration, err error) {
	if err != nil {
		o.failed[job]++
		return
	}
	o.ok[job]++
}

func (o *observed) Skipped(job string) { o.skipped[job]++ }

func quietLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard})
}

func newTestService(t *testing.T, locker Locker, metrics jobObserver, jobs map[Job]time.Duration) *Service {
	t.Helper()
	registry := NewRegistry()
	for job, every := range jobs {
		require.NoError(t, registry.Add(job, every))
	}
	svc, err := NewService(ServiceParams{Logger: quietLogger(), Registry: registry, Locker: locker, Metrics: metrics})
	require.NoError(t, err)
	return svc
}

func TestRunOnceRunsEveryJobAndCombinesFailures(t *testing.T) {
	ok := &countingJob{name: "a-ok"}
	bad := &countingJob{name: "b-bad", err: errors.New("boom")}
	metrics := newObserved()
	locker := newMemoryLocker()
	svc := newTestService(t, locker, metrics, map[Job]time.Duration{ok: time.Hour, bad: time.Hour})

	err := svc.RunOnce(context.Background())
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 1)
	assert.ErrorContains(t, err, "b-bad")

	assert.Equal(t, 1, ok.runs)
	assert.Equal(t, 1, bad.runs)
	assert.Equal(t, 1, metrics.ok["a-ok"])
	assert.Equal(t, 1, metrics.failed["b-bad"])
	assert.Equal(t, []string{"a-ok", "b-bad"}, locker.acquired)
	assert.Empty(t, locker.held, "leases must be released")
}

func TestRunDueHonoursCadence(t *testing.T) {
	fast := &countingJob{name: "fast"}
	slow := &countingJob{name: "slow"}
	svc := newTestService(t, newMemoryLocker(), nil, map[Job]time.Duration{fast: time.Minute, slow: time.Hour})

	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return clock }

	svc.runDue(context.Background())
	clock = clock.Add(2 * time.Minute)
	svc.runDue(context.Background())
	clock = clock.Add(30 * time.Second)
	svc.runDue(context.Background())

	assert.Equal(t, 2, fast.runs)
	assert.Equal(t, 1, slow.runs)
}

func TestHeldLeaseSkipsJob(t *testing.T) {
	job := &countingJob{name: "outbox-retention"}
	locker := newMemoryLocker()
	locker.held["outbox-retention"] = true
	metrics := newObserved()
	svc := newTestService(t, locker, metrics, map[Job]time.Duration{job: time.Hour})

	require.NoError(t, svc.RunOnce(context.Background()))
	assert.Zero(t, job.runs)
	assert.Equal(t, 1, metrics.skipped["outbox-retention"])
}

func TestLockerErrorIsReported(t *testing.T) {
	job := &countingJob{name: "payment-intent-expiry"}
	locker := newMemoryLocker()
	locker.err = errors.New("redis down")
	svc := newTestService(t, locker, nil, map[Job]time.Duration{job: time.Hour})

	assert.ErrorContains(t, svc.RunOnce(context.Background()), "redis down")
	assert.Zero(t, job.runs)
}

func TestRunStopsOnCancel(t *testing.T) {
	job := &countingJob{name: "a"}
	svc := newTestService(t, newMemoryLocker(), nil, map[Job]time.Duration{job: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, svc.Run(ctx), context.Canceled)
}

func TestRegistryRejectsBadEntries(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Add(&countingJob{name: "a"}, time.Minute))

	assert.Error(t, registry.Add(&countingJob{name: "a"}, time.Minute), "duplicate")
	assert.Error(t, registry.Add(&countingJob{name: ""}, time.Minute), "unnamed")
	assert.Error(t, registry.Add(&countingJob{name: "b"}, 0), "no cadence")
	assert.Error(t, registry.Add(nil, time.Minute), "nil job")
	assert.Equal(t, []string{"a"}, registry.Names())
}

func TestNewServiceRequiresJobsAndLocker(t *testing.T) {
	_, err := NewService(ServiceParams{Logger: quietLogger(), Registry: NewRegistry(), Locker: newMemoryLocker()})
	assert.Error(t, err)

	registry := NewRegistry()
	require.NoError(t, registry.Add(&countingJob{name: "a"}, time.Minute))
	_, err = NewService(ServiceParams{Logger: quietLogger(), Registry: registry})
	assert.Error(t, err)
}
