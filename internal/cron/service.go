package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/commerce-core/pkg/logger"
)

const defaultTick = time.Minute

// jobObserver receives the outcome of every attempted run.
type jobObserver interface {
	Observe(job string, d time.Duration, err error)
	Skipped(job string)
}

type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Locker   Locker
	Metrics  jobObserver
	Tick     time.Duration
}

// Service wakes every tick and runs the jobs that are due, each under its
// own lease. A job failure never stops the others.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	locker   Locker
	metrics  jobObserver
	tick     time.Duration
	now      func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.Locker == nil:
		return nil, errors.New("locker required")
	case params.Registry == nil || params.Registry.Len() == 0:
		return nil, errors.New("at least one job required")
	}
	tick := params.Tick
	if tick <= 0 {
		tick = defaultTick
	}
	return &Service{
		logg:     params.Logger,
		registry: params.Registry,
		locker:   params.Locker,
		metrics:  params.Metrics,
		tick:     tick,
		now:      time.Now,
	}, nil
}

// Run blocks until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"jobs": s.registry.Names(),
		"tick": s.tick.String(),
	}), "cron scheduler started")

	s.runDue(ctx)
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runDue(ctx)
		}
	}
}

// RunOnce runs every job immediately, ignoring cadence, and returns the
// combined job errors.
func (s *Service) RunOnce(ctx context.Context) error {
	var errs error
	for _, e := range s.registry.all() {
		errs = multierr.Append(errs, s.runEntry(ctx, e))
	}
	return errs
}

func (s *Service) runDue(ctx context.Context) {
	for _, e := range s.registry.due(s.now()) {
		if ctx.Err() != nil {
			return
		}
		// failures are logged and counted inside runEntry
		_ = s.runEntry(ctx, e)
	}
}

func (s *Service) runEntry(ctx context.Context, e *entry) error {
	name := e.job.Name()
	jobCtx := s.logg.WithFields(ctx, map[string]any{"job": name, "event": "cron.job"})
	e.next = s.now().Add(e.every)

	// lease outlives a slow run by one tick at most
	lease, err := s.locker.Acquire(jobCtx, name, e.every)
	if err != nil {
		s.logg.Error(jobCtx, "cron lease unavailable", err)
		return fmt.Errorf("%s: %w", name, err)
	}
	if lease == nil {
		s.logg.Debug(jobCtx, "job held by another worker")
		if s.metrics != nil {
			s.metrics.Skipped(name)
		}
		return nil
	}
	defer func() {
		if relErr := lease.Release(context.WithoutCancel(jobCtx)); relErr != nil {
			s.logg.Warn(s.logg.WithField(jobCtx, "error", relErr.Error()), "cron lease release failed")
		}
	}()

	start := s.now()
	err = e.job.Run(jobCtx)
	elapsed := s.now().Sub(start)
	if s.metrics != nil {
		s.metrics.Observe(name, elapsed, err)
	}
	jobCtx = s.logg.WithField(jobCtx, "duration_ms", elapsed.Milliseconds())
	if err != nil {
		s.logg.Error(jobCtx, "job failed", err)
		return fmt.Errorf("%s: %w", name, err)
	}
	s.logg.Info(jobCtx, "job completed")
	return nil
}
