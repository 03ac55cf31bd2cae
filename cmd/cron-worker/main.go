package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/commerce-core/internal/bootstrap"
	"github.com/angelmondragon/commerce-core/internal/cron"
	"github.com/angelmondragon/commerce-core/pkg/config"
	"github.com/angelmondragon/commerce-core/pkg/db"
	"github.com/angelmondragon/commerce-core/pkg/logger"
	"github.com/angelmondragon/commerce-core/pkg/metrics"
	"github.com/angelmondragon/commerce-core/pkg/outbox"
)

func main() {
	once := flag.Bool("once", false, "run every job a single time and exit")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.Start(ctx, bootstrap.RuntimeOptions{Service: "cron-worker", Redis: true})
	if err != nil {
		rt.Exit(ctx, "failed to start", err)
	}
	cfg, logg := rt.Config, rt.Logger

	recorder := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	locker, err := cron.NewRedisLocker(rt.Redis, func(job string) string {
		return rt.Redis.LockKey(leaseName(cfg.App.Env, job))
	})
	if err != nil {
		rt.Exit(ctx, "failed to create cron locker", err)
	}

	services, err := bootstrap.NewServices(bootstrap.Deps{
		DB:               rt.DB,
		Logger:           logg,
		Registerer:       prometheus.DefaultRegisterer,
		Currency:         cfg.Checkout.Currency,
		ReorderThreshold: cfg.Inventory.DefaultReorderThreshold,
	})
	if err != nil {
		rt.Exit(ctx, "failed to build services", err)
	}

	registry, err := buildRegistry(cfg, logg, rt.DB, services, recorder)
	if err != nil {
		rt.Exit(ctx, "failed to register cron jobs", err)
	}
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Locker:   locker,
		Metrics:  recorder,
		Tick:     cfg.Cron.Tick,
	})
	if err != nil {
		rt.Exit(ctx, "failed to create cron service", err)
	}

	ctx = rt.Context(ctx)
	if *once {
		if err := service.RunOnce(ctx); err != nil {
			rt.Exit(ctx, "cron run finished with failures", err)
		}
		logg.Info(ctx, "cron run complete")
	} else {
		logg.Info(ctx, "starting cron worker")
		if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			rt.Exit(ctx, "cron worker stopped unexpectedly", err)
		}
		logg.Info(ctx, "cron worker shutting down gracefully")
	}
	if err := rt.Close(); err != nil {
		logg.Error(ctx, "error releasing resources", err)
	}
}

func leaseName(env, job string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf("cron:%s:%s", env, job)
}

func buildRegistry(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, services *bootstrap.Services, recorder *metrics.CronJobMetrics) (*cron.Registry, error) {
	cancellationJob, err := cron.NewCancellationExpiryJob(cron.CancellationExpiryJobParams{
		Logger:        logg,
		Cancellations: services.Cancellations,
		TTL:           cfg.Cancellation.PendingTTL,
		Metrics:       recorder,
	})
	if err != nil {
		return nil, err
	}
	paymentJob, err := cron.NewPaymentIntentExpiryJob(cron.PaymentIntentExpiryJobParams{
		Logger:   logg,
		Payments: services.Payments,
		TTL:      cfg.Checkout.PaymentIntentTTL,
		Metrics:  recorder,
	})
	if err != nil {
		return nil, err
	}
	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:           logg,
		DB:               dbClient,
		Outbox:           outbox.NewRepository(dbClient.DB()),
		DLQ:              outbox.NewDLQRepository(dbClient.DB()),
		OutboxDays:       cfg.Outbox.RetentionDays,
		DLQDays:          cfg.Outbox.DLQRetention,
		TerminalAttempts: cfg.Outbox.MaxAttempts,
		Metrics:          recorder,
	})
	if err != nil {
		return nil, err
	}

	registry := cron.NewRegistry()
	for _, sched := range []struct {
		job   cron.Job
		every time.Duration
	}{
		{job: cancellationJob, every: cfg.Cron.ExpiryEvery},
		{job: paymentJob, every: cfg.Cron.ExpiryEvery},
		{job: retentionJob, every: cfg.Cron.RetentionEvery},
	} {
		if err := registry.Add(sched.job, sched.every); err != nil {
			return nil, err
		}
	}
	return registry, nil
}
