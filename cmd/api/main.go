package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/commerce-core/api/routes"
	"github.com/angelmondragon/commerce-core/internal/bootstrap"
	"github.com/angelmondragon/commerce-core/pkg/outbox/idempotency"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.Start(ctx, bootstrap.RuntimeOptions{Service: "api", Redis: true})
	if err != nil {
		rt.Exit(ctx, "failed to start", err)
	}
	cfg, logg := rt.Config, rt.Logger

	// gateway redeliveries of one confirmation are dropped for the webhook TTL
	confirmGuard, err := idempotency.NewGuard(rt.Redis, cfg.Eventing.WebhookIdempotencyTTL)
	if err != nil {
		rt.Exit(ctx, "failed to create payment confirm guard", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	services, err := bootstrap.NewServices(bootstrap.Deps{
		DB:               rt.DB,
		Logger:           logg,
		Registerer:       registry,
		Guard:            confirmGuard,
		Currency:         cfg.Checkout.Currency,
		ReorderThreshold: cfg.Inventory.DefaultReorderThreshold,
	})
	if err != nil {
		rt.Exit(ctx, "failed to wire services", err)
	}

	// platform-provided PORT wins over config
	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           routes.NewRouter(cfg, logg, rt.DB, rt.Redis, services, registry),
		ReadHeaderTimeout: 10 * time.Second,
	}
	logCtx := logg.WithField(rt.Context(ctx), "addr", server.Addr)
	logg.Info(logCtx, "starting api server")

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			rt.Exit(logCtx, "api server stopped unexpectedly", err)
		}
	case <-ctx.Done():
		logg.Info(logCtx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(logCtx, "api server shutdown failed", err)
		}
	}
	if err := rt.Close(); err != nil {
		logg.Error(logCtx, "error releasing resources", err)
	}
}
