package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/commerce-core/internal/analytics"
	"github.com/angelmondragon/commerce-core/internal/bootstrap"
	"github.com/angelmondragon/commerce-core/pkg/bigquery"
	"github.com/angelmondragon/commerce-core/pkg/db"
	"github.com/angelmondragon/commerce-core/pkg/kafka"
	"github.com/angelmondragon/commerce-core/pkg/outbox"
	"github.com/angelmondragon/commerce-core/pkg/outbox/registry"
	"github.com/angelmondragon/commerce-core/pkg/pubsub"
)

func main() {
	requeue := flag.String("requeue", "", "move one dead-lettered event id back into the outbox and exit")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.Start(ctx, bootstrap.RuntimeOptions{Service: "outbox-publisher"})
	if err != nil {
		rt.Exit(ctx, "failed to start", err)
	}
	cfg, logg := rt.Config, rt.Logger
	ctx = rt.Context(ctx)

	dlq := outbox.NewDLQRepository(rt.DB.DB())
	if *requeue != "" {
		reqCtx := logg.WithField(ctx, "event_id", *requeue)
		if err := requeueDeadLetter(reqCtx, rt.DB, dlq, *requeue); err != nil {
			rt.Exit(reqCtx, "requeue failed", err)
		}
		logg.Info(reqCtx, "dead letter requeued")
		_ = rt.Close()
		return
	}

	eventTransport, err := newTransport(ctx, rt)
	if err != nil {
		rt.Exit(ctx, "failed to bootstrap event transport", err)
	}
	mirror, err := newMirror(ctx, rt)
	if err != nil {
		rt.Exit(ctx, "failed to bootstrap analytics mirror", err)
	}
	eventRegistry, err := registry.NewEventRegistry(cfg.PubSub)
	if err != nil {
		rt.Exit(ctx, "failed to build event registry", err)
	}
	service, err := NewService(ServiceParams{
		Config:        cfg,
		Logger:        logg,
		DB:            rt.DB,
		Transport:     eventTransport,
		Repository:    outbox.NewRepository(rt.DB.DB()),
		Registry:      eventRegistry,
		DLQRepository: dlq,
		Analytics:     mirror,
	})
	if err != nil {
		rt.Exit(ctx, "failed to create outbox publisher", err)
	}

	ctx = logg.WithField(ctx, "transport", eventTransport.Name())
	logg.Info(ctx, "starting outbox publisher")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		rt.Exit(ctx, "outbox publisher stopped unexpectedly", err)
	}
	logg.Info(ctx, "outbox publisher shutting down gracefully")
	if err := rt.Close(); err != nil {
		logg.Error(ctx, "error releasing resources", err)
	}
}

func newTransport(ctx context.Context, rt *bootstrap.Runtime) (transport, error) {
	cfg := rt.Config
	if cfg.Eventing.UsesKafka() {
		producer, err := kafka.NewProducer(ctx, cfg.Kafka, rt.Logger)
		if err != nil {
			return nil, err
		}
		rt.Defer(producer.Close)
		return newKafkaTransport(producer), nil
	}
	client, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, rt.Logger)
	if err != nil {
		return nil, err
	}
	rt.Defer(client.Close)
	return newPubSubTransport(client, nil), nil
}

// newMirror returns nil when the warehouse sink is disabled.
func newMirror(ctx context.Context, rt *bootstrap.Runtime) (analyticsMirror, error) {
	cfg := rt.Config
	if !cfg.BigQuery.Enabled {
		return nil, nil
	}
	client, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, rt.Logger, bigquery.Table{
		Name:           cfg.BigQuery.CommerceEventsTable,
		Schema:         analytics.EventsSchema(),
		PartitionField: analytics.EventsPartitionField,
	})
	if err != nil {
		return nil, err
	}
	rt.Defer(client.Close)
	writer, err := analytics.NewWriter(client, analytics.WriterConfig{Table: client.EventsTable()})
	if err != nil {
		return nil, err
	}
	return analytics.NewSink(writer, rt.Logger)
}

func requeueDeadLetter(ctx context.Context, dbClient *db.Client, dlq *outbox.DLQRepository, raw string) error {
	eventID, err := uuid.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid event id: %w", err)
	}
	return dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		return dlq.Requeue(ctx, tx, eventID)
	})
}
