package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/angelmondragon/commerce-core/pkg/db/models"
	"github.com/angelmondragon/commerce-core/pkg/outbox/registry"
)

// transport delivers one resolved outbox row to a broker topic.
type transport interface {
	Name() string
	Ping(ctx context.Context) error
	Publish(ctx context.Context, topic string, event models.OutboxEvent, attributes map[string]string) error
}

type pubSubClient interface {
	Ping(context.Context) error
	Ordered() bool
	Publisher(name string) *gcppubsub.Publisher
}

type publisherFactory func(topic string) publisher

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
	ResumePublish(orderingKey string)
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type pubSubTransport struct {
	client  pubSubClient
	factory publisherFactory
}

func newPubSubTransport(client pubSubClient, factory publisherFactory) *pubSubTransport {
	if factory == nil {
		factory = func(topic string) publisher {
			return newGCPPublisher(client.Publisher(topic))
		}
	}
	return &pubSubTransport{client: client, factory: factory}
}

func (t *pubSubTransport) Name() string { return "pubsub" }

func (t *pubSubTransport) Ping(ctx context.Context) error {
	return t.client.Ping(ctx)
}

func (t *pubSubTransport) Publish(ctx context.Context, topic string, event models.OutboxEvent, attributes map[string]string) error {
	pub := t.factory(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher not configured for topic %s", topic))
	}
	msg := &gcppubsub.Message{
		Data:       event.Payload,
		Attributes: attributes,
	}
	if t.client.Ordered() {
		msg.OrderingKey = event.AggregateID.String()
	}
	result := pub.Publish(ctx, msg)
	if result == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher returned nil for topic %s", topic))
	}
	if _, err := result.Get(ctx); err != nil {
		// an ordering key is paused after a failed publish until resumed
		if msg.OrderingKey != "" {
			pub.ResumePublish(msg.OrderingKey)
		}
		return err
	}
	return nil
}

func newGCPPublisher(p *gcppubsub.Publisher) publisher {
	if p == nil {
		return nil
	}
	return &gcpPublisher{Publisher: p}
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	if p == nil || p.Publisher == nil {
		return nil
	}
	return &gcpPublishResult{PublishResult: p.Publisher.Publish(ctx, msg)}
}

func (p *gcpPublisher) ResumePublish(orderingKey string) {
	if p != nil && p.Publisher != nil {
		p.Publisher.ResumePublish(orderingKey)
	}
}

type gcpPublishResult struct {
	*gcppubsub.PublishResult
}

func (r *gcpPublishResult) Get(ctx context.Context) (string, error) {
	if r == nil || r.PublishResult == nil {
		return "", errors.New("publish result is nil")
	}
	return r.PublishResult.Get(ctx)
}

type kafkaProducer interface {
	Ping(ctx context.Context) error
	Publish(ctx context.Context, topic string, key, value []byte, headers map[string]string) error
}

// kafkaTransport keys messages by aggregate id so one order's events stay ordered.
type kafkaTransport struct {
	producer kafkaProducer
}

func newKafkaTransport(producer kafkaProducer) *kafkaTransport {
	return &kafkaTransport{producer: producer}
}

func (t *kafkaTransport) Name() string { return "kafka" }

func (t *kafkaTransport) Ping(ctx context.Context) error {
	return t.producer.Ping(ctx)
}

func (t *kafkaTransport) Publish(ctx context.Context, topic string, event models.OutboxEvent, attributes map[string]string) error {
	return t.producer.Publish(ctx, topic, []byte(event.AggregateID.String()), event.Payload, attributes)
}

func messageAttributes(event models.OutboxEvent, eventID string) map[string]string {
	return map[string]string{
		"event_id":       eventID,
		"event_type":     string(event.EventType),
		"tenant_id":      event.TenantID.String(),
		"aggregate_type": string(event.AggregateType),
		"aggregate_id":   event.AggregateID.String(),
		"created_at":     event.CreatedAt.Format(time.RFC3339Nano),
	}
}
