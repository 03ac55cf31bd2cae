package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/commerce-core/pkg/config"
	"github.com/angelmondragon/commerce-core/pkg/db/models"
	"github.com/angelmondragon/commerce-core/pkg/enums"
	"github.com/angelmondragon/commerce-core/pkg/outbox"
	"github.com/angelmondragon/commerce-core/pkg/outbox/payloads"
)

// EventDescriptor routes one event type: the aggregate it must belong to, the
// topic it is published on, and the payload shape it decodes into.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() any
}

type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NonRetryableError marks a row that will never publish, so it is parked in
// the DLQ instead of retried.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func nonRetryable(format string, args ...any) error {
	return NewNonRetryableError(fmt.Errorf(format, args...))
}

type topicKind int

const (
	ordersTopic topicKind = iota
	paymentsTopic
	inventoryTopic
)

func factory[T any]() func() any {
	return func() any { return new(T) }
}

var routes = []struct {
	event     enums.OutboxEventType
	aggregate enums.OutboxAggregateType
	topic     topicKind
	payload   func() any
}{
	{enums.EventOrderCreated, enums.AggregateOrder, ordersTopic, factory[payloads.OrderCreatedEvent]()},
	{enums.EventOrderStatusChanged, enums.AggregateOrder, ordersTopic, factory[payloads.OrderStatusChangedEvent]()},
	{enums.EventCancellationDecided, enums.AggregateCancellationRequest, ordersTopic, factory[payloads.CancellationDecidedEvent]()},
	{enums.EventPaymentCompleted, enums.AggregatePayment, paymentsTopic, factory[payloads.PaymentCompletedEvent]()},
	{enums.EventPaymentFailed, enums.AggregatePayment, paymentsTopic, factory[payloads.PaymentFailedEvent]()},
	{enums.EventRefundRequested, enums.AggregateOrder, paymentsTopic, factory[payloads.RefundRequestedEvent]()},
	{enums.EventLowStock, enums.AggregateProduct, inventoryTopic, factory[payloads.LowStockEvent]()},
}

// NewEventRegistry binds every known event type to its configured topic. The
// same names serve as Kafka topics behind the configured prefix.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	topics := [...]string{
		ordersTopic:    strings.TrimSpace(cfg.OrdersTopic),
		paymentsTopic:  strings.TrimSpace(cfg.PaymentsTopic),
		inventoryTopic: strings.TrimSpace(cfg.InventoryTopic),
	}
	labels := [...]string{ordersTopic: "orders", paymentsTopic: "payments", inventoryTopic: "inventory"}
	var errs []error
	for kind, name := range topics {
		if name == "" {
			errs = append(errs, fmt.Errorf("%s topic is required", labels[kind]))
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor, len(routes))}
	for _, r := range routes {
		reg.entries[r.event] = EventDescriptor{
			EventType:      r.event,
			AggregateType:  r.aggregate,
			Topic:          topics[r.topic],
			PayloadFactory: r.payload,
		}
	}
	for _, eventType := range enums.OutboxEventTypes() {
		if _, ok := reg.entries[eventType]; !ok {
			return nil, fmt.Errorf("no route for event type %s", eventType)
		}
	}
	return reg, nil
}

// Topics lists the distinct topics the registry routes to, sorted.
func (r *EventRegistry) Topics() []string {
	seen := make(map[string]bool, 3)
	var topics []string
	for _, desc := range r.entries {
		if !seen[desc.Topic] {
			seen[desc.Topic] = true
			topics = append(topics, desc.Topic)
		}
	}
	sort.Strings(topics)
	return topics
}

// Resolve checks the row against its descriptor and decodes the typed
// payload. Every failure is non-retryable.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	switch {
	case !ok:
		return nil, nonRetryable("unsupported event type %s", event.EventType)
	case desc.AggregateType != event.AggregateType:
		return nil, nonRetryable("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType)
	case event.AggregateID == uuid.Nil:
		return nil, nonRetryable("missing aggregate_id")
	case event.TenantID == uuid.Nil:
		return nil, nonRetryable("missing tenant_id")
	}

	envelope, err := outbox.DecodeEnvelope(event.Payload)
	if err != nil {
		return nil, NewNonRetryableError(err)
	}
	payload := desc.PayloadFactory()
	if err := envelope.DecodeData(payload); err != nil {
		return nil, nonRetryable("decode %s payload: %w", event.EventType, err)
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}
