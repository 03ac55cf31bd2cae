package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/commerce-core/pkg/config"
	"github.com/angelmondragon/commerce-core/pkg/db/models"
	"github.com/angelmondragon/commerce-core/pkg/enums"
	"github.com/angelmondragon/commerce-core/pkg/outbox"
	"github.com/angelmondragon/commerce-core/pkg/outbox/payloads"
)

var testTopics = config.PubSubConfig{
	OrdersTopic:    "orders-topic",
	PaymentsTopic:  "payments-topic",
	InventoryTopic: "inventory-topic",
}

func envelopeBytes(t *testing.T, data string) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    outbox.EnvelopeVersion,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       json.RawMessage(data),
	})
	require.NoError(t, err)
	return raw
}

func TestResolveDecodesTypedPayload(t *testing.T) {
	reg, err := NewEventRegistry(testTopics)
	require.NoError(t, err)

	orderID, productID := uuid.New(), uuid.New()
	data, err := json.Marshal(payloads.OrderCreatedEvent{
		OrderID:    orderID,
		TotalCents: 1500,
		Lines:      []payloads.OrderLine{{ProductID: productID, Quantity: 3, UnitPriceCents: 500}},
	})
	require.NoError(t, err)

	resolved, err := reg.Resolve(models.OutboxEvent{
		TenantID:      uuid.New(),
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Payload:       envelopeBytes(t, string(data)),
	})
	require.NoError(t, err)

	assert.Equal(t, "orders-topic", resolved.Descriptor.Topic)
	assert.NotEmpty(t, resolved.Envelope.EventID)
	payload, ok := resolved.Payload.(*payloads.OrderCreatedEvent)
	require.True(t, ok, "payload is %T", resolved.Payload)
	assert.Equal(t, orderID, payload.OrderID)
	require.Len(t, payload.Lines, 1)
	assert.Equal(t, productID, payload.Lines[0].ProductID)
}

func TestResolveRejectsBadRowsAsNonRetryable(t *testing.T) {
	reg, err := NewEventRegistry(testTopics)
	require.NoError(t, err)

	valid := func() models.OutboxEvent {
		return models.OutboxEvent{
			TenantID:      uuid.New(),
			EventType:     enums.EventLowStock,
			AggregateType: enums.AggregateProduct,
			AggregateID:   uuid.New(),
			Payload:       envelopeBytes(t, `{"on_hand":1}`),
		}
	}
	cases := map[string]func(*models.OutboxEvent){
		"unknown type":       func(e *models.OutboxEvent) { e.EventType = "reservation_released" },
		"aggregate mismatch": func(e *models.OutboxEvent) { e.AggregateType = enums.AggregateOrder },
		"missing aggregate":  func(e *models.OutboxEvent) { e.AggregateID = uuid.Nil },
		"missing tenant":     func(e *models.OutboxEvent) { e.TenantID = uuid.Nil },
		"null data":          func(e *models.OutboxEvent) { e.Payload = envelopeBytes(t, `null`) },
		"corrupt envelope":   func(e *models.OutboxEvent) { e.Payload = json.RawMessage(`{"version":`) },
		"future envelope":    func(e *models.OutboxEvent) { e.Payload = json.RawMessage(`{"version":99,"data":{}}`) },
		"wrong data shape":   func(e *models.OutboxEvent) { e.Payload = envelopeBytes(t, `{"on_hand":"lots"}`) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			event := valid()
			mutate(&event)
			_, err := reg.Resolve(event)
			var nonRetry NonRetryableError
			assert.True(t, errors.As(err, &nonRetry), "got %v", err)
		})
	}

	_, err = reg.Resolve(valid())
	assert.NoError(t, err)
}

func TestRegistryRoutesEveryEventType(t *testing.T) {
	reg, err := NewEventRegistry(testTopics)
	require.NoError(t, err)

	want := map[enums.OutboxEventType]string{
		enums.EventOrderCreated:        "orders-topic",
		enums.EventOrderStatusChanged:  "orders-topic",
		enums.EventCancellationDecided: "orders-topic",
		enums.EventPaymentCompleted:    "payments-topic",
		enums.EventPaymentFailed:       "payments-topic",
		enums.EventRefundRequested:     "payments-topic",
		enums.EventLowStock:            "inventory-topic",
	}
	require.Len(t, reg.entries, len(enums.OutboxEventTypes()))
	for eventType, topic := range want {
		assert.Equal(t, topic, reg.entries[eventType].Topic, eventType)
	}
	assert.Equal(t, []string{"inventory-topic", "orders-topic", "payments-topic"}, reg.Topics())
}

func TestNewEventRegistryReportsMissingTopics(t *testing.T) {
	_, err := NewEventRegistry(config.PubSubConfig{OrdersTopic: "orders", PaymentsTopic: "  "})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "payments topic is required")
	assert.Contains(t, err.Error(), "inventory topic is required")
	assert.NotContains(t, err.Error(), "orders topic")
}

func TestNonRetryableError(t *testing.T) {
	cause := errors.New("bad row")
	assert.ErrorIs(t, NewNonRetryableError(cause), cause)
	assert.Equal(t, "non-retryable error", NonRetryableError{}.Error())
}
