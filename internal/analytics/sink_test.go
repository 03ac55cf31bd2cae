package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/commerce-core/pkg/db/models"
	"github.com/angelmondragon/commerce-core/pkg/enums"
	pkgerrors "github.com/angelmondragon/commerce-core/pkg/errors"
	"github.com/angelmondragon/commerce-core/pkg/logger"
	"github.com/angelmondragon/commerce-core/pkg/outbox"
	"github.com/angelmondragon/commerce-core/pkg/outbox/payloads"
)

type recordingWriter struct {
	rows []CommerceEventRow
	err  error
}

func (r *recordingWriter) Insert(_ context.Context, rows ...CommerceEventRow) error {
	if r.err != nil {
		return r.err
	}
	r.rows = append(r.rows, rows...)
	return nil
}

func outboxRow(t *testing.T, eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType, aggregateID uuid.UUID, data any) models.OutboxEvent {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	occurred := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	envelope, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		TenantID:   uuid.New(),
		OccurredAt: occurred,
		Data:       raw,
	})
	require.NoError(t, err)
	return models.OutboxEvent{
		ID:            uuid.New(),
		TenantID:      uuid.New(),
		EventType:     eventType,
		AggregateType: aggregate,
		AggregateID:   aggregateID,
		Payload:       envelope,
		CreatedAt:     occurred.Add(time.Second),
	}
}

func TestBuildRowFlattensPaymentCompleted(t *testing.T) {
	orderID := uuid.New()
	paymentID := uuid.New()
	event := outboxRow(t, enums.EventPaymentCompleted, enums.AggregatePayment, paymentID, payloads.PaymentCompletedEvent{
		PaymentID:     paymentID,
		OrderID:       orderID,
		AmountCents:   4599,
		Method:        enums.PaymentMethodCard,
		TransactionID: "txn-1",
	})

	published := time.Date(2026, 4, 1, 10, 0, 5, 0, time.UTC)
	row, err := BuildRow(event, published)
	require.NoError(t, err)
	assert.Equal(t, "payment_completed", row.EventType)
	assert.Equal(t, paymentID.String(), row.AggregateID)
	require.NotNil(t, row.OrderID)
	assert.Equal(t, orderID.String(), *row.OrderID)
	require.NotNil(t, row.AmountCents)
	assert.EqualValues(t, 4599, *row.AmountCents)
	assert.Equal(t, time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC), row.OccurredAt)
	assert.Equal(t, published, row.PublishedAt)
	assert.True(t, row.Payload.Valid)
}

func TestBuildRowUsesOrderTotalAndStatus(t *testing.T) {
	orderID := uuid.New()
	created := outboxRow(t, enums.EventOrderCreated, enums.AggregateOrder, orderID, payloads.OrderCreatedEvent{
		OrderID:    orderID,
		TotalCents: 1800,
	})
	row, err := BuildRow(created, time.Now())
	require.NoError(t, err)
	require.NotNil(t, row.AmountCents)
	assert.EqualValues(t, 1800, *row.AmountCents)

	changed := outboxRow(t, enums.EventOrderStatusChanged, enums.AggregateOrder, orderID, payloads.OrderStatusChangedEvent{
		OrderID:       orderID,
		Status:        enums.OrderStatusConfirmed,
		PaymentStatus: enums.PaymentStatusCompleted,
	})
	row, err = BuildRow(changed, time.Now())
	require.NoError(t, err)
	require.NotNil(t, row.Status)
	assert.Equal(t, "CONFIRMED", *row.Status)
	require.NotNil(t, row.PaymentStatus)
	assert.Equal(t, "COMPLETED", *row.PaymentStatus)
}

func TestMirrorWrapsWriterFailures(t *testing.T) {
	writer := &recordingWriter{err: errors.New("bigquery down")}
	sink, err := NewSink(writer, logger.New(logger.Options{ServiceName: "test", Output: io.Discard}))
	require.NoError(t, err)

	event := outboxRow(t, enums.EventLowStock, enums.AggregateProduct, uuid.New(), payloads.LowStockEvent{OnHand: 1, Threshold: 5})
	err = sink.Mirror(context.Background(), event)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))

	assert.NotPanics(t, func() { sink.MirrorQuietly(context.Background(), event) })

	writer.err = nil
	sink.MirrorQuietly(context.Background(), event)
	require.Len(t, writer.rows, 1)
	assert.Nil(t, writer.rows[0].OrderID)
}

func TestMirrorRejectsCorruptPayload(t *testing.T) {
	sink, err := NewSink(&recordingWriter{}, nil)
	require.NoError(t, err)
	err = sink.Mirror(context.Background(), models.OutboxEvent{ID: uuid.New(), Payload: json.RawMessage(`not json`)})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}
