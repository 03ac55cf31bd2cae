package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/commerce-core/pkg/db/models"
	"github.com/angelmondragon/commerce-core/pkg/enums"
	pkgerrors "github.com/angelmondragon/commerce-core/pkg/errors"
	"github.com/angelmondragon/commerce-core/pkg/logger"
	"github.com/angelmondragon/commerce-core/pkg/outbox"
)

type rowWriter interface {
	Insert(ctx context.Context, rows ...CommerceEventRow) error
}

// Sink mirrors published outbox events into the analytics warehouse. It never
// takes part in the primary flow: callers log and drop its errors.
type Sink struct {
	writer rowWriter
	logg   *logger.Logger
	now    func() time.Time
}

// NewSink builds a sink over a row writer.
func NewSink(writer rowWriter, logg *logger.Logger) (*Sink, error) {
	if writer == nil {
		return nil, errors.New("analytics writer required")
	}
	return &Sink{writer: writer, logg: logg, now: time.Now}, nil
}

// Mirror converts event into a CommerceEventRow and writes it. Failures come
// back as DEPENDENCY_ERROR.
func (s *Sink) Mirror(ctx context.Context, event models.OutboxEvent) error {
	row, err := BuildRow(event, s.now().UTC())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build analytics row")
	}
	if err := s.writer.Insert(ctx, row); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write analytics row")
	}
	return nil
}

// MirrorQuietly is Mirror for the publisher loop: errors are logged as warnings.
func (s *Sink) MirrorQuietly(ctx context.Context, event models.OutboxEvent) {
	if s == nil {
		return
	}
	if err := s.Mirror(ctx, event); err != nil && s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"event_id":   event.ID.String(),
			"event_type": string(event.EventType),
			"error":      err.Error(),
		})
		s.logg.Warn(logCtx, "analytics mirror failed")
	}
}

// commonFields are the payload keys shared by the commerce events.
type commonFields struct {
	OrderID       *string `json:"order_id"`
	CustomerID    *string `json:"customer_id"`
	Status        *string `json:"status"`
	PaymentStatus *string `json:"payment_status"`
	AmountCents   *int64  `json:"amount_cents"`
	TotalCents    *int64  `json:"total_cents"`
}

// BuildRow flattens an outbox row into the warehouse schema.
func BuildRow(event models.OutboxEvent, publishedAt time.Time) (CommerceEventRow, error) {
	envelope, err := outbox.DecodeEnvelope(event.Payload)
	if err != nil {
		return CommerceEventRow{}, err
	}
	var fields commonFields
	if envelope.HasData() {
		if err := envelope.DecodeData(&fields); err != nil {
			return CommerceEventRow{}, fmt.Errorf("decode %s data: %w", event.EventType, err)
		}
	}
	payload, err := EncodeJSON(envelope.Data)
	if err != nil {
		return CommerceEventRow{}, err
	}

	occurredAt := envelope.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = event.CreatedAt
	}
	amount := fields.AmountCents
	if amount == nil {
		amount = fields.TotalCents
	}
	orderID := fields.OrderID
	if orderID == nil && event.AggregateType == enums.AggregateOrder {
		id := event.AggregateID.String()
		orderID = &id
	}

	return CommerceEventRow{
		EventID:       event.ID.String(),
		EventType:     string(event.EventType),
		TenantID:      event.TenantID.String(),
		AggregateType: string(event.AggregateType),
		AggregateID:   event.AggregateID.String(),
		OccurredAt:    occurredAt.UTC(),
		PublishedAt:   publishedAt.UTC(),
		OrderID:       orderID,
		CustomerID:    fields.CustomerID,
		Status:        fields.Status,
		PaymentStatus: fields.PaymentStatus,
		AmountCents:   amount,
		Payload:       payload,
	}, nil
}
