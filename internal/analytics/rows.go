package analytics

import (
	"time"

	cbigquery "cloud.google.com/go/bigquery"
)

// CommerceEventRow mirrors the commerce_events BigQuery schema. One row per
// published outbox event.
type CommerceEventRow struct {
	EventID       string             `bigquery:"event_id"`
	EventType     string             `bigquery:"event_type"`
	TenantID      string             `bigquery:"tenant_id"`
	AggregateType string             `bigquery:"aggregate_type"`
	AggregateID   string             `bigquery:"aggregate_id"`
	OccurredAt    time.Time          `bigquery:"occurred_at"`
	PublishedAt   time.Time          `bigquery:"published_at"`
	OrderID       *string            `bigquery:"order_id"`
	CustomerID    *string            `bigquery:"customer_id"`
	Status        *string            `bigquery:"status"`
	PaymentStatus *string            `bigquery:"payment_status"`
	AmountCents   *int64             `bigquery:"amount_cents"`
	Payload       cbigquery.NullJSON `bigquery:"payload"`
}

// EventsSchema is the column layout of the commerce events table. The table
// is partitioned by day on occurred_at.
func EventsSchema() cbigquery.Schema {
	nullable := func(name string, t cbigquery.FieldType) *cbigquery.FieldSchema {
		return &cbigquery.FieldSchema{Name: name, Type: t}
	}
	required := func(name string, t cbigquery.FieldType) *cbigquery.FieldSchema {
		return &cbigquery.FieldSchema{Name: name, Type: t, Required: true}
	}
	return cbigquery.Schema{
		required("event_id", cbigquery.StringFieldType),
		required("event_type", cbigquery.StringFieldType),
		required("tenant_id", cbigquery.StringFieldType),
		required("aggregate_type", cbigquery.StringFieldType),
		required("aggregate_id", cbigquery.StringFieldType),
		required("occurred_at", cbigquery.TimestampFieldType),
		required("published_at", cbigquery.TimestampFieldType),
		nullable("order_id", cbigquery.StringFieldType),
		nullable("customer_id", cbigquery.StringFieldType),
		nullable("status", cbigquery.StringFieldType),
		nullable("payment_status", cbigquery.StringFieldType),
		nullable("amount_cents", cbigquery.IntegerFieldType),
		nullable("payload", cbigquery.JSONFieldType),
	}
}

const EventsPartitionField = "occurred_at"
