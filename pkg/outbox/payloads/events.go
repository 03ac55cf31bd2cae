package payloads

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/commerce-core/pkg/enums"
)

// OrderLine is the per-line summary carried by order events.
type OrderLine struct {
	ProductID      uuid.UUID `json:"product_id"`
	WarehouseID    uuid.UUID `json:"warehouse_id"`
	Quantity       int64     `json:"quantity"`
	UnitPriceCents int64     `json:"unit_price_cents"`
}

// OrderCreatedEvent is emitted once per successful checkout.
type OrderCreatedEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	CustomerID    *uuid.UUID          `json:"customer_id,omitempty"`
	GuestEmail    *string             `json:"guest_email,omitempty"`
	PaymentID     uuid.UUID           `json:"payment_id"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	SubtotalCents int64               `json:"subtotal_cents"`
	DiscountCents int64               `json:"discount_cents"`
	TotalCents    int64               `json:"total_cents"`
	Currency      string              `json:"currency"`
	PromoCode     *string             `json:"promo_code,omitempty"`
	Lines         []OrderLine         `json:"lines"`
}

// OrderStatusChangedEvent covers both the fulfilment and payment axes.
type OrderStatusChangedEvent struct {
	OrderID           uuid.UUID           `json:"order_id"`
	PreviousStatus    enums.OrderStatus   `json:"previous_status"`
	Status            enums.OrderStatus   `json:"status"`
	PreviousPayStatus enums.PaymentStatus `json:"previous_payment_status"`
	PaymentStatus     enums.PaymentStatus `json:"payment_status"`
	Reason            string              `json:"reason,omitempty"`
}

// PaymentCompletedEvent is emitted when an attempt settles successfully.
type PaymentCompletedEvent struct {
	PaymentID     uuid.UUID           `json:"payment_id"`
	OrderID       uuid.UUID           `json:"order_id"`
	AmountCents   int64               `json:"amount_cents"`
	Method        enums.PaymentMethod `json:"method"`
	TransactionID string              `json:"transaction_id"`
	ProviderRef   *string             `json:"provider_ref,omitempty"`
}

// PaymentFailedEvent is emitted for gateway failures and expired intents.
type PaymentFailedEvent struct {
	PaymentID uuid.UUID           `json:"payment_id"`
	OrderID   uuid.UUID           `json:"order_id"`
	Method    enums.PaymentMethod `json:"method"`
	Reason    string              `json:"reason"`
}

// RefundRequestedEvent marks the refund trigger point of an approved cancellation.
type RefundRequestedEvent struct {
	OrderID               uuid.UUID  `json:"order_id"`
	PaymentID             *uuid.UUID `json:"payment_id,omitempty"`
	CancellationRequestID uuid.UUID  `json:"cancellation_request_id"`
	AmountCents           int64      `json:"amount_cents"`
}

// LowStockEvent is emitted when on-hand falls to or below the reorder threshold.
type LowStockEvent struct {
	ProductID   uuid.UUID `json:"product_id"`
	WarehouseID uuid.UUID `json:"warehouse_id"`
	OnHand      int64     `json:"on_hand"`
	Threshold   int64     `json:"threshold"`
}

// CancellationDecidedEvent lets customers read the outcome of a review.
type CancellationDecidedEvent struct {
	RequestID  uuid.UUID                  `json:"request_id"`
	OrderID    uuid.UUID                  `json:"order_id"`
	CustomerID uuid.UUID                  `json:"customer_id"`
	Decision   enums.CancellationDecision `json:"decision"`
	Feedback   *string                    `json:"feedback,omitempty"`
	Expired    bool                       `json:"expired,omitempty"`
}
