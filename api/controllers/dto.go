package controllers

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/commerce-core/pkg/db/models"
)

type orderResponse struct {
	ID            uuid.UUID          `json:"id"`
	CustomerID    *uuid.UUID         `json:"customer_id,omitempty"`
	GuestEmail    *string            `json:"guest_email,omitempty"`
	GuestName     *string            `json:"guest_name,omitempty"`
	Status        string             `json:"status"`
	PaymentStatus string             `json:"payment_status"`
	Currency      string             `json:"currency"`
	SubtotalCents int64              `json:"subtotal_cents"`
	DiscountCents int64              `json:"discount_cents"`
	TotalCents    int64              `json:"total_cents"`
	PromoCode     *string            `json:"promo_code,omitempty"`
	Shipping      shippingResponse   `json:"shipping"`
	Items         []lineItemResponse `json:"items"`
	ConfirmedAt   *time.Time         `json:"confirmed_at,omitempty"`
	DeliveredAt   *time.Time         `json:"delivered_at,omitempty"`
	CancelledAt   *time.Time         `json:"cancelled_at,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
}

type shippingResponse struct {
	Name       string  `json:"name"`
	Line1      string  `json:"line1"`
	Line2      *string `json:"line2,omitempty"`
	City       string  `json:"city"`
	Region     *string `json:"region,omitempty"`
	PostalCode string  `json:"postal_code"`
	Country    string  `json:"country"`
}

type lineItemResponse struct {
	ProductID      uuid.UUID `json:"product_id"`
	WarehouseID    uuid.UUID `json:"warehouse_id"`
	ProductName    string    `json:"product_name"`
	Quantity       int64     `json:"quantity"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	TotalCents     int64     `json:"total_cents"`
}

type paymentResponse struct {
	ID                 uuid.UUID  `json:"id"`
	OrderID            uuid.UUID  `json:"order_id"`
	AmountCents        int64      `json:"amount_cents"`
	Method             string     `json:"method"`
	Status             string     `json:"status"`
	VerificationStatus string     `json:"verification_status"`
	TransactionID      *string    `json:"transaction_id,omitempty"`
	ReceiptReference   *string    `json:"receipt_reference,omitempty"`
	SubmissionCount    int        `json:"submission_count"`
	RejectionNote      *string    `json:"rejection_note,omitempty"`
	FailureReason      *string    `json:"failure_reason,omitempty"`
	ConfirmedAt        *time.Time `json:"confirmed_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

type paymentIntentResponse struct {
	Payment      *paymentResponse `json:"payment"`
	Instructions string           `json:"instructions"`
}

type cancellationResponse struct {
	ID         uuid.UUID  `json:"id"`
	OrderID    uuid.UUID  `json:"order_id"`
	Reason     string     `json:"reason"`
	Decision   string     `json:"decision"`
	Feedback   *string    `json:"feedback,omitempty"`
	ReviewedBy *uuid.UUID `json:"reviewed_by,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	DecidedAt  *time.Time `json:"decided_at,omitempty"`
}

type movementResponse struct {
	ID            uuid.UUID  `json:"id"`
	ProductID     uuid.UUID  `json:"product_id"`
	WarehouseID   uuid.UUID  `json:"warehouse_id"`
	OrderID       *uuid.UUID `json:"order_id,omitempty"`
	QuantityDelta int64      `json:"quantity_delta"`
	Type          string     `json:"type"`
	Notes         *string    `json:"notes,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func newOrderResponse(order *models.Order) *orderResponse {
	if order == nil {
		return nil
	}
	items := make([]lineItemResponse, 0, len(order.LineItems))
	for _, item := range order.LineItems {
		items = append(items, lineItemResponse{
			ProductID:      item.ProductID,
			WarehouseID:    item.WarehouseID,
			ProductName:    item.ProductName,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
			TotalCents:     item.TotalCents,
		})
	}
	return &orderResponse{
		ID:            order.ID,
		CustomerID:    order.CustomerID,
		GuestEmail:    order.GuestEmail,
		GuestName:     order.GuestName,
		Status:        string(order.Status),
		PaymentStatus: string(order.PaymentStatus),
		Currency:      order.Currency,
		SubtotalCents: order.SubtotalCents,
		DiscountCents: order.DiscountCents,
		TotalCents:    order.TotalCents,
		PromoCode:     order.PromoCode,
		Shipping: shippingResponse{
			Name:       order.ShippingName,
			Line1:      order.ShippingLine1,
			Line2:      order.ShippingLine2,
			City:       order.ShippingCity,
			Region:     order.ShippingRegion,
			PostalCode: order.ShippingPostalCode,
			Country:    order.ShippingCountry,
		},
		Items:       items,
		ConfirmedAt: order.ConfirmedAt,
		DeliveredAt: order.DeliveredAt,
		CancelledAt: order.CancelledAt,
		CreatedAt:   order.CreatedAt,
	}
}

func newPaymentResponse(payment *models.Payment) *paymentResponse {
	if payment == nil {
		return nil
	}
	return &paymentResponse{
		ID:                 payment.ID,
		OrderID:            payment.OrderID,
		AmountCents:        payment.AmountCents,
		Method:             string(payment.Method),
		Status:             string(payment.Status),
		VerificationStatus: string(payment.VerificationStatus),
		TransactionID:      payment.TransactionID,
		ReceiptReference:   payment.ReceiptReference,
		SubmissionCount:    payment.SubmissionCount,
		RejectionNote:      payment.RejectionNote,
		FailureReason:      payment.FailureReason,
		ConfirmedAt:        payment.ConfirmedAt,
		CreatedAt:          payment.CreatedAt,
	}
}

func newCancellationResponse(req *models.CancellationRequest) *cancellationResponse {
	if req == nil {
		return nil
	}
	return &cancellationResponse{
		ID:         req.ID,
		OrderID:    req.OrderID,
		Reason:     req.Reason,
		Decision:   string(req.Decision),
		Feedback:   req.Feedback,
		ReviewedBy: req.ReviewedBy,
		CreatedAt:  req.CreatedAt,
		DecidedAt:  req.DecidedAt,
	}
}

func newMovementResponse(m *models.StockMovement) *movementResponse {
	if m == nil {
		return nil
	}
	return &movementResponse{
		ID:            m.ID,
		ProductID:     m.ProductID,
		WarehouseID:   m.WarehouseID,
		OrderID:       m.OrderID,
		QuantityDelta: m.QuantityDelta,
		Type:          string(m.Type),
		Notes:         m.Notes,
		CreatedAt:     m.CreatedAt,
	}
}
