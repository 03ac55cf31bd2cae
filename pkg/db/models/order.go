package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/commerce-core/pkg/enums"
)

// Order is created once from a cart snapshot; its line items never change.
type Order struct {
	ID                 uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	TenantID           uuid.UUID           `gorm:"column:tenant_id;type:uuid;not null;index:idx_orders_tenant_customer,priority:1"`
	CustomerID         *uuid.UUID          `gorm:"column:customer_id;type:uuid;index:idx_orders_tenant_customer,priority:2"`
	GuestEmail         *string             `gorm:"column:guest_email"`
	GuestName          *string             `gorm:"column:guest_name"`
	GuestPhone         *string             `gorm:"column:guest_phone"`
	ShippingName       string              `gorm:"column:shipping_name;not null"`
	ShippingLine1      string              `gorm:"column:shipping_line1;not null"`
	ShippingLine2      *string             `gorm:"column:shipping_line2"`
	ShippingCity       string              `gorm:"column:shipping_city;not null"`
	ShippingRegion     *string             `gorm:"column:shipping_region"`
	ShippingPostalCode string              `gorm:"column:shipping_postal_code;not null"`
	ShippingCountry    string              `gorm:"column:shipping_country;not null"`
	SubtotalCents      int64               `gorm:"column:subtotal_cents;not null"`
	DiscountCents      int64               `gorm:"column:discount_cents;not null;default:0"`
	TotalCents         int64               `gorm:"column:total_cents;not null"`
	PromoCode          *string             `gorm:"column:promo_code"`
	Currency           string              `gorm:"column:currency;not null"`
	Status             enums.OrderStatus   `gorm:"column:status;not null"`
	PaymentStatus      enums.PaymentStatus `gorm:"column:payment_status;not null"`
	ReservationID      uuid.UUID           `gorm:"column:reservation_id;type:uuid;not null"`
	LineItems          []OrderLineItem     `gorm:"foreignKey:OrderID"`
	ConfirmedAt        *time.Time          `gorm:"column:confirmed_at"`
	DeliveredAt        *time.Time          `gorm:"column:delivered_at"`
	CancelledAt        *time.Time          `gorm:"column:cancelled_at"`
	CreatedAt          time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

// OrderLineItem stores the unit price captured at checkout.
type OrderLineItem struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrderID        uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	TenantID       uuid.UUID `gorm:"column:tenant_id;type:uuid;not null"`
	ProductID      uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	WarehouseID    uuid.UUID `gorm:"column:warehouse_id;type:uuid;not null"`
	ProductName    string    `gorm:"column:product_name;not null"`
	Quantity       int64     `gorm:"column:quantity;not null"`
	UnitPriceCents int64     `gorm:"column:unit_price_cents;not null"`
	TotalCents     int64     `gorm:"column:total_cents;not null"`
}

func (l *OrderLineItem) BeforeCreate(*gorm.DB) error {
	ensureID(&l.ID)
	return nil
}
