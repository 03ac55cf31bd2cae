package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/commerce-core/pkg/enums"
)

// StockLevel is the materialized on-hand counter for a (product, warehouse).
// It always equals the sum of the matching stock_movements rows.
type StockLevel struct {
	TenantID    uuid.UUID `gorm:"column:tenant_id;type:uuid;primaryKey"`
	ProductID   uuid.UUID `gorm:"column:product_id;type:uuid;primaryKey"`
	WarehouseID uuid.UUID `gorm:"column:warehouse_id;type:uuid;primaryKey"`
	OnHand      int64     `gorm:"column:on_hand;not null;default:0;check:chk_stock_levels_on_hand,on_hand >= 0"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// StockMovement is an append-only ledger entry.
type StockMovement struct {
	ID            uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	TenantID      uuid.UUID          `gorm:"column:tenant_id;type:uuid;not null;index:idx_stock_movements_product,priority:1"`
	ProductID     uuid.UUID          `gorm:"column:product_id;type:uuid;not null;index:idx_stock_movements_product,priority:2"`
	WarehouseID   uuid.UUID          `gorm:"column:warehouse_id;type:uuid;not null"`
	ReservationID *uuid.UUID         `gorm:"column:reservation_id;type:uuid;index"`
	OrderID       *uuid.UUID         `gorm:"column:order_id;type:uuid"`
	QuantityDelta int64              `gorm:"column:quantity_delta;not null"`
	Type          enums.MovementType `gorm:"column:type;not null"`
	Notes         *string            `gorm:"column:notes"`
	CreatedAt     time.Time          `gorm:"column:created_at;autoCreateTime"`
}

func (m *StockMovement) BeforeCreate(*gorm.DB) error {
	ensureID(&m.ID)
	return nil
}

// StockReservation is the provisional hold created during checkout.
type StockReservation struct {
	ID        uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	TenantID  uuid.UUID               `gorm:"column:tenant_id;type:uuid;not null"`
	Status    enums.ReservationStatus `gorm:"column:status;not null"`
	Lines     []StockReservationLine  `gorm:"foreignKey:ReservationID"`
	CreatedAt time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

func (r *StockReservation) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}

type StockReservationLine struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ReservationID uuid.UUID `gorm:"column:reservation_id;type:uuid;not null;index"`
	TenantID      uuid.UUID `gorm:"column:tenant_id;type:uuid;not null"`
	ProductID     uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	WarehouseID   uuid.UUID `gorm:"column:warehouse_id;type:uuid;not null"`
	Quantity      int64     `gorm:"column:quantity;not null"`
}

func (l *StockReservationLine) BeforeCreate(*gorm.DB) error {
	ensureID(&l.ID)
	return nil
}
