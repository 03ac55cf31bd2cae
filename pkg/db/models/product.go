package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Product is the catalog row referenced by carts and orders. Stock is the
// aggregate on-hand quantity across warehouses and is written only by the ledger.
type Product struct {
	ID               uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	TenantID         uuid.UUID  `gorm:"column:tenant_id;type:uuid;not null;index:idx_products_tenant_sku,unique"`
	SKU              string     `gorm:"column:sku;not null;index:idx_products_tenant_sku,unique"`
	Name             string     `gorm:"column:name;not null"`
	PriceCents       int64      `gorm:"column:price_cents;not null"`
	IsPublished      bool       `gorm:"column:is_published;not null;default:false"`
	Stock            int64      `gorm:"column:stock;not null;default:0;check:chk_products_stock,stock >= 0"`
	ReorderThreshold *int64     `gorm:"column:reorder_threshold"`
	CreatedAt        time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time  `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt        *time.Time `gorm:"column:deleted_at"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// Warehouse belongs to a tenant; at most one per tenant is the default.
type Warehouse struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	TenantID  uuid.UUID `gorm:"column:tenant_id;type:uuid;not null;index:idx_warehouses_default,unique,where:is_default"`
	Name      string    `gorm:"column:name;not null"`
	IsDefault bool      `gorm:"column:is_default;not null;default:false"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (w *Warehouse) BeforeCreate(*gorm.DB) error {
	ensureID(&w.ID)
	return nil
}
