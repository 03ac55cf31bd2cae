package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/commerce-core/pkg/enums"
)

// Promotion is a tenant discount code. Value is a percentage for PERCENT and
// minor currency units for FIXED.
type Promotion struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	TenantID         uuid.UUID           `gorm:"column:tenant_id;type:uuid;not null;index:idx_promotions_tenant_code,unique"`
	Code             string              `gorm:"column:code;not null;index:idx_promotions_tenant_code,unique"`
	Kind             enums.PromotionKind `gorm:"column:kind;not null"`
	Value            decimal.Decimal     `gorm:"column:value;type:numeric(12,2);not null"`
	MinSubtotalCents int64               `gorm:"column:min_subtotal_cents;not null;default:0"`
	Active           bool                `gorm:"column:active;not null"`
	StartsAt         *time.Time          `gorm:"column:starts_at"`
	EndsAt           *time.Time          `gorm:"column:ends_at"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
}

func (p *Promotion) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
