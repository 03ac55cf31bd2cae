package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/commerce-core/pkg/enums"
)

// CancellationRequest is a customer-initiated request reviewed by staff. Only
// one PENDING request may exist per order.
type CancellationRequest struct {
	ID         uuid.UUID                  `gorm:"column:id;type:uuid;primaryKey"`
	TenantID   uuid.UUID                  `gorm:"column:tenant_id;type:uuid;not null"`
	OrderID    uuid.UUID                  `gorm:"column:order_id;type:uuid;not null;index:idx_cancellation_requests_pending,unique,where:decision = 'PENDING'"`
	CustomerID uuid.UUID                  `gorm:"column:customer_id;type:uuid;not null"`
	Reason     string                     `gorm:"column:reason;not null"`
	Decision   enums.CancellationDecision `gorm:"column:decision;not null"`
	Feedback   *string                    `gorm:"column:feedback"`
	ReviewedBy *uuid.UUID                 `gorm:"column:reviewed_by;type:uuid"`
	CreatedAt  time.Time                  `gorm:"column:created_at;autoCreateTime"`
	DecidedAt  *time.Time                 `gorm:"column:decided_at"`
}

func (r *CancellationRequest) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}
