package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/commerce-core/pkg/enums"
)

// Payment is a single settlement attempt against an order.
type Payment struct {
	ID                 uuid.UUID                  `gorm:"column:id;type:uuid;primaryKey"`
	TenantID           uuid.UUID                  `gorm:"column:tenant_id;type:uuid;not null"`
	OrderID            uuid.UUID                  `gorm:"column:order_id;type:uuid;not null;index"`
	AmountCents        int64                      `gorm:"column:amount_cents;not null"`
	Method             enums.PaymentMethod        `gorm:"column:method;not null"`
	Status             enums.PaymentAttemptStatus `gorm:"column:status;not null;index"`
	TransactionID      *string                    `gorm:"column:transaction_id"`
	ProviderRef        *string                    `gorm:"column:provider_ref"`
	ReceiptReference   *string                    `gorm:"column:receipt_reference"`
	VerificationStatus enums.VerificationStatus   `gorm:"column:verification_status;not null"`
	SubmissionCount    int                        `gorm:"column:submission_count;not null;default:0"`
	RejectionNote      *string                    `gorm:"column:rejection_note"`
	FailureReason      *string                    `gorm:"column:failure_reason"`
	Metadata           json.RawMessage            `gorm:"column:metadata;type:jsonb"`
	SubmittedAt        *time.Time                 `gorm:"column:submitted_at"`
	ConfirmedAt        *time.Time                 `gorm:"column:confirmed_at"`
	FailedAt           *time.Time                 `gorm:"column:failed_at"`
	CreatedAt          time.Time                  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time                  `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Payment) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
