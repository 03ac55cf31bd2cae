package visibility

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/commerce-core/pkg/db/models"
	pkgerrors "github.com/angelmondragon/commerce-core/pkg/errors"
)

const (
	ReasonMissing     = "missing"
	ReasonDeleted     = "deleted"
	ReasonUnpublished = "unpublished"
)

// PurchasableInput drives the shared sellability checks used by checkout.
type PurchasableInput struct {
	TenantID  uuid.UUID
	ProductID uuid.UUID
	Product   *models.Product
}

// EnsureProductPurchasable rejects products that a shopper must not be able to
// buy: missing, owned by another tenant, soft-deleted or unpublished.
func EnsureProductPurchasable(input PurchasableInput) error {
	id := input.ProductID.String()
	if input.Product == nil || input.Product.TenantID != input.TenantID {
		return pkgerrors.ProductUnavailable(id, ReasonMissing)
	}
	if input.Product.DeletedAt != nil {
		return pkgerrors.ProductUnavailable(id, ReasonDeleted)
	}
	if !input.Product.IsPublished {
		return pkgerrors.ProductUnavailable(id, ReasonUnpublished)
	}
	return nil
}

// UnavailableReason returns the reason recorded on a ProductUnavailable error.
func UnavailableReason(err error) string {
	typed := pkgerrors.As(err)
	if typed == nil {
		return ""
	}
	details, ok := typed.Details().(map[string]any)
	if !ok {
		return ""
	}
	reason, _ := details["reason"].(string)
	return reason
}
