package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/commerce-core/pkg/db/models"
	"github.com/angelmondragon/commerce-core/pkg/pagination"
)

// Repository defines persistence operations for orders and their line items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, tenantID, orderID uuid.UUID) (*models.Order, error)
	FindForUpdate(ctx context.Context, tenantID, orderID uuid.UUID) (*models.Order, error)
	ListForCustomer(ctx context.Context, tenantID, customerID uuid.UUID, params pagination.Params) (*pagination.Page[models.Order], error)
	Update(ctx context.Context, tenantID, orderID uuid.UUID, updates map[string]any) error
}
