package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/commerce-core/pkg/db/models"
	"github.com/angelmondragon/commerce-core/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Create inserts the order together with its line items.
func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, tenantID, orderID uuid.UUID) (*models.Order, error) {
	return r.find(ctx, false, tenantID, orderID)
}

// FindForUpdate row-locks the order for the rest of the transaction.
func (r *repository) FindForUpdate(ctx context.Context, tenantID, orderID uuid.UUID) (*models.Order, error) {
	return r.find(ctx, true, tenantID, orderID)
}

func (r *repository) find(ctx context.Context, lock bool, tenantID, orderID uuid.UUID) (*models.Order, error) {
	q := r.db.WithContext(ctx)
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var order models.Order
	if err := q.Where("tenant_id = ? AND id = ?", tenantID, orderID).First(&order).Error; err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Where("order_id = ?", order.ID).
		Order("product_id ASC, warehouse_id ASC").
		Find(&order.LineItems).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) ListForCustomer(ctx context.Context, tenantID, customerID uuid.UUID, params pagination.Params) (*pagination.Page[models.Order], error) {
	scope, err := pagination.Keyset(params, "")
	if err != nil {
		return nil, err
	}
	var rows []models.Order
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND customer_id = ?", tenantID, customerID).
		Scopes(scope).
		Preload("LineItems", func(db *gorm.DB) *gorm.DB {
			return db.Order("product_id ASC, warehouse_id ASC")
		}).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	page := pagination.Build(rows, params.Limit, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	return &page, nil
}

func (r *repository) Update(ctx context.Context, tenantID, orderID uuid.UUID, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("tenant_id = ? AND id = ?", tenantID, orderID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
