package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/commerce-core/pkg/db/models"
)

type cartRow = models.Cart

// Repository manages carts and their items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByOwner(ctx context.Context, tenantID uuid.UUID, owner Owner) (*models.Cart, error)
	Create(ctx context.Context, cart *models.Cart) error
	Delete(ctx context.Context, tenantID, cartID uuid.UUID) error
	ListItems(ctx context.Context, tenantID, cartID uuid.UUID) ([]models.CartItem, error)
	AddQuantity(ctx context.Context, item models.CartItem) error
	SetQuantity(ctx context.Context, tenantID, cartID, productID uuid.UUID, qty int64) (bool, error)
	DeleteItem(ctx context.Context, tenantID, cartID, productID uuid.UUID) (bool, error)
	ClearItems(ctx context.Context, tenantID, cartID uuid.UUID) error
	ActiveProduct(ctx context.Context, tenantID, productID uuid.UUID) (*models.Product, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository binds the repository to the provided DB handle.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByOwner(ctx context.Context, tenantID uuid.UUID, owner Owner) (*models.Cart, error) {
	var cart models.Cart
	err := owner.scope(r.db.WithContext(ctx).Where("tenant_id = ?", tenantID)).
		First(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

func (r *repository) Create(ctx context.Context, cart *models.Cart) error {
	return r.db.WithContext(ctx).Create(cart).Error
}

func (r *repository) Delete(ctx context.Context, tenantID, cartID uuid.UUID) error {
	if err := r.ClearItems(ctx, tenantID, cartID); err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, cartID).
		Delete(&models.Cart{}).Error
}

func (r *repository) ListItems(ctx context.Context, tenantID, cartID uuid.UUID) ([]models.CartItem, error) {
	var items []models.CartItem
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND cart_id = ?", tenantID, cartID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&items).Error
	return items, err
}

// AddQuantity inserts the line or merges into the existing one for the same product.
func (r *repository) AddQuantity(ctx context.Context, item models.CartItem) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "cart_id"}, {Name: "product_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"quantity":   gorm.Expr("cart_items.quantity + ?", item.Quantity),
			"updated_at": time.Now().UTC(),
		}),
	}).Create(&item).Error
}

func (r *repository) SetQuantity(ctx context.Context, tenantID, cartID, productID uuid.UUID, qty int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("tenant_id = ? AND cart_id = ? AND product_id = ?", tenantID, cartID, productID).
		Updates(map[string]any{"quantity": qty, "updated_at": time.Now().UTC()})
	return res.RowsAffected > 0, res.Error
}

func (r *repository) DeleteItem(ctx context.Context, tenantID, cartID, productID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("tenant_id = ? AND cart_id = ? AND product_id = ?", tenantID, cartID, productID).
		Delete(&models.CartItem{})
	return res.RowsAffected > 0, res.Error
}

func (r *repository) ClearItems(ctx context.Context, tenantID, cartID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("tenant_id = ? AND cart_id = ?", tenantID, cartID).
		Delete(&models.CartItem{}).Error
}

func (r *repository) ActiveProduct(ctx context.Context, tenantID, productID uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ? AND deleted_at IS NULL", tenantID, productID).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}
