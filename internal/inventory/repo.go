package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/commerce-core/pkg/db/models"
	"github.com/angelmondragon/commerce-core/pkg/enums"
	"github.com/angelmondragon/commerce-core/pkg/pagination"
)

// Repository manages persistence for stock levels, reservations and movements.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	DefaultWarehouse(ctx context.Context, tenantID uuid.UUID) (*models.Warehouse, error)
	FindWarehouse(ctx context.Context, tenantID, warehouseID uuid.UUID) (*models.Warehouse, error)
	FindProducts(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
	TryDecrement(ctx context.Context, tenantID, productID, warehouseID uuid.UUID, qty int64) (bool, error)
	Increment(ctx context.Context, tenantID, productID, warehouseID uuid.UUID, qty int64) error
	OnHand(ctx context.Context, tenantID, productID, warehouseID uuid.UUID) (int64, error)
	SumOnHand(ctx context.Context, tenantID, productID uuid.UUID) (int64, error)
	AddProductStock(ctx context.Context, tenantID, productID uuid.UUID, delta int64) error
	CreateReservation(ctx context.Context, reservation *models.StockReservation) error
	FindReservationForUpdate(ctx context.Context, tenantID, reservationID uuid.UUID) (*models.StockReservation, error)
	UpdateReservationStatus(ctx context.Context, reservationID uuid.UUID, status enums.ReservationStatus) error
	AppendMovements(ctx context.Context, movements []models.StockMovement) error
	ListMovements(ctx context.Context, tenantID, productID uuid.UUID, params pagination.Params) (*pagination.Page[models.StockMovement], error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an inventory repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) DefaultWarehouse(ctx context.Context, tenantID uuid.UUID) (*models.Warehouse, error) {
	var wh models.Warehouse
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND is_default = ?", tenantID, true).
		First(&wh).Error
	if err != nil {
		return nil, err
	}
	return &wh, nil
}

func (r *repository) FindWarehouse(ctx context.Context, tenantID, warehouseID uuid.UUID) (*models.Warehouse, error) {
	var wh models.Warehouse
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, warehouseID).
		First(&wh).Error
	if err != nil {
		return nil, err
	}
	return &wh, nil
}

func (r *repository) FindProducts(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	var products []models.Product
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id IN ?", tenantID, ids).
		Find(&products).Error; err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]models.Product, len(products))
	for _, p := range products {
		out[p.ID] = p
	}
	return out, nil
}

// TryDecrement is the compare-and-swap on the stock counter: the row only
// changes when enough stock remains, so concurrent callers can never drive it
// below zero.
func (r *repository) TryDecrement(ctx context.Context, tenantID, productID, warehouseID uuid.UUID, qty int64) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE stock_levels
		SET on_hand = on_hand - ?,
			updated_at = ?
		WHERE tenant_id = ? AND product_id = ? AND warehouse_id = ? AND on_hand >= ?
	`, qty, time.Now().UTC(), tenantID, productID, warehouseID, qty)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) Increment(ctx context.Context, tenantID, productID, warehouseID uuid.UUID, qty int64) error {
	now := time.Now().UTC()
	level := models.StockLevel{
		TenantID:    tenantID,
		ProductID:   productID,
		WarehouseID: warehouseID,
		OnHand:      qty,
		UpdatedAt:   now,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tenant_id"}, {Name: "product_id"}, {Name: "warehouse_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"on_hand":    gorm.Expr("stock_levels.on_hand + ?", qty),
			"updated_at": now,
		}),
	}).Create(&level).Error
}

func (r *repository) OnHand(ctx context.Context, tenantID, productID, warehouseID uuid.UUID) (int64, error) {
	var level models.StockLevel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND product_id = ? AND warehouse_id = ?", tenantID, productID, warehouseID).
		First(&level).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return level.OnHand, nil
}

func (r *repository) SumOnHand(ctx context.Context, tenantID, productID uuid.UUID) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.StockLevel{}).
		Select("COALESCE(SUM(on_hand), 0)").
		Where("tenant_id = ? AND product_id = ?", tenantID, productID).
		Scan(&total).Error
	return total, err
}

func (r *repository) AddProductStock(ctx context.Context, tenantID, productID uuid.UUID, delta int64) error {
	return r.db.WithContext(ctx).Exec(`
		UPDATE products
		SET stock = stock + ?,
			updated_at = ?
		WHERE tenant_id = ? AND id = ?
	`, delta, time.Now().UTC(), tenantID, productID).Error
}

func (r *repository) CreateReservation(ctx context.Context, reservation *models.StockReservation) error {
	return r.db.WithContext(ctx).Create(reservation).Error
}

func (r *repository) FindReservationForUpdate(ctx context.Context, tenantID, reservationID uuid.UUID) (*models.StockReservation, error) {
	var reservation models.StockReservation
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND id = ?", tenantID, reservationID).
		First(&reservation).Error
	if err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).
		Where("reservation_id = ?", reservation.ID).
		Order("product_id ASC, warehouse_id ASC").
		Find(&reservation.Lines).Error; err != nil {
		return nil, err
	}
	return &reservation, nil
}

func (r *repository) UpdateReservationStatus(ctx context.Context, reservationID uuid.UUID, status enums.ReservationStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.StockReservation{}).
		Where("id = ?", reservationID).
		Updates(map[string]any{"status": status, "updated_at": time.Now().UTC()}).Error
}

func (r *repository) AppendMovements(ctx context.Context, movements []models.StockMovement) error {
	if len(movements) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&movements).Error
}

func (r *repository) ListMovements(ctx context.Context, tenantID, productID uuid.UUID, params pagination.Params) (*pagination.Page[models.StockMovement], error) {
	scope, err := pagination.Keyset(params, "")
	if err != nil {
		return nil, err
	}
	var rows []models.StockMovement
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND product_id = ?", tenantID, productID).
		Scopes(scope).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	page := pagination.Build(rows, params.Limit, func(m models.StockMovement) pagination.Cursor {
		return pagination.Cursor{CreatedAt: m.CreatedAt, ID: m.ID}
	})
	return &page, nil
}
