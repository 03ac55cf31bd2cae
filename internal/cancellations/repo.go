package cancellations

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/commerce-core/pkg/db/models"
	"github.com/angelmondragon/commerce-core/pkg/enums"
)

// Repository persists cancellation requests.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, request *models.CancellationRequest) error
	FindForUpdate(ctx context.Context, tenantID, requestID uuid.UUID) (*models.CancellationRequest, error)
	FindPendingForOrder(ctx context.Context, tenantID, orderID uuid.UUID) (*models.CancellationRequest, error)
	ListForOrder(ctx context.Context, tenantID, orderID uuid.UUID) ([]models.CancellationRequest, error)
	Decide(ctx context.Context, tenantID, requestID uuid.UUID, updates map[string]any) error
	FindStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.CancellationRequest, error)
	LatestCompletedPayment(ctx context.Context, tenantID, orderID uuid.UUID) (*models.Payment, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a cancellation request repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, request *models.CancellationRequest) error {
	return r.db.WithContext(ctx).Create(request).Error
}

func (r *repository) FindForUpdate(ctx context.Context, tenantID, requestID uuid.UUID) (*models.CancellationRequest, error) {
	var request models.CancellationRequest
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND id = ?", tenantID, requestID).
		First(&request).Error; err != nil {
		return nil, err
	}
	return &request, nil
}

// FindPendingForOrder returns nil when the order has no unresolved request.
func (r *repository) FindPendingForOrder(ctx context.Context, tenantID, orderID uuid.UUID) (*models.CancellationRequest, error) {
	var rows []models.CancellationRequest
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND order_id = ? AND decision = ?", tenantID, orderID, enums.CancellationPending).
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (r *repository) ListForOrder(ctx context.Context, tenantID, orderID uuid.UUID) ([]models.CancellationRequest, error) {
	var rows []models.CancellationRequest
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND order_id = ?", tenantID, orderID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Decide writes a decision only while the request is still PENDING.
func (r *repository) Decide(ctx context.Context, tenantID, requestID uuid.UUID, updates map[string]any) error {
	res := r.db.WithContext(ctx).
		Model(&models.CancellationRequest{}).
		Where("tenant_id = ? AND id = ? AND decision = ?", tenantID, requestID, enums.CancellationPending).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// FindStalePending lists PENDING requests created before cutoff across tenants.
func (r *repository) FindStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.CancellationRequest, error) {
	var rows []models.CancellationRequest
	q := r.db.WithContext(ctx).
		Where("decision = ? AND created_at < ?", enums.CancellationPending, cutoff.UTC()).
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// LatestCompletedPayment returns nil when the order was never settled.
func (r *repository) LatestCompletedPayment(ctx context.Context, tenantID, orderID uuid.UUID) (*models.Payment, error) {
	var rows []models.Payment
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND order_id = ? AND status = ?", tenantID, orderID, enums.PaymentAttemptCompleted).
		Order("confirmed_at DESC").
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}
