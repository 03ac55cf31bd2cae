package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/commerce-core/pkg/db/models"
	"github.com/angelmondragon/commerce-core/pkg/enums"
	pkgerrors "github.com/angelmondragon/commerce-core/pkg/errors"
	"github.com/angelmondragon/commerce-core/pkg/outbox"
	"github.com/angelmondragon/commerce-core/pkg/outbox/payloads"
	"github.com/angelmondragon/commerce-core/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// InventoryReverser returns the committed stock of a cancelled order.
type InventoryReverser interface {
	ReverseTx(ctx context.Context, tx *gorm.DB, tenantID, reservationID, orderID uuid.UUID) error
}

// Service owns every write to the order status and payment status axes.
type Service interface {
	Get(ctx context.Context, tenantID, orderID uuid.UUID, actor Actor) (*models.Order, error)
	ListForCustomer(ctx context.Context, tenantID, customerID uuid.UUID, params pagination.Params) (*pagination.Page[models.Order], error)
	MarkDelivered(ctx context.Context, tenantID, orderID uuid.UUID, actor Actor) (*models.Order, error)
	CancelUnpaid(ctx context.Context, tenantID, orderID uuid.UUID, actor Actor) (*models.Order, error)
	CancelTx(ctx context.Context, tx *gorm.DB, order *models.Order, actor Actor, reason string) error
	ApplyPaymentCompletedTx(ctx context.Context, tx *gorm.DB, order *models.Order, actor Actor) error
	ApplyPaymentFailedTx(ctx context.Context, tx *gorm.DB, order *models.Order, actor Actor, reason string) error
	ApplyPaymentPendingTx(ctx context.Context, tx *gorm.DB, order *models.Order, actor Actor) error
	TransitionTx(ctx context.Context, tx *gorm.DB, order *models.Order, change Change, actor Actor) error
}

type service struct {
	repo      Repository
	tx        txRunner
	outbox    outbox.Emitter
	inventory InventoryReverser
}

// NewService builds the order state machine with the required dependencies.
func NewService(repo Repository, tx txRunner, emitter outbox.Emitter, inventory InventoryReverser) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if inventory == nil {
		return nil, fmt.Errorf("inventory reverser required")
	}
	return &service{
		repo:      repo,
		tx:        tx,
		outbox:    emitter,
		inventory: inventory,
	}, nil
}

func (s *service) Get(ctx context.Context, tenantID, orderID uuid.UUID, actor Actor) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, tenantID, orderID)
	if err != nil {
		return nil, mapLoadError(err)
	}
	if !actor.CanAccess(order.CustomerID) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (s *service) ListForCustomer(ctx context.Context, tenantID, customerID uuid.UUID, params pagination.Params) (*pagination.Page[models.Order], error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	if _, err := params.Decode(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	page, err := s.repo.ListForCustomer(ctx, tenantID, customerID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return page, nil
}

func (s *service) MarkDelivered(ctx context.Context, tenantID, orderID uuid.UUID, actor Actor) (*models.Order, error) {
	if !actor.Role.IsStaff() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "staff role required")
	}
	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.repo.WithTx(tx).FindForUpdate(ctx, tenantID, orderID)
		if err != nil {
			return mapLoadError(err)
		}
		if err := s.TransitionTx(ctx, tx, order, Change{Status: enums.OrderStatusDelivered}, actor); err != nil {
			return err
		}
		result = order
		return nil
	})
	return result, err
}

// CancelUnpaid cancels an order whose payment has not completed and returns its
// stock. Paid orders go through the cancellation request workflow instead.
func (s *service) CancelUnpaid(ctx context.Context, tenantID, orderID uuid.UUID, actor Actor) (*models.Order, error) {
	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.repo.WithTx(tx).FindForUpdate(ctx, tenantID, orderID)
		if err != nil {
			return mapLoadError(err)
		}
		if !actor.CanAccess(order.CustomerID) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		if order.PaymentStatus == enums.PaymentStatusCompleted && order.Status != enums.OrderStatusCancelled {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is paid; submit a cancellation request").WithDetails(map[string]any{
				"order_id":       order.ID.String(),
				"payment_status": order.PaymentStatus,
			})
		}
		if err := s.CancelTx(ctx, tx, order, actor, "cancelled before payment"); err != nil {
			return err
		}
		result = order
		return nil
	})
	return result, err
}

// CancelTx moves a locked order to CANCELLED and reverses its committed stock.
func (s *service) CancelTx(ctx context.Context, tx *gorm.DB, order *models.Order, actor Actor, reason string) error {
	if order.Status == enums.OrderStatusCancelled {
		return pkgerrors.OrderAlreadyCancelled(order.ID.String())
	}
	if err := s.TransitionTx(ctx, tx, order, Change{Status: enums.OrderStatusCancelled, Reason: reason}, actor); err != nil {
		return err
	}
	return s.inventory.ReverseTx(ctx, tx, order.TenantID, order.ReservationID, order.ID)
}

func (s *service) ApplyPaymentCompletedTx(ctx context.Context, tx *gorm.DB, order *models.Order, actor Actor) error {
	if order.Status == enums.OrderStatusCancelled {
		return pkgerrors.OrderAlreadyCancelled(order.ID.String())
	}
	if order.PaymentStatus == enums.PaymentStatusCompleted {
		return nil
	}
	change := Change{PaymentStatus: enums.PaymentStatusCompleted, Reason: "payment completed"}
	if order.Status == enums.OrderStatusPending {
		change.Status = enums.OrderStatusConfirmed
	}
	return s.TransitionTx(ctx, tx, order, change, actor)
}

// ApplyPaymentFailedTx records a failed attempt on the payment axis. The order
// itself stays open so another attempt can settle it.
func (s *service) ApplyPaymentFailedTx(ctx context.Context, tx *gorm.DB, order *models.Order, actor Actor, reason string) error {
	if order.Status == enums.OrderStatusCancelled {
		return nil
	}
	if order.PaymentStatus == enums.PaymentStatusCompleted || order.PaymentStatus == enums.PaymentStatusFailed {
		return nil
	}
	return s.TransitionTx(ctx, tx, order, Change{PaymentStatus: enums.PaymentStatusFailed, Reason: reason}, actor)
}

func (s *service) ApplyPaymentPendingTx(ctx context.Context, tx *gorm.DB, order *models.Order, actor Actor) error {
	if order.Status == enums.OrderStatusCancelled {
		return pkgerrors.OrderAlreadyCancelled(order.ID.String())
	}
	if order.PaymentStatus == enums.PaymentStatusPending {
		return nil
	}
	return s.TransitionTx(ctx, tx, order, Change{PaymentStatus: enums.PaymentStatusPending, Reason: "payment retry"}, actor)
}

// TransitionTx validates and applies change to a locked order, updating the
// passed struct and emitting order_status_changed. A no-op change writes nothing.
func (s *service) TransitionTx(ctx context.Context, tx *gorm.DB, order *models.Order, change Change, actor Actor) error {
	if order == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	nextStatus := order.Status
	nextPayment := order.PaymentStatus

	if change.Status != "" && change.Status != order.Status {
		if order.Status == enums.OrderStatusCancelled {
			return pkgerrors.OrderAlreadyCancelled(order.ID.String())
		}
		if !order.Status.CanTransitionTo(change.Status) {
			return pkgerrors.InvalidTransition("order", order.Status.String(), change.Status.String())
		}
		nextStatus = change.Status
	}
	if change.PaymentStatus != "" && change.PaymentStatus != order.PaymentStatus {
		if order.Status == enums.OrderStatusCancelled {
			return pkgerrors.OrderAlreadyCancelled(order.ID.String())
		}
		if !order.PaymentStatus.CanTransitionTo(change.PaymentStatus) {
			return pkgerrors.InvalidTransition("payment", order.PaymentStatus.String(), change.PaymentStatus.String())
		}
		nextPayment = change.PaymentStatus
	}
	if nextStatus == order.Status && nextPayment == order.PaymentStatus {
		return nil
	}

	now := time.Now().UTC()
	updates := map[string]any{
		"status":         nextStatus,
		"payment_status": nextPayment,
		"updated_at":     now,
	}
	if nextStatus != order.Status {
		switch nextStatus {
		case enums.OrderStatusConfirmed:
			updates["confirmed_at"] = now
			order.ConfirmedAt = &now
		case enums.OrderStatusDelivered:
			updates["delivered_at"] = now
			order.DeliveredAt = &now
		case enums.OrderStatusCancelled:
			updates["cancelled_at"] = now
			order.CancelledAt = &now
		}
	}
	if err := s.repo.WithTx(tx).Update(ctx, order.TenantID, order.ID, updates); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}

	event := payloads.OrderStatusChangedEvent{
		OrderID:           order.ID,
		PreviousStatus:    order.Status,
		Status:            nextStatus,
		PreviousPayStatus: order.PaymentStatus,
		PaymentStatus:     nextPayment,
		Reason:            change.Reason,
	}
	order.Status = nextStatus
	order.PaymentStatus = nextPayment
	order.UpdatedAt = now

	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		TenantID:      order.TenantID,
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actor.Ref(),
		Data:          event,
	})
}

func mapLoadError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
}
