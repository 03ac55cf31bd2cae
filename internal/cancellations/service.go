package cancellations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/commerce-core/internal/orders"
	"github.com/angelmondragon/commerce-core/pkg/db"
	"github.com/angelmondragon/commerce-core/pkg/db/models"
	"github.com/angelmondragon/commerce-core/pkg/enums"
	pkgerrors "github.com/angelmondragon/commerce-core/pkg/errors"
	"github.com/angelmondragon/commerce-core/pkg/logger"
	"github.com/angelmondragon/commerce-core/pkg/outbox"
	"github.com/angelmondragon/commerce-core/pkg/outbox/payloads"
)

const (
	minReasonLength   = 10
	maxReasonLength   = 1000
	maxFeedbackLength = 1000
	pendingIndexName  = "idx_cancellation_requests_pending"
	expiredFeedback   = "request expired without review"
	approvedOrderNote = "cancellation request approved"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service runs the customer cancellation request and staff review workflow.
type Service interface {
	Create(ctx context.Context, tenantID, orderID uuid.UUID, reason string, actor orders.Actor) (*models.CancellationRequest, error)
	Review(ctx context.Context, tenantID, requestID uuid.UUID, input ReviewInput, actor orders.Actor) (*models.CancellationRequest, error)
	ListForOrder(ctx context.Context, tenantID, orderID uuid.UUID, actor orders.Actor) ([]models.CancellationRequest, error)
	ExpirePending(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

// ReviewInput is a staff decision with optional customer-facing feedback.
type ReviewInput struct {
	Decision enums.CancellationDecision
	Feedback string
}

type service struct {
	repo   Repository
	orders orders.Repository
	state  orders.Service
	tx     txRunner
	outbox outbox.Emitter
	logg   *logger.Logger
	now    func() time.Time
}

// NewService wires the cancellation workflow.
func NewService(repo Repository, ordersRepo orders.Repository, state orders.Service, tx txRunner, emitter outbox.Emitter, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cancellation repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if state == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:   repo,
		orders: ordersRepo,
		state:  state,
		tx:     tx,
		outbox: emitter,
		logg:   logg,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// Create files a cancellation request for the caller's own order.
func (s *service) Create(ctx context.Context, tenantID, orderID uuid.UUID, reason string, actor orders.Actor) (*models.CancellationRequest, error) {
	reason = strings.TrimSpace(reason)
	if utf8.RuneCountInString(reason) < minReasonLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("reason must be at least %d characters", minReasonLength)).
			WithDetails(map[string]any{"field": "reason"})
	}
	if utf8.RuneCountInString(reason) > maxReasonLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reason too long").WithDetails(map[string]any{"field": "reason"})
	}

	var created *models.CancellationRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.orders.WithTx(tx).FindForUpdate(ctx, tenantID, orderID)
		if err != nil {
			return mapOrderError(err)
		}
		if order.CustomerID == nil || *order.CustomerID != actor.UserID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		switch order.Status {
		case enums.OrderStatusCancelled:
			return pkgerrors.OrderAlreadyCancelled(order.ID.String())
		case enums.OrderStatusDelivered:
			return pkgerrors.New(pkgerrors.CodeStateConflict, "delivered orders cannot be cancelled").
				WithDetails(map[string]any{"order_id": order.ID.String(), "status": order.Status})
		}

		repo := s.repo.WithTx(tx)
		existing, err := repo.FindPendingForOrder(ctx, tenantID, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check pending cancellation")
		}
		if existing != nil {
			return pkgerrors.DuplicateRequest("a cancellation request is already pending for this order")
		}

		request := &models.CancellationRequest{
			TenantID:   tenantID,
			OrderID:    order.ID,
			CustomerID: actor.UserID,
			Reason:     reason,
			Decision:   enums.CancellationPending,
		}
		if err := repo.Create(ctx, request); err != nil {
			if db.IsUniqueViolation(err, pendingIndexName) {
				return pkgerrors.DuplicateRequest("a cancellation request is already pending for this order")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cancellation request")
		}
		created = request
		return nil
	})
	return created, err
}

// Review decides a PENDING request. Approval cancels the order and reverses its
// stock in the same transaction and requests a refund when it was paid.
func (s *service) Review(ctx context.Context, tenantID, requestID uuid.UUID, input ReviewInput, actor orders.Actor) (*models.CancellationRequest, error) {
	if !actor.Role.IsStaff() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "staff role required")
	}
	if input.Decision != enums.CancellationApproved && input.Decision != enums.CancellationRejected {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "decision must be APPROVED or REJECTED").
			WithDetails(map[string]any{"field": "decision"})
	}
	feedback := strings.TrimSpace(input.Feedback)
	if utf8.RuneCountInString(feedback) > maxFeedbackLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "feedback too long").WithDetails(map[string]any{"field": "feedback"})
	}

	var result *models.CancellationRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		request, err := s.repo.WithTx(tx).FindForUpdate(ctx, tenantID, requestID)
		if err != nil {
			return mapRequestError(err)
		}
		result, err = s.decideTx(ctx, tx, request, input.Decision, optional(feedback), actor, false)
		return err
	})
	return result, err
}

func (s *service) decideTx(ctx context.Context, tx *gorm.DB, request *models.CancellationRequest, decision enums.CancellationDecision, feedback *string, actor orders.Actor, expired bool) (*models.CancellationRequest, error) {
	if request.Decision.IsTerminal() {
		return nil, pkgerrors.InvalidTransition("cancellation request", request.Decision.String(), decision.String())
	}
	order, err := s.orders.WithTx(tx).FindForUpdate(ctx, request.TenantID, request.OrderID)
	if err != nil {
		return nil, mapOrderError(err)
	}

	if decision == enums.CancellationApproved {
		if err := s.state.CancelTx(ctx, tx, order, actor, approvedOrderNote); err != nil {
			return nil, err
		}
		if order.PaymentStatus == enums.PaymentStatusCompleted {
			if err := s.requestRefund(ctx, tx, request, order, actor); err != nil {
				return nil, err
			}
		}
	}

	now := s.now()
	updates := map[string]any{
		"decision":   decision,
		"feedback":   feedback,
		"decided_at": now,
	}
	if actor.UserID != uuid.Nil {
		updates["reviewed_by"] = actor.UserID
	}
	if err := s.repo.WithTx(tx).Decide(ctx, request.TenantID, request.ID, updates); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "cancellation request already decided")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decide cancellation request")
	}
	request.Decision = decision
	request.Feedback = feedback
	request.DecidedAt = &now
	if actor.UserID != uuid.Nil {
		reviewer := actor.UserID
		request.ReviewedBy = &reviewer
	}

	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		TenantID:      request.TenantID,
		EventType:     enums.EventCancellationDecided,
		AggregateType: enums.AggregateCancellationRequest,
		AggregateID:   request.ID,
		Actor:         actor.Ref(),
		Data: payloads.CancellationDecidedEvent{
			RequestID:  request.ID,
			OrderID:    request.OrderID,
			CustomerID: request.CustomerID,
			Decision:   decision,
			Feedback:   feedback,
			Expired:    expired,
		},
	}); err != nil {
		return nil, err
	}
	return request, nil
}

func (s *service) requestRefund(ctx context.Context, tx *gorm.DB, request *models.CancellationRequest, order *models.Order, actor orders.Actor) error {
	payment, err := s.repo.WithTx(tx).LatestCompletedPayment(ctx, order.TenantID, order.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load settled payment")
	}
	event := payloads.RefundRequestedEvent{
		OrderID:               order.ID,
		CancellationRequestID: request.ID,
		AmountCents:           order.TotalCents,
	}
	if payment != nil {
		event.PaymentID = &payment.ID
		event.AmountCents = payment.AmountCents
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		TenantID:      order.TenantID,
		EventType:     enums.EventRefundRequested,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actor.Ref(),
		Data:          event,
	})
}

// ListForOrder returns the requests of an order, newest first, so customers can
// read the review feedback.
func (s *service) ListForOrder(ctx context.Context, tenantID, orderID uuid.UUID, actor orders.Actor) ([]models.CancellationRequest, error) {
	order, err := s.orders.FindByID(ctx, tenantID, orderID)
	if err != nil {
		return nil, mapOrderError(err)
	}
	if !actor.CanAccess(order.CustomerID) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	rows, err := s.repo.ListForOrder(ctx, tenantID, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list cancellation requests")
	}
	return rows, nil
}

// ExpirePending auto-rejects requests nobody reviewed before cutoff.
func (s *service) ExpirePending(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	stale, err := s.repo.FindStalePending(ctx, cutoff, limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stale cancellation requests")
	}
	system := orders.Actor{Role: enums.RoleSystem}
	feedback := expiredFeedback
	expired := 0
	var errs error
	for _, candidate := range stale {
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			request, err := s.repo.WithTx(tx).FindForUpdate(ctx, candidate.TenantID, candidate.ID)
			if err != nil {
				return mapRequestError(err)
			}
			if request.Decision.IsTerminal() {
				return nil
			}
			_, err = s.decideTx(ctx, tx, request, enums.CancellationRejected, &feedback, system, true)
			return err
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("expire cancellation request %s: %w", candidate.ID, err))
			continue
		}
		expired++
	}
	if expired > 0 && s.logg != nil {
		s.logg.Info(s.logg.WithField(ctx, "expired", expired), "cancellation requests expired")
	}
	return expired, errs
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func mapRequestError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "cancellation request not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cancellation request")
}

func mapOrderError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
}
