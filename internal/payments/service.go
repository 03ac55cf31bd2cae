package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/commerce-core/internal/orders"
	"github.com/angelmondragon/commerce-core/pkg/db/models"
	"github.com/angelmondragon/commerce-core/pkg/enums"
	pkgerrors "github.com/angelmondragon/commerce-core/pkg/errors"
	"github.com/angelmondragon/commerce-core/pkg/logger"
	"github.com/angelmondragon/commerce-core/pkg/outbox"
	"github.com/angelmondragon/commerce-core/pkg/outbox/payloads"
)

const (
	confirmScope        = "payment_confirm"
	reasonExpired       = "expired"
	reasonSuperseded    = "superseded by a new payment attempt"
	maxReferenceLength  = 255
	maxFailureReasonLen = 500
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ConfirmGuard drops gateway webhook redeliveries before they reach the database.
type ConfirmGuard interface {
	Mark(ctx context.Context, scope, id string) (claimed bool, err error)
	Release(ctx context.Context, scope, id string) error
}

// Service settles payment attempts and drives the order payment axis.
type Service interface {
	Initialize(ctx context.Context, tenantID, orderID uuid.UUID, input InitializeInput, actor orders.Actor) (*Intent, error)
	CreateIntentTx(ctx context.Context, tx *gorm.DB, order *models.Order, method enums.PaymentMethod) (*Intent, error)
	Confirm(ctx context.Context, tenantID, paymentID uuid.UUID, input ConfirmInput, actor orders.Actor) (*models.Order, error)
	Fail(ctx context.Context, tenantID, paymentID uuid.UUID, reason string, actor orders.Actor) (*models.Payment, error)
	SubmitReceipt(ctx context.Context, tenantID, paymentID uuid.UUID, reference string, actor orders.Actor) (*models.Payment, error)
	Verify(ctx context.Context, tenantID, paymentID uuid.UUID, input VerifyInput, actor orders.Actor) (*models.Payment, error)
	ExpireStaleIntents(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

// InitializeInput starts a new attempt; a zero amount means the order total.
type InitializeInput struct {
	AmountCents int64
	Method      enums.PaymentMethod
}

// ConfirmInput carries the gateway settlement identifiers.
type ConfirmInput struct {
	TransactionID string
	ProviderRef   *string
}

// VerifyInput is the staff decision on a submitted receipt.
type VerifyInput struct {
	Approve bool
	Note    string
}

// Intent is a created attempt plus the shopper-facing instructions for its method.
type Intent struct {
	Payment      *models.Payment `json:"payment"`
	Instructions string          `json:"instructions"`
}

type service struct {
	repo   Repository
	orders orders.Repository
	state  orders.Service
	tx     txRunner
	outbox outbox.Emitter
	guard  ConfirmGuard
	logg   *logger.Logger
}

// NewService wires the settlement service. guard may be nil.
func NewService(repo Repository, ordersRepo orders.Repository, state orders.Service, tx txRunner, emitter outbox.Emitter, guard ConfirmGuard, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payments repository required")
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
		guard:  guard,
		logg:   logg,
	}, nil
}

// Initialize opens a new attempt for an unpaid order. Older PENDING attempts are
// failed as superseded so at most one attempt is open per order.
func (s *service) Initialize(ctx context.Context, tenantID, orderID uuid.UUID, input InitializeInput, actor orders.Actor) (*Intent, error) {
	if input.AmountCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount cannot be negative")
	}
	if strings.TrimSpace(input.Method.String()) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment method required")
	}
	var intent *Intent
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.orders.WithTx(tx).FindForUpdate(ctx, tenantID, orderID)
		if err != nil {
			return mapOrderError(err)
		}
		if !actor.CanAccess(order.CustomerID) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		if order.Status == enums.OrderStatusCancelled {
			return pkgerrors.OrderAlreadyCancelled(order.ID.String())
		}
		if order.PaymentStatus == enums.PaymentStatusCompleted {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order already paid")
		}
		if input.AmountCents != 0 && input.AmountCents != order.TotalCents {
			return pkgerrors.New(pkgerrors.CodeValidation, "amount must equal the order total").WithDetails(map[string]any{
				"amount_cents": input.AmountCents,
				"total_cents":  order.TotalCents,
			})
		}

		repo := s.repo.WithTx(tx)
		open, err := repo.ListPendingForOrder(ctx, tenantID, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list open payments")
		}
		now := time.Now().UTC()
		for _, prior := range open {
			if err := repo.Update(ctx, tenantID, prior.ID, map[string]any{
				"status":         enums.PaymentAttemptFailed,
				"failure_reason": reasonSuperseded,
				"failed_at":      now,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "supersede payment")
			}
		}
		if err := s.state.ApplyPaymentPendingTx(ctx, tx, order, actor); err != nil {
			return err
		}
		intent, err = s.CreateIntentTx(ctx, tx, order, input.Method)
		return err
	})
	return intent, err
}

// CreateIntentTx inserts a PENDING attempt for the full order total.
func (s *service) CreateIntentTx(ctx context.Context, tx *gorm.DB, order *models.Order, method enums.PaymentMethod) (*Intent, error) {
	normalized, _ := enums.ParsePaymentMethod(method.String())
	payment := &models.Payment{
		TenantID:           order.TenantID,
		OrderID:            order.ID,
		AmountCents:        order.TotalCents,
		Method:             normalized,
		Status:             enums.PaymentAttemptPending,
		VerificationStatus: enums.VerificationNone,
	}
	if err := s.repo.WithTx(tx).Create(ctx, payment); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment")
	}
	return &Intent{Payment: payment, Instructions: Instructions(normalized)}, nil
}

// Confirm settles a gateway payment. Confirming a COMPLETED attempt again
// returns the current order without writing or emitting anything. Manual
// methods settle through SubmitReceipt and Verify only.
func (s *service) Confirm(ctx context.Context, tenantID, paymentID uuid.UUID, input ConfirmInput, actor orders.Actor) (*models.Order, error) {
	transactionID := strings.TrimSpace(input.TransactionID)
	if transactionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction id required")
	}
	if len(transactionID) > maxReferenceLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction id too long")
	}

	guardID := fmt.Sprintf("%s:%s:%s", tenantID, paymentID, transactionID)
	if s.guard != nil {
		claimed, err := s.guard.Mark(ctx, confirmScope, guardID)
		switch {
		case err != nil:
			s.warn(ctx, "payment confirm guard unavailable", err)
		case !claimed:
			return s.redelivered(ctx, tenantID, paymentID)
		}
	}

	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, payment, err := s.lockAttempt(ctx, tx, tenantID, paymentID)
		if err != nil {
			return err
		}
		if payment.Method.IsManual() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "manual payment methods settle through receipt verification")
		}
		result, err = s.settle(ctx, tx, order, payment, transactionID, input.ProviderRef, actor, false)
		return err
	})
	if err != nil && s.guard != nil {
		if releaseErr := s.guard.Release(ctx, confirmScope, guardID); releaseErr != nil {
			s.warn(ctx, "payment confirm guard release failed", releaseErr)
		}
	}
	return result, err
}

// redelivered answers a confirmation whose guard is already held. Until the
// first delivery has completed the attempt the caller gets CONFLICT and retries.
func (s *service) redelivered(ctx context.Context, tenantID, paymentID uuid.UUID) (*models.Order, error) {
	payment, err := s.repo.FindByID(ctx, tenantID, paymentID)
	if err != nil {
		return nil, mapPaymentError(err)
	}
	if payment.Status != enums.PaymentAttemptCompleted {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "payment confirmation already in progress")
	}
	order, err := s.orders.FindByID(ctx, tenantID, payment.OrderID)
	if err != nil {
		return nil, mapOrderError(err)
	}
	return order, nil
}

// lockAttempt locks the order and then the payment. Every writer of a payment
// attempt takes the locks in this order.
func (s *service) lockAttempt(ctx context.Context, tx *gorm.DB, tenantID, paymentID uuid.UUID) (*models.Order, *models.Payment, error) {
	repo := s.repo.WithTx(tx)
	peek, err := repo.FindByID(ctx, tenantID, paymentID)
	if err != nil {
		return nil, nil, mapPaymentError(err)
	}
	order, err := s.orders.WithTx(tx).FindForUpdate(ctx, tenantID, peek.OrderID)
	if err != nil {
		return nil, nil, mapOrderError(err)
	}
	payment, err := repo.FindForUpdate(ctx, tenantID, paymentID)
	if err != nil {
		return nil, nil, mapPaymentError(err)
	}
	return order, payment, nil
}

// settle completes a locked attempt and its order.
func (s *service) settle(ctx context.Context, tx *gorm.DB, order *models.Order, payment *models.Payment, transactionID string, providerRef *string, actor orders.Actor, manual bool) (*models.Order, error) {
	if payment.Status == enums.PaymentAttemptCompleted {
		return order, nil
	}
	if order.Status == enums.OrderStatusCancelled {
		return nil, pkgerrors.OrderAlreadyCancelled(order.ID.String())
	}
	if !payment.Status.CanTransitionTo(enums.PaymentAttemptCompleted) {
		return nil, pkgerrors.InvalidTransition("payment attempt", payment.Status.String(), enums.PaymentAttemptCompleted.String())
	}

	now := time.Now().UTC()
	updates := map[string]any{
		"status":         enums.PaymentAttemptCompleted,
		"transaction_id": transactionID,
		"confirmed_at":   now,
	}
	if providerRef != nil {
		updates["provider_ref"] = strings.TrimSpace(*providerRef)
	}
	if manual {
		updates["verification_status"] = enums.VerificationApproved
	}
	if err := s.repo.WithTx(tx).Update(ctx, order.TenantID, payment.ID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete payment")
	}
	if err := s.state.ApplyPaymentCompletedTx(ctx, tx, order, actor); err != nil {
		return nil, err
	}
	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		TenantID:      order.TenantID,
		EventType:     enums.EventPaymentCompleted,
		AggregateType: enums.AggregatePayment,
		AggregateID:   payment.ID,
		Actor:         actor.Ref(),
		Data: payloads.PaymentCompletedEvent{
			PaymentID:     payment.ID,
			OrderID:       order.ID,
			AmountCents:   payment.AmountCents,
			Method:        payment.Method,
			TransactionID: transactionID,
			ProviderRef:   providerRef,
		},
	}); err != nil {
		return nil, err
	}
	return order, nil
}

// Fail records a gateway failure on a PENDING attempt. The order is never
// cancelled; a new attempt may follow.
func (s *service) Fail(ctx context.Context, tenantID, paymentID uuid.UUID, reason string, actor orders.Actor) (*models.Payment, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "failure reason required")
	}
	if len(reason) > maxFailureReasonLen {
		reason = reason[:maxFailureReasonLen]
	}
	var result *models.Payment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		payment, err := s.failTx(ctx, tx, tenantID, paymentID, reason, actor)
		result = payment
		return err
	})
	return result, err
}

func (s *service) failTx(ctx context.Context, tx *gorm.DB, tenantID, paymentID uuid.UUID, reason string, actor orders.Actor) (*models.Payment, error) {
	order, payment, err := s.lockAttempt(ctx, tx, tenantID, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status == enums.PaymentAttemptFailed {
		return payment, nil
	}
	if !payment.Status.CanTransitionTo(enums.PaymentAttemptFailed) {
		return nil, pkgerrors.InvalidTransition("payment attempt", payment.Status.String(), enums.PaymentAttemptFailed.String())
	}

	now := time.Now().UTC()
	if err := s.repo.WithTx(tx).Update(ctx, tenantID, payment.ID, map[string]any{
		"status":         enums.PaymentAttemptFailed,
		"failure_reason": reason,
		"failed_at":      now,
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fail payment")
	}
	payment.Status = enums.PaymentAttemptFailed
	payment.FailureReason = &reason
	payment.FailedAt = &now

	if err := s.state.ApplyPaymentFailedTx(ctx, tx, order, actor, reason); err != nil {
		return nil, err
	}
	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		TenantID:      tenantID,
		EventType:     enums.EventPaymentFailed,
		AggregateType: enums.AggregatePayment,
		AggregateID:   payment.ID,
		Actor:         actor.Ref(),
		Data: payloads.PaymentFailedEvent{
			PaymentID: payment.ID,
			OrderID:   order.ID,
			Method:    payment.Method,
			Reason:    reason,
		},
	}); err != nil {
		return nil, err
	}
	return payment, nil
}

// SubmitReceipt records the customer's transfer or delivery receipt for a
// manual method. Resubmission after a rejection is allowed without limit.
func (s *service) SubmitReceipt(ctx context.Context, tenantID, paymentID uuid.UUID, reference string, actor orders.Actor) (*models.Payment, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "receipt reference required")
	}
	if len(reference) > maxReferenceLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "receipt reference too long")
	}
	var result *models.Payment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		payment, err := repo.FindForUpdate(ctx, tenantID, paymentID)
		if err != nil {
			return mapPaymentError(err)
		}
		order, err := s.orders.WithTx(tx).FindByID(ctx, tenantID, payment.OrderID)
		if err != nil {
			return mapOrderError(err)
		}
		if !actor.CanAccess(order.CustomerID) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		if order.Status == enums.OrderStatusCancelled {
			return pkgerrors.OrderAlreadyCancelled(order.ID.String())
		}
		if !payment.Method.IsManual() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "receipts are only accepted for manual payment methods")
		}
		if payment.Status != enums.PaymentAttemptPending {
			return pkgerrors.InvalidTransition("payment attempt", payment.Status.String(), "receipt submission")
		}
		if !payment.VerificationStatus.CanSubmit() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "receipt already awaiting verification")
		}

		now := time.Now().UTC()
		if err := repo.Update(ctx, tenantID, payment.ID, map[string]any{
			"receipt_reference":   reference,
			"verification_status": enums.VerificationSubmitted,
			"submission_count":    gorm.Expr("submission_count + 1"),
			"submitted_at":        now,
			"rejection_note":      nil,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "submit receipt")
		}
		result, err = repo.FindByID(ctx, tenantID, payment.ID)
		if err != nil {
			return mapPaymentError(err)
		}
		return nil
	})
	return result, err
}

// Verify applies a staff decision to a submitted receipt. Approval settles the
// payment exactly like Confirm with the receipt reference as transaction id;
// rejection keeps the attempt PENDING and records the note.
func (s *service) Verify(ctx context.Context, tenantID, paymentID uuid.UUID, input VerifyInput, actor orders.Actor) (*models.Payment, error) {
	if !actor.Role.IsStaff() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "staff role required")
	}
	note := strings.TrimSpace(input.Note)
	if !input.Approve && note == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rejection note required")
	}
	var result *models.Payment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, payment, err := s.lockAttempt(ctx, tx, tenantID, paymentID)
		if err != nil {
			return err
		}
		if payment.Status != enums.PaymentAttemptPending {
			return pkgerrors.InvalidTransition("payment attempt", payment.Status.String(), "receipt verification")
		}
		if payment.VerificationStatus != enums.VerificationSubmitted {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "no receipt awaiting verification")
		}

		repo := s.repo.WithTx(tx)
		if input.Approve {
			reference := ""
			if payment.ReceiptReference != nil {
				reference = *payment.ReceiptReference
			}
			if _, err := s.settle(ctx, tx, order, payment, reference, nil, actor, true); err != nil {
				return err
			}
		} else if err := repo.Update(ctx, tenantID, payment.ID, map[string]any{
			"verification_status": enums.VerificationRejected,
			"rejection_note":      note,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reject receipt")
		}
		result, err = repo.FindByID(ctx, tenantID, payment.ID)
		if err != nil {
			return mapPaymentError(err)
		}
		return nil
	})
	return result, err
}

// ExpireStaleIntents fails PENDING attempts created before cutoff that never
// received a receipt. Each attempt is expired in its own transaction.
func (s *service) ExpireStaleIntents(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	stale, err := s.repo.FindExpiredIntents(ctx, cutoff, limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list expired payment intents")
	}
	system := orders.Actor{Role: enums.RoleSystem}
	expired := 0
	var errs error
	for _, payment := range stale {
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			_, err := s.failTx(ctx, tx, payment.TenantID, payment.ID, reasonExpired, system)
			return err
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("expire payment %s: %w", payment.ID, err))
			continue
		}
		expired++
	}
	return expired, errs
}

func (s *service) warn(ctx context.Context, msg string, err error) {
	if s.logg == nil {
		return
	}
	s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), msg)
}

func mapPaymentError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
}

func mapOrderError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
}
