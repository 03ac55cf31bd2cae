package cancellations_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/commerce-core/internal/cancellations"
	"github.com/angelmondragon/commerce-core/internal/orders"
	"github.com/angelmondragon/commerce-core/internal/payments"
	"github.com/angelmondragon/commerce-core/internal/testkit"
	"github.com/angelmondragon/commerce-core/pkg/db/dbtest"
	"github.com/angelmondragon/commerce-core/pkg/db/models"
	"github.com/angelmondragon/commerce-core/pkg/enums"
	pkgerrors "github.com/angelmondragon/commerce-core/pkg/errors"
)

const reason = "ordered the wrong size by mistake"

var staff = orders.Actor{UserID: uuid.New(), Role: enums.RoleStaff}

func customer(id uuid.UUID) orders.Actor {
	return orders.Actor{UserID: id, Role: enums.RoleCustomer}
}

func paidOrder(t *testing.T, stack *testkit.Stack, productID uuid.UUID, qty int64) (*models.Order, uuid.UUID) {
	t.Helper()
	result, customerID := stack.PlaceOrder(t, productID, qty, enums.PaymentMethodCard)
	order, err := stack.Payments.Confirm(context.Background(), stack.Catalog.TenantID, result.Payment.ID,
		payments.ConfirmInput{TransactionID: "txn-" + result.Payment.ID.String()}, orders.Actor{Role: enums.RoleSystem})
	require.NoError(t, err)
	return order, customerID
}

func TestApproveReversesStockAndRequestsRefund(t *testing.T) {
	stack := testkit.New(t)
	product := dbtest.SeedProduct(t, stack.Conn, stack.Catalog, 1200, 5)
	order, customerID := paidOrder(t, stack, product.ID, 3)
	ctx := context.Background()
	tenant := stack.Catalog.TenantID
	require.EqualValues(t, 2, stack.OnHand(t, product.ID))

	request, err := stack.Cancels.Create(ctx, tenant, order.ID, "  "+reason+"  ", customer(customerID))
	require.NoError(t, err)
	assert.Equal(t, enums.CancellationPending, request.Decision)
	assert.Equal(t, reason, request.Reason)

	decided, err := stack.Cancels.Review(ctx, tenant, request.ID, cancellations.ReviewInput{Decision: enums.CancellationApproved}, staff)
	require.NoError(t, err)
	assert.Equal(t, enums.CancellationApproved, decided.Decision)
	require.NotNil(t, decided.ReviewedBy)
	assert.Equal(t, staff.UserID, *decided.ReviewedBy)

	var stored models.Order
	require.NoError(t, stack.Conn.First(&stored, "id = ?", order.ID).Error)
	assert.Equal(t, enums.OrderStatusCancelled, stored.Status)
	assert.NotNil(t, stored.CancelledAt)

	assert.EqualValues(t, 5, stack.OnHand(t, product.ID))
	var reversals []models.StockMovement
	for _, movement := range stack.Movements(t, product.ID) {
		if movement.Type == enums.MovementCancellationReversal {
			reversals = append(reversals, movement)
		}
	}
	require.Len(t, reversals, 1)
	assert.EqualValues(t, 3, reversals[0].QuantityDelta)

	assert.EqualValues(t, 1, stack.CountEvents(t, enums.EventRefundRequested, order.ID))
	assert.EqualValues(t, 1, stack.CountEvents(t, enums.EventCancellationDecided, request.ID))

	_, err = stack.Cancels.Review(ctx, tenant, request.ID, cancellations.ReviewInput{Decision: enums.CancellationRejected}, staff)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	assert.EqualValues(t, 5, stack.OnHand(t, product.ID))
}

func TestApproveUnpaidOrderSkipsRefund(t *testing.T) {
	stack := testkit.New(t)
	product := dbtest.SeedProduct(t, stack.Conn, stack.Catalog, 1200, 5)
	result, customerID := stack.PlaceOrder(t, product.ID, 2, enums.PaymentMethodBankTransfer)
	ctx := context.Background()

	request, err := stack.Cancels.Create(ctx, stack.Catalog.TenantID, result.Order.ID, reason, customer(customerID))
	require.NoError(t, err)
	_, err = stack.Cancels.Review(ctx, stack.Catalog.TenantID, request.ID, cancellations.ReviewInput{Decision: enums.CancellationApproved}, staff)
	require.NoError(t, err)

	assert.EqualValues(t, 5, stack.OnHand(t, product.ID))
	assert.Zero(t, stack.CountEvents(t, enums.EventRefundRequested, uuid.Nil))
}

func TestSecondPendingRequestConflicts(t *testing.T) {
	stack := testkit.New(t)
	product := dbtest.SeedProduct(t, stack.Conn, stack.Catalog, 1200, 5)
	order, customerID := paidOrder(t, stack, product.ID, 1)
	ctx := context.Background()
	tenant := stack.Catalog.TenantID

	first, err := stack.Cancels.Create(ctx, tenant, order.ID, reason, customer(customerID))
	require.NoError(t, err)

	_, err = stack.Cancels.Create(ctx, tenant, order.ID, "changed my mind about it", customer(customerID))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	assert.EqualValues(t, 1, stack.Count(t, &models.CancellationRequest{}))

	feedback := "already handed to the courier"
	rejected, err := stack.Cancels.Review(ctx, tenant, first.ID, cancellations.ReviewInput{Decision: enums.CancellationRejected, Feedback: feedback}, staff)
	require.NoError(t, err)
	require.NotNil(t, rejected.Feedback)
	assert.Equal(t, feedback, *rejected.Feedback)

	var stored models.Order
	require.NoError(t, stack.Conn.First(&stored, "id = ?", order.ID).Error)
	assert.Equal(t, enums.OrderStatusConfirmed, stored.Status)
	assert.EqualValues(t, 4, stack.OnHand(t, product.ID))

	_, err = stack.Cancels.Create(ctx, tenant, order.ID, "second attempt after rejection", customer(customerID))
	require.NoError(t, err)

	history, err := stack.Cancels.ListForOrder(ctx, tenant, order.ID, customer(customerID))
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, enums.CancellationPending, history[0].Decision)
	assert.Equal(t, enums.CancellationRejected, history[1].Decision)
	require.NotNil(t, history[1].Feedback)
	assert.Equal(t, feedback, *history[1].Feedback)

	_, err = stack.Cancels.ListForOrder(ctx, tenant, order.ID, customer(uuid.New()))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestCreateValidation(t *testing.T) {
	stack := testkit.New(t)
	product := dbtest.SeedProduct(t, stack.Conn, stack.Catalog, 1200, 5)
	order, customerID := paidOrder(t, stack, product.ID, 1)
	ctx := context.Background()
	tenant := stack.Catalog.TenantID

	t.Run("short reason", func(t *testing.T) {
		_, err := stack.Cancels.Create(ctx, tenant, order.ID, "   too short   ", customer(customerID))
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	})

	t.Run("someone else's order", func(t *testing.T) {
		_, err := stack.Cancels.Create(ctx, tenant, order.ID, reason, customer(uuid.New()))
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	})

	t.Run("other tenant", func(t *testing.T) {
		_, err := stack.Cancels.Create(ctx, uuid.New(), order.ID, reason, customer(customerID))
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	})

	t.Run("delivered order", func(t *testing.T) {
		_, err := stack.Orders.MarkDelivered(ctx, tenant, order.ID, staff)
		require.NoError(t, err)
		_, err = stack.Cancels.Create(ctx, tenant, order.ID, reason, customer(customerID))
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	})

	t.Run("cancelled order", func(t *testing.T) {
		result, owner := stack.PlaceOrder(t, product.ID, 1, enums.PaymentMethodCard)
		_, err := stack.Orders.CancelUnpaid(ctx, tenant, result.Order.ID, customer(owner))
		require.NoError(t, err)
		_, err = stack.Cancels.Create(ctx, tenant, result.Order.ID, reason, customer(owner))
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	})
}

func TestReviewRequiresStaffAndDecision(t *testing.T) {
	stack := testkit.New(t)
	product := dbtest.SeedProduct(t, stack.Conn, stack.Catalog, 1200, 5)
	order, customerID := paidOrder(t, stack, product.ID, 1)
	ctx := context.Background()
	tenant := stack.Catalog.TenantID

	request, err := stack.Cancels.Create(ctx, tenant, order.ID, reason, customer(customerID))
	require.NoError(t, err)

	_, err = stack.Cancels.Review(ctx, tenant, request.ID, cancellations.ReviewInput{Decision: enums.CancellationApproved}, customer(customerID))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	_, err = stack.Cancels.Review(ctx, tenant, request.ID, cancellations.ReviewInput{Decision: enums.CancellationPending}, staff)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = stack.Cancels.Review(ctx, tenant, uuid.New(), cancellations.ReviewInput{Decision: enums.CancellationApproved}, staff)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	assert.Zero(t, stack.CountEvents(t, enums.EventCancellationDecided, uuid.Nil))
}

func TestExpirePendingAutoRejects(t *testing.T) {
	stack := testkit.New(t)
	product := dbtest.SeedProduct(t, stack.Conn, stack.Catalog, 1200, 5)
	stale, staleOwner := paidOrder(t, stack, product.ID, 1)
	fresh, freshOwner := paidOrder(t, stack, product.ID, 1)
	ctx := context.Background()
	tenant := stack.Catalog.TenantID

	old, err := stack.Cancels.Create(ctx, tenant, stale.ID, reason, customer(staleOwner))
	require.NoError(t, err)
	recent, err := stack.Cancels.Create(ctx, tenant, fresh.ID, reason, customer(freshOwner))
	require.NoError(t, err)
	require.NoError(t, stack.Conn.Model(&models.CancellationRequest{}).
		Where("id = ?", old.ID).
		Update("created_at", time.Now().UTC().Add(-8*24*time.Hour)).Error)

	expired, err := stack.Cancels.ExpirePending(ctx, time.Now().UTC().Add(-7*24*time.Hour), 50)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	var stored models.CancellationRequest
	require.NoError(t, stack.Conn.First(&stored, "id = ?", old.ID).Error)
	assert.Equal(t, enums.CancellationRejected, stored.Decision)
	require.NotNil(t, stored.Feedback)
	assert.Equal(t, "request expired without review", *stored.Feedback)
	assert.Nil(t, stored.ReviewedBy)

	var pending models.CancellationRequest
	require.NoError(t, stack.Conn.First(&pending, "id = ?", recent.ID).Error)
	assert.Equal(t, enums.CancellationPending, pending.Decision)
	assert.Nil(t, pending.Feedback)

	var order models.Order
	require.NoError(t, stack.Conn.First(&order, "id = ?", stale.ID).Error)
	assert.Equal(t, enums.OrderStatusConfirmed, order.Status)
}
