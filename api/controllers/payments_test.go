package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/commerce-core/internal/orders"
	"github.com/angelmondragon/commerce-core/internal/payments"
	"github.com/angelmondragon/commerce-core/pkg/db/models"
	"github.com/angelmondragon/commerce-core/pkg/enums"
	pkgerrors "github.com/angelmondragon/commerce-core/pkg/errors"
)

type stubPaymentsService struct {
	payments.Service
	initFn    func(orderID uuid.UUID, input payments.InitializeInput) (*payments.Intent, error)
	confirmFn func(paymentID uuid.UUID, input payments.ConfirmInput, actor orders.Actor) (*models.Order, error)
	failFn    func(paymentID uuid.UUID, reason string) (*models.Payment, error)
	receiptFn func(paymentID uuid.UUID, reference string) (*models.Payment, error)
	verifyFn  func(paymentID uuid.UUID, input payments.VerifyInput) (*models.Payment, error)
}

func (s stubPaymentsService) Initialize(ctx context.Context, tenantID, orderID uuid.UUID, input payments.InitializeInput, actor orders.Actor) (*payments.Intent, error) {
	return s.initFn(orderID, input)
}

func (s stubPaymentsService) Confirm(ctx context.Context, tenantID, paymentID uuid.UUID, input payments.ConfirmInput, actor orders.Actor) (*models.Order, error) {
	return s.confirmFn(paymentID, input, actor)
}

func (s stubPaymentsService) Fail(ctx context.Context, tenantID, paymentID uuid.UUID, reason string, actor orders.Actor) (*models.Payment, error) {
	return s.failFn(paymentID, reason)
}

func (s stubPaymentsService) SubmitReceipt(ctx context.Context, tenantID, paymentID uuid.UUID, reference string, actor orders.Actor) (*models.Payment, error) {
	return s.receiptFn(paymentID, reference)
}

func (s stubPaymentsService) Verify(ctx context.Context, tenantID, paymentID uuid.UUID, input payments.VerifyInput, actor orders.Actor) (*models.Payment, error) {
	return s.verifyFn(paymentID, input)
}

func TestPaymentInitialize(t *testing.T) {
	t.Parallel()

	orderID := uuid.New()
	svc := stubPaymentsService{initFn: func(id uuid.UUID, input payments.InitializeInput) (*payments.Intent, error) {
		if input.Method != enums.PaymentMethodBankTransfer {
			t.Fatalf("expected bank transfer got %s", input.Method)
		}
		return &payments.Intent{
			Payment:      &models.Payment{ID: uuid.New(), OrderID: id, Method: input.Method, Status: enums.PaymentAttemptPending},
			Instructions: payments.Instructions(input.Method),
		}, nil
	}}

	req := newRequest(http.MethodPost, "/", strings.NewReader(`{"method":"bank_transfer"}`), memberIdentity(enums.RoleCustomer), map[string]string{"orderId": orderID.String()})
	resp := httptest.NewRecorder()
	PaymentInitialize(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	var body paymentIntentResponse
	decodeData(t, resp, &body)
	if body.Payment == nil || body.Payment.OrderID != orderID {
		t.Fatalf("unexpected payment %+v", body.Payment)
	}
	if body.Instructions != payments.Instructions(enums.PaymentMethodBankTransfer) {
		t.Fatalf("unexpected instructions %q", body.Instructions)
	}
}

func TestPaymentConfirmReturnsOrder(t *testing.T) {
	t.Parallel()

	paymentID := uuid.New()
	orderID := uuid.New()
	id := memberIdentity(enums.RoleSystem)
	svc := stubPaymentsService{confirmFn: func(got uuid.UUID, input payments.ConfirmInput, actor orders.Actor) (*models.Order, error) {
		if got != paymentID || input.TransactionID != "txn_1" {
			t.Fatalf("unexpected confirm input %s %+v", got, input)
		}
		if actor.Role != enums.RoleSystem {
			t.Fatalf("expected system actor got %s", actor.Role)
		}
		return &models.Order{ID: orderID, Status: enums.OrderStatusConfirmed, PaymentStatus: enums.PaymentStatusCompleted}, nil
	}}

	req := newRequest(http.MethodPost, "/", strings.NewReader(`{"transaction_id":" txn_1 "}`), id, map[string]string{"paymentId": paymentID.String()})
	resp := httptest.NewRecorder()
	PaymentConfirm(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	var body orderResponse
	decodeData(t, resp, &body)
	if body.ID != orderID || body.PaymentStatus != string(enums.PaymentStatusCompleted) {
		t.Fatalf("unexpected order %+v", body)
	}
}

func TestPaymentConfirmRequiresTransaction(t *testing.T) {
	t.Parallel()

	req := newRequest(http.MethodPost, "/", strings.NewReader(`{}`), memberIdentity(enums.RoleSystem), map[string]string{"paymentId": uuid.NewString()})
	resp := httptest.NewRecorder()
	PaymentConfirm(stubPaymentsService{}, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestPaymentFailInvalidTransition(t *testing.T) {
	t.Parallel()

	svc := stubPaymentsService{failFn: func(uuid.UUID, string) (*models.Payment, error) {
		return nil, pkgerrors.InvalidTransition("payment", "COMPLETED", "FAILED")
	}}
	req := newRequest(http.MethodPost, "/", strings.NewReader(`{"reason":"declined"}`), memberIdentity(enums.RoleSystem), map[string]string{"paymentId": uuid.NewString()})
	resp := httptest.NewRecorder()
	PaymentFail(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", resp.Code)
	}
}

func TestPaymentSubmitReceipt(t *testing.T) {
	t.Parallel()

	svc := stubPaymentsService{receiptFn: func(id uuid.UUID, reference string) (*models.Payment, error) {
		return &models.Payment{ID: id, ReceiptReference: &reference, VerificationStatus: enums.VerificationSubmitted, SubmissionCount: 1}, nil
	}}
	req := newRequest(http.MethodPost, "/", strings.NewReader(`{"reference":"BANK-42"}`), memberIdentity(enums.RoleCustomer), map[string]string{"paymentId": uuid.NewString()})
	resp := httptest.NewRecorder()
	PaymentSubmitReceipt(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var body paymentResponse
	decodeData(t, resp, &body)
	if body.ReceiptReference == nil || *body.ReceiptReference != "BANK-42" {
		t.Fatalf("unexpected receipt %+v", body.ReceiptReference)
	}
}

func TestPaymentVerifyRequiresDecision(t *testing.T) {
	t.Parallel()

	var got payments.VerifyInput
	svc := stubPaymentsService{verifyFn: func(id uuid.UUID, input payments.VerifyInput) (*models.Payment, error) {
		got = input
		return &models.Payment{ID: id, VerificationStatus: enums.VerificationRejected}, nil
	}}

	missing := newRequest(http.MethodPost, "/", strings.NewReader(`{"note":"blurry"}`), memberIdentity(enums.RoleStaff), map[string]string{"paymentId": uuid.NewString()})
	resp := httptest.NewRecorder()
	PaymentVerify(svc, nil).ServeHTTP(resp, missing)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}

	reject := newRequest(http.MethodPost, "/", strings.NewReader(`{"approve":false,"note":"blurry"}`), memberIdentity(enums.RoleStaff), map[string]string{"paymentId": uuid.NewString()})
	resp = httptest.NewRecorder()
	PaymentVerify(svc, nil).ServeHTTP(resp, reject)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if got.Approve || got.Note != "blurry" {
		t.Fatalf("unexpected verify input %+v", got)
	}
}
