package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/commerce-core/internal/cancellations"
	"github.com/angelmondragon/commerce-core/internal/orders"
	"github.com/angelmondragon/commerce-core/pkg/db/models"
	"github.com/angelmondragon/commerce-core/pkg/enums"
	pkgerrors "github.com/angelmondragon/commerce-core/pkg/errors"
	"github.com/angelmondragon/commerce-core/pkg/pagination"
)

type stubOrdersService struct {
	orders.Service
	listFn    func(customerID uuid.UUID, params pagination.Params) (*pagination.Page[models.Order], error)
	getFn     func(orderID uuid.UUID, actor orders.Actor) (*models.Order, error)
	cancelFn  func(orderID uuid.UUID, actor orders.Actor) (*models.Order, error)
	deliverFn func(orderID uuid.UUID, actor orders.Actor) (*models.Order, error)
}

func (s stubOrdersService) ListForCustomer(ctx context.Context, tenantID, customerID uuid.UUID, params pagination.Params) (*pagination.Page[models.Order], error) {
	return s.listFn(customerID, params)
}

func (s stubOrdersService) Get(ctx context.Context, tenantID, orderID uuid.UUID, actor orders.Actor) (*models.Order, error) {
	return s.getFn(orderID, actor)
}

func (s stubOrdersService) CancelUnpaid(ctx context.Context, tenantID, orderID uuid.UUID, actor orders.Actor) (*models.Order, error) {
	return s.cancelFn(orderID, actor)
}

func (s stubOrdersService) MarkDelivered(ctx context.Context, tenantID, orderID uuid.UUID, actor orders.Actor) (*models.Order, error) {
	return s.deliverFn(orderID, actor)
}

type stubCancellationService struct {
	cancellations.Service
	createFn func(orderID uuid.UUID, reason string, actor orders.Actor) (*models.CancellationRequest, error)
	reviewFn func(requestID uuid.UUID, input cancellations.ReviewInput) (*models.CancellationRequest, error)
	listFn   func(orderID uuid.UUID) ([]models.CancellationRequest, error)
}

func (s stubCancellationService) Create(ctx context.Context, tenantID, orderID uuid.UUID, reason string, actor orders.Actor) (*models.CancellationRequest, error) {
	return s.createFn(orderID, reason, actor)
}

func (s stubCancellationService) Review(ctx context.Context, tenantID, requestID uuid.UUID, input cancellations.ReviewInput, actor orders.Actor) (*models.CancellationRequest, error) {
	return s.reviewFn(requestID, input)
}

func (s stubCancellationService) ListForOrder(ctx context.Context, tenantID, orderID uuid.UUID, actor orders.Actor) ([]models.CancellationRequest, error) {
	return s.listFn(orderID)
}

func TestOrdersListDefaultsToCaller(t *testing.T) {
	t.Parallel()

	id := memberIdentity(enums.RoleCustomer)
	var gotCustomer uuid.UUID
	var gotParams pagination.Params
	svc := stubOrdersService{listFn: func(customerID uuid.UUID, params pagination.Params) (*pagination.Page[models.Order], error) {
		gotCustomer = customerID
		gotParams = params
		return &pagination.Page[models.Order]{
			Items:      []models.Order{{ID: uuid.New(), CreatedAt: time.Now()}},
			NextCursor: "cursor-2",
		}, nil
	}}

	req := newRequest(http.MethodGet, "/api/v1/orders?limit=10&cursor=cursor-1", nil, id, nil)
	resp := httptest.NewRecorder()
	OrdersList(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if gotCustomer != *id.userID {
		t.Fatalf("expected caller's orders")
	}
	if gotParams.Limit != 10 || gotParams.Cursor != "cursor-1" {
		t.Fatalf("unexpected params %+v", gotParams)
	}
	if env := decodeEnvelope(t, resp); env.NextCursor != "cursor-2" {
		t.Fatalf("expected next cursor, got %q", env.NextCursor)
	}
}

func TestOrdersListOtherCustomerRequiresStaff(t *testing.T) {
	t.Parallel()

	other := uuid.New()
	svc := stubOrdersService{listFn: func(customerID uuid.UUID, params pagination.Params) (*pagination.Page[models.Order], error) {
		if customerID != other {
			t.Fatalf("expected requested customer")
		}
		return &pagination.Page[models.Order]{}, nil
	}}

	customerReq := newRequest(http.MethodGet, "/api/v1/orders?customer_id="+other.String(), nil, memberIdentity(enums.RoleCustomer), nil)
	resp := httptest.NewRecorder()
	OrdersList(svc, nil).ServeHTTP(resp, customerReq)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for customer got %d", resp.Code)
	}

	staffReq := newRequest(http.MethodGet, "/api/v1/orders?customer_id="+other.String(), nil, memberIdentity(enums.RoleStaff), nil)
	resp = httptest.NewRecorder()
	OrdersList(svc, nil).ServeHTTP(resp, staffReq)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for staff got %d", resp.Code)
	}
}

func TestOrderDetailValidatesPathParam(t *testing.T) {
	t.Parallel()

	req := newRequest(http.MethodGet, "/api/v1/orders/nope", nil, memberIdentity(enums.RoleCustomer), map[string]string{"orderId": "nope"})
	resp := httptest.NewRecorder()
	OrderDetail(stubOrdersService{}, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestOrderDetailNotFound(t *testing.T) {
	t.Parallel()

	orderID := uuid.New()
	svc := stubOrdersService{getFn: func(id uuid.UUID, actor orders.Actor) (*models.Order, error) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}}
	req := newRequest(http.MethodGet, "/api/v1/orders/"+orderID.String(), nil, memberIdentity(enums.RoleCustomer), map[string]string{"orderId": orderID.String()})
	resp := httptest.NewRecorder()
	OrderDetail(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}

func TestOrderCancelAlreadyCancelled(t *testing.T) {
	t.Parallel()

	orderID := uuid.New()
	svc := stubOrdersService{cancelFn: func(id uuid.UUID, actor orders.Actor) (*models.Order, error) {
		return nil, pkgerrors.OrderAlreadyCancelled(id.String())
	}}
	req := newRequest(http.MethodPost, "/api/v1/orders/"+orderID.String()+"/cancel", nil, memberIdentity(enums.RoleCustomer), map[string]string{"orderId": orderID.String()})
	resp := httptest.NewRecorder()
	OrderCancel(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", resp.Code)
	}
}

func TestOrderDeliverPassesActor(t *testing.T) {
	t.Parallel()

	id := memberIdentity(enums.RoleStaff)
	orderID := uuid.New()
	svc := stubOrdersService{deliverFn: func(got uuid.UUID, actor orders.Actor) (*models.Order, error) {
		if actor.UserID != *id.userID || actor.Role != enums.RoleStaff {
			t.Fatalf("unexpected actor %+v", actor)
		}
		return &models.Order{ID: got, Status: enums.OrderStatusDelivered}, nil
	}}
	req := newRequest(http.MethodPost, "/", nil, id, map[string]string{"orderId": orderID.String()})
	resp := httptest.NewRecorder()
	OrderDeliver(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var body orderResponse
	decodeData(t, resp, &body)
	if body.Status != string(enums.OrderStatusDelivered) {
		t.Fatalf("unexpected status %s", body.Status)
	}
}

func TestCancellationCreate(t *testing.T) {
	t.Parallel()

	orderID := uuid.New()
	svc := stubCancellationService{createFn: func(id uuid.UUID, reason string, actor orders.Actor) (*models.CancellationRequest, error) {
		if reason != "changed my mind" {
			t.Fatalf("expected trimmed reason got %q", reason)
		}
		return &models.CancellationRequest{ID: uuid.New(), OrderID: id, Reason: reason, Decision: enums.CancellationPending}, nil
	}}
	req := newRequest(http.MethodPost, "/", strings.NewReader(`{"reason":"  changed my mind "}`), memberIdentity(enums.RoleCustomer), map[string]string{"orderId": orderID.String()})
	resp := httptest.NewRecorder()
	CancellationCreate(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	var body cancellationResponse
	decodeData(t, resp, &body)
	if body.OrderID != orderID || body.Decision != string(enums.CancellationPending) {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestCancellationCreateDuplicate(t *testing.T) {
	t.Parallel()

	svc := stubCancellationService{createFn: func(uuid.UUID, string, orders.Actor) (*models.CancellationRequest, error) {
		return nil, pkgerrors.DuplicateRequest("a pending cancellation request already exists")
	}}
	req := newRequest(http.MethodPost, "/", strings.NewReader(`{"reason":"again"}`), memberIdentity(enums.RoleCustomer), map[string]string{"orderId": uuid.NewString()})
	resp := httptest.NewRecorder()
	CancellationCreate(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
}

func TestCancellationReviewParsesDecision(t *testing.T) {
	t.Parallel()

	requestID := uuid.New()
	svc := stubCancellationService{reviewFn: func(id uuid.UUID, input cancellations.ReviewInput) (*models.CancellationRequest, error) {
		if input.Decision != enums.CancellationApproved {
			t.Fatalf("expected approved got %s", input.Decision)
		}
		return &models.CancellationRequest{ID: id, Decision: input.Decision}, nil
	}}

	req := newRequest(http.MethodPost, "/", strings.NewReader(`{"decision":"approved","feedback":"ok"}`), memberIdentity(enums.RoleStaff), map[string]string{"requestId": requestID.String()})
	resp := httptest.NewRecorder()
	CancellationReview(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}

	bad := newRequest(http.MethodPost, "/", strings.NewReader(`{"decision":"PENDING"}`), memberIdentity(enums.RoleStaff), map[string]string{"requestId": requestID.String()})
	resp = httptest.NewRecorder()
	CancellationReview(svc, nil).ServeHTTP(resp, bad)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for pending decision got %d", resp.Code)
	}
}

func TestCancellationList(t *testing.T) {
	t.Parallel()

	orderID := uuid.New()
	svc := stubCancellationService{listFn: func(id uuid.UUID) ([]models.CancellationRequest, error) {
		return []models.CancellationRequest{
			{ID: uuid.New(), OrderID: id, Decision: enums.CancellationRejected},
			{ID: uuid.New(), OrderID: id, Decision: enums.CancellationPending},
		}, nil
	}}
	req := newRequest(http.MethodGet, "/", nil, memberIdentity(enums.RoleCustomer), map[string]string{"orderId": orderID.String()})
	resp := httptest.NewRecorder()
	CancellationList(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var body []cancellationResponse
	decodeData(t, resp, &body)
	if len(body) != 2 {
		t.Fatalf("expected 2 requests got %d", len(body))
	}
}
