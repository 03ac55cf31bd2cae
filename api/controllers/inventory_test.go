package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/commerce-core/internal/inventory"
	"github.com/angelmondragon/commerce-core/pkg/db/models"
	"github.com/angelmondragon/commerce-core/pkg/enums"
	"github.com/angelmondragon/commerce-core/pkg/pagination"
)

type stubInventoryService struct {
	inventory.Service
	adjustFn    func(input inventory.AdjustInput) (*models.StockMovement, error)
	availableFn func(productID uuid.UUID, warehouseID *uuid.UUID) (*inventory.StockLevelView, error)
	movementsFn func(productID uuid.UUID, params pagination.Params) (*pagination.Page[models.StockMovement], error)
}

func (s stubInventoryService) Adjust(ctx context.Context, tenantID uuid.UUID, input inventory.AdjustInput) (*models.StockMovement, error) {
	return s.adjustFn(input)
}

func (s stubInventoryService) Available(ctx context.Context, tenantID, productID uuid.UUID, warehouseID *uuid.UUID) (*inventory.StockLevelView, error) {
	return s.availableFn(productID, warehouseID)
}

func (s stubInventoryService) Movements(ctx context.Context, tenantID, productID uuid.UUID, params pagination.Params) (*pagination.Page[models.StockMovement], error) {
	return s.movementsFn(productID, params)
}

func TestInventoryAdjustRestock(t *testing.T) {
	t.Parallel()

	id := memberIdentity(enums.RoleStaff)
	productID := uuid.New()
	svc := stubInventoryService{adjustFn: func(input inventory.AdjustInput) (*models.StockMovement, error) {
		if input.Type != enums.MovementRestock || input.Quantity != 12 {
			t.Fatalf("unexpected input %+v", input)
		}
		if input.Actor == nil || input.Actor.UserID != *id.userID {
			t.Fatalf("expected actor reference")
		}
		return &models.StockMovement{ID: uuid.New(), ProductID: input.ProductID, QuantityDelta: input.Quantity, Type: input.Type}, nil
	}}

	body := `{"product_id":"` + productID.String() + `","quantity":12,"type":"restock","notes":"pallet"}`
	req := newRequest(http.MethodPost, "/api/v1/inventory/adjustments", strings.NewReader(body), id, nil)
	resp := httptest.NewRecorder()
	InventoryAdjust(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	var movement movementResponse
	decodeData(t, resp, &movement)
	if movement.QuantityDelta != 12 || movement.Type != string(enums.MovementRestock) {
		t.Fatalf("unexpected movement %+v", movement)
	}
}

func TestInventoryAdjustRejectsSalesPathTypes(t *testing.T) {
	t.Parallel()

	for _, movementType := range []string{"SALE", "CANCELLATION_REVERSAL", "GIFT"} {
		body := `{"product_id":"` + uuid.NewString() + `","quantity":1,"type":"` + movementType + `"}`
		req := newRequest(http.MethodPost, "/api/v1/inventory/adjustments", strings.NewReader(body), memberIdentity(enums.RoleStaff), nil)
		resp := httptest.NewRecorder()
		InventoryAdjust(stubInventoryService{}, nil).ServeHTTP(resp, req)
		if resp.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400 got %d", movementType, resp.Code)
		}
	}
}

func TestInventoryStockWarehouseFilter(t *testing.T) {
	t.Parallel()

	productID := uuid.New()
	warehouseID := uuid.New()
	svc := stubInventoryService{availableFn: func(got uuid.UUID, wh *uuid.UUID) (*inventory.StockLevelView, error) {
		if wh == nil || *wh != warehouseID {
			t.Fatalf("expected warehouse filter")
		}
		return &inventory.StockLevelView{ProductID: got, WarehouseID: wh, Available: 7}, nil
	}}

	req := newRequest(http.MethodGet, "/?warehouse_id="+warehouseID.String(), nil, memberIdentity(enums.RoleCustomer), map[string]string{"productId": productID.String()})
	resp := httptest.NewRecorder()
	InventoryStock(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var view inventory.StockLevelView
	decodeData(t, resp, &view)
	if view.Available != 7 {
		t.Fatalf("expected 7 available got %d", view.Available)
	}

	bad := newRequest(http.MethodGet, "/?warehouse_id=bad", nil, memberIdentity(enums.RoleCustomer), map[string]string{"productId": productID.String()})
	resp = httptest.NewRecorder()
	InventoryStock(svc, nil).ServeHTTP(resp, bad)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestInventoryMovementsLimitBounds(t *testing.T) {
	t.Parallel()

	svc := stubInventoryService{movementsFn: func(uuid.UUID, pagination.Params) (*pagination.Page[models.StockMovement], error) {
		return &pagination.Page[models.StockMovement]{Items: []models.StockMovement{{ID: uuid.New()}}}, nil
	}}

	req := newRequest(http.MethodGet, "/?limit=500", nil, memberIdentity(enums.RoleStaff), map[string]string{"productId": uuid.NewString()})
	resp := httptest.NewRecorder()
	InventoryMovements(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}

	req = newRequest(http.MethodGet, "/", nil, memberIdentity(enums.RoleStaff), map[string]string{"productId": uuid.NewString()})
	resp = httptest.NewRecorder()
	InventoryMovements(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}
