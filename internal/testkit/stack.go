// Package testkit assembles the commerce services over an in-memory SQLite
// database for integration tests.
package testkit

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/angelmondragon/commerce-core/internal/bootstrap"
	"github.com/angelmondragon/commerce-core/internal/cancellations"
	"github.com/angelmondragon/commerce-core/internal/cart"
	"github.com/angelmondragon/commerce-core/internal/checkout"
	"github.com/angelmondragon/commerce-core/internal/inventory"
	"github.com/angelmondragon/commerce-core/internal/orders"
	"github.com/angelmondragon/commerce-core/internal/payments"
	"github.com/angelmondragon/commerce-core/pkg/db"
	"github.com/angelmondragon/commerce-core/pkg/db/dbtest"
	"github.com/angelmondragon/commerce-core/pkg/db/models"
	"github.com/angelmondragon/commerce-core/pkg/enums"
	"github.com/angelmondragon/commerce-core/pkg/logger"
	"github.com/angelmondragon/commerce-core/pkg/outbox"
)

// Stack is the wired service graph plus handles tests assert against.
type Stack struct {
	Client     *db.Client
	Conn       *gorm.DB
	Catalog    dbtest.Catalog
	Logger     *logger.Logger
	Registry   *prometheus.Registry
	Outbox     *outbox.Service
	Inventory  inventory.Service
	Cart       cart.Service
	OrdersRepo orders.Repository
	Orders     orders.Service
	Payments   payments.Service
	Checkout   checkout.Service
	Cancels    cancellations.Service
}

// Options tweaks the stack for a single test.
type Options struct {
	Guard payments.ConfirmGuard
}

// New builds a stack over a fresh database with one seeded tenant.
func New(t testing.TB, opts ...Options) *Stack {
	t.Helper()
	var opt Options
	if len(opts) > 0 {
		opt = opts[0]
	}

	client, conn := dbtest.Client(t)
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	reg := prometheus.NewRegistry()
	svc, err := bootstrap.NewServices(bootstrap.Deps{
		DB:               client,
		Logger:           logg,
		Registerer:       reg,
		Guard:            opt.Guard,
		Currency:         "USD",
		ReorderThreshold: 5,
	})
	must(t, err)

	return &Stack{
		Client:     client,
		Conn:       conn,
		Catalog:    dbtest.SeedCatalog(t, conn),
		Logger:     logg,
		Registry:   reg,
		Outbox:     svc.Outbox,
		Inventory:  svc.Inventory,
		Cart:       svc.Cart,
		OrdersRepo: svc.OrdersRepo,
		Orders:     svc.Orders,
		Payments:   svc.Payments,
		Checkout:   svc.Checkout,
		Cancels:    svc.Cancellations,
	}
}

// Shipping is a complete destination for checkouts in tests.
func Shipping() checkout.Shipping {
	return checkout.Shipping{
		Name:       "Ada Lovelace",
		Line1:      "12 Analytical Row",
		City:       "London",
		PostalCode: "NW1 2AB",
		Country:    "gb",
	}
}

// PlaceOrder puts quantity of product in a new customer's cart and checks out
// with method.
func (s *Stack) PlaceOrder(t testing.TB, productID uuid.UUID, quantity int64, method enums.PaymentMethod) (*checkout.Result, uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	customerID := uuid.New()
	owner := cart.CustomerOwner{CustomerID: customerID}
	_, err := s.Cart.AddItem(ctx, s.Catalog.TenantID, owner, productID, quantity)
	must(t, err)
	result, err := s.Checkout.Checkout(ctx, s.Catalog.TenantID, checkout.CheckoutInput{
		Identity:      checkout.Member{CustomerID: customerID},
		CartOwner:     owner,
		Shipping:      Shipping(),
		PaymentMethod: method,
	})
	must(t, err)
	return result, customerID
}

// OnHand reads the default warehouse counter for product.
func (s *Stack) OnHand(t testing.TB, productID uuid.UUID) int64 {
	t.Helper()
	var level models.StockLevel
	must(t, s.Conn.Where("product_id = ? AND warehouse_id = ?", productID, s.Catalog.WarehouseID).First(&level).Error)
	return level.OnHand
}

// Movements lists the ledger entries of product, oldest first.
func (s *Stack) Movements(t testing.TB, productID uuid.UUID) []models.StockMovement {
	t.Helper()
	var rows []models.StockMovement
	must(t, s.Conn.Where("product_id = ?", productID).Order("created_at ASC, id ASC").Find(&rows).Error)
	return rows
}

// CountEvents counts outbox rows of eventType for aggregateID; uuid.Nil counts all.
func (s *Stack) CountEvents(t testing.TB, eventType enums.OutboxEventType, aggregateID uuid.UUID) int64 {
	t.Helper()
	q := s.Conn.Model(&models.OutboxEvent{}).Where("event_type = ?", eventType)
	if aggregateID != uuid.Nil {
		q = q.Where("aggregate_id = ?", aggregateID)
	}
	var count int64
	must(t, q.Count(&count).Error)
	return count
}

// Count returns the number of rows in model's table.
func (s *Stack) Count(t testing.TB, model any) int64 {
	t.Helper()
	var count int64
	must(t, s.Conn.Model(model).Count(&count).Error)
	return count
}

func must(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("testkit: %v", err)
	}
}
