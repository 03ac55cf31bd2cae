// Package bootstrap wires the commerce services over one database client.
package bootstrap

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/commerce-core/internal/cancellations"
	"github.com/angelmondragon/commerce-core/internal/cart"
	"github.com/angelmondragon/commerce-core/internal/checkout"
	"github.com/angelmondragon/commerce-core/internal/inventory"
	"github.com/angelmondragon/commerce-core/internal/orders"
	"github.com/angelmondragon/commerce-core/internal/payments"
	"github.com/angelmondragon/commerce-core/pkg/db"
	"github.com/angelmondragon/commerce-core/pkg/logger"
	"github.com/angelmondragon/commerce-core/pkg/metrics"
	"github.com/angelmondragon/commerce-core/pkg/outbox"
)

// Deps are the shared handles every service is built from.
type Deps struct {
	DB               *db.Client
	Logger           *logger.Logger
	Registerer       prometheus.Registerer
	Guard            payments.ConfirmGuard
	Currency         string
	ReorderThreshold int
	Now              func() time.Time
}

// Services is the wired domain graph.
type Services struct {
	Outbox        *outbox.Service
	Inventory     inventory.Service
	Cart          cart.Service
	OrdersRepo    orders.Repository
	Orders        orders.Service
	Payments      payments.Service
	Checkout      checkout.Service
	Cancellations cancellations.Service
}

// NewServices builds every domain service in dependency order.
func NewServices(deps Deps) (*Services, error) {
	if deps.DB == nil {
		return nil, errors.New("db client required")
	}
	if deps.Logger == nil {
		return nil, errors.New("logger required")
	}
	reg := deps.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	conn := deps.DB.DB()
	emitter := outbox.NewService(outbox.NewRepository(conn), deps.Logger)

	inv, err := inventory.NewService(deps.DB, inventory.NewRepository(conn), emitter, deps.Logger, metrics.NewStockMetrics(reg), deps.ReorderThreshold)
	if err != nil {
		return nil, err
	}
	cartSvc, err := cart.NewService(cart.NewRepository(conn), deps.DB)
	if err != nil {
		return nil, err
	}
	ordersRepo := orders.NewRepository(conn)
	orderSvc, err := orders.NewService(ordersRepo, deps.DB, emitter, inv)
	if err != nil {
		return nil, err
	}
	paymentSvc, err := payments.NewService(payments.NewRepository(conn), ordersRepo, orderSvc, deps.DB, emitter, deps.Guard, deps.Logger)
	if err != nil {
		return nil, err
	}
	checkoutSvc, err := checkout.NewService(checkout.Deps{
		Tx:        deps.DB,
		Repo:      checkout.NewRepository(conn),
		Cart:      cartSvc,
		Inventory: inv,
		Orders:    ordersRepo,
		Payments:  paymentSvc,
		Outbox:    emitter,
		Metrics:   metrics.NewCheckoutMetrics(reg),
		Logger:    deps.Logger,
		Currency:  deps.Currency,
		Now:       deps.Now,
	})
	if err != nil {
		return nil, err
	}
	cancelSvc, err := cancellations.NewService(cancellations.NewRepository(conn), ordersRepo, orderSvc, deps.DB, emitter, deps.Logger)
	if err != nil {
		return nil, err
	}

	return &Services{
		Outbox:        emitter,
		Inventory:     inv,
		Cart:          cartSvc,
		OrdersRepo:    ordersRepo,
		Orders:        orderSvc,
		Payments:      paymentSvc,
		Checkout:      checkoutSvc,
		Cancellations: cancelSvc,
	}, nil
}
