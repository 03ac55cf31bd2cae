package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/commerce-core/internal/cart"
	"github.com/angelmondragon/commerce-core/internal/inventory"
	"github.com/angelmondragon/commerce-core/internal/orders"
	"github.com/angelmondragon/commerce-core/internal/payments"
	pricing "github.com/angelmondragon/commerce-core/pkg/checkout"
	"github.com/angelmondragon/commerce-core/pkg/db/models"
	"github.com/angelmondragon/commerce-core/pkg/enums"
	pkgerrors "github.com/angelmondragon/commerce-core/pkg/errors"
	"github.com/angelmondragon/commerce-core/pkg/logger"
	"github.com/angelmondragon/commerce-core/pkg/metrics"
	"github.com/angelmondragon/commerce-core/pkg/outbox"
	"github.com/angelmondragon/commerce-core/pkg/outbox/payloads"
	"github.com/angelmondragon/commerce-core/pkg/visibility"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type cartReader interface {
	SnapshotTx(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, owner cart.Owner) (*cart.View, error)
	ClearTx(ctx context.Context, tx *gorm.DB, tenantID, cartID uuid.UUID) error
}

type stockReserver interface {
	ReserveTx(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, items []inventory.ReserveItem) (*models.StockReservation, error)
	CommitTx(ctx context.Context, tx *gorm.DB, tenantID, reservationID uuid.UUID) error
}

type intentCreator interface {
	CreateIntentTx(ctx context.Context, tx *gorm.DB, order *models.Order, method enums.PaymentMethod) (*payments.Intent, error)
}

// Service executes checkout orchestration.
type Service interface {
	Checkout(ctx context.Context, tenantID uuid.UUID, input CheckoutInput) (*Result, error)
}

// Deps groups the collaborators of the checkout service.
type Deps struct {
	Tx        txRunner
	Repo      Repository
	Cart      cartReader
	Inventory stockReserver
	Orders    orders.Repository
	Payments  intentCreator
	Outbox    outbox.Emitter
	Metrics   *metrics.CheckoutMetrics
	Logger    *logger.Logger
	Currency  string
	Now       func() time.Time
}

type service struct {
	tx        txRunner
	repo      Repository
	cart      cartReader
	inventory stockReserver
	orders    orders.Repository
	payments  intentCreator
	outbox    outbox.Emitter
	metrics   *metrics.CheckoutMetrics
	logg      *logger.Logger
	currency  string
	now       func() time.Time
}

// NewService builds the checkout service.
func NewService(deps Deps) (Service, error) {
	if deps.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if deps.Repo == nil {
		return nil, fmt.Errorf("checkout repository required")
	}
	if deps.Cart == nil {
		return nil, fmt.Errorf("cart service required")
	}
	if deps.Inventory == nil {
		return nil, fmt.Errorf("inventory service required")
	}
	if deps.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if deps.Payments == nil {
		return nil, fmt.Errorf("payments service required")
	}
	if deps.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	currency := strings.ToUpper(strings.TrimSpace(deps.Currency))
	if currency == "" {
		currency = "USD"
	}
	now := deps.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		tx:        deps.Tx,
		repo:      deps.Repo,
		cart:      deps.Cart,
		inventory: deps.Inventory,
		orders:    deps.Orders,
		payments:  deps.Payments,
		outbox:    deps.Outbox,
		metrics:   deps.Metrics,
		logg:      deps.Logger,
		currency:  currency,
		now:       now,
	}, nil
}

// Checkout converts the owner's cart into an order, a committed stock
// reservation and a PENDING payment in one transaction. Any failure leaves no
// order, movement or payment behind.
func (s *service) Checkout(ctx context.Context, tenantID uuid.UUID, input CheckoutInput) (*Result, error) {
	started := time.Now()
	result, err := s.checkout(ctx, tenantID, input)
	s.metrics.Observe(outcome(err), time.Since(started))
	return result, err
}

func (s *service) checkout(ctx context.Context, tenantID uuid.UUID, input CheckoutInput) (*Result, error) {
	if tenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id required")
	}
	if input.Identity == nil {
		return nil, pkgerrors.InvalidMode("checkout requires a member or guest identity")
	}
	if err := input.Identity.validate(); err != nil {
		return nil, err
	}
	if input.CartOwner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart owner required")
	}
	if err := input.Shipping.validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.PaymentMethod.String()) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment method required")
	}

	var result *Result
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		view, err := s.cart.SnapshotTx(ctx, tx, tenantID, input.CartOwner)
		if err != nil {
			return err
		}
		if view.IsEmpty() {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
		}

		lines, err := s.priceLines(ctx, tx, tenantID, view)
		if err != nil {
			return err
		}

		items := make([]inventory.ReserveItem, 0, len(lines))
		for _, line := range lines {
			items = append(items, inventory.ReserveItem{ProductID: line.ProductID, Quantity: line.Quantity})
		}
		reservation, err := s.inventory.ReserveTx(ctx, tx, tenantID, items)
		if err != nil {
			return err
		}

		subtotal := pricing.Subtotal(lines)
		discount, promoCode := s.applyPromotion(ctx, tx, tenantID, input.PromoCode, subtotal)

		order := &models.Order{
			TenantID:      tenantID,
			SubtotalCents: subtotal,
			DiscountCents: discount,
			TotalCents:    subtotal - discount,
			PromoCode:     promoCode,
			Currency:      s.currency,
			Status:        enums.OrderStatusPending,
			PaymentStatus: enums.PaymentStatusPending,
			ReservationID: reservation.ID,
			LineItems:     buildLineItems(tenantID, lines, reservation),
		}
		input.Identity.apply(order)
		input.Shipping.apply(order)
		if err := s.orders.WithTx(tx).Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}

		if err := s.inventory.CommitTx(ctx, tx, tenantID, reservation.ID); err != nil {
			return err
		}

		intent, err := s.payments.CreateIntentTx(ctx, tx, order, input.PaymentMethod)
		if err != nil {
			return err
		}

		if err := s.emitOrderCreated(ctx, tx, order, intent.Payment); err != nil {
			return err
		}
		if err := s.cart.ClearTx(ctx, tx, tenantID, view.ID); err != nil {
			return err
		}

		result = &Result{Order: order, Payment: intent.Payment, Instructions: intent.Instructions}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// priceLines locks every product in the cart and captures its current price.
func (s *service) priceLines(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, view *cart.View) ([]pricing.LineInput, error) {
	ids := make([]uuid.UUID, 0, len(view.Items))
	for _, item := range view.Items {
		ids = append(ids, item.ProductID)
	}
	products, err := s.repo.WithTx(tx).LockProducts(ctx, tenantID, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}

	lines := make([]pricing.LineInput, 0, len(view.Items))
	for _, item := range view.Items {
		var product *models.Product
		if p, ok := products[item.ProductID]; ok {
			product = &p
		}
		if err := visibility.EnsureProductPurchasable(visibility.PurchasableInput{
			TenantID:  tenantID,
			ProductID: item.ProductID,
			Product:   product,
		}); err != nil {
			return nil, err
		}
		lines = append(lines, pricing.LineInput{
			ProductID:      product.ID,
			ProductName:    product.Name,
			Quantity:       item.Quantity,
			UnitPriceCents: product.PriceCents,
		})
	}
	if err := pricing.ValidateLines(lines); err != nil {
		return nil, err
	}
	return lines, nil
}

// applyPromotion never fails the checkout: unknown or inapplicable codes are
// logged and ignored, and only an applied code is recorded on the order.
func (s *service) applyPromotion(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, raw string, subtotal int64) (int64, *string) {
	code := pricing.NormalizeCode(raw)
	if code == "" {
		return 0, nil
	}
	promo, err := s.repo.WithTx(tx).FindPromotion(ctx, tenantID, code)
	if err != nil {
		s.warn(ctx, code, "promotion lookup failed", err)
		return 0, nil
	}
	if promo == nil {
		s.warn(ctx, code, "promotion code unknown", nil)
		return 0, nil
	}
	discount, err := pricing.Discount(promo, subtotal, s.now())
	if err != nil {
		s.warn(ctx, code, "promotion not applied", err)
		return 0, nil
	}
	return discount, &promo.Code
}

func (s *service) emitOrderCreated(ctx context.Context, tx *gorm.DB, order *models.Order, payment *models.Payment) error {
	lines := make([]payloads.OrderLine, 0, len(order.LineItems))
	for _, item := range order.LineItems {
		lines = append(lines, payloads.OrderLine{
			ProductID:      item.ProductID,
			WarehouseID:    item.WarehouseID,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
		})
	}
	var actor *outbox.ActorRef
	if order.CustomerID != nil {
		actor = &outbox.ActorRef{UserID: *order.CustomerID, Role: enums.RoleCustomer.String()}
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		TenantID:      order.TenantID,
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actor,
		Data: payloads.OrderCreatedEvent{
			OrderID:       order.ID,
			CustomerID:    order.CustomerID,
			GuestEmail:    order.GuestEmail,
			PaymentID:     payment.ID,
			PaymentMethod: payment.Method,
			SubtotalCents: order.SubtotalCents,
			DiscountCents: order.DiscountCents,
			TotalCents:    order.TotalCents,
			Currency:      order.Currency,
			PromoCode:     order.PromoCode,
			Lines:         lines,
		},
	})
}

func (s *service) warn(ctx context.Context, code, msg string, err error) {
	if s.logg == nil {
		return
	}
	fields := map[string]any{"promo_code": code}
	if err != nil {
		fields["reason"] = err.Error()
	}
	s.logg.Warn(s.logg.WithFields(ctx, fields), msg)
}

// buildLineItems takes the warehouse each product was reserved from. Cart lines
// are unique per product so each product maps to one reservation line.
func buildLineItems(tenantID uuid.UUID, lines []pricing.LineInput, reservation *models.StockReservation) []models.OrderLineItem {
	warehouses := make(map[uuid.UUID]uuid.UUID, len(reservation.Lines))
	for _, line := range reservation.Lines {
		warehouses[line.ProductID] = line.WarehouseID
	}
	items := make([]models.OrderLineItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, models.OrderLineItem{
			TenantID:       tenantID,
			ProductID:      line.ProductID,
			WarehouseID:    warehouses[line.ProductID],
			ProductName:    line.ProductName,
			Quantity:       line.Quantity,
			UnitPriceCents: line.UnitPriceCents,
			TotalCents:     line.Total(),
		})
	}
	return items
}

func outcome(err error) string {
	if err == nil {
		return metrics.OutcomeSuccess
	}
	if _, ok := pkgerrors.Shortage(err); ok {
		return metrics.OutcomeInsufficientStock
	}
	if visibility.UnavailableReason(err) != "" {
		return metrics.OutcomeUnavailable
	}
	if pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		return metrics.OutcomeInvalid
	}
	return metrics.OutcomeError
}
