package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/commerce-core/pkg/db/models"
	"github.com/angelmondragon/commerce-core/pkg/enums"
	pkgerrors "github.com/angelmondragon/commerce-core/pkg/errors"
	"github.com/angelmondragon/commerce-core/pkg/logger"
	"github.com/angelmondragon/commerce-core/pkg/metrics"
	"github.com/angelmondragon/commerce-core/pkg/outbox"
	"github.com/angelmondragon/commerce-core/pkg/outbox/payloads"
	"github.com/angelmondragon/commerce-core/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service is the stock ledger. Counters live in stock_levels and every change
// appends to stock_movements in the same transaction.
type Service interface {
	Reserve(ctx context.Context, tenantID uuid.UUID, items []ReserveItem) (uuid.UUID, error)
	ReserveTx(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, items []ReserveItem) (*models.StockReservation, error)
	Commit(ctx context.Context, tenantID, reservationID uuid.UUID) error
	CommitTx(ctx context.Context, tx *gorm.DB, tenantID, reservationID uuid.UUID) error
	Release(ctx context.Context, tenantID, reservationID uuid.UUID) error
	ReleaseTx(ctx context.Context, tx *gorm.DB, tenantID, reservationID uuid.UUID) error
	Reverse(ctx context.Context, tenantID, reservationID, orderID uuid.UUID) error
	ReverseTx(ctx context.Context, tx *gorm.DB, tenantID, reservationID, orderID uuid.UUID) error
	Adjust(ctx context.Context, tenantID uuid.UUID, input AdjustInput) (*models.StockMovement, error)
	Available(ctx context.Context, tenantID, productID uuid.UUID, warehouseID *uuid.UUID) (*StockLevelView, error)
	Movements(ctx context.Context, tenantID, productID uuid.UUID, params pagination.Params) (*pagination.Page[models.StockMovement], error)
}

type service struct {
	tx               txRunner
	repo             Repository
	outbox           outbox.Emitter
	logg             *logger.Logger
	metrics          *metrics.StockMetrics
	defaultThreshold int64
}

// NewService wires the stock ledger.
func NewService(tx txRunner, repo Repository, emitter outbox.Emitter, logg *logger.Logger, stockMetrics *metrics.StockMetrics, defaultThreshold int) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if defaultThreshold < 0 {
		defaultThreshold = 0
	}
	return &service{
		tx:               tx,
		repo:             repo,
		outbox:           emitter,
		logg:             logg,
		metrics:          stockMetrics,
		defaultThreshold: int64(defaultThreshold),
	}, nil
}

func (s *service) Reserve(ctx context.Context, tenantID uuid.UUID, items []ReserveItem) (uuid.UUID, error) {
	var reservationID uuid.UUID
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		reservation, err := s.ReserveTx(ctx, tx, tenantID, items)
		if err != nil {
			return err
		}
		reservationID = reservation.ID
		return nil
	})
	return reservationID, err
}

// ReserveTx holds stock for every line inside the caller's transaction. Either
// every line is decremented or the returned error aborts the transaction.
func (s *service) ReserveTx(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, items []ReserveItem) (*models.StockReservation, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction required for stock reservation")
	}
	if tenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id required")
	}
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one item is required")
	}

	repo := s.repo.WithTx(tx)
	lines, err := s.aggregate(ctx, repo, tenantID, items)
	if err != nil {
		return nil, err
	}

	products, err := s.loadProducts(ctx, repo, tenantID, lines)
	if err != nil {
		return nil, err
	}

	reservation := &models.StockReservation{
		ID:       uuid.New(),
		TenantID: tenantID,
		Status:   enums.ReservationActive,
	}
	movements := make([]models.StockMovement, 0, len(lines))
	for _, line := range lines {
		ok, err := repo.TryDecrement(ctx, tenantID, line.ProductID, line.WarehouseID, line.Quantity)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement stock")
		}
		if !ok {
			return nil, s.shortage(ctx, repo, tenantID, line)
		}
		if err := repo.AddProductStock(ctx, tenantID, line.ProductID, -line.Quantity); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product stock")
		}
		reservation.Lines = append(reservation.Lines, models.StockReservationLine{
			ReservationID: reservation.ID,
			TenantID:      tenantID,
			ProductID:     line.ProductID,
			WarehouseID:   line.WarehouseID,
			Quantity:      line.Quantity,
		})
		movements = append(movements, models.StockMovement{
			TenantID:      tenantID,
			ProductID:     line.ProductID,
			WarehouseID:   line.WarehouseID,
			ReservationID: &reservation.ID,
			QuantityDelta: -line.Quantity,
			Type:          enums.MovementSale,
		})
	}

	if err := repo.CreateReservation(ctx, reservation); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create reservation")
	}
	if err := repo.AppendMovements(ctx, movements); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append sale movements")
	}

	for _, line := range reservation.Lines {
		if err := s.checkLowStock(ctx, tx, repo, tenantID, products[line.ProductID], line.WarehouseID, nil); err != nil {
			return nil, err
		}
	}
	return reservation, nil
}

func (s *service) aggregate(ctx context.Context, repo Repository, tenantID uuid.UUID, items []ReserveItem) ([]models.StockReservationLine, error) {
	var defaultWarehouse *uuid.UUID
	totals := map[lineKey]int64{}
	for _, item := range items {
		if item.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
		}
		if item.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive").WithDetails(map[string]any{
				"product_id": item.ProductID.String(),
			})
		}
		warehouseID, err := s.resolveWarehouse(ctx, repo, tenantID, item.WarehouseID, &defaultWarehouse)
		if err != nil {
			return nil, err
		}
		totals[lineKey{productID: item.ProductID, warehouseID: warehouseID}] += item.Quantity
	}

	lines := make([]models.StockReservationLine, 0, len(totals))
	for key, qty := range totals {
		lines = append(lines, models.StockReservationLine{
			ProductID:   key.productID,
			WarehouseID: key.warehouseID,
			Quantity:    qty,
		})
	}
	// deterministic lock order across concurrent reservations
	sort.Slice(lines, func(i, j int) bool {
		if c := strings.Compare(lines[i].ProductID.String(), lines[j].ProductID.String()); c != 0 {
			return c < 0
		}
		return lines[i].WarehouseID.String() < lines[j].WarehouseID.String()
	})
	return lines, nil
}

func (s *service) resolveWarehouse(ctx context.Context, repo Repository, tenantID uuid.UUID, requested *uuid.UUID, cached **uuid.UUID) (uuid.UUID, error) {
	if requested != nil && *requested != uuid.Nil {
		if _, err := repo.FindWarehouse(ctx, tenantID, *requested); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return uuid.Nil, pkgerrors.New(pkgerrors.CodeNotFound, "warehouse not found")
			}
			return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load warehouse")
		}
		return *requested, nil
	}
	if *cached != nil {
		return **cached, nil
	}
	wh, err := repo.DefaultWarehouse(ctx, tenantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant has no default warehouse")
		}
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load default warehouse")
	}
	*cached = &wh.ID
	return wh.ID, nil
}

func (s *service) loadProducts(ctx context.Context, repo Repository, tenantID uuid.UUID, lines []models.StockReservationLine) (map[uuid.UUID]models.Product, error) {
	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	products, err := repo.FindProducts(ctx, tenantID, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}
	for _, id := range ids {
		if _, ok := products[id]; !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").WithDetails(map[string]any{
				"product_id": id.String(),
			})
		}
	}
	return products, nil
}

func (s *service) shortage(ctx context.Context, repo Repository, tenantID uuid.UUID, line models.StockReservationLine) error {
	available, err := repo.OnHand(ctx, tenantID, line.ProductID, line.WarehouseID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read stock level")
	}
	if available < 0 {
		available = 0
	}
	s.metrics.IncConflict(tenantID.String())
	return pkgerrors.InsufficientStock(pkgerrors.StockShortage{
		ProductID:   line.ProductID.String(),
		WarehouseID: line.WarehouseID.String(),
		Requested:   line.Quantity,
		Available:   available,
	})
}

func (s *service) Commit(ctx context.Context, tenantID, reservationID uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.CommitTx(ctx, tx, tenantID, reservationID)
	})
}

// CommitTx makes the reservation's SALE movements permanent. Committing a
// committed reservation is a no-op.
func (s *service) CommitTx(ctx context.Context, tx *gorm.DB, tenantID, reservationID uuid.UUID) error {
	repo := s.repo.WithTx(tx)
	reservation, err := s.lockReservation(ctx, repo, tenantID, reservationID)
	if err != nil {
		return err
	}
	switch reservation.Status {
	case enums.ReservationCommitted:
		return nil
	case enums.ReservationActive:
		if err := repo.UpdateReservationStatus(ctx, reservation.ID, enums.ReservationCommitted); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "commit reservation")
		}
		return nil
	default:
		return pkgerrors.InvalidTransition("reservation", string(reservation.Status), string(enums.ReservationCommitted))
	}
}

func (s *service) Release(ctx context.Context, tenantID, reservationID uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.ReleaseTx(ctx, tx, tenantID, reservationID)
	})
}

// ReleaseTx returns exactly the held quantity of an active reservation through
// reversing movements. Releasing twice is a no-op.
func (s *service) ReleaseTx(ctx context.Context, tx *gorm.DB, tenantID, reservationID uuid.UUID) error {
	repo := s.repo.WithTx(tx)
	reservation, err := s.lockReservation(ctx, repo, tenantID, reservationID)
	if err != nil {
		return err
	}
	switch reservation.Status {
	case enums.ReservationReleased:
		return nil
	case enums.ReservationActive:
		return s.restore(ctx, repo, reservation, nil, enums.ReservationReleased, "reservation released")
	default:
		return pkgerrors.InvalidTransition("reservation", string(reservation.Status), string(enums.ReservationReleased))
	}
}

func (s *service) Reverse(ctx context.Context, tenantID, reservationID, orderID uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.ReverseTx(ctx, tx, tenantID, reservationID, orderID)
	})
}

// ReverseTx credits back a committed sale when its order is cancelled.
func (s *service) ReverseTx(ctx context.Context, tx *gorm.DB, tenantID, reservationID, orderID uuid.UUID) error {
	repo := s.repo.WithTx(tx)
	reservation, err := s.lockReservation(ctx, repo, tenantID, reservationID)
	if err != nil {
		return err
	}
	switch reservation.Status {
	case enums.ReservationReversed:
		return nil
	case enums.ReservationCommitted:
		return s.restore(ctx, repo, reservation, &orderID, enums.ReservationReversed, "order cancelled")
	default:
		return pkgerrors.InvalidTransition("reservation", string(reservation.Status), string(enums.ReservationReversed))
	}
}

func (s *service) lockReservation(ctx context.Context, repo Repository, tenantID, reservationID uuid.UUID) (*models.StockReservation, error) {
	if reservationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation id required")
	}
	reservation, err := repo.FindReservationForUpdate(ctx, tenantID, reservationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reservation")
	}
	return reservation, nil
}

func (s *service) restore(ctx context.Context, repo Repository, reservation *models.StockReservation, orderID *uuid.UUID, next enums.ReservationStatus, note string) error {
	movements := make([]models.StockMovement, 0, len(reservation.Lines))
	for _, line := range reservation.Lines {
		if err := repo.Increment(ctx, reservation.TenantID, line.ProductID, line.WarehouseID, line.Quantity); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restore stock level")
		}
		if err := repo.AddProductStock(ctx, reservation.TenantID, line.ProductID, line.Quantity); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restore product stock")
		}
		notes := note
		movements = append(movements, models.StockMovement{
			TenantID:      reservation.TenantID,
			ProductID:     line.ProductID,
			WarehouseID:   line.WarehouseID,
			ReservationID: &reservation.ID,
			OrderID:       orderID,
			QuantityDelta: line.Quantity,
			Type:          enums.MovementCancellationReversal,
			Notes:         &notes,
		})
	}
	if err := repo.AppendMovements(ctx, movements); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append reversal movements")
	}
	if err := repo.UpdateReservationStatus(ctx, reservation.ID, next); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update reservation status")
	}
	return nil
}

// Adjust applies a staff stock change. Results below zero fail with
// InsufficientStock and leave no trace.
func (s *service) Adjust(ctx context.Context, tenantID uuid.UUID, input AdjustInput) (*models.StockMovement, error) {
	if tenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id required")
	}
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if !input.Type.IsManualAdjustment() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "type must be RESTOCK, ADJUSTMENT or RETURN")
	}
	switch {
	case input.Quantity == 0:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be non-zero")
	case input.Quantity < 0 && input.Type != enums.MovementAdjustment:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s quantity must be positive", input.Type))
	}

	var movement *models.StockMovement
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var cached *uuid.UUID
		warehouseID, err := s.resolveWarehouse(ctx, repo, tenantID, input.WarehouseID, &cached)
		if err != nil {
			return err
		}
		line := models.StockReservationLine{ProductID: input.ProductID, WarehouseID: warehouseID, Quantity: -input.Quantity}
		products, err := s.loadProducts(ctx, repo, tenantID, []models.StockReservationLine{line})
		if err != nil {
			return err
		}

		if input.Quantity < 0 {
			ok, err := repo.TryDecrement(ctx, tenantID, input.ProductID, warehouseID, -input.Quantity)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement stock")
			}
			if !ok {
				return s.shortage(ctx, repo, tenantID, line)
			}
		} else if err := repo.Increment(ctx, tenantID, input.ProductID, warehouseID, input.Quantity); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment stock")
		}
		if err := repo.AddProductStock(ctx, tenantID, input.ProductID, input.Quantity); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product stock")
		}

		row := models.StockMovement{
			TenantID:      tenantID,
			ProductID:     input.ProductID,
			WarehouseID:   warehouseID,
			QuantityDelta: input.Quantity,
			Type:          input.Type,
		}
		if notes := strings.TrimSpace(input.Notes); notes != "" {
			row.Notes = &notes
		}
		rows := []models.StockMovement{row}
		if err := repo.AppendMovements(ctx, rows); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append movement")
		}
		movement = &rows[0]

		return s.checkLowStock(ctx, tx, repo, tenantID, products[input.ProductID], warehouseID, input.Actor)
	})
	if err != nil {
		return nil, err
	}
	return movement, nil
}

func (s *service) checkLowStock(ctx context.Context, tx *gorm.DB, repo Repository, tenantID uuid.UUID, product models.Product, warehouseID uuid.UUID, actor *outbox.ActorRef) error {
	threshold := s.defaultThreshold
	if product.ReorderThreshold != nil {
		threshold = *product.ReorderThreshold
	}
	onHand, err := repo.OnHand(ctx, tenantID, product.ID, warehouseID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read stock level")
	}
	if onHand > threshold {
		return nil
	}

	event := outbox.DomainEvent{
		TenantID:      tenantID,
		EventType:     enums.EventLowStock,
		AggregateType: enums.AggregateProduct,
		AggregateID:   product.ID,
		Actor:         actor,
		Data: payloads.LowStockEvent{
			ProductID:   product.ID,
			WarehouseID: warehouseID,
			OnHand:      onHand,
			Threshold:   threshold,
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit low stock event")
	}
	s.metrics.IncLowStock()
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"tenant_id":    tenantID.String(),
			"product_id":   product.ID.String(),
			"warehouse_id": warehouseID.String(),
			"on_hand":      onHand,
			"threshold":    threshold,
		})
		s.logg.Info(logCtx, "low stock threshold reached")
	}
	return nil
}

func (s *service) Available(ctx context.Context, tenantID, productID uuid.UUID, warehouseID *uuid.UUID) (*StockLevelView, error) {
	if tenantID == uuid.Nil || productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant and product id required")
	}
	products, err := s.repo.FindProducts(ctx, tenantID, []uuid.UUID{productID})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if _, ok := products[productID]; !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}

	var available int64
	if warehouseID != nil && *warehouseID != uuid.Nil {
		available, err = s.repo.OnHand(ctx, tenantID, productID, *warehouseID)
	} else {
		available, err = s.repo.SumOnHand(ctx, tenantID, productID)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read stock level")
	}
	if available < 0 {
		available = 0
	}
	return &StockLevelView{ProductID: productID, WarehouseID: warehouseID, Available: available}, nil
}

func (s *service) Movements(ctx context.Context, tenantID, productID uuid.UUID, params pagination.Params) (*pagination.Page[models.StockMovement], error) {
	if tenantID == uuid.Nil || productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant and product id required")
	}
	if _, err := params.Decode(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	page, err := s.repo.ListMovements(ctx, tenantID, productID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list movements")
	}
	return page, nil
}
