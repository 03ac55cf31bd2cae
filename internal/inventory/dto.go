package inventory

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/commerce-core/pkg/enums"
	"github.com/angelmondragon/commerce-core/pkg/outbox"
)

// ReserveItem is one requested line. A nil WarehouseID resolves to the
// tenant's default warehouse.
type ReserveItem struct {
	ProductID   uuid.UUID
	WarehouseID *uuid.UUID
	Quantity    int64
}

// AdjustInput drives a manual stock change outside the sales path.
type AdjustInput struct {
	ProductID   uuid.UUID
	WarehouseID *uuid.UUID
	Quantity    int64
	Type        enums.MovementType
	Notes       string
	Actor       *outbox.ActorRef
}

// StockLevelView is the read model returned by stock queries.
type StockLevelView struct {
	ProductID   uuid.UUID  `json:"product_id"`
	WarehouseID *uuid.UUID `json:"warehouse_id,omitempty"`
	Available   int64      `json:"available"`
}

type lineKey struct {
	productID   uuid.UUID
	warehouseID uuid.UUID
}
