package models

import "github.com/google/uuid"

// Postgres fills ids through column defaults; the hook keeps sqlite-backed runs
// and callers that need the id before insert working the same way.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

// All lists every persisted model, in dependency order, for sqlite AutoMigrate.
func All() []any {
	return []any{
		&Tenant{},
		&Product{},
		&Warehouse{},
		&StockLevel{},
		&StockReservation{},
		&StockReservationLine{},
		&StockMovement{},
		&Cart{},
		&CartItem{},
		&Promotion{},
		&Order{},
		&OrderLineItem{},
		&Payment{},
		&CancellationRequest{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
