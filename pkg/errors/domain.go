package errors

import "fmt"

// StockShortage is the detail payload attached to insufficient stock conflicts.
type StockShortage struct {
	ProductID   string `json:"product_id"`
	WarehouseID string `json:"warehouse_id,omitempty"`
	Requested   int64  `json:"requested"`
	Available   int64  `json:"available"`
}

func InsufficientStock(shortage StockShortage) *Error {
	return New(CodeConflict, "insufficient stock").WithDetails(shortage)
}

// Shortage extracts the shortage details from an insufficient stock error.
func Shortage(err error) (StockShortage, bool) {
	typed := As(err)
	if typed == nil || typed.code != CodeConflict {
		return StockShortage{}, false
	}
	shortage, ok := typed.details.(StockShortage)
	return shortage, ok
}

func ProductUnavailable(productID, reason string) *Error {
	return New(CodeConflict, "product unavailable").WithDetails(map[string]any{
		"product_id": productID,
		"reason":     reason,
	})
}

func InvalidMode(message string) *Error {
	return New(CodeValidation, message).WithDetails(map[string]any{"field": "identity"})
}

func DuplicateRequest(message string) *Error {
	return New(CodeConflict, message).WithDetails(map[string]any{"reason": "duplicate_request"})
}

func OrderAlreadyCancelled(orderID string) *Error {
	return New(CodeStateConflict, "order already cancelled").WithDetails(map[string]any{
		"order_id": orderID,
	})
}

// InvalidTransition reports a rejected move on one of the order/payment state axes.
func InvalidTransition(entity, from, to string) *Error {
	return New(CodeStateConflict, fmt.Sprintf("%s cannot transition from %s to %s", entity, from, to)).WithDetails(map[string]any{
		"entity": entity,
		"from":   from,
		"to":     to,
	})
}
