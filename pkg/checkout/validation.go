package checkout

import (
	"fmt"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/commerce-core/pkg/errors"
)

// LineInput is one priced cart line about to become an order line.
type LineInput struct {
	ProductID      uuid.UUID
	ProductName    string
	Quantity       int64
	UnitPriceCents int64
}

// Total returns quantity times unit price in minor units.
func (l LineInput) Total() int64 {
	return l.Quantity * l.UnitPriceCents
}

// LineViolationDetail exposes the data returned to callers when a validation fails.
type LineViolationDetail struct {
	ProductID      uuid.UUID `json:"product_id"`
	ProductName    string    `json:"product_name,omitempty"`
	Quantity       int64     `json:"quantity"`
	UnitPriceCents int64     `json:"unit_price_cents"`
}

// ValidateLines ensures the snapshot is non-empty and every line has a positive
// quantity and a non-negative price.
func ValidateLines(lines []LineInput) error {
	if len(lines) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	var violations []LineViolationDetail
	for _, line := range lines {
		if line.Quantity >= 1 && line.UnitPriceCents >= 0 {
			continue
		}
		violations = append(violations, LineViolationDetail{
			ProductID:      line.ProductID,
			ProductName:    line.ProductName,
			Quantity:       line.Quantity,
			UnitPriceCents: line.UnitPriceCents,
		})
	}
	if len(violations) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid quantity or price for %d item(s)", len(violations))).WithDetails(map[string]any{
		"violations": violations,
	})
}

// Subtotal sums line totals.
func Subtotal(lines []LineInput) int64 {
	var total int64
	for _, line := range lines {
		total += line.Total()
	}
	return total
}
