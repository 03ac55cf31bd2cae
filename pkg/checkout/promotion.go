package checkout

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/commerce-core/pkg/db/models"
	"github.com/angelmondragon/commerce-core/pkg/enums"
)

var (
	ErrPromotionInactive    = errors.New("promotion inactive")
	ErrPromotionNotStarted  = errors.New("promotion not started")
	ErrPromotionExpired     = errors.New("promotion expired")
	ErrPromotionMinSubtotal = errors.New("promotion minimum subtotal not met")
	ErrPromotionInvalid     = errors.New("promotion value invalid")
)

var hundred = decimal.NewFromInt(100)

// NormalizeCode trims and upper-cases a shopper-entered promo code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Discount computes the discount in minor units a promotion grants on subtotal at
// now. PERCENT rounds half-up to the cent; FIXED is capped at the subtotal. A
// non-nil error explains why the promotion does not apply.
func Discount(promo *models.Promotion, subtotalCents int64, now time.Time) (int64, error) {
	if promo == nil || !promo.Active {
		return 0, ErrPromotionInactive
	}
	if promo.StartsAt != nil && now.Before(*promo.StartsAt) {
		return 0, ErrPromotionNotStarted
	}
	if promo.EndsAt != nil && !now.Before(*promo.EndsAt) {
		return 0, ErrPromotionExpired
	}
	if subtotalCents < promo.MinSubtotalCents {
		return 0, ErrPromotionMinSubtotal
	}
	if promo.Value.IsNegative() {
		return 0, ErrPromotionInvalid
	}

	var discount int64
	switch promo.Kind {
	case enums.PromotionPercent:
		if promo.Value.GreaterThan(hundred) {
			return 0, ErrPromotionInvalid
		}
		discount = decimal.NewFromInt(subtotalCents).
			Mul(promo.Value).
			Div(hundred).
			Round(0).
			IntPart()
	case enums.PromotionFixed:
		discount = promo.Value.Round(0).IntPart()
	default:
		return 0, ErrPromotionInvalid
	}
	if discount > subtotalCents {
		discount = subtotalCents
	}
	return discount, nil
}
