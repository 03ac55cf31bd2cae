package enums

// PromotionKind selects how a promotion value is applied to the subtotal.
type PromotionKind string

const (
	PromotionPercent PromotionKind = "PERCENT"
	PromotionFixed   PromotionKind = "FIXED"
)

func (k PromotionKind) IsValid() bool {
	return k == PromotionPercent || k == PromotionFixed
}
