package checkout

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/commerce-core/pkg/db/models"
	"github.com/angelmondragon/commerce-core/pkg/enums"
)

func TestDiscount(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	cases := []struct {
		name     string
		promo    *models.Promotion
		subtotal int64
		want     int64
		wantErr  error
	}{
		{
			name:     "percent rounds half up",
			promo:    &models.Promotion{Kind: enums.PromotionPercent, Value: decimal.RequireFromString("12.5"), Active: true},
			subtotal: 1004,
			want:     126,
		},
		{
			name:     "percent rounds down below half",
			promo:    &models.Promotion{Kind: enums.PromotionPercent, Value: decimal.NewFromInt(10), Active: true},
			subtotal: 1004,
			want:     100,
		},
		{
			name:     "fixed capped at subtotal",
			promo:    &models.Promotion{Kind: enums.PromotionFixed, Value: decimal.NewFromInt(5000), Active: true},
			subtotal: 1200,
			want:     1200,
		},
		{
			name:     "fixed inside window",
			promo:    &models.Promotion{Kind: enums.PromotionFixed, Value: decimal.NewFromInt(300), Active: true, StartsAt: &past, EndsAt: &future},
			subtotal: 1200,
			want:     300,
		},
		{
			name:     "inactive",
			promo:    &models.Promotion{Kind: enums.PromotionFixed, Value: decimal.NewFromInt(300)},
			subtotal: 1200,
			wantErr:  ErrPromotionInactive,
		},
		{
			name:     "not started",
			promo:    &models.Promotion{Kind: enums.PromotionFixed, Value: decimal.NewFromInt(300), Active: true, StartsAt: &future},
			subtotal: 1200,
			wantErr:  ErrPromotionNotStarted,
		},
		{
			name:     "expired",
			promo:    &models.Promotion{Kind: enums.PromotionFixed, Value: decimal.NewFromInt(300), Active: true, EndsAt: &past},
			subtotal: 1200,
			wantErr:  ErrPromotionExpired,
		},
		{
			name:     "minimum subtotal",
			promo:    &models.Promotion{Kind: enums.PromotionPercent, Value: decimal.NewFromInt(10), Active: true, MinSubtotalCents: 5000},
			subtotal: 4999,
			wantErr:  ErrPromotionMinSubtotal,
		},
		{
			name:     "percent above hundred",
			promo:    &models.Promotion{Kind: enums.PromotionPercent, Value: decimal.NewFromInt(150), Active: true},
			subtotal: 1000,
			wantErr:  ErrPromotionInvalid,
		},
		{
			name:     "missing promotion",
			subtotal: 1000,
			wantErr:  ErrPromotionInactive,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Discount(tc.promo, tc.subtotal, now)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected discount %d, got %d", tc.want, got)
			}
		})
	}
}

func TestNormalizeCode(t *testing.T) {
	if got := NormalizeCode("  spring10 "); got != "SPRING10" {
		t.Fatalf("expected SPRING10, got %q", got)
	}
}
