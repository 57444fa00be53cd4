package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mariselaquino/tradepost-backend/pkg/db/models"
	"github.com/mariselaquino/tradepost-backend/pkg/enums"
)

// Discount describes one discount to stack: a percentage or fixed amount,
// optionally capped.
type Discount struct {
	Type        enums.DiscountType
	Value       decimal.Decimal
	MaxDiscount *decimal.Decimal
}

// Tier is one quantity band of tiered pricing. MaxQty nil means unbounded.
type Tier struct {
	MinQty int
	MaxQty *int
	Type   enums.DiscountType
	Value  decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

// ApplyPercentageDiscount computes price * percent / 100, clamped to
// maxDiscount when provided. Never negative.
func ApplyPercentageDiscount(price, percent decimal.Decimal, maxDiscount *decimal.Decimal) decimal.Decimal {
	amount := price.Mul(percent).Div(hundred)
	if amount.IsNegative() {
		return decimal.Zero
	}
	if maxDiscount != nil && amount.GreaterThan(*maxDiscount) {
		amount = *maxDiscount
	}
	return amount
}

// ApplyFixedDiscount returns min(amount, price); a fixed discount never
// exceeds the price it applies to. Never negative.
func ApplyFixedDiscount(price, amount decimal.Decimal) decimal.Decimal {
	if amount.IsNegative() {
		return decimal.Zero
	}
	if amount.GreaterThan(price) {
		return price
	}
	return amount
}

// CalculateTieredDiscount selects the band containing qty (inclusive bounds)
// and applies its discount against the line. Percentage tiers discount
// unitPrice*qty; fixed tiers discount value-per-unit * qty. No matching band
// yields zero. When bands overlap the highest MinQty wins.
func CalculateTieredDiscount(unitPrice decimal.Decimal, qty int, tiers []Tier) decimal.Decimal {
	var selected *Tier
	for i := range tiers {
		tier := &tiers[i]
		if qty < tier.MinQty {
			continue
		}
		if tier.MaxQty != nil && qty > *tier.MaxQty {
			continue
		}
		if selected == nil || tier.MinQty > selected.MinQty {
			selected = tier
		}
	}
	if selected == nil {
		return decimal.Zero
	}

	qtyDec := decimal.NewFromInt(int64(qty))
	switch selected.Type {
	case enums.DiscountTypePercentage:
		return ApplyPercentageDiscount(unitPrice.Mul(qtyDec), selected.Value, nil)
	case enums.DiscountTypeFixedAmount:
		line := unitPrice.Mul(qtyDec)
		return ApplyFixedDiscount(line, selected.Value.Mul(qtyDec))
	default:
		return decimal.Zero
	}
}

// ApplyDiscounts folds the discount stack over price. Each discount is
// computed against the running price, not the original, and the running
// price is clamped at zero after every step.
func ApplyDiscounts(price decimal.Decimal, discounts []Discount) decimal.Decimal {
	running := price
	for _, d := range discounts {
		var amount decimal.Decimal
		switch d.Type {
		case enums.DiscountTypePercentage:
			amount = ApplyPercentageDiscount(running, d.Value, d.MaxDiscount)
		case enums.DiscountTypeFixedAmount:
			amount = ApplyFixedDiscount(running, d.Value)
			if d.MaxDiscount != nil && amount.GreaterThan(*d.MaxDiscount) {
				amount = *d.MaxDiscount
			}
		default:
			continue
		}
		running = running.Sub(amount)
		if running.IsNegative() {
			running = decimal.Zero
		}
	}
	return running
}

// IsFlashSaleActive reports whether now falls within [startsAt, endsAt]
// (inclusive on both ends) and, when a stock limit is set, the sale has not
// sold through.
func IsFlashSaleActive(now, startsAt, endsAt time.Time, stockLimit *int, stockSold int) bool {
	if now.Before(startsAt) || now.After(endsAt) {
		return false
	}
	if stockLimit != nil && stockSold >= *stockLimit {
		return false
	}
	return true
}

// IsPromotionActive reports whether the promotion flag is on, now has
// reached startsAt, and endsAt (when set) has not passed.
func IsPromotionActive(now, startsAt time.Time, endsAt *time.Time, isActive bool) bool {
	if !isActive {
		return false
	}
	if now.Before(startsAt) {
		return false
	}
	if endsAt != nil && now.After(*endsAt) {
		return false
	}
	return true
}

// TiersFromModels converts persisted discount tiers into calculator bands.
func TiersFromModels(rows []models.DiscountTier) []Tier {
	tiers := make([]Tier, 0, len(rows))
	for _, row := range rows {
		tiers = append(tiers, Tier{
			MinQty: row.MinQty,
			MaxQty: row.MaxQty,
			Type:   row.DiscountType,
			Value:  row.Value,
		})
	}
	return tiers
}

// DiscountFromPromotion converts an active promotion into a stackable
// discount descriptor.
func DiscountFromPromotion(promo models.Promotion) Discount {
	return Discount{
		Type:        promo.DiscountType,
		Value:       promo.Value,
		MaxDiscount: promo.MaxDiscount,
	}
}

// PromotionApplies reports whether the promotion is live for now, including
// flash-sale stock gating.
func PromotionApplies(promo models.Promotion, now time.Time) bool {
	if promo.IsFlashSale {
		if promo.EndsAt == nil {
			return false
		}
		return IsFlashSaleActive(now, promo.StartsAt, *promo.EndsAt, promo.StockLimit, promo.StockSold)
	}
	return IsPromotionActive(now, promo.StartsAt, promo.EndsAt, promo.IsActive)
}
