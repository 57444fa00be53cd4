package pricing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/mariselaquino/tradepost-backend/pkg/enums"
)

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func decPtr(v string) *decimal.Decimal {
	d := dec(v)
	return &d
}

func intPtr(v int) *int {
	return &v
}

func TestApplyPercentageDiscount(t *testing.T) {
	tests := []struct {
		name    string
		price   string
		percent string
		cap     *decimal.Decimal
		want    string
	}{
		{"basic", "200", "10", nil, "20"},
		{"capped", "100", "50", decPtr("20"), "20"},
		{"under cap", "100", "10", decPtr("20"), "10"},
		{"zero price", "0", "50", nil, "0"},
		{"full discount", "80", "100", nil, "80"},
		{"decimal percent", "100", "12.5", nil, "12.5"},
		{"negative percent clamps", "100", "-5", nil, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ApplyPercentageDiscount(dec(tt.price), dec(tt.percent), tt.cap)
			assert.True(t, got.Equal(dec(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

func TestApplyFixedDiscount(t *testing.T) {
	assert.True(t, ApplyFixedDiscount(dec("100"), dec("30")).Equal(dec("30")))
	assert.True(t, ApplyFixedDiscount(dec("100"), dec("150")).Equal(dec("100")))
	assert.True(t, ApplyFixedDiscount(dec("0"), dec("10")).Equal(dec("0")))
	assert.True(t, ApplyFixedDiscount(dec("100"), dec("-10")).Equal(dec("0")))
}

func TestCalculateTieredDiscount(t *testing.T) {
	tiers := []Tier{
		{MinQty: 10, MaxQty: intPtr(49), Type: enums.DiscountTypePercentage, Value: dec("5")},
		{MinQty: 50, MaxQty: intPtr(99), Type: enums.DiscountTypePercentage, Value: dec("10")},
		{MinQty: 100, Type: enums.DiscountTypeFixedAmount, Value: dec("2")},
	}

	t.Run("below every tier returns zero", func(t *testing.T) {
		got := CalculateTieredDiscount(dec("10"), 5, tiers)
		assert.True(t, got.IsZero())
	})

	t.Run("percentage tier applies against the line", func(t *testing.T) {
		// 10 * 20 = 200, 5% = 10
		got := CalculateTieredDiscount(dec("10"), 20, tiers)
		assert.True(t, got.Equal(dec("10")), "got %s", got)
	})

	t.Run("inclusive upper bound", func(t *testing.T) {
		got := CalculateTieredDiscount(dec("10"), 49, tiers)
		assert.True(t, got.Equal(dec("24.5")), "got %s", got)
	})

	t.Run("fixed tier is per unit", func(t *testing.T) {
		// 2 per unit * 120 units = 240
		got := CalculateTieredDiscount(dec("10"), 120, tiers)
		assert.True(t, got.Equal(dec("240")), "got %s", got)
	})

	t.Run("no tiers", func(t *testing.T) {
		got := CalculateTieredDiscount(dec("10"), 100, nil)
		assert.True(t, got.IsZero())
	})
}

func TestApplyDiscounts(t *testing.T) {
	t.Run("empty stack is identity", func(t *testing.T) {
		got := ApplyDiscounts(dec("99.95"), nil)
		assert.True(t, got.Equal(dec("99.95")))
	})

	t.Run("sequential fold against running price", func(t *testing.T) {
		// 100 -> -10% = 90 -> -15 fixed = 75
		got := ApplyDiscounts(dec("100"), []Discount{
			{Type: enums.DiscountTypePercentage, Value: dec("10")},
			{Type: enums.DiscountTypeFixedAmount, Value: dec("15")},
		})
		assert.True(t, got.Equal(dec("75")), "got %s", got)
	})

	t.Run("never negative", func(t *testing.T) {
		got := ApplyDiscounts(dec("20"), []Discount{
			{Type: enums.DiscountTypeFixedAmount, Value: dec("15")},
			{Type: enums.DiscountTypeFixedAmount, Value: dec("15")},
			{Type: enums.DiscountTypePercentage, Value: dec("100")},
		})
		assert.False(t, got.IsNegative())
		assert.True(t, got.IsZero())
	})

	t.Run("cap honored inside the stack", func(t *testing.T) {
		got := ApplyDiscounts(dec("100"), []Discount{
			{Type: enums.DiscountTypePercentage, Value: dec("50"), MaxDiscount: decPtr("20")},
		})
		assert.True(t, got.Equal(dec("80")), "got %s", got)
	})
}

func TestIsFlashSaleActive(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	start := now.Add(-time.Hour)
	end := now.Add(time.Hour)

	assert.True(t, IsFlashSaleActive(now, start, end, nil, 0))
	assert.True(t, IsFlashSaleActive(start, start, end, nil, 0), "inclusive start")
	assert.True(t, IsFlashSaleActive(end, start, end, nil, 0), "inclusive end")
	assert.False(t, IsFlashSaleActive(end.Add(time.Second), start, end, nil, 0))
	assert.False(t, IsFlashSaleActive(now, start, end, intPtr(100), 100), "sold through")
	assert.True(t, IsFlashSaleActive(now, start, end, intPtr(100), 99))
}

func TestIsPromotionActive(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	start := now.Add(-time.Hour)
	end := now.Add(time.Hour)

	assert.True(t, IsPromotionActive(now, start, nil, true), "open ended")
	assert.True(t, IsPromotionActive(now, start, &end, true))
	assert.False(t, IsPromotionActive(now, start, &end, false), "flag off")
	assert.False(t, IsPromotionActive(now, now.Add(time.Minute), nil, true), "not started")
	past := now.Add(-time.Minute)
	assert.False(t, IsPromotionActive(now, start, &past, true), "ended")
}
