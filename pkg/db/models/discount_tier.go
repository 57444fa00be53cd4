package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mariselaquino/tradepost-backend/pkg/enums"
)

// DiscountTier captures one quantity band of tiered pricing per product.
// MaxQty nil means the band is unbounded above.
type DiscountTier struct {
	ID           uuid.UUID          `gorm:"column:id;type:uuid;default:(gen_random_uuid());primaryKey"`
	ProductID    uuid.UUID          `gorm:"column:product_id;type:uuid;not null;index"`
	MinQty       int                `gorm:"column:min_qty;not null"`
	MaxQty       *int               `gorm:"column:max_qty"`
	DiscountType enums.DiscountType `gorm:"column:discount_type;type:text;not null"`
	Value        decimal.Decimal    `gorm:"column:value;type:numeric(12,4);not null"`
	CreatedAt    time.Time          `gorm:"column:created_at;autoCreateTime"`
}
