package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mariselaquino/tradepost-backend/pkg/enums"
)

// Promotion is a vendor-scoped discount campaign. Flash sales additionally
// carry a stock limit that deactivates the promotion once sold through.
type Promotion struct {
	ID            uuid.UUID          `gorm:"column:id;type:uuid;default:(gen_random_uuid());primaryKey"`
	VendorStoreID uuid.UUID          `gorm:"column:vendor_store_id;type:uuid;not null;index"`
	ProductID     *uuid.UUID         `gorm:"column:product_id;type:uuid;index"`
	Name          string             `gorm:"column:name;type:text;not null"`
	DiscountType  enums.DiscountType `gorm:"column:discount_type;type:text;not null"`
	Value         decimal.Decimal    `gorm:"column:value;type:numeric(12,4);not null"`
	MaxDiscount   *decimal.Decimal   `gorm:"column:max_discount;type:numeric(12,4)"`
	IsActive      bool               `gorm:"column:is_active;not null;default:true"`
	IsFlashSale   bool               `gorm:"column:is_flash_sale;not null;default:false"`
	StockLimit    *int               `gorm:"column:stock_limit"`
	StockSold     int                `gorm:"column:stock_sold;not null;default:0"`
	StartsAt      time.Time          `gorm:"column:starts_at;not null"`
	EndsAt        *time.Time         `gorm:"column:ends_at"`
	CreatedAt     time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
