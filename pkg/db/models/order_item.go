package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderItem records a product line at the price it carried when ordered.
type OrderItem struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;default:(gen_random_uuid());primaryKey"`
	OrderID        uuid.UUID  `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID      uuid.UUID  `gorm:"column:product_id;type:uuid;not null"`
	ReservationID  *uuid.UUID `gorm:"column:reservation_id;type:uuid"`
	Quantity       int        `gorm:"column:quantity;not null"`
	UnitPriceCents int        `gorm:"column:unit_price_cents;not null"`
	DiscountCents  int        `gorm:"column:discount_cents;not null;default:0"`
	TotalCents     int        `gorm:"column:total_cents;not null"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
}
