package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mariselaquino/tradepost-backend/pkg/enums"
)

// InventoryReservation is a provisional hold against a product's stock.
// Active holds expire at ExpiresAt; expired holds count as inactive even
// before the sweep physically releases them.
type InventoryReservation struct {
	ID          uuid.UUID               `gorm:"column:id;type:uuid;default:(gen_random_uuid());primaryKey"`
	ProductID   uuid.UUID               `gorm:"column:product_id;type:uuid;not null;index"`
	OrderID     *uuid.UUID              `gorm:"column:order_id;type:uuid;index"`
	RequestedBy uuid.UUID               `gorm:"column:requested_by;type:uuid;not null"`
	Quantity    int                     `gorm:"column:quantity;not null"`
	Status      enums.ReservationStatus `gorm:"column:status;type:text;not null;default:'active'"`
	ExpiresAt   time.Time               `gorm:"column:expires_at;not null"`
	ReleasedAt  *time.Time              `gorm:"column:released_at"`
	ConsumedAt  *time.Time              `gorm:"column:consumed_at"`
	CreatedAt   time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
