package models

import (
	"time"

	"github.com/google/uuid"
)

// InventoryItem tracks available/reserved/committed counts per product.
// The counters satisfy: reserved covers active holds, committed covers
// finalized sales, and available is what remains reservable right now.
type InventoryItem struct {
	ProductID    uuid.UUID `gorm:"column:product_id;type:uuid;primaryKey"`
	AvailableQty int       `gorm:"column:available_qty;not null;default:0"`
	ReservedQty  int       `gorm:"column:reserved_qty;not null;default:0"`
	CommittedQty int       `gorm:"column:committed_qty;not null;default:0"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
