package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is the vendor-owned catalog entry orders and reservations hang off.
type Product struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;default:(gen_random_uuid());primaryKey"`
	VendorStoreID  uuid.UUID `gorm:"column:vendor_store_id;type:uuid;not null"`
	Name           string    `gorm:"column:name;type:text;not null"`
	Description    *string   `gorm:"column:description;type:text"`
	UnitPriceCents int       `gorm:"column:unit_price_cents;not null"`
	Currency       string    `gorm:"column:currency;type:text;not null;default:'USD'"`
	Active         bool      `gorm:"column:active;not null;default:true"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
