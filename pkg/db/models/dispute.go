package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/mariselaquino/tradepost-backend/pkg/enums"
)

// Dispute is a buyer complaint against a delivered order. VendorRespondBy is
// the SLA deadline for vendor_pending disputes; the sweep escalates past it.
type Dispute struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;default:(gen_random_uuid());primaryKey"`
	OrderID         uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index"`
	CustomerID      uuid.UUID           `gorm:"column:customer_id;type:uuid;not null;index"`
	VendorStoreID   uuid.UUID           `gorm:"column:vendor_store_id;type:uuid;not null;index"`
	Type            enums.DisputeType   `gorm:"column:type;type:text;not null"`
	Status          enums.DisputeStatus `gorm:"column:status;type:text;not null;default:'open'"`
	Description     string              `gorm:"column:description;type:text;not null"`
	Evidence        pq.StringArray      `gorm:"column:evidence;type:text[]"`
	VendorRespondBy *time.Time          `gorm:"column:vendor_respond_by"`
	Resolution      *string             `gorm:"column:resolution;type:text"`
	ResolvedBy      *uuid.UUID          `gorm:"column:resolved_by;type:uuid"`
	EscalatedAt     *time.Time          `gorm:"column:escalated_at"`
	ResolvedAt      *time.Time          `gorm:"column:resolved_at"`
	ClosedAt        *time.Time          `gorm:"column:closed_at"`
	Messages        []DisputeMessage    `gorm:"foreignKey:DisputeID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
