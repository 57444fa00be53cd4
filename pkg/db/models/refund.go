package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mariselaquino/tradepost-backend/pkg/enums"
)

// Refund is a settlement back to the buyer against one order. Completed
// refunds are immutable; the sum of completed amounts never exceeds the
// order total.
type Refund struct {
	ID                uuid.UUID          `gorm:"column:id;type:uuid;default:(gen_random_uuid());primaryKey"`
	OrderID           uuid.UUID          `gorm:"column:order_id;type:uuid;not null;index"`
	AmountCents       int                `gorm:"column:amount_cents;not null"`
	Status            enums.RefundStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	Reason            *string            `gorm:"column:reason;type:text"`
	RestoreStock      bool               `gorm:"column:restore_stock;not null;default:false"`
	ProviderRefundRef *string            `gorm:"column:provider_refund_ref;type:text"`
	FailureReason     *string            `gorm:"column:failure_reason;type:text"`
	AttemptCount      int                `gorm:"column:attempt_count;not null;default:0"`
	CompletedAt       *time.Time         `gorm:"column:completed_at"`
	CreatedAt         time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
