package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mariselaquino/tradepost-backend/pkg/enums"
)

// OrderEvent is the append-only audit trail of order status transitions.
type OrderEvent struct {
	ID             uuid.UUID         `gorm:"column:id;type:uuid;default:(gen_random_uuid());primaryKey"`
	OrderID        uuid.UUID         `gorm:"column:order_id;type:uuid;not null;index"`
	PreviousStatus enums.OrderStatus `gorm:"column:previous_status;type:text;not null"`
	NewStatus      enums.OrderStatus `gorm:"column:new_status;type:text;not null"`
	ActorID        *uuid.UUID        `gorm:"column:actor_id;type:uuid"`
	ActorRole      enums.ActorRole   `gorm:"column:actor_role;type:text;not null"`
	Note           *string           `gorm:"column:note;type:text"`
	CreatedAt      time.Time         `gorm:"column:created_at;autoCreateTime"`
}
