package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mariselaquino/tradepost-backend/pkg/enums"
)

// DisputeMessage is one append-only entry in a dispute thread. System
// messages (SLA escalations) carry a nil SenderID and IsSystem = true.
type DisputeMessage struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;default:(gen_random_uuid());primaryKey"`
	DisputeID uuid.UUID       `gorm:"column:dispute_id;type:uuid;not null;index"`
	SenderID  *uuid.UUID      `gorm:"column:sender_id;type:uuid"`
	Role      enums.ActorRole `gorm:"column:role;type:text;not null"`
	Body      string          `gorm:"column:body;type:text;not null"`
	IsAdmin   bool            `gorm:"column:is_admin;not null;default:false"`
	IsSystem  bool            `gorm:"column:is_system;not null;default:false"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}
