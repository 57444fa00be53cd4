package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mariselaquino/tradepost-backend/pkg/enums"
)

// Order is the per-vendor order produced at checkout. Money is integer cents
// and always satisfies total = subtotal - discounts + shipping + tax. Rows are
// never deleted; status moves only through the lifecycle transition table.
type Order struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;default:(gen_random_uuid());primaryKey"`
	OrderNumber   int64               `gorm:"column:order_number;not null"`
	UserID        uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	VendorStoreID uuid.UUID           `gorm:"column:vendor_store_id;type:uuid;not null;index"`
	Currency      string              `gorm:"column:currency;type:text;not null;default:'USD'"`
	Status        enums.OrderStatus   `gorm:"column:status;type:text;not null;default:'pending'"`
	PaymentStatus enums.PaymentStatus `gorm:"column:payment_status;type:text;not null;default:'pending'"`
	PaymentMethod enums.PaymentMethod `gorm:"column:payment_method;type:text;not null;default:'card'"`

	SubtotalCents  int `gorm:"column:subtotal_cents;not null"`
	DiscountsCents int `gorm:"column:discounts_cents;not null;default:0"`
	ShippingCents  int `gorm:"column:shipping_cents;not null;default:0"`
	TaxCents       int `gorm:"column:tax_cents;not null;default:0"`
	TotalCents     int `gorm:"column:total_cents;not null"`
	CapturedCents  int `gorm:"column:captured_cents;not null;default:0"`

	FinalCaptured      bool    `gorm:"column:final_captured;not null;default:false"`
	ProviderPaymentRef *string `gorm:"column:provider_payment_ref;type:text"`

	BuyerProtection          bool       `gorm:"column:buyer_protection;not null;default:false"`
	BuyerProtectionExpiresAt *time.Time `gorm:"column:buyer_protection_expires_at"`

	PaidAt       *time.Time `gorm:"column:paid_at"`
	ConfirmedAt  *time.Time `gorm:"column:confirmed_at"`
	ProcessingAt *time.Time `gorm:"column:processing_at"`
	FulfilledAt  *time.Time `gorm:"column:fulfilled_at"`
	ShippedAt    *time.Time `gorm:"column:shipped_at"`
	DeliveredAt  *time.Time `gorm:"column:delivered_at"`
	CancelledAt  *time.Time `gorm:"column:cancelled_at"`
	RefundedAt   *time.Time `gorm:"column:refunded_at"`

	Notes *string `gorm:"column:notes;type:text"`

	Items  []OrderItem  `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Events []OrderEvent `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
