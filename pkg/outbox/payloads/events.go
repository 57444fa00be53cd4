package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/mariselaquino/tradepost-backend/pkg/enums"
)

// OrderCreatedEvent signals a freshly checked-out pending order.
type OrderCreatedEvent struct {
	OrderID       uuid.UUID `json:"order_id"`
	UserID        uuid.UUID `json:"user_id"`
	VendorStoreID uuid.UUID `json:"vendor_store_id"`
	TotalCents    int       `json:"total_cents"`
	Currency      string    `json:"currency"`
}

// OrderStateChangedEvent is emitted on every successful lifecycle transition.
type OrderStateChangedEvent struct {
	OrderID        uuid.UUID         `json:"order_id"`
	UserID         uuid.UUID         `json:"user_id"`
	VendorStoreID  uuid.UUID         `json:"vendor_store_id"`
	PreviousStatus enums.OrderStatus `json:"previous_status"`
	NewStatus      enums.OrderStatus `json:"new_status"`
	ActorRole      enums.ActorRole   `json:"actor_role"`
	TransitionedAt time.Time         `json:"transitioned_at"`
}

// PaymentCapturedEvent reports a provider (or manual) capture against an order.
type PaymentCapturedEvent struct {
	OrderID       uuid.UUID `json:"order_id"`
	AmountCents   int       `json:"amount_cents"`
	CapturedCents int       `json:"captured_cents"`
	FinalCapture  bool      `json:"final_capture"`
	ProviderRef   string    `json:"provider_ref,omitempty"`
}

// RefundInitiatedEvent is queued when a pending refund row is created.
type RefundInitiatedEvent struct {
	RefundID    uuid.UUID `json:"refund_id"`
	OrderID     uuid.UUID `json:"order_id"`
	AmountCents int       `json:"amount_cents"`
	Reason      string    `json:"reason,omitempty"`
}

// RefundSettledEvent covers both completion and failure of refund processing.
type RefundSettledEvent struct {
	RefundID    uuid.UUID          `json:"refund_id"`
	OrderID     uuid.UUID          `json:"order_id"`
	AmountCents int                `json:"amount_cents"`
	Status      enums.RefundStatus `json:"status"`
	ProviderRef string             `json:"provider_ref,omitempty"`
	Failure     string             `json:"failure,omitempty"`
}

// DisputeLifecycleEvent covers dispute open/escalate/resolve/close.
type DisputeLifecycleEvent struct {
	DisputeID     uuid.UUID           `json:"dispute_id"`
	OrderID       uuid.UUID           `json:"order_id"`
	CustomerID    uuid.UUID           `json:"customer_id"`
	VendorStoreID uuid.UUID           `json:"vendor_store_id"`
	Status        enums.DisputeStatus `json:"status"`
	AutoEscalated bool                `json:"auto_escalated,omitempty"`
}

// ReservationExpiredEvent summarizes one expiry sweep run.
type ReservationExpiredEvent struct {
	ReservationID uuid.UUID `json:"reservation_id"`
	ProductID     uuid.UUID `json:"product_id"`
	Quantity      int       `json:"quantity"`
	ExpiredAt     time.Time `json:"expired_at"`
}
