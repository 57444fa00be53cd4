package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateOrder       OutboxAggregateType = "order"
	AggregateRefund      OutboxAggregateType = "refund"
	AggregateDispute     OutboxAggregateType = "dispute"
	AggregateReservation OutboxAggregateType = "reservation"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateRefund,
	AggregateDispute,
	AggregateReservation,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventOrderCreated         OutboxEventType = "order_created"
	EventOrderStateChanged    OutboxEventType = "order_state_changed"
	EventOrderPaid            OutboxEventType = "order_paid"
	EventOrderCancelled       OutboxEventType = "order_cancelled"
	EventOrderRefunded        OutboxEventType = "order_refunded"
	EventRefundInitiated      OutboxEventType = "refund_initiated"
	EventRefundCompleted      OutboxEventType = "refund_completed"
	EventRefundFailed         OutboxEventType = "refund_failed"
	EventDisputeOpened        OutboxEventType = "dispute_opened"
	EventDisputeEscalated     OutboxEventType = "dispute_escalated"
	EventDisputeResolved      OutboxEventType = "dispute_resolved"
	EventDisputeClosed        OutboxEventType = "dispute_closed"
	EventReservationExpired   OutboxEventType = "reservation_expired"
	EventPaymentCaptured      OutboxEventType = "payment_captured"
	EventNotificationRequired OutboxEventType = "notification_required"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderStateChanged,
	EventOrderPaid,
	EventOrderCancelled,
	EventOrderRefunded,
	EventRefundInitiated,
	EventRefundCompleted,
	EventRefundFailed,
	EventDisputeOpened,
	EventDisputeEscalated,
	EventDisputeResolved,
	EventDisputeClosed,
	EventReservationExpired,
	EventPaymentCaptured,
	EventNotificationRequired,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
