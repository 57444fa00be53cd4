package orders

import (
	"github.com/mariselaquino/tradepost-backend/pkg/enums"
)

// allowedTransitions is the full lifecycle graph. Cancellation is reachable
// from every non-terminal state except delivered; delivered can only move to
// refunded; cancelled and refunded are terminal.
var allowedTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending:    {enums.OrderStatusPaid, enums.OrderStatusCancelled},
	enums.OrderStatusPaid:       {enums.OrderStatusConfirmed, enums.OrderStatusCancelled, enums.OrderStatusRefunded},
	enums.OrderStatusConfirmed:  {enums.OrderStatusProcessing, enums.OrderStatusCancelled},
	enums.OrderStatusProcessing: {enums.OrderStatusFulfilled, enums.OrderStatusCancelled},
	enums.OrderStatusFulfilled:  {enums.OrderStatusShipped, enums.OrderStatusCancelled},
	enums.OrderStatusShipped:    {enums.OrderStatusDelivered, enums.OrderStatusCancelled},
	enums.OrderStatusDelivered:  {enums.OrderStatusRefunded},
	enums.OrderStatusCancelled:  {},
	enums.OrderStatusRefunded:   {},
}

// CanTransition reports whether the lifecycle graph allows moving from
// current to target.
func CanTransition(current, target enums.OrderStatus) bool {
	for _, allowed := range allowedTransitions[current] {
		if allowed == target {
			return true
		}
	}
	return false
}

// AllowedTargets returns the targets reachable from current.
func AllowedTargets(current enums.OrderStatus) []enums.OrderStatus {
	targets := allowedTransitions[current]
	out := make([]enums.OrderStatus, len(targets))
	copy(out, targets)
	return out
}

// timestampColumn maps each reachable status to the column stamped on a
// successful transition into it.
func timestampColumn(status enums.OrderStatus) string {
	switch status {
	case enums.OrderStatusPaid:
		return "paid_at"
	case enums.OrderStatusConfirmed:
		return "confirmed_at"
	case enums.OrderStatusProcessing:
		return "processing_at"
	case enums.OrderStatusFulfilled:
		return "fulfilled_at"
	case enums.OrderStatusShipped:
		return "shipped_at"
	case enums.OrderStatusDelivered:
		return "delivered_at"
	case enums.OrderStatusCancelled:
		return "cancelled_at"
	case enums.OrderStatusRefunded:
		return "refunded_at"
	default:
		return ""
	}
}
