package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/mariselaquino/tradepost-backend/pkg/db/models"
	"github.com/mariselaquino/tradepost-backend/pkg/enums"
	"github.com/mariselaquino/tradepost-backend/pkg/logger"
	"github.com/mariselaquino/tradepost-backend/pkg/outbox"
	"github.com/mariselaquino/tradepost-backend/pkg/outbox/payloads"
)

const lifecycleNotificationsConsumer = "lifecycle-notifications"

type notificationWriter interface {
	Create(ctx context.Context, notification *models.Notification) error
}

type idempotencyGuard interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// Consumer watches domain events and turns order and dispute lifecycle
// changes into in-app notifications for the affected customer.
type Consumer struct {
	repo         notificationWriter
	subscription *pubsub.Subscriber
	idempotency  idempotencyGuard
	logg         *logger.Logger
}

// NewConsumer builds a lifecycle notification consumer.
func NewConsumer(repo notificationWriter, subscription *pubsub.Subscriber, guard idempotencyGuard, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("notifications subscription required")
	}
	if guard == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		repo:         repo,
		subscription: subscription,
		idempotency:  guard,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := enums.OutboxEventType(strings.TrimSpace(msg.Attributes["event_type"]))
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	if !handledEvent(eventType) {
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, lifecycleNotificationsConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	if err := c.handleEnvelope(ctx, eventType, envelope); err != nil {
		c.logg.Error(logCtx, "notification handling failed", err)
		_ = c.idempotency.Delete(ctx, lifecycleNotificationsConsumer, eventID)
		return processResult{nack: true}
	}

	return processResult{ack: true}
}

func handledEvent(eventType enums.OutboxEventType) bool {
	switch eventType {
	case enums.EventOrderStateChanged,
		enums.EventDisputeOpened,
		enums.EventDisputeEscalated,
		enums.EventDisputeResolved,
		enums.EventDisputeClosed:
		return true
	default:
		return false
	}
}

func (c *Consumer) handleEnvelope(ctx context.Context, eventType enums.OutboxEventType, envelope outbox.PayloadEnvelope) error {
	switch eventType {
	case enums.EventOrderStateChanged:
		var payload payloads.OrderStateChangedEvent
		if err := json.Unmarshal(envelope.Data, &payload); err != nil {
			return fmt.Errorf("decode order payload: %w", err)
		}
		return c.notifyOrderStateChanged(ctx, payload)
	default:
		var payload payloads.DisputeLifecycleEvent
		if err := json.Unmarshal(envelope.Data, &payload); err != nil {
			return fmt.Errorf("decode dispute payload: %w", err)
		}
		return c.notifyDisputeLifecycle(ctx, eventType, payload)
	}
}

func (c *Consumer) notifyOrderStateChanged(ctx context.Context, payload payloads.OrderStateChangedEvent) error {
	if payload.UserID == uuid.Nil {
		return fmt.Errorf("order event missing user id")
	}
	title, message := orderStateCopy(payload)
	if title == "" {
		return nil
	}
	link := fmt.Sprintf("/orders/%s", payload.OrderID)
	return c.repo.Create(ctx, &models.Notification{
		ID:      uuid.New(),
		UserID:  payload.UserID,
		Type:    enums.NotificationTypeOrderUpdate,
		Title:   title,
		Message: message,
		Link:    &link,
	})
}

// orderStateCopy maps a transition to customer-facing copy. Internal
// fulfilment steps produce no notification.
func orderStateCopy(payload payloads.OrderStateChangedEvent) (string, string) {
	short := shortID(payload.OrderID)
	switch payload.NewStatus {
	case enums.OrderStatusPaid:
		return "Payment received", fmt.Sprintf("Payment for order %s has been received.", short)
	case enums.OrderStatusShipped:
		return "Order shipped", fmt.Sprintf("Order %s is on its way.", short)
	case enums.OrderStatusDelivered:
		return "Order delivered", fmt.Sprintf("Order %s has been delivered.", short)
	case enums.OrderStatusCancelled:
		return "Order cancelled", fmt.Sprintf("Order %s has been cancelled.", short)
	case enums.OrderStatusRefunded:
		return "Order refunded", fmt.Sprintf("Order %s has been refunded in full.", short)
	default:
		return "", ""
	}
}

func (c *Consumer) notifyDisputeLifecycle(ctx context.Context, eventType enums.OutboxEventType, payload payloads.DisputeLifecycleEvent) error {
	if payload.CustomerID == uuid.Nil {
		return fmt.Errorf("dispute event missing customer id")
	}
	short := shortID(payload.DisputeID)
	var title, message string
	switch eventType {
	case enums.EventDisputeOpened:
		title = "Dispute filed"
		message = fmt.Sprintf("Dispute %s has been filed and sent to the vendor.", short)
	case enums.EventDisputeEscalated:
		title = "Dispute escalated"
		message = fmt.Sprintf("Dispute %s has been escalated for admin review.", short)
	case enums.EventDisputeResolved:
		title = "Dispute resolved"
		message = fmt.Sprintf("Dispute %s has been resolved.", short)
	case enums.EventDisputeClosed:
		title = "Dispute closed"
		message = fmt.Sprintf("Dispute %s has been closed.", short)
	default:
		return nil
	}
	link := fmt.Sprintf("/disputes/%s", payload.DisputeID)
	return c.repo.Create(ctx, &models.Notification{
		ID:      uuid.New(),
		UserID:  payload.CustomerID,
		Type:    enums.NotificationTypeDisputeUpdate,
		Title:   title,
		Message: message,
		Link:    &link,
	})
}

func shortID(id uuid.UUID) string {
	s := id.String()
	if len(s) >= 8 {
		return s[:8]
	}
	return s
}
