package notifications

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mariselaquino/tradepost-backend/pkg/db/models"
	"github.com/mariselaquino/tradepost-backend/pkg/enums"
	"github.com/mariselaquino/tradepost-backend/pkg/outbox"
	"github.com/mariselaquino/tradepost-backend/pkg/outbox/payloads"
)

type fakeWriter struct {
	created []*models.Notification
	err     error
}

func (f *fakeWriter) Create(_ context.Context, notification *models.Notification) error {
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, notification)
	return nil
}

func envelopeWith(t *testing.T, payload any) outbox.PayloadEnvelope {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

func TestHandledEventFilter(t *testing.T) {
	t.Parallel()

	handled := []enums.OutboxEventType{
		enums.EventOrderStateChanged,
		enums.EventDisputeOpened,
		enums.EventDisputeEscalated,
		enums.EventDisputeResolved,
		enums.EventDisputeClosed,
	}
	for _, eventType := range handled {
		if !handledEvent(eventType) {
			t.Fatalf("expected %s to be handled", eventType)
		}
	}
	skipped := []enums.OutboxEventType{
		enums.EventOrderCreated,
		enums.EventRefundInitiated,
		enums.EventReservationExpired,
	}
	for _, eventType := range skipped {
		if handledEvent(eventType) {
			t.Fatalf("expected %s to be skipped", eventType)
		}
	}
}

func TestOrderStateChangedCreatesCustomerNotification(t *testing.T) {
	t.Parallel()

	writer := &fakeWriter{}
	consumer := &Consumer{repo: writer}
	userID := uuid.New()
	payload := payloads.OrderStateChangedEvent{
		OrderID:        uuid.New(),
		UserID:         userID,
		VendorStoreID:  uuid.New(),
		PreviousStatus: enums.OrderStatusProcessing,
		NewStatus:      enums.OrderStatusShipped,
		ActorRole:      enums.ActorRoleVendor,
	}

	if err := consumer.handleEnvelope(context.Background(), enums.EventOrderStateChanged, envelopeWith(t, payload)); err != nil {
		t.Fatalf("handle envelope: %v", err)
	}
	if len(writer.created) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(writer.created))
	}
	created := writer.created[0]
	if created.UserID != userID {
		t.Fatalf("notification targeted %s, want %s", created.UserID, userID)
	}
	if created.Type != enums.NotificationTypeOrderUpdate {
		t.Fatalf("unexpected type %s", created.Type)
	}
	if created.Title != "Order shipped" {
		t.Fatalf("unexpected title %q", created.Title)
	}
	if created.Link == nil {
		t.Fatal("expected link to order")
	}
}

func TestInternalTransitionsProduceNoNotification(t *testing.T) {
	t.Parallel()

	writer := &fakeWriter{}
	consumer := &Consumer{repo: writer}
	payload := payloads.OrderStateChangedEvent{
		OrderID:   uuid.New(),
		UserID:    uuid.New(),
		NewStatus: enums.OrderStatusConfirmed,
	}

	if err := consumer.handleEnvelope(context.Background(), enums.EventOrderStateChanged, envelopeWith(t, payload)); err != nil {
		t.Fatalf("handle envelope: %v", err)
	}
	if len(writer.created) != 0 {
		t.Fatalf("expected no notification for confirmed, got %d", len(writer.created))
	}
}

func TestDisputeLifecycleNotifiesCustomer(t *testing.T) {
	t.Parallel()

	writer := &fakeWriter{}
	consumer := &Consumer{repo: writer}
	customerID := uuid.New()
	payload := payloads.DisputeLifecycleEvent{
		DisputeID:  uuid.New(),
		OrderID:    uuid.New(),
		CustomerID: customerID,
		Status:     enums.DisputeStatusPendingAdminReview,
	}

	if err := consumer.handleEnvelope(context.Background(), enums.EventDisputeEscalated, envelopeWith(t, payload)); err != nil {
		t.Fatalf("handle envelope: %v", err)
	}
	if len(writer.created) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(writer.created))
	}
	created := writer.created[0]
	if created.UserID != customerID {
		t.Fatalf("notification targeted %s, want %s", created.UserID, customerID)
	}
	if created.Type != enums.NotificationTypeDisputeUpdate {
		t.Fatalf("unexpected type %s", created.Type)
	}
	if created.Title != "Dispute escalated" {
		t.Fatalf("unexpected title %q", created.Title)
	}
}

func TestOrderEventMissingUserFails(t *testing.T) {
	t.Parallel()

	consumer := &Consumer{repo: &fakeWriter{}}
	payload := payloads.OrderStateChangedEvent{
		OrderID:   uuid.New(),
		NewStatus: enums.OrderStatusPaid,
	}

	if err := consumer.handleEnvelope(context.Background(), enums.EventOrderStateChanged, envelopeWith(t, payload)); err == nil {
		t.Fatal("expected error for missing user id")
	}
}
