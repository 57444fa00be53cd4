package disputes

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mariselaquino/tradepost-backend/internal/orders"
	dbpkg "github.com/mariselaquino/tradepost-backend/pkg/db"
	"github.com/mariselaquino/tradepost-backend/pkg/db/models"
	"github.com/mariselaquino/tradepost-backend/pkg/enums"
	pkgerrors "github.com/mariselaquino/tradepost-backend/pkg/errors"
	"github.com/mariselaquino/tradepost-backend/pkg/logger"
	"github.com/mariselaquino/tradepost-backend/pkg/outbox"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:disputes_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(
		&models.Order{}, &models.OrderItem{}, &models.Dispute{}, &models.DisputeMessage{}, &models.OutboxEvent{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func newTestService(t *testing.T, conn *gorm.DB) Service {
	t.Helper()
	emitter := outbox.NewService(outbox.NewRepository(conn), nil)
	logg := logger.New(logger.Options{ServiceName: "disputes-test", Output: io.Discard})
	svc, err := NewService(NewRepository(conn), orders.NewRepository(conn), dbpkg.FromConn(conn), emitter, logg, 0, 0)
	if err != nil {
		t.Fatalf("disputes service: %v", err)
	}
	return svc
}

func seedDeliveredOrder(t *testing.T, conn *gorm.DB, deliveredAgo time.Duration) *models.Order {
	t.Helper()
	deliveredAt := time.Now().Add(-deliveredAgo)
	order := &models.Order{
		ID:            uuid.New(),
		OrderNumber:   11,
		UserID:        uuid.New(),
		VendorStoreID: uuid.New(),
		Status:        enums.OrderStatusDelivered,
		PaymentStatus: enums.PaymentStatusCompleted,
		PaymentMethod: enums.PaymentMethodCard,
		SubtotalCents: 500,
		TotalCents:    500,
		DeliveredAt:   &deliveredAt,
	}
	if err := conn.Create(order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return order
}

func buyerOf(order *models.Order) Actor {
	id := order.UserID
	return Actor{ID: &id, Role: enums.ActorRoleCustomer}
}

func vendorOf(order *models.Order) Actor {
	id := uuid.New()
	store := order.VendorStoreID
	return Actor{ID: &id, StoreID: &store, Role: enums.ActorRoleVendor}
}

func admin() Actor {
	id := uuid.New()
	return Actor{ID: &id, Role: enums.ActorRoleAdmin}
}

func fileDispute(t *testing.T, svc Service, order *models.Order) *models.Dispute {
	t.Helper()
	dispute, err := svc.File(context.Background(), FileInput{
		OrderID:     order.ID,
		Type:        enums.DisputeTypeDamaged,
		Description: "arrived cracked",
		Actor:       buyerOf(order),
	})
	if err != nil {
		t.Fatalf("file dispute: %v", err)
	}
	return dispute
}

func TestFileDispute(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	order := seedDeliveredOrder(t, conn, 2*24*time.Hour)

	dispute := fileDispute(t, svc, order)
	if dispute.Status != enums.DisputeStatusPendingVendorResponse {
		t.Fatalf("status = %s, want pending_vendor_response", dispute.Status)
	}
	if dispute.VendorRespondBy == nil {
		t.Fatal("VendorRespondBy not set")
	}
	deadline := time.Until(*dispute.VendorRespondBy)
	if deadline < 71*time.Hour || deadline > 73*time.Hour {
		t.Fatalf("vendor deadline %v, want ~72h", deadline)
	}
	if dispute.CustomerID != order.UserID || dispute.VendorStoreID != order.VendorStoreID {
		t.Fatal("dispute parties not copied from order")
	}

	var count int64
	if err := conn.Model(&models.OutboxEvent{}).
		Where("event_type = ?", enums.EventDisputeOpened).
		Count(&count).Error; err != nil {
		t.Fatalf("count outbox: %v", err)
	}
	if count != 1 {
		t.Fatalf("dispute_opened events = %d, want 1", count)
	}
}

func TestFileDisputeValidations(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()

	stranger := uuid.New()
	order := seedDeliveredOrder(t, conn, time.Hour)
	if _, err := svc.File(ctx, FileInput{
		OrderID: order.ID, Type: enums.DisputeTypeDamaged, Description: "x",
		Actor: Actor{ID: &stranger, Role: enums.ActorRoleCustomer},
	}); !pkgerrors.HasCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("stranger err = %v, want FORBIDDEN", err)
	}

	if _, err := svc.File(ctx, FileInput{
		OrderID: uuid.New(), Type: enums.DisputeTypeDamaged, Description: "x", Actor: buyerOf(order),
	}); !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("unknown order err = %v, want NOT_FOUND", err)
	}

	undelivered := seedDeliveredOrder(t, conn, time.Hour)
	if err := conn.Model(undelivered).Updates(map[string]any{"status": enums.OrderStatusShipped, "delivered_at": nil}).Error; err != nil {
		t.Fatalf("downgrade order: %v", err)
	}
	if _, err := svc.File(ctx, FileInput{
		OrderID: undelivered.ID, Type: enums.DisputeTypeDamaged, Description: "x", Actor: buyerOf(undelivered),
	}); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("undelivered err = %v, want VALIDATION", err)
	}

	stale := seedDeliveredOrder(t, conn, 31*24*time.Hour)
	if _, err := svc.File(ctx, FileInput{
		OrderID: stale.ID, Type: enums.DisputeTypeDamaged, Description: "x", Actor: buyerOf(stale),
	}); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("stale delivery err = %v, want VALIDATION (window passed)", err)
	}

	fresh := seedDeliveredOrder(t, conn, time.Hour)
	fileDispute(t, svc, fresh)
	if _, err := svc.File(ctx, FileInput{
		OrderID: fresh.ID, Type: enums.DisputeTypeOther, Description: "y", Actor: buyerOf(fresh),
	}); !pkgerrors.HasCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("duplicate err = %v, want CONFLICT", err)
	}
}

func TestVendorReplyReopensDispute(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	order := seedDeliveredOrder(t, conn, time.Hour)
	dispute := fileDispute(t, svc, order)

	msg, err := svc.AddMessage(ctx, MessageInput{DisputeID: dispute.ID, Body: "we will reship", Actor: vendorOf(order)})
	if err != nil {
		t.Fatalf("vendor message: %v", err)
	}
	if msg.Role != enums.ActorRoleVendor || msg.IsSystem {
		t.Fatalf("message attribution wrong: %+v", msg)
	}

	reloaded, err := svc.Get(ctx, dispute.ID, admin())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if reloaded.Status != enums.DisputeStatusOpen {
		t.Fatalf("status = %s, want open after vendor reply", reloaded.Status)
	}
	if reloaded.VendorRespondBy != nil {
		t.Fatal("VendorRespondBy should be cleared after vendor reply")
	}
	if len(reloaded.Messages) != 1 {
		t.Fatalf("messages = %d, want 1", len(reloaded.Messages))
	}
}

func TestCustomerMessageKeepsVendorDeadline(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	order := seedDeliveredOrder(t, conn, time.Hour)
	dispute := fileDispute(t, svc, order)

	if _, err := svc.AddMessage(ctx, MessageInput{DisputeID: dispute.ID, Body: "any update?", Actor: buyerOf(order)}); err != nil {
		t.Fatalf("customer message: %v", err)
	}

	reloaded, err := svc.Get(ctx, dispute.ID, buyerOf(order))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if reloaded.Status != enums.DisputeStatusPendingVendorResponse || reloaded.VendorRespondBy == nil {
		t.Fatalf("customer message must not satisfy vendor SLA: %s", reloaded.Status)
	}
}

func TestDisputeAccessControl(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	order := seedDeliveredOrder(t, conn, time.Hour)
	dispute := fileDispute(t, svc, order)

	strangerID := uuid.New()
	if _, err := svc.Get(ctx, dispute.ID, Actor{ID: &strangerID, Role: enums.ActorRoleCustomer}); !pkgerrors.HasCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("stranger customer err = %v, want FORBIDDEN", err)
	}

	otherStore := uuid.New()
	if _, err := svc.Get(ctx, dispute.ID, Actor{ID: &strangerID, StoreID: &otherStore, Role: enums.ActorRoleVendor}); !pkgerrors.HasCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("other vendor err = %v, want FORBIDDEN", err)
	}

	for _, actor := range []Actor{buyerOf(order), vendorOf(order), admin()} {
		if _, err := svc.Get(ctx, dispute.ID, actor); err != nil {
			t.Fatalf("participant %s denied: %v", actor.Role, err)
		}
	}
}

func TestEscalateAndResolve(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	order := seedDeliveredOrder(t, conn, time.Hour)
	dispute := fileDispute(t, svc, order)

	escalated, err := svc.Escalate(ctx, dispute.ID, buyerOf(order))
	if err != nil {
		t.Fatalf("escalate: %v", err)
	}
	if escalated.Status != enums.DisputeStatusPendingAdminReview || escalated.EscalatedAt == nil {
		t.Fatalf("escalation not recorded: %+v", escalated)
	}

	if _, err := svc.Escalate(ctx, dispute.ID, buyerOf(order)); !pkgerrors.HasCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("double escalate err = %v, want CONFLICT", err)
	}

	if _, err := svc.Resolve(ctx, ResolveInput{DisputeID: dispute.ID, Resolution: "refund issued", Actor: vendorOf(order)}); !pkgerrors.HasCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("vendor resolve err = %v, want FORBIDDEN", err)
	}

	adm := admin()
	resolved, err := svc.Resolve(ctx, ResolveInput{DisputeID: dispute.ID, Resolution: "refund issued", Actor: adm})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.Status != enums.DisputeStatusResolved || resolved.Resolution == nil || resolved.ResolvedBy == nil || resolved.ResolvedAt == nil {
		t.Fatalf("resolution not recorded: %+v", resolved)
	}
	if *resolved.ResolvedBy != *adm.ID {
		t.Fatal("ResolvedBy should be the acting admin")
	}
}

func TestCloseDispute(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	order := seedDeliveredOrder(t, conn, time.Hour)
	dispute := fileDispute(t, svc, order)

	if _, err := svc.Close(ctx, dispute.ID, vendorOf(order)); !pkgerrors.HasCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("vendor close err = %v, want FORBIDDEN", err)
	}

	closed, err := svc.Close(ctx, dispute.ID, buyerOf(order))
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if closed.Status != enums.DisputeStatusClosed || closed.ClosedAt == nil {
		t.Fatalf("close not recorded: %+v", closed)
	}

	// Closing again is a no-op.
	if _, err := svc.Close(ctx, dispute.ID, buyerOf(order)); err != nil {
		t.Fatalf("repeat close: %v", err)
	}

	if _, err := svc.AddMessage(ctx, MessageInput{DisputeID: dispute.ID, Body: "hello?", Actor: buyerOf(order)}); !pkgerrors.HasCode(err, pkgerrors.CodeDisputeClosed) {
		t.Fatalf("message after close err = %v, want DISPUTE_CLOSED", err)
	}
	if _, err := svc.Escalate(ctx, dispute.ID, buyerOf(order)); !pkgerrors.HasCode(err, pkgerrors.CodeDisputeClosed) {
		t.Fatalf("escalate after close err = %v, want DISPUTE_CLOSED", err)
	}
}

func TestSweepVendorSLA(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	order := seedDeliveredOrder(t, conn, 4*24*time.Hour)
	dispute := fileDispute(t, svc, order)

	// Push the deadline 1h into the past, as if 73h elapsed with no reply.
	breachedAt := time.Now().Add(-time.Hour)
	if err := conn.Model(&models.Dispute{}).
		Where("id = ?", dispute.ID).
		Update("vendor_respond_by", breachedAt).Error; err != nil {
		t.Fatalf("age deadline: %v", err)
	}

	escalated, err := svc.SweepVendorSLA(ctx, 10)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if escalated != 1 {
		t.Fatalf("escalated = %d, want 1", escalated)
	}

	reloaded, err := svc.Get(ctx, dispute.ID, admin())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if reloaded.Status != enums.DisputeStatusPendingAdminReview {
		t.Fatalf("status = %s, want pending_admin_review", reloaded.Status)
	}
	if len(reloaded.Messages) != 1 {
		t.Fatalf("messages = %d, want exactly 1 system message", len(reloaded.Messages))
	}
	system := reloaded.Messages[0]
	if !system.IsSystem || system.SenderID != nil || system.Role != enums.ActorRoleSystem {
		t.Fatalf("system message attribution wrong: %+v", system)
	}

	// A second sweep finds nothing and appends nothing.
	again, err := svc.SweepVendorSLA(ctx, 10)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if again != 0 {
		t.Fatalf("second sweep escalated = %d, want 0", again)
	}
	reloaded, _ = svc.Get(ctx, dispute.ID, admin())
	if len(reloaded.Messages) != 1 {
		t.Fatalf("messages after rerun = %d, want still 1", len(reloaded.Messages))
	}
}
