package payments

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mariselaquino/tradepost-backend/internal/orders"
	dbpkg "github.com/mariselaquino/tradepost-backend/pkg/db"
	"github.com/mariselaquino/tradepost-backend/pkg/db/models"
	"github.com/mariselaquino/tradepost-backend/pkg/enums"
	pkgerrors "github.com/mariselaquino/tradepost-backend/pkg/errors"
	"github.com/mariselaquino/tradepost-backend/pkg/outbox"
	"github.com/mariselaquino/tradepost-backend/pkg/square"
)

type stubProvider struct {
	paymentID   string
	createErr   error
	createCalls int
}

func (s *stubProvider) CreatePayment(ctx context.Context, params square.PaymentCreateParams) (*sq.Payment, error) {
	s.createCalls++
	if s.createErr != nil {
		return nil, s.createErr
	}
	id := s.paymentID
	return &sq.Payment{ID: &id}, nil
}

func (s *stubProvider) RefundPayment(ctx context.Context, params square.RefundCreateParams) (*sq.PaymentRefund, error) {
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "unexpected refund call")
}

type stubConsumer struct {
	consumed []uuid.UUID
}

func (s *stubConsumer) ConsumeOrderHoldsTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	s.consumed = append(s.consumed, orderID)
	return nil
}

type noopReleaser struct{}

func (noopReleaser) ReleaseOrderHoldsTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	return nil
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:payments_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(&models.Order{}, &models.OrderItem{}, &models.OrderEvent{}, &models.OutboxEvent{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func newTestService(t *testing.T, conn *gorm.DB, provider Provider) (Service, *stubConsumer) {
	t.Helper()
	runner := dbpkg.FromConn(conn)
	emitter := outbox.NewService(outbox.NewRepository(conn), nil)
	lifecycle, err := orders.NewService(orders.NewRepository(conn), runner, emitter, noopReleaser{})
	if err != nil {
		t.Fatalf("orders service: %v", err)
	}
	consumer := &stubConsumer{}
	svc, err := NewService(orders.NewRepository(conn), runner, provider, consumer, lifecycle, emitter)
	if err != nil {
		t.Fatalf("payments service: %v", err)
	}
	return svc, consumer
}

func seedOrder(t *testing.T, conn *gorm.DB, method enums.PaymentMethod, total int) *models.Order {
	t.Helper()
	order := &models.Order{
		ID:            uuid.New(),
		OrderNumber:   42,
		UserID:        uuid.New(),
		VendorStoreID: uuid.New(),
		Status:        enums.OrderStatusPending,
		PaymentStatus: enums.PaymentStatusPending,
		PaymentMethod: method,
		SubtotalCents: total,
		TotalCents:    total,
	}
	if err := conn.Create(order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return order
}

func loadOrder(t *testing.T, conn *gorm.DB, id uuid.UUID) *models.Order {
	t.Helper()
	var order models.Order
	if err := conn.First(&order, "id = ?", id).Error; err != nil {
		t.Fatalf("load order: %v", err)
	}
	return &order
}

func adminActor() orders.Actor {
	id := uuid.New()
	return orders.Actor{ID: &id, Role: enums.ActorRoleAdmin}
}

func TestFinalCaptureMarksPaidAndConsumesHolds(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	provider := &stubProvider{paymentID: "pay_abc"}
	svc, consumer := newTestService(t, conn, provider)
	order := seedOrder(t, conn, enums.PaymentMethodCard, 1500)

	captured, err := svc.CapturePayment(context.Background(), CaptureInput{
		OrderID:  order.ID,
		SourceID: "cnon:test",
		Actor:    adminActor(),
	})
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if captured.CapturedCents != 1500 {
		t.Fatalf("captured = %d, want 1500", captured.CapturedCents)
	}
	if captured.Status != enums.OrderStatusPaid {
		t.Fatalf("status = %s, want paid", captured.Status)
	}
	if captured.PaidAt == nil {
		t.Fatal("PaidAt not stamped")
	}

	stored := loadOrder(t, conn, order.ID)
	if stored.PaymentStatus != enums.PaymentStatusCompleted || !stored.FinalCaptured {
		t.Fatalf("payment not finalized: status=%s final=%v", stored.PaymentStatus, stored.FinalCaptured)
	}
	if stored.ProviderPaymentRef == nil || *stored.ProviderPaymentRef != "pay_abc" {
		t.Fatalf("provider ref = %v, want pay_abc", stored.ProviderPaymentRef)
	}
	if len(consumer.consumed) != 1 || consumer.consumed[0] != order.ID {
		t.Fatalf("holds not consumed: %v", consumer.consumed)
	}

	var count int64
	if err := conn.Model(&models.OutboxEvent{}).
		Where("event_type = ?", enums.EventPaymentCaptured).
		Count(&count).Error; err != nil {
		t.Fatalf("count outbox: %v", err)
	}
	if count != 1 {
		t.Fatalf("payment_captured events = %d, want 1", count)
	}
}

func TestPartialCaptureLeavesPaymentOpen(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc, consumer := newTestService(t, conn, &stubProvider{paymentID: "pay_1"})
	order := seedOrder(t, conn, enums.PaymentMethodCard, 1000)

	amount := 400
	captured, err := svc.CapturePayment(context.Background(), CaptureInput{
		OrderID:     order.ID,
		AmountCents: &amount,
		Actor:       adminActor(),
	})
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if captured.CapturedCents != 400 {
		t.Fatalf("captured = %d, want 400", captured.CapturedCents)
	}
	if captured.PaymentStatus == enums.PaymentStatusCompleted || captured.FinalCaptured {
		t.Fatal("partial capture must not finalize the payment")
	}
	if captured.Status != enums.OrderStatusPending {
		t.Fatalf("status = %s, want pending", captured.Status)
	}
	if len(consumer.consumed) != 0 {
		t.Fatal("holds consumed on partial capture")
	}
}

func TestPartialThenFinalCapture(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc, consumer := newTestService(t, conn, &stubProvider{paymentID: "pay_2"})
	order := seedOrder(t, conn, enums.PaymentMethodCard, 1000)
	ctx := context.Background()

	amount := 300
	if _, err := svc.CapturePayment(ctx, CaptureInput{OrderID: order.ID, AmountCents: &amount, Actor: adminActor()}); err != nil {
		t.Fatalf("first capture: %v", err)
	}
	captured, err := svc.CapturePayment(ctx, CaptureInput{OrderID: order.ID, Actor: adminActor()})
	if err != nil {
		t.Fatalf("second capture: %v", err)
	}
	if captured.CapturedCents != 1000 || !captured.FinalCaptured {
		t.Fatalf("capture not finalized: captured=%d final=%v", captured.CapturedCents, captured.FinalCaptured)
	}
	if captured.Status != enums.OrderStatusPaid {
		t.Fatalf("status = %s, want paid", captured.Status)
	}
	if len(consumer.consumed) != 1 {
		t.Fatalf("consume calls = %d, want 1", len(consumer.consumed))
	}
}

func TestCaptureExceedsOrderTotal(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc, _ := newTestService(t, conn, &stubProvider{paymentID: "pay_3"})
	order := seedOrder(t, conn, enums.PaymentMethodCard, 1000)
	ctx := context.Background()

	amount := 400
	if _, err := svc.CapturePayment(ctx, CaptureInput{OrderID: order.ID, AmountCents: &amount, Actor: adminActor()}); err != nil {
		t.Fatalf("partial capture: %v", err)
	}
	excess := 700
	_, err := svc.CapturePayment(ctx, CaptureInput{OrderID: order.ID, AmountCents: &excess, Actor: adminActor()})
	if !pkgerrors.HasCode(err, pkgerrors.CodeAmountExceedsOrderTotal) {
		t.Fatalf("err = %v, want AMOUNT_EXCEEDS_ORDER_TOTAL", err)
	}
	if got := loadOrder(t, conn, order.ID).CapturedCents; got != 400 {
		t.Fatalf("captured = %d, want 400", got)
	}
}

func TestCaptureAlreadyCaptured(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc, _ := newTestService(t, conn, &stubProvider{paymentID: "pay_4"})
	order := seedOrder(t, conn, enums.PaymentMethodCard, 1000)
	if err := conn.Model(order).Update("payment_status", enums.PaymentStatusCompleted).Error; err != nil {
		t.Fatalf("mark captured: %v", err)
	}

	_, err := svc.CapturePayment(context.Background(), CaptureInput{OrderID: order.ID, Actor: adminActor()})
	if !pkgerrors.HasCode(err, pkgerrors.CodePaymentAlreadyCaptured) {
		t.Fatalf("err = %v, want PAYMENT_ALREADY_CAPTURED", err)
	}
}

func TestCaptureValidation(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc, _ := newTestService(t, conn, &stubProvider{paymentID: "pay_5"})
	order := seedOrder(t, conn, enums.PaymentMethodCard, 1000)
	ctx := context.Background()

	zero := 0
	if _, err := svc.CapturePayment(ctx, CaptureInput{OrderID: order.ID, AmountCents: &zero, Actor: adminActor()}); !pkgerrors.HasCode(err, pkgerrors.CodeAmountNotPositive) {
		t.Fatalf("zero amount err = %v, want AMOUNT_NOT_POSITIVE", err)
	}
	negative := -100
	if _, err := svc.CapturePayment(ctx, CaptureInput{OrderID: order.ID, AmountCents: &negative, Actor: adminActor()}); !pkgerrors.HasCode(err, pkgerrors.CodeAmountNotPositive) {
		t.Fatalf("negative amount err = %v, want AMOUNT_NOT_POSITIVE", err)
	}
	if _, err := svc.CapturePayment(ctx, CaptureInput{OrderID: uuid.New(), Actor: adminActor()}); !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("unknown order err = %v, want NOT_FOUND", err)
	}
}

func TestManualCaptureSkipsProvider(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	provider := &stubProvider{createErr: pkgerrors.New(pkgerrors.CodeProviderFailure, "gateway down")}
	svc, _ := newTestService(t, conn, provider)
	order := seedOrder(t, conn, enums.PaymentMethodCashOnDelivery, 800)

	captured, err := svc.CapturePayment(context.Background(), CaptureInput{OrderID: order.ID, Actor: adminActor()})
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if provider.createCalls != 0 {
		t.Fatal("gateway called for manual payment method")
	}
	if captured.ProviderPaymentRef == nil || !strings.HasPrefix(*captured.ProviderPaymentRef, "manual-") {
		t.Fatalf("provider ref = %v, want manual sentinel", captured.ProviderPaymentRef)
	}
	if captured.Status != enums.OrderStatusPaid {
		t.Fatalf("status = %s, want paid", captured.Status)
	}
}

func TestProviderFailureRollsBack(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	provider := &stubProvider{createErr: pkgerrors.New(pkgerrors.CodeProviderFailure, "gateway down")}
	svc, consumer := newTestService(t, conn, provider)
	order := seedOrder(t, conn, enums.PaymentMethodCard, 1000)

	_, err := svc.CapturePayment(context.Background(), CaptureInput{OrderID: order.ID, Actor: adminActor()})
	if !pkgerrors.HasCode(err, pkgerrors.CodeProviderFailure) {
		t.Fatalf("err = %v, want PROVIDER_FAILURE", err)
	}

	stored := loadOrder(t, conn, order.ID)
	if stored.CapturedCents != 0 || stored.PaymentStatus != enums.PaymentStatusPending {
		t.Fatalf("capture state leaked: captured=%d status=%s", stored.CapturedCents, stored.PaymentStatus)
	}
	if len(consumer.consumed) != 0 {
		t.Fatal("holds consumed despite provider failure")
	}

	var count int64
	if err := conn.Model(&models.OutboxEvent{}).Count(&count).Error; err != nil {
		t.Fatalf("count outbox: %v", err)
	}
	if count != 0 {
		t.Fatalf("outbox rows = %d, want 0", count)
	}
}

// racingCaptureRepo simulates a competing capture committing between this
// capture's read and its write: the first FindByID returns a snapshot that
// is immediately made stale.
type racingCaptureRepo struct {
	orders.Repository
	raced *bool
}

func (r *racingCaptureRepo) WithTx(tx *gorm.DB) orders.Repository {
	return &racingCaptureRepo{Repository: r.Repository.WithTx(tx), raced: r.raced}
}

func (r *racingCaptureRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := r.Repository.FindByID(ctx, id)
	if err != nil || *r.raced {
		return order, err
	}
	*r.raced = true
	if err := r.Repository.Update(ctx, id, map[string]any{"captured_cents": order.CapturedCents + 250}); err != nil {
		return nil, err
	}
	return order, nil
}

func TestCapturePaymentConflictsOnConcurrentCapture(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	runner := dbpkg.FromConn(conn)
	emitter := outbox.NewService(outbox.NewRepository(conn), nil)
	lifecycle, err := orders.NewService(orders.NewRepository(conn), runner, emitter, noopReleaser{})
	if err != nil {
		t.Fatalf("orders service: %v", err)
	}
	raced := false
	repo := &racingCaptureRepo{Repository: orders.NewRepository(conn), raced: &raced}
	svc, err := NewService(repo, runner, &stubProvider{paymentID: "pay_race"}, &stubConsumer{}, lifecycle, emitter)
	if err != nil {
		t.Fatalf("payments service: %v", err)
	}
	ctx := context.Background()

	order := seedOrder(t, conn, enums.PaymentMethodCashOnDelivery, 1000)

	amount := 100
	if _, err := svc.CapturePayment(ctx, CaptureInput{OrderID: order.ID, AmountCents: &amount, Actor: adminActor()}); !pkgerrors.HasCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("capture err = %v, want CONFLICT", err)
	}

	// The whole attempt rolls back: neither the stale 100 nor a payment
	// status change may land.
	stored := loadOrder(t, conn, order.ID)
	if stored.CapturedCents != 0 {
		t.Fatalf("captured_cents = %d, want 0 after rollback", stored.CapturedCents)
	}
	if stored.PaymentStatus != enums.PaymentStatusPending {
		t.Fatalf("payment status = %s, want pending", stored.PaymentStatus)
	}
}
