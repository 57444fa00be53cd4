package inventory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	dbpkg "github.com/mariselaquino/tradepost-backend/pkg/db"
	"github.com/mariselaquino/tradepost-backend/pkg/db/models"
	"github.com/mariselaquino/tradepost-backend/pkg/enums"
	pkgerrors "github.com/mariselaquino/tradepost-backend/pkg/errors"
	"github.com/mariselaquino/tradepost-backend/pkg/outbox"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:inventory_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(&models.InventoryItem{}, &models.InventoryReservation{}, &models.OutboxEvent{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func newTestService(t *testing.T, conn *gorm.DB) Service {
	t.Helper()
	client := dbpkg.FromConn(conn)
	emitter := outbox.NewService(outbox.NewRepository(conn), nil)
	svc, err := NewService(NewRepository(conn), client, emitter, nil, 0)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func seedItem(t *testing.T, conn *gorm.DB, productID uuid.UUID, available int) {
	t.Helper()
	if err := conn.Create(&models.InventoryItem{ProductID: productID, AvailableQty: available}).Error; err != nil {
		t.Fatalf("seed inventory: %v", err)
	}
}

func loadItem(t *testing.T, conn *gorm.DB, productID uuid.UUID) models.InventoryItem {
	t.Helper()
	var item models.InventoryItem
	if err := conn.First(&item, "product_id = ?", productID).Error; err != nil {
		t.Fatalf("load inventory: %v", err)
	}
	return item
}

func expireReservation(t *testing.T, conn *gorm.DB, id uuid.UUID) {
	t.Helper()
	past := time.Now().Add(-time.Minute)
	if err := conn.Model(&models.InventoryReservation{}).Where("id = ?", id).Update("expires_at", past).Error; err != nil {
		t.Fatalf("expire reservation: %v", err)
	}
}

func TestReserve(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	product := uuid.New()
	seedItem(t, conn, product, 5)

	reservation, err := svc.Reserve(ctx, ReserveInput{ProductID: product, Quantity: 3, RequestedBy: uuid.New()})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if reservation.Status != enums.ReservationStatusActive {
		t.Fatalf("expected active reservation, got %s", reservation.Status)
	}
	if remaining := time.Until(reservation.ExpiresAt); remaining < 14*time.Minute || remaining > 16*time.Minute {
		t.Fatalf("unexpected expiry window: %s", remaining)
	}

	item := loadItem(t, conn, product)
	if item.AvailableQty != 2 || item.ReservedQty != 3 {
		t.Fatalf("unexpected counters: %+v", item)
	}
}

func TestReserveInsufficientStock(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	product := uuid.New()
	seedItem(t, conn, product, 10)

	// Two competing 6-unit holds against 10 in stock: exactly one wins.
	first, err := svc.Reserve(ctx, ReserveInput{ProductID: product, Quantity: 6, RequestedBy: uuid.New()})
	if err != nil {
		t.Fatalf("first reserve: %v", err)
	}
	if first == nil {
		t.Fatal("expected first reservation")
	}

	_, err = svc.Reserve(ctx, ReserveInput{ProductID: product, Quantity: 6, RequestedBy: uuid.New()})
	if !pkgerrors.HasCode(err, pkgerrors.CodeInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}

	item := loadItem(t, conn, product)
	if item.AvailableQty != 4 || item.ReservedQty != 6 {
		t.Fatalf("counters mutated by failed reserve: %+v", item)
	}
}

func TestReserveConcurrentHoldsNeverOversell(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	// A single connection keeps sqlite from rejecting simultaneous writers;
	// the availability guard still decides which holds win.
	sqlDB.SetMaxOpenConns(1)

	svc := newTestService(t, conn)
	ctx := context.Background()
	product := uuid.New()
	const (
		stock   = 10
		workers = 8
		qty     = 3
	)
	seedItem(t, conn, product, stock)

	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Reserve(ctx, ReserveInput{ProductID: product, Quantity: qty, RequestedBy: uuid.New()})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	successes := 0
	for err := range errs {
		switch {
		case err == nil:
			successes++
		case pkgerrors.HasCode(err, pkgerrors.CodeInsufficientStock):
		default:
			t.Fatalf("unexpected reserve error: %v", err)
		}
	}
	if successes*qty > stock {
		t.Fatalf("oversold: %d holds of %d against %d in stock", successes, qty, stock)
	}
	if want := stock / qty; successes != want {
		t.Fatalf("expected %d winning holds, got %d", want, successes)
	}

	item := loadItem(t, conn, product)
	if item.ReservedQty != successes*qty || item.AvailableQty != stock-successes*qty {
		t.Fatalf("counters disagree with %d winning holds: %+v", successes, item)
	}
}

func TestReserveValidation(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()

	_, err := svc.Reserve(ctx, ReserveInput{ProductID: uuid.New(), Quantity: 0})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	_, err = svc.Reserve(ctx, ReserveInput{ProductID: uuid.New(), Quantity: 1})
	if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestReleaseIdempotent(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	product := uuid.New()
	seedItem(t, conn, product, 5)

	reservation, err := svc.Reserve(ctx, ReserveInput{ProductID: product, Quantity: 4, RequestedBy: uuid.New()})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := svc.Release(ctx, reservation.ID); err != nil {
			t.Fatalf("release attempt %d: %v", i+1, err)
		}
	}

	item := loadItem(t, conn, product)
	if item.AvailableQty != 5 || item.ReservedQty != 0 {
		t.Fatalf("double release leaked stock: %+v", item)
	}
}

func TestConsume(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	product := uuid.New()
	seedItem(t, conn, product, 5)

	reservation, err := svc.Reserve(ctx, ReserveInput{ProductID: product, Quantity: 2, RequestedBy: uuid.New()})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	if err := svc.Consume(ctx, reservation.ID); err != nil {
		t.Fatalf("consume: %v", err)
	}
	// Consumed units never return to available.
	item := loadItem(t, conn, product)
	if item.AvailableQty != 3 || item.ReservedQty != 0 || item.CommittedQty != 2 {
		t.Fatalf("unexpected counters after consume: %+v", item)
	}

	if err := svc.Consume(ctx, reservation.ID); err != nil {
		t.Fatalf("second consume should be a no-op, got %v", err)
	}
	item = loadItem(t, conn, product)
	if item.CommittedQty != 2 {
		t.Fatalf("double consume moved stock twice: %+v", item)
	}
}

func TestConsumeReleasedReservation(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	product := uuid.New()
	seedItem(t, conn, product, 5)

	reservation, err := svc.Reserve(ctx, ReserveInput{ProductID: product, Quantity: 2, RequestedBy: uuid.New()})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := svc.Release(ctx, reservation.ID); err != nil {
		t.Fatalf("release: %v", err)
	}

	err = svc.Consume(ctx, reservation.ID)
	if !pkgerrors.HasCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestReserveFoldsBackExpiredHolds(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	product := uuid.New()
	seedItem(t, conn, product, 5)

	stale, err := svc.Reserve(ctx, ReserveInput{ProductID: product, Quantity: 5, RequestedBy: uuid.New()})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	expireReservation(t, conn, stale.ID)

	// Availability is re-derived from now even though no sweep has run.
	fresh, err := svc.Reserve(ctx, ReserveInput{ProductID: product, Quantity: 4, RequestedBy: uuid.New()})
	if err != nil {
		t.Fatalf("reserve after expiry: %v", err)
	}
	if fresh.Status != enums.ReservationStatusActive {
		t.Fatalf("expected active reservation, got %s", fresh.Status)
	}

	var reloaded models.InventoryReservation
	if err := conn.First(&reloaded, "id = ?", stale.ID).Error; err != nil {
		t.Fatalf("reload stale: %v", err)
	}
	if reloaded.Status != enums.ReservationStatusReleased {
		t.Fatalf("expired hold not released: %s", reloaded.Status)
	}

	item := loadItem(t, conn, product)
	if item.AvailableQty != 1 || item.ReservedQty != 4 {
		t.Fatalf("unexpected counters: %+v", item)
	}
}

func TestSweepExpired(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	product := uuid.New()
	seedItem(t, conn, product, 10)

	first, err := svc.Reserve(ctx, ReserveInput{ProductID: product, Quantity: 3, RequestedBy: uuid.New()})
	if err != nil {
		t.Fatalf("reserve first: %v", err)
	}
	second, err := svc.Reserve(ctx, ReserveInput{ProductID: product, Quantity: 2, RequestedBy: uuid.New()})
	if err != nil {
		t.Fatalf("reserve second: %v", err)
	}
	expireReservation(t, conn, first.ID)
	expireReservation(t, conn, second.ID)

	released, err := svc.SweepExpired(ctx, 0)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if released != 2 {
		t.Fatalf("expected 2 released, got %d", released)
	}

	item := loadItem(t, conn, product)
	if item.AvailableQty != 10 || item.ReservedQty != 0 {
		t.Fatalf("sweep left counters dirty: %+v", item)
	}

	var eventCount int64
	if err := conn.Model(&models.OutboxEvent{}).Where("event_type = ?", enums.EventReservationExpired).Count(&eventCount).Error; err != nil {
		t.Fatalf("count events: %v", err)
	}
	if eventCount != 2 {
		t.Fatalf("expected 2 expiry events, got %d", eventCount)
	}

	// Redundant run is safe and finds nothing.
	released, err = svc.SweepExpired(ctx, 0)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if released != 0 {
		t.Fatalf("second sweep released %d", released)
	}
}
