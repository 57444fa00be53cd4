package notifications

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mariselaquino/tradepost-backend/pkg/db/models"
	"github.com/mariselaquino/tradepost-backend/pkg/enums"
	pkgerrors "github.com/mariselaquino/tradepost-backend/pkg/errors"
	"github.com/mariselaquino/tradepost-backend/pkg/logger"
	"github.com/mariselaquino/tradepost-backend/pkg/pagination"
)

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	dsn := "file:notifications_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(&models.Notification{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	logg := logger.New(logger.Options{ServiceName: "notifications-test", Output: io.Discard})
	svc, err := NewService(NewRepository(conn), logg)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, conn
}

func TestNotifyAndList(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	svc.Notify(ctx, Notice{UserID: userID, Type: enums.NotificationTypeOrderUpdate, Title: "Order shipped", Message: "on its way"})
	svc.Notify(ctx, Notice{UserID: userID, Type: enums.NotificationTypeRefundUpdate, Title: "Refund issued", Message: "500 back"})
	svc.Notify(ctx, Notice{UserID: uuid.New(), Type: enums.NotificationTypeSystem, Title: "Other user", Message: "not yours"})

	listed, total, err := svc.List(ctx, userID, false, pagination.NewPage(1, 10))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 2 || len(listed) != 2 {
		t.Fatalf("list = %d/%d, want 2 rows", len(listed), total)
	}
}

func TestNotifyDropsInvalidWithoutError(t *testing.T) {
	t.Parallel()

	svc, conn := newTestService(t)
	ctx := context.Background()

	// Missing user and title: swallowed, never persisted.
	svc.Notify(ctx, Notice{Title: "no user"})
	svc.Notify(ctx, Notice{UserID: uuid.New()})

	var count int64
	if err := conn.Model(&models.Notification{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("rows = %d, want 0", count)
	}
}

func TestMarkRead(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	svc.Notify(ctx, Notice{UserID: userID, Type: enums.NotificationTypeOrderUpdate, Title: "a", Message: "b"})
	listed, _, err := svc.List(ctx, userID, true, pagination.NewPage(1, 10))
	if err != nil || len(listed) != 1 {
		t.Fatalf("list unread = (%d, %v), want 1", len(listed), err)
	}

	if err := svc.MarkRead(ctx, listed[0].ID, uuid.New()); !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("cross-user mark err = %v, want NOT_FOUND", err)
	}
	if err := svc.MarkRead(ctx, listed[0].ID, userID); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if err := svc.MarkRead(ctx, listed[0].ID, userID); !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("double mark err = %v, want NOT_FOUND", err)
	}

	unread, _, err := svc.List(ctx, userID, true, pagination.NewPage(1, 10))
	if err != nil || len(unread) != 0 {
		t.Fatalf("unread after mark = (%d, %v), want 0", len(unread), err)
	}
}

func TestPurgeOld(t *testing.T) {
	t.Parallel()

	svc, conn := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	old := &models.Notification{
		ID:      uuid.New(),
		UserID:  userID,
		Type:    enums.NotificationTypeSystem,
		Title:   "stale",
		Message: "old",
	}
	if err := conn.Create(old).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := conn.Model(old).Update("created_at", time.Now().Add(-100*24*time.Hour)).Error; err != nil {
		t.Fatalf("age row: %v", err)
	}
	svc.Notify(ctx, Notice{UserID: userID, Type: enums.NotificationTypeSystem, Title: "fresh", Message: "new"})

	deleted, err := svc.PurgeOld(ctx, 90*24*time.Hour)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("deleted = %d, want 1", deleted)
	}

	var remaining int64
	if err := conn.Model(&models.Notification{}).Count(&remaining).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if remaining != 1 {
		t.Fatalf("remaining = %d, want 1", remaining)
	}
}
