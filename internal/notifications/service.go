package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mariselaquino/tradepost-backend/pkg/db/models"
	"github.com/mariselaquino/tradepost-backend/pkg/enums"
	pkgerrors "github.com/mariselaquino/tradepost-backend/pkg/errors"
	"github.com/mariselaquino/tradepost-backend/pkg/logger"
	"github.com/mariselaquino/tradepost-backend/pkg/pagination"
)

// Notice is one in-app notification to deliver.
type Notice struct {
	UserID  uuid.UUID
	Type    enums.NotificationType
	Title   string
	Message string
	Link    *string
}

// Service persists and serves in-app notifications. Delivery is
// fire-and-forget: lifecycle changes must not roll back because a
// notification insert failed.
type Service interface {
	Notify(ctx context.Context, notice Notice)
	List(ctx context.Context, userID uuid.UUID, unreadOnly bool, page pagination.Page) ([]models.Notification, int64, error)
	MarkRead(ctx context.Context, id, userID uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
	PurgeOld(ctx context.Context, maxAge time.Duration) (int64, error)
}

type service struct {
	repo Repository
	logg *logger.Logger
	now  func() time.Time
}

func NewService(repo Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, logg: logg, now: time.Now}, nil
}

// Notify writes the notification, logging failures instead of returning
// them.
func (s *service) Notify(ctx context.Context, notice Notice) {
	if notice.UserID == uuid.Nil || notice.Title == "" {
		s.logg.Warn(ctx, "dropping notification with missing user or title")
		return
	}
	if !notice.Type.IsValid() {
		notice.Type = enums.NotificationTypeSystem
	}
	err := s.repo.Create(ctx, &models.Notification{
		ID:      uuid.New(),
		UserID:  notice.UserID,
		Type:    notice.Type,
		Title:   notice.Title,
		Message: notice.Message,
		Link:    notice.Link,
	})
	if err != nil {
		s.logg.Error(s.logg.WithUserID(ctx, notice.UserID.String()), "persist notification", err)
	}
}

func (s *service) List(ctx context.Context, userID uuid.UUID, unreadOnly bool, page pagination.Page) ([]models.Notification, int64, error) {
	if userID == uuid.Nil {
		return nil, 0, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	return s.repo.ListByUser(ctx, userID, unreadOnly, page)
}

func (s *service) MarkRead(ctx context.Context, id, userID uuid.UUID) error {
	if id == uuid.Nil || userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification and user id required")
	}
	marked, err := s.repo.MarkRead(ctx, id, userID, s.now())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification read")
	}
	if !marked {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return nil
}

func (s *service) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	if userID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	return s.repo.MarkAllRead(ctx, userID, s.now())
}

// PurgeOld deletes notifications past the retention window. Used by the cron
// worker.
func (s *service) PurgeOld(ctx context.Context, maxAge time.Duration) (int64, error) {
	if maxAge <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "retention window must be positive")
	}
	return s.repo.DeleteOlderThan(ctx, s.now().Add(-maxAge))
}
