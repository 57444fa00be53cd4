package refunds

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mariselaquino/tradepost-backend/pkg/db/models"
	"github.com/mariselaquino/tradepost-backend/pkg/enums"
)

// Repository isolates refund-row persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, refund *models.Refund) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Refund, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Refund, error)
	SumCompletedByOrder(ctx context.Context, orderID uuid.UUID) (int, error)
	SumOutstandingByOrder(ctx context.Context, orderID uuid.UUID) (int, error)
	MarkCompleted(ctx context.Context, id uuid.UUID, providerRef string, at time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
	ListRetryable(ctx context.Context, maxAttempts int, olderThan time.Time, limit int) ([]models.Refund, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, refund *models.Refund) error {
	return r.db.WithContext(ctx).Create(refund).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Refund, error) {
	var refund models.Refund
	if err := r.db.WithContext(ctx).First(&refund, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &refund, nil
}

func (r *repository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Refund, error) {
	var refunds []models.Refund
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&refunds).Error
	return refunds, err
}

// SumCompletedByOrder totals the amounts already settled back to the buyer.
// Pending and failed rows do not reduce the refundable balance.
func (r *repository) SumCompletedByOrder(ctx context.Context, orderID uuid.UUID) (int, error) {
	var total int
	err := r.db.WithContext(ctx).
		Model(&models.Refund{}).
		Select("COALESCE(SUM(amount_cents), 0)").
		Where("order_id = ? AND status = ?", orderID, enums.RefundStatusCompleted).
		Scan(&total).Error
	return total, err
}

// SumOutstandingByOrder totals every refund row against the order,
// regardless of status. Pending and failed rows reserve balance because
// they can still settle; only this sum is safe to validate new initiations
// against.
func (r *repository) SumOutstandingByOrder(ctx context.Context, orderID uuid.UUID) (int, error) {
	var total int
	err := r.db.WithContext(ctx).
		Model(&models.Refund{}).
		Select("COALESCE(SUM(amount_cents), 0)").
		Where("order_id = ?", orderID).
		Scan(&total).Error
	return total, err
}

func (r *repository) MarkCompleted(ctx context.Context, id uuid.UUID, providerRef string, at time.Time) error {
	updates := map[string]any{
		"status":       enums.RefundStatusCompleted,
		"completed_at": at,
		"updated_at":   at,
	}
	if providerRef != "" {
		updates["provider_refund_ref"] = providerRef
	}
	return r.db.WithContext(ctx).
		Model(&models.Refund{}).
		Where("id = ? AND status <> ?", id, enums.RefundStatusCompleted).
		Updates(updates).Error
}

func (r *repository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	return r.db.WithContext(ctx).
		Model(&models.Refund{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":         enums.RefundStatusFailed,
			"failure_reason": reason,
			"attempt_count":  gorm.Expr("attempt_count + 1"),
			"updated_at":     time.Now(),
		}).Error
}

// ListRetryable returns failed refunds that still have attempts left, plus
// pending rows that were created before olderThan and never processed.
func (r *repository) ListRetryable(ctx context.Context, maxAttempts int, olderThan time.Time, limit int) ([]models.Refund, error) {
	var refunds []models.Refund
	err := r.db.WithContext(ctx).
		Where("(status = ? AND attempt_count < ?) OR (status = ? AND created_at < ?)",
			enums.RefundStatusFailed, maxAttempts, enums.RefundStatusPending, olderThan).
		Order("created_at ASC").
		Limit(limit).
		Find(&refunds).Error
	return refunds, err
}
