package disputes

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mariselaquino/tradepost-backend/pkg/db/models"
	"github.com/mariselaquino/tradepost-backend/pkg/enums"
	"github.com/mariselaquino/tradepost-backend/pkg/pagination"
)

// Repository isolates dispute persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, dispute *models.Dispute) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error)
	UpdateStatusGuarded(ctx context.Context, id uuid.UUID, observed enums.DisputeStatus, updates map[string]any) (bool, error)
	AppendMessage(ctx context.Context, message *models.DisputeMessage) error
	ListByCustomer(ctx context.Context, customerID uuid.UUID, page pagination.Page) ([]models.Dispute, int64, error)
	ListByVendor(ctx context.Context, vendorStoreID uuid.UUID, page pagination.Page) ([]models.Dispute, int64, error)
	ListByStatus(ctx context.Context, status enums.DisputeStatus, page pagination.Page) ([]models.Dispute, int64, error)
	FindSLABreached(ctx context.Context, now time.Time, limit int) ([]models.Dispute, error)
	ExistsOpenForOrder(ctx context.Context, orderID uuid.UUID) (bool, error)
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

func (r *repository) Create(ctx context.Context, dispute *models.Dispute) error {
	return r.db.WithContext(ctx).Create(dispute).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	var dispute models.Dispute
	err := r.db.WithContext(ctx).
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		First(&dispute, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &dispute, nil
}

// UpdateStatusGuarded applies updates only while the row is still in the
// observed status, so concurrent lifecycle moves cannot double-apply.
func (r *repository) UpdateStatusGuarded(ctx context.Context, id uuid.UUID, observed enums.DisputeStatus, updates map[string]any) (bool, error) {
	updates["updated_at"] = time.Now()
	result := r.db.WithContext(ctx).
		Model(&models.Dispute{}).
		Where("id = ? AND status = ?", id, observed).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) AppendMessage(ctx context.Context, message *models.DisputeMessage) error {
	return r.db.WithContext(ctx).Create(message).Error
}

func (r *repository) ListByCustomer(ctx context.Context, customerID uuid.UUID, page pagination.Page) ([]models.Dispute, int64, error) {
	return r.list(ctx, "customer_id = ?", customerID, page)
}

func (r *repository) ListByVendor(ctx context.Context, vendorStoreID uuid.UUID, page pagination.Page) ([]models.Dispute, int64, error) {
	return r.list(ctx, "vendor_store_id = ?", vendorStoreID, page)
}

func (r *repository) ListByStatus(ctx context.Context, status enums.DisputeStatus, page pagination.Page) ([]models.Dispute, int64, error) {
	return r.list(ctx, "status = ?", status, page)
}

func (r *repository) list(ctx context.Context, cond string, arg any, page pagination.Page) ([]models.Dispute, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Dispute{}).Where(cond, arg)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var disputes []models.Dispute
	err := query.
		Order("created_at DESC").
		Offset(page.Offset()).
		Limit(page.Limit()).
		Find(&disputes).Error
	return disputes, total, err
}

// FindSLABreached returns vendor-pending disputes whose response deadline has
// passed.
func (r *repository) FindSLABreached(ctx context.Context, now time.Time, limit int) ([]models.Dispute, error) {
	var disputes []models.Dispute
	err := r.db.WithContext(ctx).
		Where("status = ? AND vendor_respond_by IS NOT NULL AND vendor_respond_by < ?",
			enums.DisputeStatusPendingVendorResponse, now).
		Order("vendor_respond_by ASC").
		Limit(limit).
		Find(&disputes).Error
	return disputes, err
}

// ExistsOpenForOrder reports whether the order already has a live dispute.
func (r *repository) ExistsOpenForOrder(ctx context.Context, orderID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Dispute{}).
		Where("order_id = ? AND status NOT IN ?", orderID,
			[]enums.DisputeStatus{enums.DisputeStatusResolved, enums.DisputeStatusClosed}).
		Count(&count).Error
	return count > 0, err
}
