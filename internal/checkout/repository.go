package checkout

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mariselaquino/tradepost-backend/pkg/db/models"
)

// Repository reads the catalog rows checkout prices against.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	ListTiers(ctx context.Context, productID uuid.UUID) ([]models.DiscountTier, error)
	ListPromotions(ctx context.Context, vendorStoreID uuid.UUID, productID uuid.UUID, now time.Time) ([]models.Promotion, error)
	RecordFlashSaleUnits(ctx context.Context, promotionID uuid.UUID, qty int) (bool, error)
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

func (r *repository) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *repository) ListTiers(ctx context.Context, productID uuid.UUID) ([]models.DiscountTier, error) {
	var tiers []models.DiscountTier
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("min_qty ASC").
		Find(&tiers).Error
	return tiers, err
}

// ListPromotions returns the store's promotions that have started and are
// either store-wide or scoped to the product. Activation windows are checked
// again in the pricing layer; the query just narrows the candidate set.
func (r *repository) ListPromotions(ctx context.Context, vendorStoreID uuid.UUID, productID uuid.UUID, now time.Time) ([]models.Promotion, error) {
	var promos []models.Promotion
	err := r.db.WithContext(ctx).
		Where("vendor_store_id = ? AND is_active = ? AND starts_at <= ?", vendorStoreID, true, now).
		Where("product_id IS NULL OR product_id = ?", productID).
		Order("created_at ASC").
		Find(&promos).Error
	return promos, err
}

// RecordFlashSaleUnits counts sold units against a flash sale's stock limit.
// The guard keeps concurrent checkouts from overselling the campaign.
func (r *repository) RecordFlashSaleUnits(ctx context.Context, promotionID uuid.UUID, qty int) (bool, error) {
	result := r.db.WithContext(ctx).Exec(`
		UPDATE promotions
		SET stock_sold = stock_sold + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND is_flash_sale = ?
			AND (stock_limit IS NULL OR stock_sold + ? <= stock_limit)
	`, qty, promotionID, true, qty)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
