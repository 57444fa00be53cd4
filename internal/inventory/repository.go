package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mariselaquino/tradepost-backend/pkg/db/models"
)

// Repository isolates the counter and reservation-row mutations. All guarded
// updates report whether the guard matched so callers can branch without a
// second read.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	GetItem(ctx context.Context, productID uuid.UUID) (*models.InventoryItem, error)
	ReserveStock(ctx context.Context, productID uuid.UUID, qty int) (bool, error)
	ReleaseStock(ctx context.Context, productID uuid.UUID, qty int) error
	CommitStock(ctx context.Context, productID uuid.UUID, qty int) error
	RestoreStock(ctx context.Context, productID uuid.UUID, qty int) error

	CreateReservation(ctx context.Context, reservation *models.InventoryReservation) error
	GetReservation(ctx context.Context, id uuid.UUID) (*models.InventoryReservation, error)
	AttachOrder(ctx context.Context, reservationID, orderID uuid.UUID) error
	MarkReleased(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	MarkConsumed(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	FindExpiredActive(ctx context.Context, productID *uuid.UUID, now time.Time, limit int) ([]models.InventoryReservation, error)
	FindActiveByOrder(ctx context.Context, orderID uuid.UUID) ([]models.InventoryReservation, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an inventory repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) GetItem(ctx context.Context, productID uuid.UUID) (*models.InventoryItem, error) {
	var item models.InventoryItem
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// ReserveStock moves qty from available to reserved. The availability guard
// lives in the WHERE clause so concurrent reservers serialize on the row:
// at most one of two competing over-asks can match.
func (r *repository) ReserveStock(ctx context.Context, productID uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE inventory_items
		SET available_qty = available_qty - ?,
			reserved_qty = reserved_qty + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE product_id = ? AND available_qty >= ?
	`, qty, qty, productID, qty)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) ReleaseStock(ctx context.Context, productID uuid.UUID, qty int) error {
	return r.db.WithContext(ctx).Exec(`
		UPDATE inventory_items
		SET available_qty = available_qty + ?,
			reserved_qty = reserved_qty - ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE product_id = ? AND reserved_qty >= ?
	`, qty, qty, productID, qty).Error
}

// CommitStock finalizes a consumed reservation: the hold leaves reserved and
// lands in committed, never returning to available.
func (r *repository) CommitStock(ctx context.Context, productID uuid.UUID, qty int) error {
	return r.db.WithContext(ctx).Exec(`
		UPDATE inventory_items
		SET reserved_qty = reserved_qty - ?,
			committed_qty = committed_qty + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE product_id = ? AND reserved_qty >= ?
	`, qty, qty, productID, qty).Error
}

// RestoreStock returns committed units to available after a refund restock.
func (r *repository) RestoreStock(ctx context.Context, productID uuid.UUID, qty int) error {
	return r.db.WithContext(ctx).Exec(`
		UPDATE inventory_items
		SET available_qty = available_qty + ?,
			committed_qty = committed_qty - ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE product_id = ? AND committed_qty >= ?
	`, qty, qty, productID, qty).Error
}

func (r *repository) CreateReservation(ctx context.Context, reservation *models.InventoryReservation) error {
	return r.db.WithContext(ctx).Create(reservation).Error
}

func (r *repository) GetReservation(ctx context.Context, id uuid.UUID) (*models.InventoryReservation, error) {
	var reservation models.InventoryReservation
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&reservation).Error
	if err != nil {
		return nil, err
	}
	return &reservation, nil
}

func (r *repository) AttachOrder(ctx context.Context, reservationID, orderID uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&models.InventoryReservation{}).
		Where("id = ?", reservationID).
		Update("order_id", orderID).Error
}

func (r *repository) MarkReleased(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.InventoryReservation{}).
		Where("id = ? AND status = ?", id, "active").
		Updates(map[string]any{
			"status":      "released",
			"released_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) MarkConsumed(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.InventoryReservation{}).
		Where("id = ? AND status = ?", id, "active").
		Updates(map[string]any{
			"status":      "consumed",
			"consumed_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) FindExpiredActive(ctx context.Context, productID *uuid.UUID, now time.Time, limit int) ([]models.InventoryReservation, error) {
	query := r.db.WithContext(ctx).
		Where("status = ? AND expires_at <= ?", "active", now).
		Order("expires_at ASC")
	if productID != nil {
		query = query.Where("product_id = ?", *productID)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []models.InventoryReservation
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) FindActiveByOrder(ctx context.Context, orderID uuid.UUID) ([]models.InventoryReservation, error) {
	var rows []models.InventoryReservation
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND status = ?", orderID, "active").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
