package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mariselaquino/tradepost-backend/pkg/db/models"
	"github.com/mariselaquino/tradepost-backend/pkg/enums"
	pkgerrors "github.com/mariselaquino/tradepost-backend/pkg/errors"
	"github.com/mariselaquino/tradepost-backend/pkg/logger"
	"github.com/mariselaquino/tradepost-backend/pkg/outbox"
	"github.com/mariselaquino/tradepost-backend/pkg/outbox/payloads"
)

// DefaultReservationTTL bounds how long a checkout hold survives without
// being consumed.
const DefaultReservationTTL = 15 * time.Minute

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service is the reservation ledger: provisional holds against stock with
// expiry, idempotent release, and exactly-once consumption.
type Service interface {
	Reserve(ctx context.Context, input ReserveInput) (*models.InventoryReservation, error)
	ReserveTx(ctx context.Context, tx *gorm.DB, input ReserveInput) (*models.InventoryReservation, error)
	Release(ctx context.Context, reservationID uuid.UUID) error
	Consume(ctx context.Context, reservationID uuid.UUID) error
	ConsumeTx(ctx context.Context, tx *gorm.DB, reservationID uuid.UUID) error
	AttachOrderTx(ctx context.Context, tx *gorm.DB, reservationID, orderID uuid.UUID) error
	ReleaseOrderHoldsTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
	ConsumeOrderHoldsTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
	SweepExpired(ctx context.Context, limit int) (int, error)
	Availability(ctx context.Context, productID uuid.UUID) (*models.InventoryItem, error)
}

// ReserveInput carries one hold request.
type ReserveInput struct {
	ProductID   uuid.UUID
	Quantity    int
	RequestedBy uuid.UUID
	TTL         time.Duration
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outbox.Emitter
	logg   *logger.Logger
	ttl    time.Duration
	now    func() time.Time
}

// NewService builds the inventory ledger service. A zero ttl falls back to
// the 15 minute default.
func NewService(repo Repository, tx txRunner, emitter outbox.Emitter, logg *logger.Logger, ttl time.Duration) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if ttl <= 0 {
		ttl = DefaultReservationTTL
	}
	return &service{
		repo:   repo,
		tx:     tx,
		outbox: emitter,
		logg:   logg,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

func (s *service) Reserve(ctx context.Context, input ReserveInput) (*models.InventoryReservation, error) {
	var reservation *models.InventoryReservation
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		res, err := s.ReserveTx(ctx, tx, input)
		if err != nil {
			return err
		}
		reservation = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reservation, nil
}

// ReserveTx performs the hold inside a caller-owned transaction so checkout
// can compose pricing, reservation, and order creation atomically. Expired
// holds for the product are folded back first, so availability is always
// derived from now rather than from stale counters.
func (s *service) ReserveTx(ctx context.Context, tx *gorm.DB, input ReserveInput) (*models.InventoryReservation, error) {
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation quantity must be positive")
	}
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction required for reservation")
	}

	repo := s.repo.WithTx(tx)
	now := s.now()

	if _, err := s.releaseExpired(ctx, tx, &input.ProductID, now, 0); err != nil {
		return nil, err
	}

	ok, err := repo.ReserveStock(ctx, input.ProductID, input.Quantity)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve stock")
	}
	if !ok {
		item, err := repo.GetItem(ctx, input.ProductID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "inventory item not found")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory item")
		}
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock,
			fmt.Sprintf("requested %d units, %d available", input.Quantity, item.AvailableQty)).
			WithDetails(map[string]any{
				"product_id": input.ProductID.String(),
				"requested":  input.Quantity,
				"available":  item.AvailableQty,
			})
	}

	ttl := input.TTL
	if ttl <= 0 {
		ttl = s.ttl
	}
	reservation := &models.InventoryReservation{
		ID:          uuid.New(),
		ProductID:   input.ProductID,
		RequestedBy: input.RequestedBy,
		Quantity:    input.Quantity,
		Status:      enums.ReservationStatusActive,
		ExpiresAt:   now.Add(ttl),
	}
	if err := repo.CreateReservation(ctx, reservation); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create reservation")
	}
	return reservation, nil
}

// Release returns an active hold to available stock. Already released or
// consumed reservations are a no-op.
func (s *service) Release(ctx context.Context, reservationID uuid.UUID) error {
	if reservationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "reservation id required")
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		reservation, err := repo.GetReservation(ctx, reservationID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reservation")
		}
		if reservation.Status != enums.ReservationStatusActive {
			return nil
		}
		marked, err := repo.MarkReleased(ctx, reservation.ID, s.now())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark reservation released")
		}
		if !marked {
			return nil
		}
		if err := repo.ReleaseStock(ctx, reservation.ProductID, reservation.Quantity); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release stock")
		}
		return nil
	})
}

func (s *service) Consume(ctx context.Context, reservationID uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.ConsumeTx(ctx, tx, reservationID)
	})
}

// ConsumeTx finalizes a hold when payment captures. The reserved units move
// to committed exactly once; consuming twice is a no-op, consuming a released
// hold is a conflict.
func (s *service) ConsumeTx(ctx context.Context, tx *gorm.DB, reservationID uuid.UUID) error {
	if reservationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "reservation id required")
	}
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for consume")
	}

	repo := s.repo.WithTx(tx)
	reservation, err := repo.GetReservation(ctx, reservationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reservation")
	}
	switch reservation.Status {
	case enums.ReservationStatusConsumed:
		return nil
	case enums.ReservationStatusReleased:
		return pkgerrors.New(pkgerrors.CodeConflict, "reservation already released")
	}

	marked, err := repo.MarkConsumed(ctx, reservation.ID, s.now())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark reservation consumed")
	}
	if !marked {
		return pkgerrors.New(pkgerrors.CodeConflict, "reservation no longer active")
	}
	if err := repo.CommitStock(ctx, reservation.ProductID, reservation.Quantity); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "commit stock")
	}
	return nil
}

// AttachOrderTx links a hold to the order it now backs.
func (s *service) AttachOrderTx(ctx context.Context, tx *gorm.DB, reservationID, orderID uuid.UUID) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for attach")
	}
	if err := s.repo.WithTx(tx).AttachOrder(ctx, reservationID, orderID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "attach reservation to order")
	}
	return nil
}

// ReleaseOrderHoldsTx returns every still-active hold backing an order, used
// when the order is cancelled before capture.
func (s *service) ReleaseOrderHoldsTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for order release")
	}
	repo := s.repo.WithTx(tx)
	holds, err := repo.FindActiveByOrder(ctx, orderID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find order holds")
	}
	now := s.now()
	for _, hold := range holds {
		marked, err := repo.MarkReleased(ctx, hold.ID, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order hold released")
		}
		if !marked {
			continue
		}
		if err := repo.ReleaseStock(ctx, hold.ProductID, hold.Quantity); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release order hold stock")
		}
	}
	return nil
}

// ConsumeOrderHoldsTx finalizes every active hold backing an order when its
// payment captures.
func (s *service) ConsumeOrderHoldsTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for order consume")
	}
	repo := s.repo.WithTx(tx)
	holds, err := repo.FindActiveByOrder(ctx, orderID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find order holds")
	}
	for _, hold := range holds {
		if err := s.ConsumeTx(ctx, tx, hold.ID); err != nil {
			return err
		}
	}
	return nil
}

// SweepExpired physically releases expired active holds. Safe to call
// redundantly; each run only touches holds whose guard still matches.
func (s *service) SweepExpired(ctx context.Context, limit int) (int, error) {
	released := 0
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		count, err := s.releaseExpired(ctx, tx, nil, s.now(), limit)
		if err != nil {
			return err
		}
		released = count
		return nil
	})
	if err != nil {
		return 0, err
	}
	return released, nil
}

func (s *service) Availability(ctx context.Context, productID uuid.UUID) (*models.InventoryItem, error) {
	item, err := s.repo.GetItem(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "inventory item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory item")
	}
	return item, nil
}

func (s *service) releaseExpired(ctx context.Context, tx *gorm.DB, productID *uuid.UUID, now time.Time, limit int) (int, error) {
	repo := s.repo.WithTx(tx)
	expired, err := repo.FindExpiredActive(ctx, productID, now, limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find expired reservations")
	}

	released := 0
	for _, reservation := range expired {
		marked, err := repo.MarkReleased(ctx, reservation.ID, now)
		if err != nil {
			return released, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark expired reservation released")
		}
		if !marked {
			continue
		}
		if err := repo.ReleaseStock(ctx, reservation.ProductID, reservation.Quantity); err != nil {
			return released, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release expired stock")
		}
		event := outbox.DomainEvent{
			EventType:     enums.EventReservationExpired,
			AggregateType: enums.AggregateReservation,
			AggregateID:   reservation.ID,
			Version:       1,
			Actor:         outbox.SystemActor(),
			Data: payloads.ReservationExpiredEvent{
				ReservationID: reservation.ID,
				ProductID:     reservation.ProductID,
				Quantity:      reservation.Quantity,
				ExpiredAt:     reservation.ExpiresAt,
			},
		}
		if err := s.outbox.EmitIfNotExists(ctx, tx, event); err != nil {
			return released, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit reservation expired")
		}
		released++
	}

	if released > 0 && s.logg != nil {
		s.logg.Info(s.logg.WithField(ctx, "released", released), "expired reservations swept")
	}
	return released, nil
}
