package orders

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
	"github.com/mariselaquino/tradepost-backend/pkg/outbox"
	"github.com/mariselaquino/tradepost-backend/pkg/outbox/payloads"
	"github.com/mariselaquino/tradepost-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// HoldReleaser returns active inventory holds when an order is cancelled
// before capture.
type HoldReleaser interface {
	ReleaseOrderHoldsTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
}

// Actor identifies who requested a transition.
type Actor struct {
	ID   *uuid.UUID
	Role enums.ActorRole
}

// TransitionInput carries one requested status change.
type TransitionInput struct {
	OrderID uuid.UUID
	Target  enums.OrderStatus
	Actor   Actor
	Note    *string
}

// Service exposes the order lifecycle: the transition state machine plus
// reads used by the API surface.
type Service interface {
	Transition(ctx context.Context, input TransitionInput) (*models.Order, error)
	TransitionTx(ctx context.Context, tx *gorm.DB, input TransitionInput) (*models.Order, error)
	Cancel(ctx context.Context, orderID uuid.UUID, actor Actor, reason *string) (*models.Order, error)
	Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	ListForUser(ctx context.Context, userID uuid.UUID, page pagination.Page) ([]models.Order, int64, error)
	ListForVendor(ctx context.Context, vendorStoreID uuid.UUID, page pagination.Page) ([]models.Order, int64, error)
	Events(ctx context.Context, orderID uuid.UUID) ([]models.OrderEvent, error)
}

type service struct {
	repo      Repository
	tx        txRunner
	outbox    outbox.Emitter
	inventory HoldReleaser
	now       func() time.Time
}

// NewService builds an order lifecycle service with the required dependencies.
func NewService(repo Repository, tx txRunner, emitter outbox.Emitter, inventory HoldReleaser) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if inventory == nil {
		return nil, fmt.Errorf("hold releaser required")
	}
	return &service{
		repo:      repo,
		tx:        tx,
		outbox:    emitter,
		inventory: inventory,
		now:       time.Now,
	}, nil
}

func (s *service) Transition(ctx context.Context, input TransitionInput) (*models.Order, error) {
	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		result, err := s.TransitionTx(ctx, tx, input)
		if err != nil {
			return err
		}
		order = result
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// TransitionTx validates the requested move against the lifecycle table and
// applies it with a status guard: the UPDATE only matches while the row still
// holds the observed status, so two concurrent transitions cannot both win.
// The losing request fails without mutating the order.
func (s *service) TransitionTx(ctx context.Context, tx *gorm.DB, input TransitionInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.Target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown order status %q", input.Target))
	}
	if !input.Actor.Role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor role required")
	}
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction required for transition")
	}

	repo := s.repo.WithTx(tx)
	order, err := repo.FindByID(ctx, input.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}

	observed := order.Status
	if !CanTransition(observed, input.Target) {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition,
			fmt.Sprintf("cannot transition order from %s to %s", observed, input.Target)).
			WithDetails(map[string]any{
				"current":   observed,
				"requested": input.Target,
				"allowed":   AllowedTargets(observed),
			})
	}

	now := s.now()
	moved, err := repo.UpdateStatusGuarded(ctx, order.ID, observed, input.Target, timestampColumn(input.Target), now)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	if !moved {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "order status changed concurrently")
	}

	event := &models.OrderEvent{
		ID:             uuid.New(),
		OrderID:        order.ID,
		PreviousStatus: observed,
		NewStatus:      input.Target,
		ActorID:        input.Actor.ID,
		ActorRole:      input.Actor.Role,
		Note:           input.Note,
		CreatedAt:      now,
	}
	if err := repo.AppendEvent(ctx, event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append order event")
	}

	if input.Target == enums.OrderStatusCancelled {
		if err := s.inventory.ReleaseOrderHoldsTx(ctx, tx, order.ID); err != nil {
			return nil, err
		}
	}

	if err := s.emitTransition(ctx, tx, order, observed, input, now); err != nil {
		return nil, err
	}

	order.Status = input.Target
	stampOrder(order, input.Target, now)
	return order, nil
}

// Cancel is the transition the buyer-facing API calls directly.
func (s *service) Cancel(ctx context.Context, orderID uuid.UUID, actor Actor, reason *string) (*models.Order, error) {
	return s.Transition(ctx, TransitionInput{
		OrderID: orderID,
		Target:  enums.OrderStatusCancelled,
		Actor:   actor,
		Note:    reason,
	})
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) ListForUser(ctx context.Context, userID uuid.UUID, page pagination.Page) ([]models.Order, int64, error) {
	rows, total, err := s.repo.ListByUser(ctx, userID, page)
	if err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list user orders")
	}
	return rows, total, nil
}

func (s *service) ListForVendor(ctx context.Context, vendorStoreID uuid.UUID, page pagination.Page) ([]models.Order, int64, error) {
	rows, total, err := s.repo.ListByVendor(ctx, vendorStoreID, page)
	if err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list vendor orders")
	}
	return rows, total, nil
}

func (s *service) Events(ctx context.Context, orderID uuid.UUID) ([]models.OrderEvent, error) {
	events, err := s.repo.ListEvents(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list order events")
	}
	return events, nil
}

func (s *service) emitTransition(ctx context.Context, tx *gorm.DB, order *models.Order, observed enums.OrderStatus, input TransitionInput, at time.Time) error {
	actor := &outbox.ActorRef{UserID: input.Actor.ID, Role: input.Actor.Role}
	if input.Actor.Role == enums.ActorRoleSystem {
		actor = outbox.SystemActor()
	}

	base := outbox.DomainEvent{
		EventType:     enums.EventOrderStateChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Version:       1,
		Actor:         actor,
		OccurredAt:    at,
		Data: payloads.OrderStateChangedEvent{
			OrderID:        order.ID,
			UserID:         order.UserID,
			VendorStoreID:  order.VendorStoreID,
			PreviousStatus: observed,
			NewStatus:      input.Target,
			ActorRole:      input.Actor.Role,
			TransitionedAt: at,
		},
	}
	if err := s.outbox.Emit(ctx, tx, base); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit state change")
	}

	var extra enums.OutboxEventType
	switch input.Target {
	case enums.OrderStatusPaid:
		extra = enums.EventOrderPaid
	case enums.OrderStatusCancelled:
		extra = enums.EventOrderCancelled
	case enums.OrderStatusRefunded:
		extra = enums.EventOrderRefunded
	default:
		return nil
	}

	specific := base
	specific.EventType = extra
	if err := s.outbox.EmitIfNotExists(ctx, tx, specific); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit lifecycle event")
	}
	return nil
}

func stampOrder(order *models.Order, target enums.OrderStatus, at time.Time) {
	stamped := at
	switch target {
	case enums.OrderStatusPaid:
		order.PaidAt = &stamped
	case enums.OrderStatusConfirmed:
		order.ConfirmedAt = &stamped
	case enums.OrderStatusProcessing:
		order.ProcessingAt = &stamped
	case enums.OrderStatusFulfilled:
		order.FulfilledAt = &stamped
	case enums.OrderStatusShipped:
		order.ShippedAt = &stamped
	case enums.OrderStatusDelivered:
		order.DeliveredAt = &stamped
	case enums.OrderStatusCancelled:
		order.CancelledAt = &stamped
	case enums.OrderStatusRefunded:
		order.RefundedAt = &stamped
	}
}
