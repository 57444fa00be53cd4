package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"
	"gorm.io/gorm"

	"github.com/mariselaquino/tradepost-backend/internal/orders"
	"github.com/mariselaquino/tradepost-backend/pkg/db/models"
	"github.com/mariselaquino/tradepost-backend/pkg/enums"
	pkgerrors "github.com/mariselaquino/tradepost-backend/pkg/errors"
	"github.com/mariselaquino/tradepost-backend/pkg/outbox"
	"github.com/mariselaquino/tradepost-backend/pkg/outbox/payloads"
	"github.com/mariselaquino/tradepost-backend/pkg/square"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Provider is the payment-gateway surface the settlement flows depend on.
type Provider interface {
	CreatePayment(ctx context.Context, params square.PaymentCreateParams) (*sq.Payment, error)
	RefundPayment(ctx context.Context, params square.RefundCreateParams) (*sq.PaymentRefund, error)
}

// HoldConsumer finalizes the inventory holds backing an order when its
// payment captures.
type HoldConsumer interface {
	ConsumeOrderHoldsTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
}

// Transitioner drives the order state machine within the capture transaction.
type Transitioner interface {
	TransitionTx(ctx context.Context, tx *gorm.DB, input orders.TransitionInput) (*models.Order, error)
}

// CaptureInput describes one capture request. A nil Amount captures the
// outstanding remainder; FinalCapture marks the payment completed even when
// the amount is partial.
type CaptureInput struct {
	OrderID      uuid.UUID
	AmountCents  *int
	FinalCapture bool
	SourceID     string
	Actor        orders.Actor
}

// Service drives payment capture against orders.
type Service interface {
	CapturePayment(ctx context.Context, input CaptureInput) (*models.Order, error)
}

type service struct {
	repo      orders.Repository
	tx        txRunner
	provider  Provider
	inventory HoldConsumer
	lifecycle Transitioner
	outbox    outbox.Emitter
	now       func() time.Time
}

// NewService builds a capture service with the required dependencies.
func NewService(repo orders.Repository, tx txRunner, provider Provider, inventory HoldConsumer, lifecycle Transitioner, emitter outbox.Emitter) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if provider == nil {
		return nil, fmt.Errorf("payment provider required")
	}
	if inventory == nil {
		return nil, fmt.Errorf("hold consumer required")
	}
	if lifecycle == nil {
		return nil, fmt.Errorf("order transitioner required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &service{
		repo:      repo,
		tx:        tx,
		provider:  provider,
		inventory: inventory,
		lifecycle: lifecycle,
		outbox:    emitter,
		now:       time.Now,
	}, nil
}

func (s *service) CapturePayment(ctx context.Context, input CaptureInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	var captured *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		if order.PaymentStatus == enums.PaymentStatusCompleted {
			return pkgerrors.New(pkgerrors.CodePaymentAlreadyCaptured, "order payment already captured")
		}

		remainder := order.TotalCents - order.CapturedCents
		amount := remainder
		if input.AmountCents != nil {
			amount = *input.AmountCents
		}
		if amount <= 0 {
			return pkgerrors.New(pkgerrors.CodeAmountNotPositive, "capture amount must be positive").
				WithDetails(map[string]any{"amount": amount})
		}
		if order.CapturedCents+amount > order.TotalCents {
			return pkgerrors.New(pkgerrors.CodeAmountExceedsOrderTotal,
				fmt.Sprintf("capture of %d exceeds order total %d (already captured %d)", amount, order.TotalCents, order.CapturedCents)).
				WithDetails(map[string]any{
					"amount":         amount,
					"total_cents":    order.TotalCents,
					"captured_cents": order.CapturedCents,
				})
		}

		providerRef, err := s.captureWithProvider(ctx, order, amount, input)
		if err != nil {
			return err
		}

		final := input.FinalCapture || order.CapturedCents+amount == order.TotalCents
		totalCaptured := order.CapturedCents + amount
		updates := map[string]any{
			"captured_cents":       totalCaptured,
			"provider_payment_ref": providerRef,
		}
		if final {
			updates["payment_status"] = enums.PaymentStatusCompleted
			updates["final_captured"] = true
		}
		applied, err := repo.UpdateCaptureGuarded(ctx, order.ID, order.CapturedCents, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record capture")
		}
		if !applied {
			return pkgerrors.New(pkgerrors.CodeConflict, "capture state changed, retry")
		}

		order.CapturedCents = totalCaptured
		order.ProviderPaymentRef = &providerRef
		if final {
			order.PaymentStatus = enums.PaymentStatusCompleted
			order.FinalCaptured = true
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventPaymentCaptured,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.Actor.ID, Role: input.Actor.Role},
			Data: payloads.PaymentCapturedEvent{
				OrderID:       order.ID,
				AmountCents:   amount,
				CapturedCents: totalCaptured,
				FinalCapture:  final,
				ProviderRef:   providerRef,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit capture event")
		}

		if final {
			if err := s.inventory.ConsumeOrderHoldsTx(ctx, tx, order.ID); err != nil {
				return err
			}
			if order.Status == enums.OrderStatusPending {
				moved, err := s.lifecycle.TransitionTx(ctx, tx, orders.TransitionInput{
					OrderID: order.ID,
					Target:  enums.OrderStatusPaid,
					Actor:   input.Actor,
				})
				if err != nil {
					return err
				}
				order.Status = moved.Status
				order.PaidAt = moved.PaidAt
			}
		}

		captured = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return captured, nil
}

// captureWithProvider settles the funds movement. Manual methods capture
// immediately under a sentinel reference; card orders call the gateway and
// persist its capture id.
func (s *service) captureWithProvider(ctx context.Context, order *models.Order, amount int, input CaptureInput) (string, error) {
	if order.PaymentMethod.IsManual() {
		return fmt.Sprintf("manual-%s", uuid.NewString()), nil
	}

	payment, err := s.provider.CreatePayment(ctx, square.PaymentCreateParams{
		AmountCents: int64(amount),
		Currency:    order.Currency,
		SourceID:    input.SourceID,
		ReferenceID: order.ID.String(),
		Note:        fmt.Sprintf("order %d capture", order.OrderNumber),
	})
	if err != nil {
		return "", err
	}
	ref := ""
	if payment != nil && payment.GetID() != nil {
		ref = *payment.GetID()
	}
	if ref == "" {
		return "", pkgerrors.New(pkgerrors.CodeProviderFailure, "provider returned no capture id")
	}
	return ref, nil
}
