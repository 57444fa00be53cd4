package refunds

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mariselaquino/tradepost-backend/internal/inventory"
	"github.com/mariselaquino/tradepost-backend/internal/orders"
	"github.com/mariselaquino/tradepost-backend/internal/payments"
	"github.com/mariselaquino/tradepost-backend/pkg/db/models"
	"github.com/mariselaquino/tradepost-backend/pkg/enums"
	pkgerrors "github.com/mariselaquino/tradepost-backend/pkg/errors"
	"github.com/mariselaquino/tradepost-backend/pkg/logger"
	"github.com/mariselaquino/tradepost-backend/pkg/outbox"
	"github.com/mariselaquino/tradepost-backend/pkg/outbox/payloads"
	"github.com/mariselaquino/tradepost-backend/pkg/square"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// InitiateInput describes one refund request against a captured order.
type InitiateInput struct {
	OrderID      uuid.UUID
	AmountCents  int
	Reason       *string
	RestoreStock bool
	Actor        orders.Actor
}

// Service owns the refund lifecycle: initiation validates and records a
// pending row, processing settles it with the provider (or directly, for
// manual payment methods), and a cron job retries failures.
type Service interface {
	GetRefundableAmount(ctx context.Context, orderID uuid.UUID) (int, error)
	InitiateRefund(ctx context.Context, input InitiateInput) (*models.Refund, error)
	ProcessRefund(ctx context.Context, refundID uuid.UUID) (*models.Refund, error)
	RetryUnsettled(ctx context.Context, maxAttempts int, olderThan time.Time, limit int) (int, error)
	ListForOrder(ctx context.Context, orderID uuid.UUID) ([]models.Refund, error)
}

type service struct {
	repo      Repository
	orders    orders.Repository
	lifecycle payments.Transitioner
	inventory inventory.Repository
	provider  payments.Provider
	tx        txRunner
	outbox    outbox.Emitter
	logg      *logger.Logger
	now       func() time.Time
}

// NewService builds a refund service with the required dependencies.
func NewService(repo Repository, orderRepo orders.Repository, lifecycle payments.Transitioner, inv inventory.Repository, provider payments.Provider, tx txRunner, emitter outbox.Emitter, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("refunds repository required")
	}
	if orderRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if lifecycle == nil {
		return nil, fmt.Errorf("order transitioner required")
	}
	if inv == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if provider == nil {
		return nil, fmt.Errorf("payment provider required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:      repo,
		orders:    orderRepo,
		lifecycle: lifecycle,
		inventory: inv,
		provider:  provider,
		tx:        tx,
		outbox:    emitter,
		logg:      logg,
		now:       time.Now,
	}, nil
}

// GetRefundableAmount returns the order total minus everything already
// settled back to the buyer. Unknown orders refund zero; the balance never
// goes negative even if historical data over-refunded.
func (s *service) GetRefundableAmount(ctx context.Context, orderID uuid.UUID) (int, error) {
	if orderID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	completed, err := s.repo.SumCompletedByOrder(ctx, orderID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum completed refunds")
	}
	refundable := order.TotalCents - completed
	if refundable < 0 {
		refundable = 0
	}
	return refundable, nil
}

func (s *service) InitiateRefund(ctx context.Context, input InitiateInput) (*models.Refund, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeAmountNotPositive, "refund amount must be positive").
			WithDetails(map[string]any{"amount": input.AmountCents})
	}

	var created *models.Refund
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		orderRepo := s.orders.WithTx(tx)
		refundRepo := s.repo.WithTx(tx)

		order, err := orderRepo.FindByID(ctx, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.PaymentStatus != enums.PaymentStatusCompleted {
			return pkgerrors.New(pkgerrors.CodePaymentNotCompleted, "order payment has not been captured")
		}

		// Pending and failed rows count too: they can still settle, so
		// issuing against the completed sum alone would let settled
		// refunds overshoot the total.
		outstanding, err := refundRepo.SumOutstandingByOrder(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum outstanding refunds")
		}
		refundable := order.TotalCents - outstanding
		if refundable < 0 {
			refundable = 0
		}
		if input.AmountCents > refundable {
			return pkgerrors.New(pkgerrors.CodeAmountExceedsRefundable,
				fmt.Sprintf("refund of %d exceeds refundable balance %d", input.AmountCents, refundable)).
				WithDetails(map[string]any{
					"amount":     input.AmountCents,
					"refundable": refundable,
				})
		}

		refund := &models.Refund{
			ID:           uuid.New(),
			OrderID:      order.ID,
			AmountCents:  input.AmountCents,
			Status:       enums.RefundStatusPending,
			Reason:       input.Reason,
			RestoreStock: input.RestoreStock,
		}
		if err := refundRepo.Create(ctx, refund); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create refund")
		}

		if input.RestoreStock {
			if err := s.restoreOrderStock(ctx, tx, order); err != nil {
				return err
			}
		}

		reason := ""
		if input.Reason != nil {
			reason = *input.Reason
		}
		event := outbox.DomainEvent{
			EventType:     enums.EventRefundInitiated,
			AggregateType: enums.AggregateRefund,
			AggregateID:   refund.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.Actor.ID, Role: input.Actor.Role},
			Data: payloads.RefundInitiatedEvent{
				RefundID:    refund.ID,
				OrderID:     order.ID,
				AmountCents: refund.AmountCents,
				Reason:      reason,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit refund event")
		}

		created = refund
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// restoreOrderStock returns each line item's committed units to available.
// Restock happens at initiation time; a later provider failure does not
// unwind it, since the merchandise is already back on the shelf.
func (s *service) restoreOrderStock(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	invRepo := s.inventory.WithTx(tx)
	for _, item := range order.Items {
		if err := invRepo.RestoreStock(ctx, item.ProductID, item.Quantity); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restore stock")
		}
	}
	return nil
}

// ProcessRefund settles a pending or previously failed refund. Completed
// refunds are returned as-is. Provider failures mark the row failed and
// surface a retryable error; the row stays eligible for the retry job.
func (s *service) ProcessRefund(ctx context.Context, refundID uuid.UUID) (*models.Refund, error) {
	if refundID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund id required")
	}

	refund, err := s.repo.FindByID(ctx, refundID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "refund not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load refund")
	}
	if refund.Status == enums.RefundStatusCompleted {
		return refund, nil
	}

	order, err := s.orders.FindByID(ctx, refund.OrderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}

	// Settling must never push the completed sum past the order total, so
	// the balance is checked before the provider is asked to move money.
	if err := s.checkSettleable(ctx, s.repo, order, refund); err != nil {
		return nil, err
	}

	providerRef, provErr := s.settleWithProvider(ctx, order, refund)
	if provErr != nil {
		// The failure mark commits independently of the provider call so the
		// retry job can find the row.
		if markErr := s.markFailed(ctx, refund, provErr); markErr != nil {
			s.logg.Error(ctx, "mark refund failed", markErr)
		}
		return nil, provErr
	}

	now := s.now()
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		refundRepo := s.repo.WithTx(tx)
		// Re-validated inside the transaction: a concurrent settlement may
		// have consumed the balance between the pre-check and here.
		if err := s.checkSettleable(ctx, refundRepo, order, refund); err != nil {
			return err
		}
		if err := refundRepo.MarkCompleted(ctx, refund.ID, providerRef, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete refund")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventRefundCompleted,
			AggregateType: enums.AggregateRefund,
			AggregateID:   refund.ID,
			Version:       1,
			Actor:         outbox.SystemActor(),
			Data: payloads.RefundSettledEvent{
				RefundID:    refund.ID,
				OrderID:     refund.OrderID,
				AmountCents: refund.AmountCents,
				Status:      enums.RefundStatusCompleted,
				ProviderRef: providerRef,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit refund event")
		}

		completed, err := refundRepo.SumCompletedByOrder(ctx, refund.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum completed refunds")
		}
		if completed >= order.TotalCents && orders.CanTransition(order.Status, enums.OrderStatusRefunded) {
			if _, err := s.lifecycle.TransitionTx(ctx, tx, orders.TransitionInput{
				OrderID: order.ID,
				Target:  enums.OrderStatusRefunded,
				Actor:   orders.Actor{Role: enums.ActorRoleSystem},
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	refund.Status = enums.RefundStatusCompleted
	refund.CompletedAt = &now
	if providerRef != "" {
		refund.ProviderRefundRef = &providerRef
	}
	return refund, nil
}

// checkSettleable verifies that completing this refund keeps the sum of
// completed refunds within the order total.
func (s *service) checkSettleable(ctx context.Context, repo Repository, order *models.Order, refund *models.Refund) error {
	completed, err := repo.SumCompletedByOrder(ctx, refund.OrderID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum completed refunds")
	}
	refundable := order.TotalCents - completed
	if refundable < 0 {
		refundable = 0
	}
	if refund.AmountCents > refundable {
		return pkgerrors.New(pkgerrors.CodeAmountExceedsRefundable,
			fmt.Sprintf("settling %d exceeds refundable balance %d", refund.AmountCents, refundable)).
			WithDetails(map[string]any{
				"amount":     refund.AmountCents,
				"refundable": refundable,
			})
	}
	return nil
}

func (s *service) settleWithProvider(ctx context.Context, order *models.Order, refund *models.Refund) (string, error) {
	if order.PaymentMethod.IsManual() {
		return fmt.Sprintf("manual-%s", uuid.NewString()), nil
	}
	if order.ProviderPaymentRef == nil || *order.ProviderPaymentRef == "" {
		return "", pkgerrors.New(pkgerrors.CodeProviderFailure, "order has no provider payment reference")
	}
	reason := ""
	if refund.Reason != nil {
		reason = *refund.Reason
	}
	// Keyed by refund id so a replayed settlement of the same row cannot
	// move money twice.
	result, err := s.provider.RefundPayment(ctx, square.RefundCreateParams{
		PaymentID:      *order.ProviderPaymentRef,
		AmountCents:    int64(refund.AmountCents),
		Currency:       order.Currency,
		Reason:         reason,
		IdempotencyKey: fmt.Sprintf("refund-%s", refund.ID),
	})
	if err != nil {
		return "", err
	}
	if result == nil {
		return "", pkgerrors.New(pkgerrors.CodeProviderFailure, "provider returned no refund")
	}
	return result.GetID(), nil
}

func (s *service) markFailed(ctx context.Context, refund *models.Refund, cause error) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		refundRepo := s.repo.WithTx(tx)
		if err := refundRepo.MarkFailed(ctx, refund.ID, cause.Error()); err != nil {
			return err
		}
		event := outbox.DomainEvent{
			EventType:     enums.EventRefundFailed,
			AggregateType: enums.AggregateRefund,
			AggregateID:   refund.ID,
			Version:       1,
			Actor:         outbox.SystemActor(),
			Data: payloads.RefundSettledEvent{
				RefundID:    refund.ID,
				OrderID:     refund.OrderID,
				AmountCents: refund.AmountCents,
				Status:      enums.RefundStatusFailed,
				Failure:     cause.Error(),
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
}

// RetryUnsettled reprocesses failed refunds with attempts remaining and
// stale pending rows. Individual failures are logged and skipped so one bad
// refund cannot stall the batch.
func (s *service) RetryUnsettled(ctx context.Context, maxAttempts int, olderThan time.Time, limit int) (int, error) {
	candidates, err := s.repo.ListRetryable(ctx, maxAttempts, olderThan, limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list retryable refunds")
	}
	settled := 0
	for _, candidate := range candidates {
		if _, err := s.ProcessRefund(ctx, candidate.ID); err != nil {
			s.logg.Error(s.logg.WithField(ctx, "refund_id", candidate.ID.String()), "retry refund", err)
			continue
		}
		settled++
	}
	return settled, nil
}

func (s *service) ListForOrder(ctx context.Context, orderID uuid.UUID) ([]models.Refund, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	refunds, err := s.repo.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list refunds")
	}
	return refunds, nil
}
