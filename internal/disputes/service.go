package disputes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/mariselaquino/tradepost-backend/internal/orders"
	"github.com/mariselaquino/tradepost-backend/pkg/db/models"
	"github.com/mariselaquino/tradepost-backend/pkg/enums"
	pkgerrors "github.com/mariselaquino/tradepost-backend/pkg/errors"
	"github.com/mariselaquino/tradepost-backend/pkg/logger"
	"github.com/mariselaquino/tradepost-backend/pkg/outbox"
	"github.com/mariselaquino/tradepost-backend/pkg/outbox/payloads"
	"github.com/mariselaquino/tradepost-backend/pkg/pagination"
)

const (
	// DefaultFilingWindow is how long after delivery a buyer may open a
	// dispute.
	DefaultFilingWindow = 30 * 24 * time.Hour

	// DefaultVendorSLA is how long a vendor has to respond before the sweep
	// escalates to admin review.
	DefaultVendorSLA = 72 * time.Hour

	slaEscalationBody = "The vendor did not respond within the required window. This dispute has been escalated for admin review."
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Actor identifies who is acting on a dispute. StoreID is set for vendor
// actors and checked against the dispute's vendor store.
type Actor struct {
	ID      *uuid.UUID
	StoreID *uuid.UUID
	Role    enums.ActorRole
}

// FileInput describes a new dispute filing.
type FileInput struct {
	OrderID     uuid.UUID
	Type        enums.DisputeType
	Description string
	Evidence    []string
	Actor       Actor
}

// MessageInput appends one message to a dispute thread.
type MessageInput struct {
	DisputeID uuid.UUID
	Body      string
	Actor     Actor
}

// ResolveInput records an admin resolution.
type ResolveInput struct {
	DisputeID  uuid.UUID
	Resolution string
	Actor      Actor
}

// Service owns the dispute lifecycle.
type Service interface {
	File(ctx context.Context, input FileInput) (*models.Dispute, error)
	Get(ctx context.Context, disputeID uuid.UUID, actor Actor) (*models.Dispute, error)
	AddMessage(ctx context.Context, input MessageInput) (*models.DisputeMessage, error)
	Escalate(ctx context.Context, disputeID uuid.UUID, actor Actor) (*models.Dispute, error)
	Resolve(ctx context.Context, input ResolveInput) (*models.Dispute, error)
	Close(ctx context.Context, disputeID uuid.UUID, actor Actor) (*models.Dispute, error)
	ListForCustomer(ctx context.Context, customerID uuid.UUID, page pagination.Page) ([]models.Dispute, int64, error)
	ListForVendor(ctx context.Context, vendorStoreID uuid.UUID, page pagination.Page) ([]models.Dispute, int64, error)
	ListForReview(ctx context.Context, page pagination.Page) ([]models.Dispute, int64, error)
	SweepVendorSLA(ctx context.Context, limit int) (int, error)
}

type service struct {
	repo      Repository
	orders    orders.Repository
	tx        txRunner
	outbox    outbox.Emitter
	logg      *logger.Logger
	window    time.Duration
	vendorSLA time.Duration
	now       func() time.Time
}

// NewService builds a dispute service. Zero window/SLA fall back to the
// defaults.
func NewService(repo Repository, orderRepo orders.Repository, tx txRunner, emitter outbox.Emitter, logg *logger.Logger, window, vendorSLA time.Duration) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("disputes repository required")
	}
	if orderRepo == nil {
		return nil, fmt.Errorf("orders repository required")
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
	if window <= 0 {
		window = DefaultFilingWindow
	}
	if vendorSLA <= 0 {
		vendorSLA = DefaultVendorSLA
	}
	return &service{
		repo:      repo,
		orders:    orderRepo,
		tx:        tx,
		outbox:    emitter,
		logg:      logg,
		window:    window,
		vendorSLA: vendorSLA,
		now:       time.Now,
	}, nil
}

func (s *service) File(ctx context.Context, input FileInput) (*models.Dispute, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown dispute type")
	}
	if strings.TrimSpace(input.Description) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "description required")
	}
	if input.Actor.ID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor required")
	}

	var created *models.Dispute
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := s.orders.WithTx(tx).FindByID(ctx, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if input.Actor.Role != enums.ActorRoleAdmin && order.UserID != *input.Actor.ID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the buyer can file a dispute")
		}
		if order.Status != enums.OrderStatusDelivered || order.DeliveredAt == nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "disputes can only be filed against delivered orders")
		}
		now := s.now()
		if now.After(order.DeliveredAt.Add(s.window)) {
			return pkgerrors.New(pkgerrors.CodeValidation, "dispute filing window has passed").
				WithDetails(map[string]any{
					"delivered_at": order.DeliveredAt,
					"window_days":  int(s.window.Hours() / 24),
				})
		}

		open, err := repo.ExistsOpenForOrder(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing disputes")
		}
		if open {
			return pkgerrors.New(pkgerrors.CodeConflict, "order already has an active dispute")
		}

		respondBy := now.Add(s.vendorSLA)
		dispute := &models.Dispute{
			ID:              uuid.New(),
			OrderID:         order.ID,
			CustomerID:      order.UserID,
			VendorStoreID:   order.VendorStoreID,
			Type:            input.Type,
			Status:          enums.DisputeStatusPendingVendorResponse,
			Description:     input.Description,
			Evidence:        pq.StringArray(input.Evidence),
			VendorRespondBy: &respondBy,
		}
		if err := repo.Create(ctx, dispute); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create dispute")
		}

		if err := s.emitLifecycle(ctx, tx, enums.EventDisputeOpened, dispute, input.Actor, false); err != nil {
			return err
		}
		created = dispute
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *service) Get(ctx context.Context, disputeID uuid.UUID, actor Actor) (*models.Dispute, error) {
	dispute, err := s.load(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(dispute, actor); err != nil {
		return nil, err
	}
	return dispute, nil
}

func (s *service) AddMessage(ctx context.Context, input MessageInput) (*models.DisputeMessage, error) {
	if strings.TrimSpace(input.Body) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "message body required")
	}

	var message *models.DisputeMessage
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		dispute, err := s.loadWith(ctx, repo, input.DisputeID)
		if err != nil {
			return err
		}
		if err := s.authorize(dispute, input.Actor); err != nil {
			return err
		}
		if dispute.Status == enums.DisputeStatusClosed {
			return pkgerrors.New(pkgerrors.CodeDisputeClosed, "dispute is closed")
		}

		message = &models.DisputeMessage{
			ID:        uuid.New(),
			DisputeID: dispute.ID,
			SenderID:  input.Actor.ID,
			Role:      input.Actor.Role,
			Body:      input.Body,
			IsAdmin:   input.Actor.Role == enums.ActorRoleAdmin,
		}
		if err := repo.AppendMessage(ctx, message); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append message")
		}

		// A vendor reply satisfies the response SLA and reopens the thread
		// for the customer.
		if input.Actor.Role == enums.ActorRoleVendor && dispute.Status == enums.DisputeStatusPendingVendorResponse {
			moved, err := repo.UpdateStatusGuarded(ctx, dispute.ID, enums.DisputeStatusPendingVendorResponse, map[string]any{
				"status":            enums.DisputeStatusOpen,
				"vendor_respond_by": nil,
			})
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reopen dispute")
			}
			if !moved {
				return pkgerrors.New(pkgerrors.CodeConflict, "dispute status changed concurrently")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return message, nil
}

func (s *service) Escalate(ctx context.Context, disputeID uuid.UUID, actor Actor) (*models.Dispute, error) {
	var escalated *models.Dispute
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		dispute, err := s.loadWith(ctx, repo, disputeID)
		if err != nil {
			return err
		}
		if err := s.authorize(dispute, actor); err != nil {
			return err
		}
		switch dispute.Status {
		case enums.DisputeStatusClosed:
			return pkgerrors.New(pkgerrors.CodeDisputeClosed, "dispute is closed")
		case enums.DisputeStatusPendingAdminReview:
			return pkgerrors.New(pkgerrors.CodeConflict, "dispute already escalated")
		case enums.DisputeStatusResolved:
			return pkgerrors.New(pkgerrors.CodeConflict, "dispute already resolved")
		}

		now := s.now()
		moved, err := repo.UpdateStatusGuarded(ctx, dispute.ID, dispute.Status, map[string]any{
			"status":       enums.DisputeStatusPendingAdminReview,
			"escalated_at": now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "escalate dispute")
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeConflict, "dispute status changed concurrently")
		}
		dispute.Status = enums.DisputeStatusPendingAdminReview
		dispute.EscalatedAt = &now

		if err := s.emitLifecycle(ctx, tx, enums.EventDisputeEscalated, dispute, actor, false); err != nil {
			return err
		}
		escalated = dispute
		return nil
	})
	if err != nil {
		return nil, err
	}
	return escalated, nil
}

func (s *service) Resolve(ctx context.Context, input ResolveInput) (*models.Dispute, error) {
	if strings.TrimSpace(input.Resolution) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "resolution required")
	}
	if input.Actor.Role != enums.ActorRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only admins can resolve disputes")
	}

	var resolved *models.Dispute
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		dispute, err := s.loadWith(ctx, repo, input.DisputeID)
		if err != nil {
			return err
		}
		switch dispute.Status {
		case enums.DisputeStatusClosed:
			return pkgerrors.New(pkgerrors.CodeDisputeClosed, "dispute is closed")
		case enums.DisputeStatusResolved:
			return pkgerrors.New(pkgerrors.CodeConflict, "dispute already resolved")
		}

		now := s.now()
		moved, err := repo.UpdateStatusGuarded(ctx, dispute.ID, dispute.Status, map[string]any{
			"status":      enums.DisputeStatusResolved,
			"resolution":  input.Resolution,
			"resolved_by": input.Actor.ID,
			"resolved_at": now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve dispute")
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeConflict, "dispute status changed concurrently")
		}
		dispute.Status = enums.DisputeStatusResolved
		dispute.Resolution = &input.Resolution
		dispute.ResolvedBy = input.Actor.ID
		dispute.ResolvedAt = &now

		if err := s.emitLifecycle(ctx, tx, enums.EventDisputeResolved, dispute, input.Actor, false); err != nil {
			return err
		}
		resolved = dispute
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resolved, nil
}

func (s *service) Close(ctx context.Context, disputeID uuid.UUID, actor Actor) (*models.Dispute, error) {
	var closed *models.Dispute
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		dispute, err := s.loadWith(ctx, repo, disputeID)
		if err != nil {
			return err
		}
		if actor.Role != enums.ActorRoleAdmin {
			if actor.Role != enums.ActorRoleCustomer || actor.ID == nil || *actor.ID != dispute.CustomerID {
				return pkgerrors.New(pkgerrors.CodeForbidden, "only the filing customer or an admin can close a dispute")
			}
		}
		if dispute.Status == enums.DisputeStatusClosed {
			closed = dispute
			return nil
		}

		now := s.now()
		moved, err := repo.UpdateStatusGuarded(ctx, dispute.ID, dispute.Status, map[string]any{
			"status":    enums.DisputeStatusClosed,
			"closed_at": now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "close dispute")
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeConflict, "dispute status changed concurrently")
		}
		dispute.Status = enums.DisputeStatusClosed
		dispute.ClosedAt = &now

		if err := s.emitLifecycle(ctx, tx, enums.EventDisputeClosed, dispute, actor, false); err != nil {
			return err
		}
		closed = dispute
		return nil
	})
	if err != nil {
		return nil, err
	}
	return closed, nil
}

func (s *service) ListForCustomer(ctx context.Context, customerID uuid.UUID, page pagination.Page) ([]models.Dispute, int64, error) {
	return s.repo.ListByCustomer(ctx, customerID, page)
}

func (s *service) ListForVendor(ctx context.Context, vendorStoreID uuid.UUID, page pagination.Page) ([]models.Dispute, int64, error) {
	return s.repo.ListByVendor(ctx, vendorStoreID, page)
}

func (s *service) ListForReview(ctx context.Context, page pagination.Page) ([]models.Dispute, int64, error) {
	return s.repo.ListByStatus(ctx, enums.DisputeStatusPendingAdminReview, page)
}

// SweepVendorSLA escalates vendor-pending disputes past their response
// deadline. Each escalation appends exactly one system-authored message; the
// guarded status update keeps a rerun (or a concurrent sweep) from appending
// a second.
func (s *service) SweepVendorSLA(ctx context.Context, limit int) (int, error) {
	now := s.now()
	breached, err := s.repo.FindSLABreached(ctx, now, limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find sla-breached disputes")
	}

	escalated := 0
	for i := range breached {
		dispute := breached[i]
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			moved, err := repo.UpdateStatusGuarded(ctx, dispute.ID, enums.DisputeStatusPendingVendorResponse, map[string]any{
				"status":       enums.DisputeStatusPendingAdminReview,
				"escalated_at": now,
			})
			if err != nil {
				return err
			}
			if !moved {
				return nil
			}
			if err := repo.AppendMessage(ctx, &models.DisputeMessage{
				ID:        uuid.New(),
				DisputeID: dispute.ID,
				Role:      enums.ActorRoleSystem,
				Body:      slaEscalationBody,
				IsSystem:  true,
			}); err != nil {
				return err
			}
			dispute.Status = enums.DisputeStatusPendingAdminReview
			if err := s.emitLifecycle(ctx, tx, enums.EventDisputeEscalated, &dispute, Actor{Role: enums.ActorRoleSystem}, true); err != nil {
				return err
			}
			escalated++
			return nil
		})
		if err != nil {
			s.logg.Error(s.logg.WithDisputeID(ctx, dispute.ID.String()), "escalate sla-breached dispute", err)
		}
	}
	return escalated, nil
}

func (s *service) load(ctx context.Context, disputeID uuid.UUID) (*models.Dispute, error) {
	return s.loadWith(ctx, s.repo, disputeID)
}

func (s *service) loadWith(ctx context.Context, repo Repository, disputeID uuid.UUID) (*models.Dispute, error) {
	if disputeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "dispute id required")
	}
	dispute, err := repo.FindByID(ctx, disputeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "dispute not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load dispute")
	}
	return dispute, nil
}

// authorize restricts dispute access to the filing customer, the named
// vendor store, and admins.
func (s *service) authorize(dispute *models.Dispute, actor Actor) error {
	switch actor.Role {
	case enums.ActorRoleAdmin:
		return nil
	case enums.ActorRoleCustomer:
		if actor.ID != nil && *actor.ID == dispute.CustomerID {
			return nil
		}
	case enums.ActorRoleVendor:
		if actor.StoreID != nil && *actor.StoreID == dispute.VendorStoreID {
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "not a participant in this dispute")
}

func (s *service) emitLifecycle(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, dispute *models.Dispute, actor Actor, autoEscalated bool) error {
	actorRef := &outbox.ActorRef{UserID: actor.ID, StoreID: actor.StoreID, Role: actor.Role}
	if actor.Role == enums.ActorRoleSystem {
		actorRef = outbox.SystemActor()
	}
	event := outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateDispute,
		AggregateID:   dispute.ID,
		Version:       1,
		Actor:         actorRef,
		Data: payloads.DisputeLifecycleEvent{
			DisputeID:     dispute.ID,
			OrderID:       dispute.OrderID,
			CustomerID:    dispute.CustomerID,
			VendorStoreID: dispute.VendorStoreID,
			Status:        dispute.Status,
			AutoEscalated: autoEscalated,
		},
	}
	if autoEscalated {
		if err := s.outbox.EmitIfNotExists(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit dispute event")
		}
		return nil
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit dispute event")
	}
	return nil
}
