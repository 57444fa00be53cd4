package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/mariselaquino/tradepost-backend/api/responses"
	"github.com/mariselaquino/tradepost-backend/api/validators"
	"github.com/mariselaquino/tradepost-backend/internal/disputes"
	"github.com/mariselaquino/tradepost-backend/pkg/db/models"
	"github.com/mariselaquino/tradepost-backend/pkg/enums"
	pkgerrors "github.com/mariselaquino/tradepost-backend/pkg/errors"
	"github.com/mariselaquino/tradepost-backend/pkg/logger"
	"github.com/mariselaquino/tradepost-backend/pkg/pagination"
)

type fileDisputeRequest struct {
	OrderID     string   `json:"order_id" validate:"required,uuid"`
	Type        string   `json:"type" validate:"required"`
	Description string   `json:"description" validate:"required,min=10,max=5000"`
	Evidence    []string `json:"evidence,omitempty" validate:"omitempty,max=10,dive,max=2048"`
}

type disputeMessageRequest struct {
	Body string `json:"body" validate:"required,min=1,max=5000"`
}

type resolveDisputeRequest struct {
	Resolution string `json:"resolution" validate:"required,min=1,max=5000"`
}

// FileDispute opens a dispute against a delivered order.
func FileDispute(svc disputes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "disputes service unavailable"))
			return
		}

		var req fileDisputeRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := uuid.Parse(req.OrderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id"))
			return
		}

		disputeType, err := enums.ParseDisputeType(strings.TrimSpace(req.Type))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid dispute type"))
			return
		}

		actor, err := disputeActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dispute, err := svc.File(r.Context(), disputes.FileInput{
			OrderID:     orderID,
			Type:        disputeType,
			Description: validators.SanitizeString(req.Description, 5000),
			Evidence:    req.Evidence,
			Actor:       actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, disputeToView(dispute))
	}
}

// DisputeDetail returns one dispute with its message thread.
func DisputeDetail(svc disputes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "disputes service unavailable"))
			return
		}

		disputeID, err := validators.ParseURLParamUUID(r, "disputeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actor, err := disputeActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dispute, err := svc.Get(r.Context(), disputeID, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, disputeToView(dispute))
	}
}

// AddDisputeMessage appends a message to a dispute thread.
func AddDisputeMessage(svc disputes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "disputes service unavailable"))
			return
		}

		disputeID, err := validators.ParseURLParamUUID(r, "disputeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req disputeMessageRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actor, err := disputeActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		msg, err := svc.AddMessage(r.Context(), disputes.MessageInput{
			DisputeID: disputeID,
			Body:      validators.SanitizeString(req.Body, 5000),
			Actor:     actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, disputeMessageToView(msg))
	}
}

// EscalateDispute moves a dispute to admin review.
func EscalateDispute(svc disputes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "disputes service unavailable"))
			return
		}

		disputeID, err := validators.ParseURLParamUUID(r, "disputeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actor, err := disputeActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dispute, err := svc.Escalate(r.Context(), disputeID, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, disputeToView(dispute))
	}
}

// ResolveDispute records an admin resolution.
func ResolveDispute(svc disputes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "disputes service unavailable"))
			return
		}

		disputeID, err := validators.ParseURLParamUUID(r, "disputeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req resolveDisputeRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actor, err := disputeActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dispute, err := svc.Resolve(r.Context(), disputes.ResolveInput{
			DisputeID:  disputeID,
			Resolution: validators.SanitizeString(req.Resolution, 5000),
			Actor:      actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, disputeToView(dispute))
	}
}

// CloseDispute closes a dispute without admin resolution.
func CloseDispute(svc disputes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "disputes service unavailable"))
			return
		}

		disputeID, err := validators.ParseURLParamUUID(r, "disputeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actor, err := disputeActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dispute, err := svc.Close(r.Context(), disputeID, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, disputeToView(dispute))
	}
}

// ListDisputes pages disputes for the caller: customers see their filings,
// vendors their store's, admins the escalated review queue.
func ListDisputes(svc disputes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "disputes service unavailable"))
			return
		}

		page, err := pageFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		role, err := requireRole(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var (
			list  []models.Dispute
			total int64
		)
		switch role {
		case enums.ActorRoleAdmin:
			list, total, err = svc.ListForReview(r.Context(), page)
		case enums.ActorRoleVendor:
			storeID, sErr := storeIDFromRequest(r)
			if sErr != nil {
				responses.WriteError(r.Context(), logg, w, sErr)
				return
			}
			if storeID == nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "store context missing"))
				return
			}
			list, total, err = svc.ListForVendor(r.Context(), *storeID, page)
		default:
			userID, uErr := requireUserID(r)
			if uErr != nil {
				responses.WriteError(r.Context(), logg, w, uErr)
				return
			}
			list, total, err = svc.ListForCustomer(r.Context(), userID, page)
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, listResponse{
			Items: disputesToViews(list),
			Meta:  pagination.MetaFor(page, total),
		})
	}
}
