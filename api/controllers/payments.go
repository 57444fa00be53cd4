package controllers

import (
	"net/http"

	"github.com/mariselaquino/tradepost-backend/api/responses"
	"github.com/mariselaquino/tradepost-backend/api/validators"
	"github.com/mariselaquino/tradepost-backend/internal/payments"
	pkgerrors "github.com/mariselaquino/tradepost-backend/pkg/errors"
	"github.com/mariselaquino/tradepost-backend/pkg/logger"
)

type captureRequest struct {
	AmountCents  *int   `json:"amount_cents,omitempty" validate:"omitempty,gt=0"`
	FinalCapture bool   `json:"final_capture"`
	SourceID     string `json:"source_id,omitempty"`
}

// CapturePayment captures payment against an order. A missing amount
// captures the outstanding remainder.
func CapturePayment(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		orderID, err := validators.ParseURLParamUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req captureRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actor, err := orderActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.CapturePayment(r.Context(), payments.CaptureInput{
			OrderID:      orderID,
			AmountCents:  req.AmountCents,
			FinalCapture: req.FinalCapture,
			SourceID:     req.SourceID,
			Actor:        actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, orderToView(order))
	}
}
