package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/mariselaquino/tradepost-backend/api/responses"
	"github.com/mariselaquino/tradepost-backend/api/validators"
	"github.com/mariselaquino/tradepost-backend/internal/checkout"
	"github.com/mariselaquino/tradepost-backend/pkg/enums"
	pkgerrors "github.com/mariselaquino/tradepost-backend/pkg/errors"
	"github.com/mariselaquino/tradepost-backend/pkg/logger"
)

type checkoutLineRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

type checkoutRequest struct {
	VendorStoreID   string                `json:"vendor_store_id" validate:"required,uuid"`
	PaymentMethod   string                `json:"payment_method" validate:"required"`
	Lines           []checkoutLineRequest `json:"lines" validate:"required,min=1,dive"`
	ShippingCents   int                   `json:"shipping_cents" validate:"min=0"`
	TaxCents        int                   `json:"tax_cents" validate:"min=0"`
	BuyerProtection bool                  `json:"buyer_protection"`
	Notes           *string               `json:"notes,omitempty"`
}

func (req checkoutRequest) toInput(userID uuid.UUID) (checkout.CheckoutInput, error) {
	vendorStoreID, err := uuid.Parse(req.VendorStoreID)
	if err != nil {
		return checkout.CheckoutInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid vendor store id")
	}
	method, err := enums.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		return checkout.CheckoutInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method")
	}

	input := checkout.CheckoutInput{
		UserID:          userID,
		VendorStoreID:   vendorStoreID,
		PaymentMethod:   method,
		ShippingCents:   req.ShippingCents,
		TaxCents:        req.TaxCents,
		BuyerProtection: req.BuyerProtection,
		Notes:           req.Notes,
	}
	for _, line := range req.Lines {
		productID, err := uuid.Parse(line.ProductID)
		if err != nil {
			return checkout.CheckoutInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id")
		}
		input.Lines = append(input.Lines, checkout.LineInput{ProductID: productID, Quantity: line.Quantity})
	}
	return input, nil
}

// CheckoutQuote prices a cart without holding stock or creating an order.
func CheckoutQuote(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		userID, err := requireUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req checkoutRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := req.toInput(userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		quote, err := svc.Quote(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, quoteToView(quote))
	}
}

// Checkout places a pending order, holding stock for each line.
func Checkout(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		userID, err := requireUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req checkoutRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := req.toInput(userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.PlaceOrder(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, orderToView(order))
	}
}
