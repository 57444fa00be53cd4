package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/mariselaquino/tradepost-backend/api/middleware"
	"github.com/mariselaquino/tradepost-backend/internal/checkout"
	"github.com/mariselaquino/tradepost-backend/pkg/db/models"
	"github.com/mariselaquino/tradepost-backend/pkg/enums"
)

type stubCheckout struct {
	quote     *checkout.Quote
	order     *models.Order
	lastInput checkout.CheckoutInput
	err       error
}

func (s *stubCheckout) Quote(_ context.Context, input checkout.CheckoutInput) (*checkout.Quote, error) {
	s.lastInput = input
	return s.quote, s.err
}

func (s *stubCheckout) PlaceOrder(_ context.Context, input checkout.CheckoutInput) (*models.Order, error) {
	s.lastInput = input
	return s.order, s.err
}

func authedRequest(method, url, body string) *http.Request {
	req := httptest.NewRequest(method, url, strings.NewReader(body))
	ctx := middleware.WithUserID(req.Context(), uuid.NewString())
	ctx = middleware.WithRole(ctx, string(enums.ActorRoleCustomer))
	return req.WithContext(ctx)
}

func TestCheckoutRejectsMissingBodyFields(t *testing.T) {
	svc := &stubCheckout{}
	handler := Checkout(svc, nil)

	req := authedRequest(http.MethodPost, "/api/v1/checkout", `{"lines":[]}`)
	resp := httptest.NewRecorder()
	handler(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestCheckoutPlacesOrder(t *testing.T) {
	orderID := uuid.New()
	svc := &stubCheckout{order: &models.Order{ID: orderID, Currency: "USD"}}
	handler := Checkout(svc, nil)

	productID := uuid.NewString()
	vendorID := uuid.NewString()
	body := `{"vendor_store_id":"` + vendorID + `","payment_method":"card","lines":[{"product_id":"` + productID + `","quantity":2}],"shipping_cents":500}`
	req := authedRequest(http.MethodPost, "/api/v1/checkout", body)
	resp := httptest.NewRecorder()
	handler(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.lastInput.PaymentMethod != enums.PaymentMethodCard {
		t.Fatalf("unexpected payment method %s", svc.lastInput.PaymentMethod)
	}
	if len(svc.lastInput.Lines) != 1 || svc.lastInput.Lines[0].Quantity != 2 {
		t.Fatalf("unexpected lines %+v", svc.lastInput.Lines)
	}
	if svc.lastInput.ShippingCents != 500 {
		t.Fatalf("unexpected shipping %d", svc.lastInput.ShippingCents)
	}

	var envelope struct {
		Data orderView `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.ID != orderID {
		t.Fatalf("expected order id %s got %s", orderID, envelope.Data.ID)
	}
}

func TestCheckoutQuoteRejectsInvalidPaymentMethod(t *testing.T) {
	svc := &stubCheckout{quote: &checkout.Quote{Currency: "USD"}}
	handler := CheckoutQuote(svc, nil)

	body := `{"vendor_store_id":"` + uuid.NewString() + `","payment_method":"crypto","lines":[{"product_id":"` + uuid.NewString() + `","quantity":1}]}`
	req := authedRequest(http.MethodPost, "/api/v1/checkout/quote", body)
	resp := httptest.NewRecorder()
	handler(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestCheckoutRequiresUserContext(t *testing.T) {
	svc := &stubCheckout{}
	handler := Checkout(svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(`{}`))
	resp := httptest.NewRecorder()
	handler(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}
