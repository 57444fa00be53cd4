package controllers

import (
	"time"

	"github.com/google/uuid"

	"github.com/mariselaquino/tradepost-backend/internal/checkout"
	"github.com/mariselaquino/tradepost-backend/pkg/db/models"
	"github.com/mariselaquino/tradepost-backend/pkg/pagination"
)

// listResponse wraps a page of items together with pagination metadata.
type listResponse struct {
	Items any             `json:"items"`
	Meta  pagination.Meta `json:"meta"`
}

type orderItemView struct {
	ID             uuid.UUID `json:"id"`
	ProductID      uuid.UUID `json:"product_id"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int       `json:"unit_price_cents"`
	DiscountCents  int       `json:"discount_cents"`
	TotalCents     int       `json:"total_cents"`
}

type orderView struct {
	ID                       uuid.UUID       `json:"id"`
	OrderNumber              int64           `json:"order_number"`
	UserID                   uuid.UUID       `json:"user_id"`
	VendorStoreID            uuid.UUID       `json:"vendor_store_id"`
	Currency                 string          `json:"currency"`
	Status                   string          `json:"status"`
	PaymentStatus            string          `json:"payment_status"`
	PaymentMethod            string          `json:"payment_method"`
	SubtotalCents            int             `json:"subtotal_cents"`
	DiscountsCents           int             `json:"discounts_cents"`
	ShippingCents            int             `json:"shipping_cents"`
	TaxCents                 int             `json:"tax_cents"`
	TotalCents               int             `json:"total_cents"`
	CapturedCents            int             `json:"captured_cents"`
	FinalCaptured            bool            `json:"final_captured"`
	BuyerProtection          bool            `json:"buyer_protection"`
	BuyerProtectionExpiresAt *time.Time      `json:"buyer_protection_expires_at,omitempty"`
	PaidAt                   *time.Time      `json:"paid_at,omitempty"`
	DeliveredAt              *time.Time      `json:"delivered_at,omitempty"`
	CancelledAt              *time.Time      `json:"cancelled_at,omitempty"`
	RefundedAt               *time.Time      `json:"refunded_at,omitempty"`
	Notes                    *string         `json:"notes,omitempty"`
	Items                    []orderItemView `json:"items,omitempty"`
	CreatedAt                time.Time       `json:"created_at"`
	UpdatedAt                time.Time       `json:"updated_at"`
}

func orderToView(order *models.Order) orderView {
	view := orderView{
		ID:                       order.ID,
		OrderNumber:              order.OrderNumber,
		UserID:                   order.UserID,
		VendorStoreID:            order.VendorStoreID,
		Currency:                 order.Currency,
		Status:                   string(order.Status),
		PaymentStatus:            string(order.PaymentStatus),
		PaymentMethod:            string(order.PaymentMethod),
		SubtotalCents:            order.SubtotalCents,
		DiscountsCents:           order.DiscountsCents,
		ShippingCents:            order.ShippingCents,
		TaxCents:                 order.TaxCents,
		TotalCents:               order.TotalCents,
		CapturedCents:            order.CapturedCents,
		FinalCaptured:            order.FinalCaptured,
		BuyerProtection:          order.BuyerProtection,
		BuyerProtectionExpiresAt: order.BuyerProtectionExpiresAt,
		PaidAt:                   order.PaidAt,
		DeliveredAt:              order.DeliveredAt,
		CancelledAt:              order.CancelledAt,
		RefundedAt:               order.RefundedAt,
		Notes:                    order.Notes,
		CreatedAt:                order.CreatedAt,
		UpdatedAt:                order.UpdatedAt,
	}
	for _, item := range order.Items {
		view.Items = append(view.Items, orderItemView{
			ID:             item.ID,
			ProductID:      item.ProductID,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
			DiscountCents:  item.DiscountCents,
			TotalCents:     item.TotalCents,
		})
	}
	return view
}

func ordersToViews(orders []models.Order) []orderView {
	views := make([]orderView, 0, len(orders))
	for i := range orders {
		views = append(views, orderToView(&orders[i]))
	}
	return views
}

type orderEventView struct {
	ID             uuid.UUID  `json:"id"`
	OrderID        uuid.UUID  `json:"order_id"`
	PreviousStatus string     `json:"previous_status"`
	NewStatus      string     `json:"new_status"`
	ActorID        *uuid.UUID `json:"actor_id,omitempty"`
	ActorRole      string     `json:"actor_role"`
	Note           *string    `json:"note,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

func orderEventsToViews(events []models.OrderEvent) []orderEventView {
	views := make([]orderEventView, 0, len(events))
	for _, event := range events {
		views = append(views, orderEventView{
			ID:             event.ID,
			OrderID:        event.OrderID,
			PreviousStatus: string(event.PreviousStatus),
			NewStatus:      string(event.NewStatus),
			ActorID:        event.ActorID,
			ActorRole:      string(event.ActorRole),
			Note:           event.Note,
			CreatedAt:      event.CreatedAt,
		})
	}
	return views
}

type quoteLineView struct {
	ProductID      uuid.UUID `json:"product_id"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int       `json:"unit_price_cents"`
	DiscountCents  int       `json:"discount_cents"`
	TotalCents     int       `json:"total_cents"`
}

type quoteView struct {
	Currency       string          `json:"currency"`
	Lines          []quoteLineView `json:"lines"`
	SubtotalCents  int             `json:"subtotal_cents"`
	DiscountsCents int             `json:"discounts_cents"`
	ShippingCents  int             `json:"shipping_cents"`
	TaxCents       int             `json:"tax_cents"`
	TotalCents     int             `json:"total_cents"`
}

func quoteToView(quote *checkout.Quote) quoteView {
	view := quoteView{
		Currency:       quote.Currency,
		SubtotalCents:  quote.SubtotalCents,
		DiscountsCents: quote.DiscountsCents,
		ShippingCents:  quote.ShippingCents,
		TaxCents:       quote.TaxCents,
		TotalCents:     quote.TotalCents,
	}
	for _, line := range quote.Lines {
		view.Lines = append(view.Lines, quoteLineView{
			ProductID:      line.ProductID,
			Quantity:       line.Quantity,
			UnitPriceCents: line.UnitPriceCents,
			DiscountCents:  line.DiscountCents,
			TotalCents:     line.TotalCents,
		})
	}
	return view
}

type refundView struct {
	ID                uuid.UUID  `json:"id"`
	OrderID           uuid.UUID  `json:"order_id"`
	AmountCents       int        `json:"amount_cents"`
	Status            string     `json:"status"`
	Reason            *string    `json:"reason,omitempty"`
	RestoreStock      bool       `json:"restore_stock"`
	ProviderRefundRef *string    `json:"provider_refund_ref,omitempty"`
	FailureReason     *string    `json:"failure_reason,omitempty"`
	AttemptCount      int        `json:"attempt_count"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

func refundToView(refund *models.Refund) refundView {
	return refundView{
		ID:                refund.ID,
		OrderID:           refund.OrderID,
		AmountCents:       refund.AmountCents,
		Status:            string(refund.Status),
		Reason:            refund.Reason,
		RestoreStock:      refund.RestoreStock,
		ProviderRefundRef: refund.ProviderRefundRef,
		FailureReason:     refund.FailureReason,
		AttemptCount:      refund.AttemptCount,
		CompletedAt:       refund.CompletedAt,
		CreatedAt:         refund.CreatedAt,
	}
}

func refundsToViews(refunds []models.Refund) []refundView {
	views := make([]refundView, 0, len(refunds))
	for i := range refunds {
		views = append(views, refundToView(&refunds[i]))
	}
	return views
}

type disputeMessageView struct {
	ID        uuid.UUID  `json:"id"`
	DisputeID uuid.UUID  `json:"dispute_id"`
	SenderID  *uuid.UUID `json:"sender_id,omitempty"`
	Role      string     `json:"role"`
	Body      string     `json:"body"`
	IsAdmin   bool       `json:"is_admin"`
	IsSystem  bool       `json:"is_system"`
	CreatedAt time.Time  `json:"created_at"`
}

func disputeMessageToView(msg *models.DisputeMessage) disputeMessageView {
	return disputeMessageView{
		ID:        msg.ID,
		DisputeID: msg.DisputeID,
		SenderID:  msg.SenderID,
		Role:      string(msg.Role),
		Body:      msg.Body,
		IsAdmin:   msg.IsAdmin,
		IsSystem:  msg.IsSystem,
		CreatedAt: msg.CreatedAt,
	}
}

type disputeView struct {
	ID              uuid.UUID            `json:"id"`
	OrderID         uuid.UUID            `json:"order_id"`
	CustomerID      uuid.UUID            `json:"customer_id"`
	VendorStoreID   uuid.UUID            `json:"vendor_store_id"`
	Type            string               `json:"type"`
	Status          string               `json:"status"`
	Description     string               `json:"description"`
	Evidence        []string             `json:"evidence,omitempty"`
	VendorRespondBy *time.Time           `json:"vendor_respond_by,omitempty"`
	Resolution      *string              `json:"resolution,omitempty"`
	EscalatedAt     *time.Time           `json:"escalated_at,omitempty"`
	ResolvedAt      *time.Time           `json:"resolved_at,omitempty"`
	ClosedAt        *time.Time           `json:"closed_at,omitempty"`
	Messages        []disputeMessageView `json:"messages,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

func disputeToView(dispute *models.Dispute) disputeView {
	view := disputeView{
		ID:              dispute.ID,
		OrderID:         dispute.OrderID,
		CustomerID:      dispute.CustomerID,
		VendorStoreID:   dispute.VendorStoreID,
		Type:            string(dispute.Type),
		Status:          string(dispute.Status),
		Description:     dispute.Description,
		Evidence:        dispute.Evidence,
		VendorRespondBy: dispute.VendorRespondBy,
		Resolution:      dispute.Resolution,
		EscalatedAt:     dispute.EscalatedAt,
		ResolvedAt:      dispute.ResolvedAt,
		ClosedAt:        dispute.ClosedAt,
		CreatedAt:       dispute.CreatedAt,
		UpdatedAt:       dispute.UpdatedAt,
	}
	for i := range dispute.Messages {
		view.Messages = append(view.Messages, disputeMessageToView(&dispute.Messages[i]))
	}
	return view
}

func disputesToViews(disputes []models.Dispute) []disputeView {
	views := make([]disputeView, 0, len(disputes))
	for i := range disputes {
		views = append(views, disputeToView(&disputes[i]))
	}
	return views
}

type notificationView struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"user_id"`
	Type      string     `json:"type"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	Link      *string    `json:"link,omitempty"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func notificationsToViews(items []models.Notification) []notificationView {
	views := make([]notificationView, 0, len(items))
	for _, item := range items {
		views = append(views, notificationView{
			ID:        item.ID,
			UserID:    item.UserID,
			Type:      string(item.Type),
			Title:     item.Title,
			Message:   item.Message,
			Link:      item.Link,
			ReadAt:    item.ReadAt,
			CreatedAt: item.CreatedAt,
		})
	}
	return views
}
