package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mariselaquino/tradepost-backend/api/controllers"
	"github.com/mariselaquino/tradepost-backend/api/middleware"
	"github.com/mariselaquino/tradepost-backend/internal/checkout"
	"github.com/mariselaquino/tradepost-backend/internal/disputes"
	"github.com/mariselaquino/tradepost-backend/internal/notifications"
	"github.com/mariselaquino/tradepost-backend/internal/orders"
	"github.com/mariselaquino/tradepost-backend/internal/payments"
	"github.com/mariselaquino/tradepost-backend/internal/refunds"
	"github.com/mariselaquino/tradepost-backend/pkg/config"
	"github.com/mariselaquino/tradepost-backend/pkg/enums"
	"github.com/mariselaquino/tradepost-backend/pkg/logger"
)

// Services bundles everything the HTTP surface depends on.
type Services struct {
	Checkout      checkout.Service
	Orders        orders.Service
	Payments      payments.Service
	Refunds       refunds.Service
	Disputes      disputes.Service
	Notifications notifications.Service
}

// NewRouter wires middleware and every API route.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	resources map[string]controllers.Pinger,
	idempotencyStore middleware.IdempotencyStore,
	svcs Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, resources))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(idempotencyStore, logg))

		r.Post("/checkout/quote", controllers.CheckoutQuote(svcs.Checkout, logg))
		r.Post("/checkout", controllers.Checkout(svcs.Checkout, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.ListOrders(svcs.Orders, logg))
			r.Get("/{orderId}", controllers.OrderDetail(svcs.Orders, logg))
			r.Get("/{orderId}/events", controllers.OrderEvents(svcs.Orders, logg))
			r.Post("/{orderId}/cancel", controllers.CancelOrder(svcs.Orders, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.ActorRoleVendor, enums.ActorRoleAdmin))
				r.Post("/{orderId}/transition", controllers.TransitionOrder(svcs.Orders, logg))
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.ActorRoleAdmin))
				r.Post("/{orderId}/capture", controllers.CapturePayment(svcs.Payments, logg))
				r.Get("/{orderId}/refundable", controllers.RefundableAmount(svcs.Refunds, logg))
				r.Get("/{orderId}/refunds", controllers.ListOrderRefunds(svcs.Refunds, logg))
			})
		})

		r.Route("/refunds", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.ActorRoleVendor, enums.ActorRoleAdmin))
				r.Post("/", controllers.InitiateRefund(svcs.Refunds, logg))
			})
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.ActorRoleAdmin))
				r.Post("/{refundId}/process", controllers.ProcessRefund(svcs.Refunds, logg))
			})
		})

		r.Route("/disputes", func(r chi.Router) {
			r.Get("/", controllers.ListDisputes(svcs.Disputes, logg))
			r.Post("/", controllers.FileDispute(svcs.Disputes, logg))
			r.Get("/{disputeId}", controllers.DisputeDetail(svcs.Disputes, logg))
			r.Post("/{disputeId}/messages", controllers.AddDisputeMessage(svcs.Disputes, logg))
			r.Post("/{disputeId}/escalate", controllers.EscalateDispute(svcs.Disputes, logg))
			r.Post("/{disputeId}/close", controllers.CloseDispute(svcs.Disputes, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.ActorRoleAdmin))
				r.Post("/{disputeId}/resolve", controllers.ResolveDispute(svcs.Disputes, logg))
			})
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(svcs.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(svcs.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(svcs.Notifications, logg))
		})
	})

	return r
}
