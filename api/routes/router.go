package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/gamestore-backend/api/controllers"
	webhookcontrollers "github.com/angelmondragon/gamestore-backend/api/controllers/webhooks"
	"github.com/angelmondragon/gamestore-backend/api/middleware"
	"github.com/angelmondragon/gamestore-backend/internal/auth"
	"github.com/angelmondragon/gamestore-backend/internal/orders"
	"github.com/angelmondragon/gamestore-backend/internal/payments"
	"github.com/angelmondragon/gamestore-backend/internal/reconciliation"
	"github.com/angelmondragon/gamestore-backend/internal/shipping"
	"github.com/angelmondragon/gamestore-backend/internal/webhooks"
	"github.com/angelmondragon/gamestore-backend/pkg/config"
	"github.com/angelmondragon/gamestore-backend/pkg/db"
	"github.com/angelmondragon/gamestore-backend/pkg/enums"
	"github.com/angelmondragon/gamestore-backend/pkg/logger"
	"github.com/angelmondragon/gamestore-backend/pkg/redis"
)

// RouterParams carries every collaborator the HTTP surface needs.
type RouterParams struct {
	Config         *config.Config
	Logger         *logger.Logger
	DB             db.Pinger
	Redis          redis.Pinger
	Idempotency    redis.IdempotencyStore
	Gatherer       prometheus.Gatherer
	Auth           auth.Service
	Orders         orders.Service
	Gateway        payments.Gateway
	Reconciliation reconciliation.Service
	Shipping       shipping.Service
	Webhooks       webhooks.Service
	WebhookGuard   *webhooks.InFlightGuard
}

func NewRouter(p RouterParams) http.Handler {
	cfg, logg := p.Config, p.Logger
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.DB, p.Redis))
	})
	if p.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(p.Gatherer, promhttp.HandlerOpts{}))
	}

	// raw body: no decoding middleware may run ahead of signature verification
	var guard webhookcontrollers.InFlightGuard
	if p.WebhookGuard != nil {
		guard = p.WebhookGuard
	}
	r.Post("/api/v1/webhooks/payments", webhookcontrollers.PaymentWebhook(p.Webhooks, guard, logg))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Idempotency(p.Idempotency, logg))
		r.Get("/products", controllers.ListProducts(p.Orders, logg))
		r.Post("/orders", controllers.CreateOrder(p.Orders, logg))
		r.Get("/orders/{orderId}", controllers.GetOrder(p.Orders, logg))
		r.Post("/payments/intents", controllers.CreatePaymentIntent(p.Gateway, logg))
	})

	r.Post("/api/admin/v1/auth/login", controllers.AdminLogin(p.Auth, logg))

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.With(middleware.RequireRole(logg, enums.UserRoleAdmin, enums.UserRoleOperator)).
			Get("/shipments/{orderId}/label", controllers.AdminShipmentLabel(p.Shipping, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.UserRoleAdmin))
			r.Use(middleware.Idempotency(p.Idempotency, logg))
			r.Post("/shipments/{orderId}/retry-buy", controllers.AdminRetryShipmentPurchase(p.Shipping, logg))
			r.Post("/orders/{orderId}/resync-payment", controllers.AdminResyncPayment(p.Reconciliation, logg))
			r.Post("/orders/{orderId}/replay-fulfillment", controllers.AdminReplayFulfillment(p.Reconciliation, logg))
		})
	})

	return r
}
