package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/settlement-engine/api/controllers"
	webhookcontrollers "github.com/angelmondragon/settlement-engine/api/controllers/webhooks"
	"github.com/angelmondragon/settlement-engine/api/middleware"
	"github.com/angelmondragon/settlement-engine/internal/delivery"
	"github.com/angelmondragon/settlement-engine/internal/disputes"
	"github.com/angelmondragon/settlement-engine/internal/escrow"
	"github.com/angelmondragon/settlement-engine/internal/payouts"
	"github.com/angelmondragon/settlement-engine/internal/wallet"
	"github.com/angelmondragon/settlement-engine/internal/webhooks"
	"github.com/angelmondragon/settlement-engine/pkg/config"
	"github.com/angelmondragon/settlement-engine/pkg/enums"
	"github.com/angelmondragon/settlement-engine/pkg/logger"
	"github.com/angelmondragon/settlement-engine/pkg/redis"
)

// Services bundles what the HTTP surface calls into. Webhook entries may be
// nil, in which case the matching route is not mounted.
type Services struct {
	Escrow   escrow.Service
	Wallet   wallet.Service
	Payouts  payouts.Service
	Disputes disputes.Service
	Delivery delivery.Service

	StripeWebhook  webhookcontrollers.StripeWebhookService
	StripeSigner   interface{ SigningSecret() string }
	StripeGuard    *webhooks.IdempotencyGuard
	CourierWebhook webhookcontrollers.CourierWebhookService
	CourierGuard   *webhooks.IdempotencyGuard
}

// Dependencies are the infrastructure pieces the router needs besides services.
type Dependencies struct {
	Health      map[string]controllers.Pinger
	Idempotency redis.IdempotencyStore
	RateLimiter middleware.RateLimiter
	Gatherer    prometheus.Gatherer
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies, svc Services) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	idempotent := middleware.Idempotency(deps.Idempotency, logg)
	payoutLimit := middleware.RateLimit(deps.RateLimiter, middleware.RateLimitPolicy{
		Name:    "payout-requests",
		Limit:   cfg.RateLimit.PayoutRequests,
		Window:  cfg.RateLimit.PayoutWindow,
		Subject: middleware.VendorSubject,
	}, logg)
	courierLimit := middleware.RateLimit(deps.RateLimiter, middleware.RateLimitPolicy{
		Name:    "courier-webhook",
		Limit:   cfg.RateLimit.CourierEvents,
		Window:  cfg.RateLimit.CourierWindow,
		Subject: middleware.ClientIPSubject,
	}, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Health))
	})
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		if svc.StripeWebhook != nil && svc.StripeSigner != nil && svc.StripeGuard != nil {
			r.Post("/stripe", webhookcontrollers.StripeWebhook(svc.StripeWebhook, svc.StripeSigner, svc.StripeGuard, logg))
		}
		if svc.CourierWebhook != nil && svc.CourierGuard != nil {
			r.With(courierLimit).Post("/courier", webhookcontrollers.CourierWebhook(svc.CourierWebhook, svc.CourierGuard, logg))
		}
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Get("/escrows/{orderId}", controllers.EscrowByOrder(svc.Escrow, logg))
		r.Get("/orders/{orderId}/deliveries", controllers.OrderDeliveries(svc.Escrow, svc.Delivery, logg))
		r.With(idempotent).Post("/disputes", controllers.FileDispute(svc.Disputes, logg))
		r.Get("/disputes/{disputeId}", controllers.DisputeDetail(svc.Disputes, logg))

		r.Route("/vendor", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.ActorRoleVendor))
			r.Use(middleware.RequireVendor(logg))

			r.Get("/wallet", controllers.VendorWallet(svc.Wallet, logg))
			r.Get("/wallet/transactions", controllers.VendorWalletTransactions(svc.Wallet, logg))
			r.With(payoutLimit, idempotent).Post("/payouts", controllers.VendorRequestPayout(svc.Payouts, logg))
			r.Get("/payouts", controllers.VendorListPayouts(svc.Payouts, logg))
			r.With(idempotent).Post("/orders/{orderId}/proof-of-delivery", controllers.VendorProofOfDelivery(svc.Delivery, logg))
		})
	})

	r.Route("/api/internal/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(logg, enums.ActorRoleSystem))
		r.Post("/escrows", controllers.InternalCreateHold(svc.Escrow, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(logg, enums.ActorRoleAdmin))

		r.With(idempotent).Post("/disputes/{disputeId}/resolve", controllers.AdminResolveDispute(svc.Disputes, logg))
		r.With(idempotent).Post("/escrows/{escrowId}/force-release", controllers.AdminForceRelease(svc.Escrow, logg))
		r.With(idempotent).Post("/escrows/{escrowId}/force-refund", controllers.AdminForceRefund(svc.Escrow, logg))
		r.With(idempotent).Post("/payouts/{payoutId}/status", controllers.AdminPayoutStatus(svc.Payouts, logg))
		r.With(idempotent).Post("/vendors/{vendorId}/wallet/adjustments", controllers.AdminWalletAdjustment(svc.Wallet, logg))
		r.Get("/vendors/{vendorId}/wallet/reconciliation", controllers.AdminWalletReconciliation(svc.Wallet, logg))
	})

	return r
}
