package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/castwell/launch-backend/api/controllers"
	webhookcontrollers "github.com/castwell/launch-backend/api/controllers/webhooks"
	"github.com/castwell/launch-backend/api/middleware"
	"github.com/castwell/launch-backend/internal/auth"
	"github.com/castwell/launch-backend/pkg/config"
	"github.com/castwell/launch-backend/pkg/logger"
	pkgredis "github.com/castwell/launch-backend/pkg/redis"
)

const promoRedeemLimiter = "promo-redeem"

// redisStore is the subset of pkg/redis the HTTP layer needs.
type redisStore interface {
	pkgredis.IdempotencyStore
	pkgredis.RateLimiter
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// Dependencies carries everything the router hands to controllers.
type Dependencies struct {
	Readiness      map[string]controllers.Pinger
	Gatherer       prometheus.Gatherer
	Redis          redisStore
	Auth           auth.Service
	Registrar      controllers.Registrar
	Inventory      controllers.InventoryReader
	FireSale       controllers.FireSaleManager
	Reservations   controllers.ReservationService
	Purchases      controllers.PurchaseService
	Reconciliation controllers.ReconciliationService
	Promos         controllers.PromoRedeemer
	PromoAdmin     controllers.PromoAdmin
	PayFast        webhookcontrollers.PayFastNotificationService
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.RateLimit.LoginWindow,
		cfg.RateLimit.LoginIPLimit,
		cfg.RateLimit.LoginEmailLimit,
	)
	idempotent := middleware.Idempotency(deps.Redis, cfg.Launch.IdempotencyTTL, logg)
	redeemLimit := middleware.CallerRateLimit(
		promoRedeemLimiter,
		int64(cfg.RateLimit.PromoLimit),
		cfg.RateLimit.PromoWindow,
		deps.Redis,
		logg,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Readiness))
	})

	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/payfast", webhookcontrollers.PayFastWebhook(deps.PayFast, logg))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, deps.Redis, logg)).Post("/login", controllers.AuthLogin(deps.Auth, logg))
		r.Post("/register", controllers.AuthRegister(deps.Registrar, deps.Auth, logg))
	})

	r.Route("/api/v1/inventory", func(r chi.Router) {
		r.Get("/", controllers.InventoryList(deps.Inventory, logg))
		r.Get("/{seatType}", controllers.InventoryGet(deps.Inventory, logg))
	})

	r.Route("/api/v1/reservations", func(r chi.Router) {
		r.With(middleware.OptionalAuth(cfg.JWT, logg)).Post("/", controllers.ReservationCreate(deps.Reservations, logg))
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Get("/", controllers.ReservationList(deps.Reservations, logg))
			r.Delete("/{reservationId}", controllers.ReservationCancel(deps.Reservations, logg))
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/purchases", func(r chi.Router) {
			r.With(idempotent).Post("/", controllers.PurchaseInitiate(deps.Purchases, logg))
			r.Get("/", controllers.PurchaseList(deps.Purchases, logg))
			r.Get("/{purchaseId}", controllers.PurchaseGet(deps.Purchases, logg))
			r.Post("/{purchaseId}/gift/cancel", controllers.GiftCancel(deps.Purchases, logg))
		})
		r.Post("/gifts/{purchaseId}/claim", controllers.GiftClaim(deps.Purchases, logg))
		r.With(redeemLimit, idempotent).Post("/promo-codes/redeem", controllers.PromoRedeem(deps.Promos, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireAdmin(logg))

		r.Post("/fire-sale", controllers.AdminFireSaleActivate(deps.FireSale, logg))
		r.Delete("/fire-sale", controllers.AdminFireSaleDeactivate(deps.FireSale, logg))
		r.Post("/promo-codes", controllers.AdminPromoCreate(deps.PromoAdmin, logg))
		r.Get("/promo-codes", controllers.AdminPromoList(deps.PromoAdmin, logg))
		r.Get("/purchases/reconciliation", controllers.AdminReconciliationList(deps.Reconciliation, logg))
		r.Post("/purchases/{purchaseId}/resolve", controllers.AdminReconciliationResolve(deps.Reconciliation, logg))
	})

	return r
}
