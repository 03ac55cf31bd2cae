package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/commerce-core/api/controllers"
	"github.com/angelmondragon/commerce-core/api/middleware"
	"github.com/angelmondragon/commerce-core/internal/bootstrap"
	"github.com/angelmondragon/commerce-core/pkg/config"
	"github.com/angelmondragon/commerce-core/pkg/db"
	"github.com/angelmondragon/commerce-core/pkg/enums"
	"github.com/angelmondragon/commerce-core/pkg/logger"
	"github.com/angelmondragon/commerce-core/pkg/redis"
)

// Store is the Redis surface the HTTP layer needs for idempotency and rate limiting.
type Store interface {
	redis.Pinger
	redis.IdempotencyStore
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	store Store,
	svc *bootstrap.Services,
	gatherer prometheus.Gatherer,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"database": dbP,
			"redis":    store,
		}))
	})

	checkoutPolicy := middleware.NewRateLimitPolicy("checkout", cfg.Checkout.RateLimitWindow, cfg.Checkout.RateLimit)
	staffOnly := middleware.RequireStaff(logg)
	settlement := middleware.RequireRole(logg, enums.RoleSystem, enums.RoleStaff, enums.RoleAdmin)
	// money and stock movements are retried by clients for days; staff tooling for one
	critical := middleware.Idempotent(store, logg, middleware.IdempotencyTTLCritical)
	standard := middleware.Idempotent(store, logg, middleware.IdempotencyTTLStandard)

	r.Route("/api/v1", func(r chi.Router) {
		// carts and checkout accept signed-in customers and guest sessions
		r.Group(func(r chi.Router) {
			r.Use(middleware.Shopper(cfg.JWT, logg))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", controllers.CartGet(svc.Cart, logg))
				r.Delete("/", controllers.CartClear(svc.Cart, logg))
				r.Post("/items", controllers.CartAddItem(svc.Cart, logg))
				r.Patch("/items/{productId}", controllers.CartUpdateItem(svc.Cart, logg))
				r.Delete("/items/{productId}", controllers.CartRemoveItem(svc.Cart, logg))
				r.Post("/merge", controllers.CartMerge(svc.Cart, logg))
			})
			r.With(critical, middleware.RateLimit(checkoutPolicy, store, logg)).
				Post("/checkout", controllers.Checkout(svc.Checkout, logg))
			r.Get("/inventory/products/{productId}/stock", controllers.InventoryStock(svc.Inventory, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", controllers.OrdersList(svc.Orders, logg))
				r.Get("/{orderId}", controllers.OrderDetail(svc.Orders, logg))
				r.With(critical).Post("/{orderId}/cancel", controllers.OrderCancel(svc.Orders, logg))
				r.With(staffOnly, standard).Post("/{orderId}/deliver", controllers.OrderDeliver(svc.Orders, logg))
				r.With(standard).Post("/{orderId}/payments", controllers.PaymentInitialize(svc.Payments, logg))
				r.Get("/{orderId}/cancellation-requests", controllers.CancellationList(svc.Cancellations, logg))
				r.With(critical).Post("/{orderId}/cancellation-requests", controllers.CancellationCreate(svc.Cancellations, logg))
			})

			r.Route("/payments/{paymentId}", func(r chi.Router) {
				r.With(settlement, critical).Post("/confirm", controllers.PaymentConfirm(svc.Payments, logg))
				r.With(settlement, critical).Post("/fail", controllers.PaymentFail(svc.Payments, logg))
				r.With(critical).Post("/receipt", controllers.PaymentSubmitReceipt(svc.Payments, logg))
				r.With(staffOnly, critical).Post("/verify", controllers.PaymentVerify(svc.Payments, logg))
			})

			r.With(staffOnly, critical).Post("/cancellation-requests/{requestId}/review", controllers.CancellationReview(svc.Cancellations, logg))

			r.With(staffOnly, standard).Post("/inventory/adjustments", controllers.InventoryAdjust(svc.Inventory, logg))
			r.With(staffOnly).Get("/inventory/products/{productId}/movements", controllers.InventoryMovements(svc.Inventory, logg))
		})
	})

	return r
}
