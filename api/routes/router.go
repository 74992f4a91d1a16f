package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wbenromdhane/tijara-backend/api/controllers"
	webhookcontrollers "github.com/wbenromdhane/tijara-backend/api/controllers/webhooks"
	"github.com/wbenromdhane/tijara-backend/api/middleware"
	cartsvc "github.com/wbenromdhane/tijara-backend/internal/cart"
	checkoutsvc "github.com/wbenromdhane/tijara-backend/internal/checkout"
	ordersvc "github.com/wbenromdhane/tijara-backend/internal/orders"
	paymentsvc "github.com/wbenromdhane/tijara-backend/internal/payments"
	"github.com/wbenromdhane/tijara-backend/pkg/config"
	"github.com/wbenromdhane/tijara-backend/pkg/db"
	"github.com/wbenromdhane/tijara-backend/pkg/enums"
	"github.com/wbenromdhane/tijara-backend/pkg/logger"
	"github.com/wbenromdhane/tijara-backend/pkg/redis"
)

// Deps bundles everything the HTTP surface needs.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       db.Pinger
	Redis    redis.Pinger
	Registry *prometheus.Registry

	Cart       cartsvc.Service
	Checkout   checkoutsvc.Service
	Orders     ordersvc.Service
	OrdersRepo *ordersvc.Repository
	Payments   paymentsvc.Service
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Get("/healthz", controllers.HealthLive(cfg))
	r.Get("/readyz", controllers.HealthReady(cfg, logg, deps.DB, deps.Redis))
	if deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Get("/konnect", webhookcontrollers.KonnectWebhook(deps.Payments, logg))
		r.Post("/konnect", webhookcontrollers.KonnectWebhook(deps.Payments, logg))
	})

	// guest checkout and post-redirect verification need no token
	r.Route("/api/public/v1", func(r chi.Router) {
		r.Post("/checkout", controllers.Checkout(deps.Checkout, logg))
		r.Post("/payments/verify", controllers.PaymentVerify(deps.Payments, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartFetch(deps.Cart, logg))
			r.Post("/items", controllers.CartAddItem(deps.Cart, logg))
			r.Put("/items", controllers.CartUpdateItem(deps.Cart, logg))
			r.Delete("/items/{productId}", controllers.CartRemoveItem(deps.Cart, logg))
			r.Delete("/", controllers.CartClear(deps.Cart, logg))
			r.Post("/merge", controllers.CartMerge(deps.Cart, logg))
		})

		r.Post("/checkout", controllers.Checkout(deps.Checkout, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.OrdersList(deps.Orders, logg))
			r.Get("/{orderId}", controllers.OrderDetail(deps.Orders, logg))
			r.Post("/{orderId}/cancel", controllers.OrderCancel(deps.Orders, logg))
			r.Post("/{orderId}/pay", controllers.PaymentInitiate(deps.Payments, logg))
		})

		r.Post("/payments/verify", controllers.PaymentVerify(deps.Payments, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(string(enums.UserRoleAdmin), logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/{orderId}", controllers.AdminOrderDetail(deps.OrdersRepo, logg))
			r.Post("/{orderId}/status", controllers.AdminOrderTransition(deps.Orders, logg))
			r.Post("/{orderId}/refund", controllers.AdminOrderRefund(deps.Orders, logg))
			r.Post("/{orderId}/payment", controllers.AdminVerifyPayment(deps.Orders, logg))
		})
	})

	return r
}
