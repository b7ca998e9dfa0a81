package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/veltashop/inventory/pkg/health"
	"github.com/veltashop/inventory/pkg/middleware"
)

// RouterConfig carries the dependencies of the HTTP router.
type RouterConfig struct {
	Stock       *StockHandler
	Health      *health.Handler
	Logger      *slog.Logger
	Environment string
}

// NewRouter builds the chi router with middleware, health probes, metrics
// and the versioned API routes.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.Environment = cfg.Environment

	r.Use(middleware.CORS(corsCfg))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.RequestLogging(cfg.Logger))
	r.Use(middleware.RequestLogger(cfg.Logger))
	r.Use(middleware.PrometheusMetrics("inventory"))

	r.Get("/health/live", cfg.Health.LivenessHandler())
	r.Get("/health/ready", cfg.Health.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(contentTypeJSON)

		r.Route("/stock", func(r chi.Router) {
			r.Get("/low", cfg.Stock.ListLowStock)
			r.Post("/low/sweep", cfg.Stock.SweepLowStock)

			r.Route("/{productId}", func(r chi.Router) {
				r.Get("/", cfg.Stock.GetStock)
				r.Put("/quantity", cfg.Stock.SetQuantity)
				r.Get("/adjustments", cfg.Stock.ListAdjustments)
				r.Post("/adjustments", cfg.Stock.AdjustStock)
			})
		})

		r.Route("/products/{productId}", func(r chi.Router) {
			r.Put("/", cfg.Stock.SaveProduct)
			r.Put("/variations/{variationId}", cfg.Stock.SaveVariation)
		})
	})

	return r
}

func contentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}
