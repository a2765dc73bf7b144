// Package api wires the HTTP handlers into the service router.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/mytheresa/go-storefront/app/catalog"
	"github.com/mytheresa/go-storefront/app/health"
	"github.com/mytheresa/go-storefront/app/orders"
	"github.com/mytheresa/go-storefront/app/web"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

type Handlers struct {
	Catalog *catalog.CatalogHandler
	Orders  *orders.OrderHandler
	Health  *health.HealthHandler
	Metrics http.Handler // served at /metrics when set
}

type Options struct {
	CORSOrigin    string // "*" allows any origin
	MeterProvider metric.MeterProvider
}

func NewRouter(h Handlers, opts Options, log *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(corsOptions(opts.CORSOrigin)))
	r.Use(web.RequestID)
	r.Use(web.RequestLogger(log))
	r.Use(middleware.Recoverer)

	if h.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health.HandleGet)

		r.Get("/products", h.Catalog.HandleGet)
		r.Post("/products", h.Catalog.HandleCreate)
		r.Get("/products/{id}", h.Catalog.HandleGetProduct)

		r.Post("/orders", h.Orders.HandleCreate)
		r.Get("/orders/{id}", h.Orders.HandleGet)
	})

	var otelOpts []otelhttp.Option
	if opts.MeterProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithMeterProvider(opts.MeterProvider))
	}
	return otelhttp.NewHandler(r, "storefront", otelOpts...)
}

func corsOptions(origin string) cors.Options {
	if origin == "" {
		origin = "*"
	}
	return cors.Options{
		AllowedOrigins: []string{origin},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", web.RequestIDHeader},
		ExposedHeaders: []string{web.RequestIDHeader},
		MaxAge:         300,
	}
}
