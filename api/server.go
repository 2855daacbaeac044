/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:     Unique ID per request for tracing
  2. RequestLogger: One zap line per request
  3. Recoverer:     Panic recovery (500 instead of crash)
  4. CORS:          Cross-origin requests for the frontend

ROUTE GROUPS:
  /health               Liveness (database ping)
  /metrics              Prometheus exposition
  /api/vehicles/*       Vehicle registry
  /api/drivers/*        Driver registry
  /api/assignments/*    Vehicle-to-driver intervals
  /api/fuel-prices/*    Diesel price history
  /api/routes/*         Routes, route prices, daily logs
  /api/trips/*          Trip records and per-trip quota
  /api/quota/*          Ad hoc quota computation
  /api/reconciliation/* Monthly reports and runs

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/warp/fuel-quota/logging"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	CORSOrigins []string

	// Gatherer backs /metrics. nil leaves /metrics unmounted.
	Gatherer prometheus.Gatherer
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(logging.RequestLogger(h.logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/health", h.Health)
	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Route("/vehicles", func(r chi.Router) {
			r.Get("/", h.ListVehicles)
			r.Post("/", h.CreateVehicle)
		})

		r.Route("/drivers", func(r chi.Router) {
			r.Get("/", h.ListDrivers)
			r.Post("/", h.CreateDriver)
		})

		r.Route("/assignments", func(r chi.Router) {
			r.Get("/", h.ListAssignments)
			r.Post("/", h.CreateAssignment)
			r.Post("/{id}/close", h.CloseAssignment)
		})

		r.Route("/fuel-prices", func(r chi.Router) {
			r.Get("/", h.ListFuelPrices)
			r.Post("/", h.CreateFuelPrice)
			r.Get("/as-of", h.FuelPriceAsOf)
			r.Post("/import", h.ImportFuelPrices)
		})

		r.Route("/routes", func(r chi.Router) {
			r.Post("/", h.CreateRoute)
			r.Post("/{code}/prices", h.CreateRoutePrice)
			r.Post("/{code}/logs", h.CreateDailyLog)
			r.Get("/{code}/status", h.RouteStatus)
		})

		r.Route("/trips", func(r chi.Router) {
			r.Get("/", h.ListTrips)
			r.Post("/", h.CreateTrips)
			r.Post("/import", h.ImportTrips)
			r.Get("/{id}/quota", h.TripQuota)
		})

		r.Post("/fuel-records", h.CreateFuelRecord)
		r.Post("/quota/calculate", h.CalculateQuota)

		r.Route("/reconciliation", func(r chi.Router) {
			r.Get("/", h.GetReconciliation)
			r.Get("/runs", h.ListReconciliationRuns)
			r.Post("/runs", h.CreateReconciliationRun)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found", nil)
	})

	return r
}
