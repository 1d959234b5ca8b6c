package rest

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

// RouterConfig carries the optional router features.
type RouterConfig struct {
	// JWTSecret enables HS256 bearer-token authentication on the /api
	// routes when non-empty.
	JWTSecret string

	// AllowedOrigins lists CORS origins; empty allows any origin.
	AllowedOrigins []string

	// Logger records authentication failures. When nil, slog.Default()
	// is used.
	Logger *slog.Logger
}

// NewRouter returns the configured router for the monitoring dashboard API.
//
// Route layout:
//
//	GET   /healthz              – liveness probe (no authentication)
//	GET   /metrics              – Prometheus metrics (no authentication)
//	GET   /api/events           – paginated event query
//	POST  /api/events           – submit one external event
//	GET   /api/alerts           – paginated alert query
//	PATCH /api/alerts/{id}      – update one alert's status
//	GET   /api/stats            – dashboard aggregates
//	GET   /api/log-sources      – monitored file status map
//	GET   /api/rules            – rule catalog listing
//
// The /api routes require a bearer token when cfg.JWTSecret is set.
func NewRouter(srv *Server, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Built-in chi middleware for observability and hygiene.
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}).Handler)

	// Health check and metrics – no authentication.
	r.Get("/healthz", srv.handleHealthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// API routes.
	r.Route("/api", func(r chi.Router) {
		if cfg.JWTSecret != "" {
			r.Use(JWTMiddleware([]byte(cfg.JWTSecret), cfg.Logger))
		}

		r.Get("/events", srv.handleGetEvents)
		r.Post("/events", srv.handlePostEvent)
		r.Get("/alerts", srv.handleGetAlerts)
		r.Patch("/alerts/{id}", srv.handlePatchAlert)
		r.Get("/stats", srv.handleGetStats)
		r.Get("/log-sources", srv.handleGetLogSources)
		r.Get("/rules", srv.handleGetRules)
	})

	return r
}
