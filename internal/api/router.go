// Package api provides the HTTP API for aqdesk.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/aqdesk/aqdesk/internal/api/handler"
	"github.com/aqdesk/aqdesk/internal/api/middleware"
	"github.com/aqdesk/aqdesk/internal/auth"
	"github.com/aqdesk/aqdesk/internal/provider/resilience"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	ServiceName string
	Logger      zerolog.Logger

	// Metrics records HTTP metrics (optional).
	Metrics *middleware.Metrics

	Service handler.AirQualityService

	// Registry reports upstream health on the health endpoint (optional).
	Registry *resilience.Registry

	// Refresher serves the admin refresh endpoint.
	Refresher handler.Refresher

	// Tokens verifies admin tokens. Admin endpoints answer 403 when nil.
	Tokens *auth.TokenService

	Clock clockwork.Clock
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "aqdesk-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.ContentTypeJSON)

	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Registry, cfg.Clock)
	stationHandler := handler.NewStationHandler(cfg.Service, cfg.Logger)
	sensorHandler := handler.NewSensorHandler(cfg.Service, cfg.Logger)
	adminHandler := handler.NewAdminHandler(cfg.Refresher, cfg.Logger)

	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit) // 100 req/min
	analysisRateLimit := middleware.RateLimitByIP(middleware.AnalysisRateLimit) // 30 req/min

	r.Route("/v1", func(r chi.Router) {
		r.Get("/ops/health", opsHandler.HealthCheck)

		r.Route("/stations", func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/", stationHandler.ListStations)
			r.Get("/nearby", stationHandler.NearbyStations)
			r.Get("/{stationId}/sensors", stationHandler.ListSensors)
			r.Get("/{stationId}/index", stationHandler.GetIndex)
		})

		r.Route("/sensors/{sensorId}", func(r chi.Router) {
			r.With(standardRateLimit).Get("/data", sensorHandler.GetSensorData)
			r.With(analysisRateLimit).Get("/analysis", sensorHandler.GetAnalysis)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.AdminAuth(cfg.Tokens))
			r.Use(middleware.RateLimitBySubject(middleware.AdminRateLimit)) // 5 req/min per subject
			r.With(middleware.RequireJSON).Post("/refresh", adminHandler.Refresh)
		})
	})

	return r
}
