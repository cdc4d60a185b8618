package http

import (
	"net/http"

	"github.com/floralens/identify/internal/adapters/inbound/http/handlers"
	"github.com/floralens/identify/internal/adapters/inbound/http/middleware"
	"github.com/floralens/identify/internal/config"
	"github.com/floralens/identify/internal/usecases"
	"github.com/floralens/identify/pkg/logger"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/throttled/throttled/v2"
)

const baseURL = "/v1"

type RouterConfig struct {
	App            *usecases.WebApplication
	Logger         logger.Logger
	RateLimitStore throttled.GCRAStoreCtx
	Config         *config.ServiceConfig
}

func NewRouter(cfg RouterConfig) http.Handler {
	router := chi.NewRouter()

	// Core middlewares - always applied
	router.Use(middleware.RequestTracking())
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.Recovery(cfg.Logger))
	router.Use(chimiddleware.Timeout(cfg.Config.PublicHTTPServer.WriteTimeout))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS([]string{"*"}))

	if cfg.Config.RateLimiting.Enabled && cfg.RateLimitStore != nil {
		router.Use(middleware.ThrottledRateLimitingMiddleware(cfg.Config.RateLimiting, cfg.RateLimitStore, cfg.Logger))
		cfg.Logger.Info().
			Uint("requests_per_second", cfg.Config.RateLimiting.RequestsPerSecond).
			Msg("rate limiting enabled")
	}

	// Access logging with health check filtering
	if cfg.Config.Logging.AccessLog.Enabled {
		healthFilter := middleware.NewHealthCheckFilter(cfg.Config.Logging.AccessLog.LogHealthChecks)
		accessLogger := middleware.AccessLogger(cfg.Logger)

		router.Use(healthFilter.Middleware)
		router.Use(accessLogger)
	}

	handler := handlers.NewIdentificationHandler(cfg.App, cfg.Config.Identification.MaxImageBytes)

	router.Route(baseURL, func(r chi.Router) {
		r.Post("/identifications", handler.CreateIdentification)
		r.Delete("/identifications/{fingerprint}", handler.DeleteIdentification)
		r.Get("/health", handler.GetHealth)
	})

	return router
}
