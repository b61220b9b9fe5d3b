// Package api exposes the HTTP surface: the collection endpoints, the
// account linking flow, and health checks.
package api

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/vinylroom/vinylroom-server/internal/config"
	"github.com/vinylroom/vinylroom-server/internal/itunes"
	"github.com/vinylroom/vinylroom-server/internal/ratelimit"
	"github.com/vinylroom/vinylroom-server/internal/service"
	"github.com/vinylroom/vinylroom-server/internal/session"
)

// Services groups the application services the server dispatches to.
type Services struct {
	Collection *service.CollectionService
	Auth       *service.AuthService
	Match      *itunes.Matcher
}

// Server is the HTTP server for the collection API.
type Server struct {
	router   *chi.Mux
	api      huma.API
	services Services
	codec    *session.Codec
	// refreshLimiter throttles POST /refresh per client IP, since every
	// refresh costs a full upstream materialization.
	refreshLimiter *ratelimit.Limiter
	logger         *slog.Logger
	secureCookies  bool
	frontendURL    string
}

// NewServer wires the router, middleware, and routes.
func NewServer(cfg *config.Config, services Services, codec *session.Codec, logger *slog.Logger) *Server {
	router := chi.NewRouter()

	s := &Server{
		router:         router,
		services:       services,
		codec:          codec,
		refreshLimiter: ratelimit.New(refreshRPS, refreshBurst),
		logger:         logger,
		secureCookies:  cfg.App.Environment == "production",
		frontendURL:    cfg.Server.CORSOrigin,
	}

	// All root middleware must be in place before the huma adapter
	// registers its first route on the mux.
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Compress(5))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.Server.CORSOrigin},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	router.Use(s.sessionMiddleware)

	humaConfig := huma.DefaultConfig("Vinylroom API", "1.0.0")
	s.api = humachi.New(router, humaConfig)
	RegisterErrorHandler()

	s.registerHealthRoutes()
	s.registerCollectionRoutes()
	s.registerAuthRoutes()
	s.registerItunesRoutes()

	return s
}

// Router returns the root handler for an http.Server.
func (s *Server) Router() http.Handler {
	return s.router
}
