package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/mechanicbuddy/control-plane/internal/api/ws"
	"github.com/mechanicbuddy/control-plane/internal/audit"
	"github.com/mechanicbuddy/control-plane/internal/auth"
	"github.com/mechanicbuddy/control-plane/internal/billing"
	"github.com/mechanicbuddy/control-plane/internal/config"
	"github.com/mechanicbuddy/control-plane/internal/infra"
	"github.com/mechanicbuddy/control-plane/internal/provision"
	"github.com/mechanicbuddy/control-plane/internal/server/middleware"
	"github.com/mechanicbuddy/control-plane/internal/store/postgres"
	redisstore "github.com/mechanicbuddy/control-plane/internal/store/redis"
	"github.com/mechanicbuddy/control-plane/internal/verify"
)

// Deps bundles the wired services the HTTP layer exposes.
type Deps struct {
	Store        *postgres.Store
	PubSub       *redisstore.Client
	Auth         *auth.Service
	Providers    map[string]*auth.OAuthProvider
	Orchestrator *provision.Orchestrator
	Driver       *infra.DockerDriver
	Verifier     *verify.Engine
	Poller       *verify.Poller
	Auditor      *audit.Recorder
	Reconciler   *billing.Reconciler
}

// Server is the HTTP server that wires all application routes and middleware.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	wsHub      *ws.Hub
	cfg        *config.Config
}

// New creates a Server with all routes wired. ctx bounds the lifetime of the
// rate-limiter cleanup goroutines.
func New(ctx context.Context, cfg *config.Config, deps Deps) *Server {
	router := chi.NewRouter()

	// Global middleware stack.
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(chimw.Recoverer)
	router.Use(cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-Webhook-Secret"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler)

	hub := ws.NewHub(deps.PubSub)

	s := &Server{
		router: router,
		wsHub:  hub,
		cfg:    cfg,
		httpServer: &http.Server{
			Addr:         cfg.Server.Addr,
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
	}

	// Mount API routes on /api/v1 with two sub-groups:
	// 1. Unauthenticated group: login, token refresh, SSO, billing webhook.
	// 2. Authenticated group for everything else.
	router.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimitByIP(ctx, 5, 10))
			// Login, refresh and webhook POSTs land in the audit trail
			// too; the actor fields stay empty pre-authentication.
			r.Use(middleware.Audit(deps.Auditor))

			publicConfig := huma.DefaultConfig("MechanicBuddy Control Plane Public API", "1.0.0")
			publicConfig.Servers = []*huma.Server{
				{URL: "/api/v1"},
			}
			publicAPI := humachi.New(r, publicConfig)
			registerPublicRoutes(publicAPI, cfg, deps)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT.Secret))
			r.Use(middleware.RateLimit(ctx, 100, 200))
			r.Use(middleware.Audit(deps.Auditor))

			apiConfig := huma.DefaultConfig("MechanicBuddy Control Plane API", "1.0.0")
			apiConfig.Servers = []*huma.Server{
				{URL: "/api/v1"},
			}
			api := humachi.New(r, apiConfig)
			registerAPIRoutes(api, deps)
		})
	})

	// WebSocket routes.
	router.Route("/ws", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT.Secret))
		registerWSRoutes(r, hub)
	})

	// Health check (unauthenticated).
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	return s
}

// Start begins listening for HTTP requests.
func (s *Server) Start(_ context.Context) error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.Start: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}
