package server

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	v1 "github.com/mechanicbuddy/control-plane/internal/api/v1"
	"github.com/mechanicbuddy/control-plane/internal/api/ws"
	"github.com/mechanicbuddy/control-plane/internal/config"
)

func registerPublicRoutes(api huma.API, cfg *config.Config, deps Deps) {
	v1.RegisterAuthRoutes(api, deps.Auth, deps.Providers)
	v1.RegisterBillingWebhookRoutes(api, deps.Reconciler, cfg.Billing.WebhookSecret)
}

func registerAPIRoutes(api huma.API, deps Deps) {
	v1.RegisterProvisioningRoutes(api, deps.Orchestrator)
	v1.RegisterTenantRoutes(api, deps.Store, deps.Driver)
	v1.RegisterVerificationRoutes(api, deps.Store, deps.Verifier, deps.Poller)
	v1.RegisterAuditRoutes(api, deps.Auditor)
	v1.RegisterBillingRoutes(api, deps.Reconciler)
}

func registerWSRoutes(r chi.Router, hub *ws.Hub) {
	r.Get("/provision/{slug}", hub.ServeProvisionLog)
}
