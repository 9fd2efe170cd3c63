package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog/log"

	"github.com/mechanicbuddy/control-plane/internal/domain"
	"github.com/mechanicbuddy/control-plane/internal/server/middleware"
)

type ListTenantsInput struct {
	Status string `query:"status" enum:"provisioning,active,suspended,trial,deleted" required:"false" doc:"Filter by lifecycle status"`
	Tier   string `query:"tier" enum:"free,starter,professional,enterprise" required:"false" doc:"Filter by subscription tier"`
	Search string `query:"search" maxLength:"255" doc:"Match against slug, owner email, owner name"`
	Limit  int    `query:"limit" minimum:"1" maximum:"200" default:"50" doc:"Max results"`
	Offset int    `query:"offset" minimum:"0" default:"0" doc:"Offset for pagination"`
}

type ListTenantsOutput struct {
	Body []*domain.Tenant
}

type GetTenantInput struct {
	Slug string `path:"slug" maxLength:"30" pattern:"^[a-z0-9]+(?:-[a-z0-9]+)*$" doc:"Tenant slug"`
}

type GetTenantOutput struct {
	Body *domain.Tenant
}

type SuspendTenantInput struct {
	Slug string `path:"slug" maxLength:"30" pattern:"^[a-z0-9]+(?:-[a-z0-9]+)*$" doc:"Tenant slug"`
	Body struct {
		Reason string `json:"reason,omitempty" maxLength:"512" doc:"Free-form note recorded with the suspension"`
	}
}

type TenantStatusOutput struct {
	Body struct {
		TenantID string              `json:"tenantId"`
		Status   domain.TenantStatus `json:"status"`
	}
}

type ReinstateTenantInput struct {
	Slug string `path:"slug" maxLength:"30" pattern:"^[a-z0-9]+(?:-[a-z0-9]+)*$" doc:"Tenant slug"`
}

type DeleteTenantInput struct {
	Slug string `path:"slug" maxLength:"30" pattern:"^[a-z0-9]+(?:-[a-z0-9]+)*$" doc:"Tenant slug"`
}

// RegisterTenantRoutes wires the tenant registry: listing, lookup, and the
// admin lifecycle operations (suspend, reinstate, delete).
func RegisterTenantRoutes(api huma.API, store DataStore, decom Decommissioner) {
	huma.Register(api, huma.Operation{
		OperationID: "list-tenants",
		Method:      http.MethodGet,
		Path:        "/tenants",
		Summary:     "List tenants",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, input *ListTenantsInput) (*ListTenantsOutput, error) {
		filter := domain.TenantFilter{
			Status: domain.TenantStatus(input.Status),
			Tier:   domain.Tier(input.Tier),
			Search: input.Search,
		}

		tenants, err := store.Tenants().List(ctx, filter, input.Limit, input.Offset)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list tenants", err)
		}

		return &ListTenantsOutput{Body: tenants}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-tenant",
		Method:      http.MethodGet,
		Path:        "/tenants/{slug}",
		Summary:     "Get a tenant by slug",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, input *GetTenantInput) (*GetTenantOutput, error) {
		tenant, err := store.Tenants().GetBySlug(ctx, input.Slug)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("tenant not found")
			}
			return nil, huma.Error500InternalServerError("failed to look up tenant", err)
		}

		return &GetTenantOutput{Body: tenant}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "suspend-tenant",
		Method:      http.MethodPost,
		Path:        "/tenants/{slug}/suspend",
		Summary:     "Suspend a tenant",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, input *SuspendTenantInput) (*TenantStatusOutput, error) {
		role, ok := middleware.RoleFromContext(ctx)
		if !ok || role != middleware.RoleAdmin {
			return nil, huma.Error403Forbidden("admin role required")
		}

		// Admin suspensions are sticky: billing reconciliation never
		// auto-reinstates them.
		err := store.Tenants().UpdateStatus(ctx, input.Slug, domain.TenantStatusSuspended, domain.SuspensionReasonAdmin)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrNotFound):
				return nil, huma.Error404NotFound("tenant not found")
			case errors.Is(err, domain.ErrInvalidTransition):
				return nil, huma.Error409Conflict("tenant cannot be suspended from its current status")
			}
			return nil, huma.Error500InternalServerError("failed to suspend tenant", err)
		}

		out := &TenantStatusOutput{}
		out.Body.TenantID = input.Slug
		out.Body.Status = domain.TenantStatusSuspended
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reinstate-tenant",
		Method:      http.MethodPost,
		Path:        "/tenants/{slug}/reinstate",
		Summary:     "Reinstate a suspended tenant",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, input *ReinstateTenantInput) (*TenantStatusOutput, error) {
		role, ok := middleware.RoleFromContext(ctx)
		if !ok || role != middleware.RoleAdmin {
			return nil, huma.Error403Forbidden("admin role required")
		}

		err := store.Tenants().UpdateStatus(ctx, input.Slug, domain.TenantStatusActive, "")
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrNotFound):
				return nil, huma.Error404NotFound("tenant not found")
			case errors.Is(err, domain.ErrInvalidTransition):
				return nil, huma.Error409Conflict("tenant cannot be reinstated from its current status")
			}
			return nil, huma.Error500InternalServerError("failed to reinstate tenant", err)
		}

		out := &TenantStatusOutput{}
		out.Body.TenantID = input.Slug
		out.Body.Status = domain.TenantStatusActive
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-tenant",
		Method:      http.MethodDelete,
		Path:        "/tenants/{slug}",
		Summary:     "Soft-delete a tenant and tear down its infrastructure",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, input *DeleteTenantInput) (*TenantStatusOutput, error) {
		role, ok := middleware.RoleFromContext(ctx)
		if !ok || role != middleware.RoleAdmin {
			return nil, huma.Error403Forbidden("admin role required")
		}

		err := store.Tenants().UpdateStatus(ctx, input.Slug, domain.TenantStatusDeleted, "")
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrNotFound):
				return nil, huma.Error404NotFound("tenant not found")
			case errors.Is(err, domain.ErrInvalidTransition):
				return nil, huma.Error409Conflict("tenant cannot be deleted from its current status")
			}
			return nil, huma.Error500InternalServerError("failed to delete tenant", err)
		}

		// Teardown is best-effort after the registry row flips; Deallocate
		// is idempotent and can be re-run for stragglers.
		if err := decom.Deallocate(ctx, input.Slug); err != nil {
			log.Error().Err(err).Str("tenant", input.Slug).Msg("api: infrastructure teardown after delete")
		}

		out := &TenantStatusOutput{}
		out.Body.TenantID = input.Slug
		out.Body.Status = domain.TenantStatusDeleted
		return out, nil
	})
}
