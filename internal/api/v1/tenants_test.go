package v1_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/mechanicbuddy/control-plane/internal/api/v1"
	"github.com/mechanicbuddy/control-plane/internal/domain"
)

// ---------------------------------------------------------------------------
// GET /tenants
// ---------------------------------------------------------------------------

func TestListTenants(t *testing.T) {
	t.Parallel()

	t.Run("filters_forwarded", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		store := &mockDataStore{
			tenants: &mockTenantRepo{
				listFunc: func(_ context.Context, filter domain.TenantFilter, limit, offset int) ([]*domain.Tenant, error) {
					assert.Equal(t, domain.TenantStatusActive, filter.Status)
					assert.Equal(t, domain.TierStarter, filter.Tier)
					assert.Equal(t, "joe", filter.Search)
					assert.Equal(t, 10, limit)
					assert.Equal(t, 20, offset)
					return []*domain.Tenant{
						{TenantID: "joes-garage", Status: domain.TenantStatusActive, Tier: domain.TierStarter},
					}, nil
				},
			},
		}

		v1.RegisterTenantRoutes(api, store, &mockDecommissioner{})

		resp := api.GetCtx(readOnlyCtx(), "/tenants?status=active&tier=starter&search=joe&limit=10&offset=20")

		require.Equal(t, http.StatusOK, resp.Code)

		var body []*domain.Tenant
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		require.Len(t, body, 1)
		assert.Equal(t, "joes-garage", body[0].TenantID)
	})

	t.Run("store_error_500", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		store := &mockDataStore{
			tenants: &mockTenantRepo{
				listFunc: func(_ context.Context, _ domain.TenantFilter, _, _ int) ([]*domain.Tenant, error) {
					return nil, errors.New("pg: connection refused")
				},
			},
		}

		v1.RegisterTenantRoutes(api, store, &mockDecommissioner{})

		resp := api.GetCtx(readOnlyCtx(), "/tenants")

		assert.Equal(t, http.StatusInternalServerError, resp.Code)
	})
}

// ---------------------------------------------------------------------------
// GET /tenants/{slug}
// ---------------------------------------------------------------------------

func TestGetTenant(t *testing.T) {
	t.Parallel()

	t.Run("happy_path", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		store := &mockDataStore{
			tenants: &mockTenantRepo{
				getBySlugFunc: func(_ context.Context, slug string) (*domain.Tenant, error) {
					assert.Equal(t, "joes-garage", slug)
					return &domain.Tenant{TenantID: "joes-garage", Status: domain.TenantStatusActive}, nil
				},
			},
		}

		v1.RegisterTenantRoutes(api, store, &mockDecommissioner{})

		resp := api.GetCtx(readOnlyCtx(), "/tenants/joes-garage")

		require.Equal(t, http.StatusOK, resp.Code)

		var body domain.Tenant
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "joes-garage", body.TenantID)
	})

	t.Run("unknown_slug_not_found", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		store := &mockDataStore{
			tenants: &mockTenantRepo{
				getBySlugFunc: func(_ context.Context, _ string) (*domain.Tenant, error) {
					return nil, domain.ErrNotFound
				},
			},
		}

		v1.RegisterTenantRoutes(api, store, &mockDecommissioner{})

		resp := api.GetCtx(readOnlyCtx(), "/tenants/no-such-shop")

		assert.Equal(t, http.StatusNotFound, resp.Code)
	})
}

// ---------------------------------------------------------------------------
// POST /tenants/{slug}/suspend
// ---------------------------------------------------------------------------

func TestSuspendTenant(t *testing.T) {
	t.Parallel()

	t.Run("admin_suspends_with_sticky_reason", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		store := &mockDataStore{
			tenants: &mockTenantRepo{
				updateStatusFunc: func(_ context.Context, slug string, to domain.TenantStatus, reason string) error {
					assert.Equal(t, "joes-garage", slug)
					assert.Equal(t, domain.TenantStatusSuspended, to)
					assert.Equal(t, domain.SuspensionReasonAdmin, reason)
					return nil
				},
			},
		}

		v1.RegisterTenantRoutes(api, store, &mockDecommissioner{})

		resp := api.PostCtx(adminCtx(), "/tenants/joes-garage/suspend", map[string]any{
			"reason": "abuse report",
		})

		require.Equal(t, http.StatusOK, resp.Code)

		var body map[string]string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "suspended", body["status"])
	})

	t.Run("read_only_operator_forbidden", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		store := &mockDataStore{tenants: &mockTenantRepo{}}

		v1.RegisterTenantRoutes(api, store, &mockDecommissioner{})

		resp := api.PostCtx(readOnlyCtx(), "/tenants/joes-garage/suspend", map[string]any{})

		assert.Equal(t, http.StatusForbidden, resp.Code)
	})

	t.Run("invalid_transition_conflict", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		store := &mockDataStore{
			tenants: &mockTenantRepo{
				updateStatusFunc: func(_ context.Context, _ string, _ domain.TenantStatus, _ string) error {
					return fmt.Errorf("postgres.TenantRepo.UpdateStatus: %w", domain.ErrInvalidTransition)
				},
			},
		}

		v1.RegisterTenantRoutes(api, store, &mockDecommissioner{})

		resp := api.PostCtx(adminCtx(), "/tenants/joes-garage/suspend", map[string]any{})

		assert.Equal(t, http.StatusConflict, resp.Code)
	})
}

// ---------------------------------------------------------------------------
// POST /tenants/{slug}/reinstate
// ---------------------------------------------------------------------------

func TestReinstateTenant(t *testing.T) {
	t.Parallel()

	t.Run("admin_reinstates", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		store := &mockDataStore{
			tenants: &mockTenantRepo{
				updateStatusFunc: func(_ context.Context, slug string, to domain.TenantStatus, reason string) error {
					assert.Equal(t, "joes-garage", slug)
					assert.Equal(t, domain.TenantStatusActive, to)
					assert.Empty(t, reason)
					return nil
				},
			},
		}

		v1.RegisterTenantRoutes(api, store, &mockDecommissioner{})

		resp := api.PostCtx(adminCtx(), "/tenants/joes-garage/reinstate", map[string]any{})

		require.Equal(t, http.StatusOK, resp.Code)

		var body map[string]string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "active", body["status"])
	})

	t.Run("unknown_tenant_not_found", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		store := &mockDataStore{
			tenants: &mockTenantRepo{
				updateStatusFunc: func(_ context.Context, _ string, _ domain.TenantStatus, _ string) error {
					return domain.ErrNotFound
				},
			},
		}

		v1.RegisterTenantRoutes(api, store, &mockDecommissioner{})

		resp := api.PostCtx(adminCtx(), "/tenants/no-such-shop/reinstate", map[string]any{})

		assert.Equal(t, http.StatusNotFound, resp.Code)
	})
}

// ---------------------------------------------------------------------------
// DELETE /tenants/{slug}
// ---------------------------------------------------------------------------

func TestDeleteTenant(t *testing.T) {
	t.Parallel()

	t.Run("admin_deletes_and_tears_down", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		decom := &mockDecommissioner{}
		store := &mockDataStore{
			tenants: &mockTenantRepo{
				updateStatusFunc: func(_ context.Context, slug string, to domain.TenantStatus, _ string) error {
					assert.Equal(t, "joes-garage", slug)
					assert.Equal(t, domain.TenantStatusDeleted, to)
					return nil
				},
			},
		}

		v1.RegisterTenantRoutes(api, store, decom)

		resp := api.DeleteCtx(adminCtx(), "/tenants/joes-garage")

		require.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, []string{"joes-garage"}, decom.deallocated)
	})

	t.Run("teardown_failure_does_not_fail_the_delete", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		decom := &mockDecommissioner{err: errors.New("docker daemon unreachable")}
		store := &mockDataStore{
			tenants: &mockTenantRepo{
				updateStatusFunc: func(_ context.Context, _ string, _ domain.TenantStatus, _ string) error {
					return nil
				},
			},
		}

		v1.RegisterTenantRoutes(api, store, decom)

		resp := api.DeleteCtx(adminCtx(), "/tenants/joes-garage")

		assert.Equal(t, http.StatusOK, resp.Code)
	})

	t.Run("read_only_operator_forbidden", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		decom := &mockDecommissioner{}
		store := &mockDataStore{tenants: &mockTenantRepo{}}

		v1.RegisterTenantRoutes(api, store, decom)

		resp := api.DeleteCtx(readOnlyCtx(), "/tenants/joes-garage")

		assert.Equal(t, http.StatusForbidden, resp.Code)
		assert.Empty(t, decom.deallocated)
	})
}
