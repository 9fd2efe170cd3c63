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
// POST /provision
// ---------------------------------------------------------------------------

func TestProvisionTenant(t *testing.T) {
	t.Parallel()

	t.Run("happy_path_admin", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		prov := &mockProvisioner{
			provisionFunc: func(_ context.Context, req *domain.TenantProvisioningRequest) (*domain.TenantProvisioningResult, error) {
				assert.Equal(t, "Joe's Garage", req.CompanyName)
				assert.Equal(t, "starter", req.SubscriptionTier)
				assert.Equal(t, "joe@example.com", req.OwnerEmail)
				return &domain.TenantProvisioningResult{
					Success:       true,
					TenantID:      "joes-garage",
					APIURL:        "https://joes-garage.api.mechanicbuddy.app",
					AdminEmail:    "joe@example.com",
					AdminPassword: "one-time-password",
				}, nil
			},
		}

		v1.RegisterProvisioningRoutes(api, prov)

		resp := api.PostCtx(adminCtx(), "/provision", map[string]any{
			"companyName":      "Joe's Garage",
			"ownerEmail":       "joe@example.com",
			"subscriptionTier": "starter",
		})

		require.Equal(t, http.StatusOK, resp.Code)

		var body domain.TenantProvisioningResult
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.True(t, body.Success)
		assert.Equal(t, "joes-garage", body.TenantID)
		assert.Equal(t, "one-time-password", body.AdminPassword)
	})

	t.Run("read_only_operator_forbidden", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		called := false
		prov := &mockProvisioner{
			provisionFunc: func(_ context.Context, _ *domain.TenantProvisioningRequest) (*domain.TenantProvisioningResult, error) {
				called = true
				return nil, nil
			},
		}

		v1.RegisterProvisioningRoutes(api, prov)

		resp := api.PostCtx(readOnlyCtx(), "/provision", map[string]any{
			"companyName":      "Joe's Garage",
			"ownerEmail":       "joe@example.com",
			"subscriptionTier": "starter",
		})

		assert.Equal(t, http.StatusForbidden, resp.Code)
		assert.False(t, called, "provisioner must not run for non-admins")
	})

	t.Run("duplicate_slug_conflict", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		prov := &mockProvisioner{
			provisionFunc: func(_ context.Context, _ *domain.TenantProvisioningRequest) (*domain.TenantProvisioningResult, error) {
				err := fmt.Errorf("provision: tenant id %q is taken: %w", "joes-garage", domain.ErrDuplicateTenantID)
				return &domain.TenantProvisioningResult{Success: false, ErrorMessage: err.Error()}, err
			},
		}

		v1.RegisterProvisioningRoutes(api, prov)

		resp := api.PostCtx(adminCtx(), "/provision", map[string]any{
			"companyName":      "Joe's Garage",
			"tenantId":         "joes-garage",
			"ownerEmail":       "joe@example.com",
			"subscriptionTier": "starter",
		})

		assert.Equal(t, http.StatusConflict, resp.Code)
	})

	t.Run("overrides_below_enterprise_rejected", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		prov := &mockProvisioner{
			provisionFunc: func(_ context.Context, _ *domain.TenantProvisioningRequest) (*domain.TenantProvisioningResult, error) {
				err := fmt.Errorf("provision: tier %q does not allow resource overrides: %w", "starter", domain.ErrTierMismatch)
				return &domain.TenantProvisioningResult{Success: false, ErrorMessage: err.Error()}, err
			},
		}

		v1.RegisterProvisioningRoutes(api, prov)

		resp := api.PostCtx(adminCtx(), "/provision", map[string]any{
			"companyName":      "Joe's Garage",
			"ownerEmail":       "joe@example.com",
			"subscriptionTier": "starter",
			"resourceOverrides": map[string]any{
				"maxMechanics": 50,
			},
		})

		assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	})

	t.Run("infrastructure_failure_returns_step_log", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		prov := &mockProvisioner{
			provisionFunc: func(_ context.Context, _ *domain.TenantProvisioningRequest) (*domain.TenantProvisioningResult, error) {
				result := &domain.TenantProvisioningResult{
					Success:      false,
					TenantID:     "joes-garage",
					ErrorMessage: "allocating infrastructure: docker daemon unreachable",
					Log: []domain.ProvisioningLogEntry{
						{Step: "register", Level: domain.LogLevelInfo, Message: "tenant registered as joes-garage"},
						{Step: "abort", Level: domain.LogLevelError, Message: "allocating infrastructure: docker daemon unreachable"},
					},
				}
				return result, errors.New("allocating infrastructure: docker daemon unreachable")
			},
		}

		v1.RegisterProvisioningRoutes(api, prov)

		resp := api.PostCtx(adminCtx(), "/provision", map[string]any{
			"companyName":      "Joe's Garage",
			"ownerEmail":       "joe@example.com",
			"subscriptionTier": "starter",
		})

		require.Equal(t, http.StatusOK, resp.Code)

		var body domain.TenantProvisioningResult
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.False(t, body.Success)
		require.Len(t, body.Log, 2)
		assert.Equal(t, domain.LogLevelError, body.Log[1].Level)
	})

	t.Run("demo_tier_accepted", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		prov := &mockProvisioner{
			provisionFunc: func(_ context.Context, req *domain.TenantProvisioningRequest) (*domain.TenantProvisioningResult, error) {
				assert.Equal(t, "demo", req.SubscriptionTier)
				return &domain.TenantProvisioningResult{Success: true, TenantID: "demo-shop"}, nil
			},
		}

		v1.RegisterProvisioningRoutes(api, prov)

		resp := api.PostCtx(adminCtx(), "/provision", map[string]any{
			"companyName":      "Demo Shop",
			"ownerEmail":       "demo@example.com",
			"subscriptionTier": "demo",
		})

		assert.Equal(t, http.StatusOK, resp.Code)
	})
}
