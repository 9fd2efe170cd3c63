package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/mechanicbuddy/control-plane/internal/domain"
	"github.com/mechanicbuddy/control-plane/internal/server/middleware"
)

type ProvisionTenantInput struct {
	Body struct {
		CompanyName        string                    `json:"companyName" minLength:"1" maxLength:"255" doc:"Workshop company name"`
		TenantID           string                    `json:"tenantId,omitempty" maxLength:"30" pattern:"^[a-z0-9]+(?:-[a-z0-9]+)*$" doc:"Explicit tenant slug; derived from company name when omitted"`
		OwnerEmail         string                    `json:"ownerEmail" minLength:"3" maxLength:"255" format:"email" doc:"Workshop owner email"`
		OwnerName          string                    `json:"ownerName,omitempty" maxLength:"255" doc:"Workshop owner display name"`
		SubscriptionTier   string                    `json:"subscriptionTier" enum:"free,starter,professional,enterprise,demo" doc:"Subscription tier; demo provisions an ephemeral free tenant"`
		CustomDomain       string                    `json:"customDomain,omitempty" maxLength:"255" doc:"Custom domain to attach (unverified until challenged)"`
		PopulateSampleData bool                      `json:"populateSampleData,omitempty" doc:"Seed the tenant database with sample workshop data"`
		ResourceOverrides  *domain.ResourceOverrides `json:"resourceOverrides,omitempty" doc:"Infrastructure sizing overrides (enterprise tier only)"`
		Metadata           map[string]any            `json:"metadata,omitempty" doc:"Opaque key-value metadata stored with the tenant"`
	}
}

type ProvisionTenantOutput struct {
	Body *domain.TenantProvisioningResult
}

// RegisterProvisioningRoutes wires tenant provisioning. The run is
// synchronous: the response carries the full step log and, on success,
// the one-time admin credentials.
func RegisterProvisioningRoutes(api huma.API, provisioner Provisioner) {
	huma.Register(api, huma.Operation{
		OperationID: "provision-tenant",
		Method:      http.MethodPost,
		Path:        "/provision",
		Summary:     "Provision a new tenant",
		Tags:        []string{"Provisioning"},
	}, func(ctx context.Context, input *ProvisionTenantInput) (*ProvisionTenantOutput, error) {
		role, ok := middleware.RoleFromContext(ctx)
		if !ok || role != middleware.RoleAdmin {
			return nil, huma.Error403Forbidden("admin role required")
		}

		req := &domain.TenantProvisioningRequest{
			CompanyName:        input.Body.CompanyName,
			TenantID:           input.Body.TenantID,
			OwnerEmail:         input.Body.OwnerEmail,
			OwnerName:          input.Body.OwnerName,
			SubscriptionTier:   input.Body.SubscriptionTier,
			CustomDomain:       input.Body.CustomDomain,
			PopulateSampleData: input.Body.PopulateSampleData,
			ResourceOverrides:  input.Body.ResourceOverrides,
			Metadata:           input.Body.Metadata,
		}

		result, err := provisioner.Provision(ctx, req)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrDuplicateTenantID):
				return nil, huma.Error409Conflict("tenant id already taken")
			case errors.Is(err, domain.ErrTierMismatch):
				return nil, huma.Error422UnprocessableEntity("resource overrides require enterprise tier")
			case errors.Is(err, domain.ErrValidation):
				return nil, huma.Error422UnprocessableEntity(err.Error())
			}
			// Infrastructure failures still carry the step log so the
			// operator can see where the run died.
			if result != nil {
				return &ProvisionTenantOutput{Body: result}, nil
			}
			return nil, huma.Error500InternalServerError("provisioning failed", err)
		}

		return &ProvisionTenantOutput{Body: result}, nil
	})
}
