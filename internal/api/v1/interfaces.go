package v1

import (
	"context"

	"github.com/mechanicbuddy/control-plane/internal/billing"
	"github.com/mechanicbuddy/control-plane/internal/domain"
	"github.com/mechanicbuddy/control-plane/internal/verify"
)

// DataStore abstracts the repository accessor pattern for handler testing.
// *postgres.Store satisfies this interface.
type DataStore interface {
	Tenants() domain.TenantRepository
	Verifications() domain.VerificationRepository
	Audit() domain.AuditRepository
	Billing() domain.BillingRepository
	Operators() domain.OperatorRepository
}

// AuthService abstracts operator authentication for handler testing.
// *auth.Service satisfies this interface.
type AuthService interface {
	Login(ctx context.Context, email, password string) (accessToken, refreshToken string, err error)
	RefreshToken(ctx context.Context, refreshToken string) (string, error)
	LoginWithProvider(ctx context.Context, provider, providerID, email, name string) (accessToken, refreshToken string, err error)
}

// Provisioner abstracts the provisioning pipeline for handler testing.
// *provision.Orchestrator satisfies this interface.
type Provisioner interface {
	Provision(ctx context.Context, req *domain.TenantProvisioningRequest) (*domain.TenantProvisioningResult, error)
}

// Decommissioner tears down tenant infrastructure on delete.
// *infra.DockerDriver satisfies this interface.
type Decommissioner interface {
	Deallocate(ctx context.Context, slug string) error
}

// Verifier abstracts the domain verification engine for handler testing.
// *verify.Engine satisfies this interface.
type Verifier interface {
	RequestVerification(ctx context.Context, tenantSlug, domainName string, method domain.VerificationMethod) (*domain.DomainVerification, error)
	Check(ctx context.Context, tenantSlug, domainName string) (*verify.CheckResult, error)
}

// VerifyPoller starts background re-checking of a pending verification.
// *verify.Poller satisfies this interface.
type VerifyPoller interface {
	Start(ctx context.Context, tenantSlug, domainName string)
}

// AuditReader abstracts audit trail queries for handler testing.
// *audit.Recorder satisfies this interface.
type AuditReader interface {
	Query(ctx context.Context, filter domain.AuditFilter, limit, offset int) ([]*domain.AuditLog, error)
	Stats(ctx context.Context, windowDays int) (*domain.AuditLogStats, error)
}

// BillingService abstracts reconciliation for handler testing.
// *billing.Reconciler satisfies this interface.
type BillingService interface {
	RecordEvent(ctx context.Context, e *domain.BillingEvent) (billing.Action, error)
	RecordMetrics(ctx context.Context, m *domain.TenantMetrics) error
	ReconcileTenant(ctx context.Context, slug string) (billing.Action, error)
}
