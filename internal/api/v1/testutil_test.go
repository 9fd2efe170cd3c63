package v1_test

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mechanicbuddy/control-plane/internal/billing"
	"github.com/mechanicbuddy/control-plane/internal/domain"
	"github.com/mechanicbuddy/control-plane/internal/server/middleware"
	"github.com/mechanicbuddy/control-plane/internal/verify"
)

// ---------------------------------------------------------------------------
// Context helpers — inject operator identity into context for DoCtx
// ---------------------------------------------------------------------------

func operatorCtx(role string) context.Context {
	ctx := context.Background()
	ctx = context.WithValue(ctx, middleware.ContextKeyOperatorID, fixedOperatorID())
	ctx = context.WithValue(ctx, middleware.ContextKeyOperatorEmail, "ops@mechanicbuddy.app")
	ctx = context.WithValue(ctx, middleware.ContextKeyOperatorRole, role)
	return ctx
}

func adminCtx() context.Context {
	return operatorCtx(middleware.RoleAdmin)
}

func readOnlyCtx() context.Context {
	return operatorCtx(middleware.RoleOperator)
}

func fixedOperatorID() uuid.UUID {
	return uuid.MustParse("00000000-0000-0000-0000-000000000001")
}

// ---------------------------------------------------------------------------
// Mock DataStore
// ---------------------------------------------------------------------------

type mockDataStore struct {
	tenants       domain.TenantRepository
	verifications domain.VerificationRepository
	audit         domain.AuditRepository
	billing       domain.BillingRepository
	operators     domain.OperatorRepository
}

func (m *mockDataStore) Tenants() domain.TenantRepository             { return m.tenants }
func (m *mockDataStore) Verifications() domain.VerificationRepository { return m.verifications }
func (m *mockDataStore) Audit() domain.AuditRepository                { return m.audit }
func (m *mockDataStore) Billing() domain.BillingRepository            { return m.billing }
func (m *mockDataStore) Operators() domain.OperatorRepository         { return m.operators }

// ---------------------------------------------------------------------------
// Mock TenantRepository
// ---------------------------------------------------------------------------

type mockTenantRepo struct {
	createFunc              func(ctx context.Context, t *domain.Tenant) error
	getBySlugFunc           func(ctx context.Context, slug string) (*domain.Tenant, error)
	updateStatusFunc        func(ctx context.Context, slug string, to domain.TenantStatus, reason string) error
	setProvisionedFunc      func(ctx context.Context, slug, namespace, dsn, apiURL string) error
	setDomainVerifiedFunc   func(ctx context.Context, slug, domainName string) error
	listFunc                func(ctx context.Context, filter domain.TenantFilter, limit, offset int) ([]*domain.Tenant, error)
	stuckInProvisioningFunc func(ctx context.Context, cutoff time.Time) ([]*domain.Tenant, error)
}

func (m *mockTenantRepo) Create(ctx context.Context, t *domain.Tenant) error {
	return m.createFunc(ctx, t)
}

func (m *mockTenantRepo) GetBySlug(ctx context.Context, slug string) (*domain.Tenant, error) {
	return m.getBySlugFunc(ctx, slug)
}

func (m *mockTenantRepo) UpdateStatus(ctx context.Context, slug string, to domain.TenantStatus, reason string) error {
	return m.updateStatusFunc(ctx, slug, to, reason)
}

func (m *mockTenantRepo) SetProvisioned(ctx context.Context, slug, namespace, dsn, apiURL string) error {
	return m.setProvisionedFunc(ctx, slug, namespace, dsn, apiURL)
}

func (m *mockTenantRepo) SetDomainVerified(ctx context.Context, slug, domainName string) error {
	return m.setDomainVerifiedFunc(ctx, slug, domainName)
}

func (m *mockTenantRepo) List(ctx context.Context, filter domain.TenantFilter, limit, offset int) ([]*domain.Tenant, error) {
	return m.listFunc(ctx, filter, limit, offset)
}

func (m *mockTenantRepo) StuckInProvisioning(ctx context.Context, cutoff time.Time) ([]*domain.Tenant, error) {
	return m.stuckInProvisioningFunc(ctx, cutoff)
}

// ---------------------------------------------------------------------------
// Mock VerificationRepository
// ---------------------------------------------------------------------------

type mockVerificationRepo struct {
	createFunc       func(ctx context.Context, v *domain.DomainVerification) error
	getFunc          func(ctx context.Context, tenantSlug, domainName string) (*domain.DomainVerification, error)
	markVerifiedFunc func(ctx context.Context, id uuid.UUID, at time.Time) error
}

func (m *mockVerificationRepo) Create(ctx context.Context, v *domain.DomainVerification) error {
	return m.createFunc(ctx, v)
}

func (m *mockVerificationRepo) Get(ctx context.Context, tenantSlug, domainName string) (*domain.DomainVerification, error) {
	return m.getFunc(ctx, tenantSlug, domainName)
}

func (m *mockVerificationRepo) MarkVerified(ctx context.Context, id uuid.UUID, at time.Time) error {
	return m.markVerifiedFunc(ctx, id, at)
}

// ---------------------------------------------------------------------------
// Mock AuthService
// ---------------------------------------------------------------------------

type mockAuthService struct {
	loginFunc             func(ctx context.Context, email, password string) (string, string, error)
	refreshTokenFunc      func(ctx context.Context, refreshToken string) (string, error)
	loginWithProviderFunc func(ctx context.Context, provider, providerID, email, name string) (string, string, error)
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (accessToken, refreshToken string, err error) {
	return m.loginFunc(ctx, email, password)
}

func (m *mockAuthService) RefreshToken(ctx context.Context, refreshToken string) (string, error) {
	return m.refreshTokenFunc(ctx, refreshToken)
}

func (m *mockAuthService) LoginWithProvider(ctx context.Context, provider, providerID, email, name string) (accessToken, refreshToken string, err error) {
	return m.loginWithProviderFunc(ctx, provider, providerID, email, name)
}

// ---------------------------------------------------------------------------
// Mock Provisioner
// ---------------------------------------------------------------------------

type mockProvisioner struct {
	provisionFunc func(ctx context.Context, req *domain.TenantProvisioningRequest) (*domain.TenantProvisioningResult, error)
}

func (m *mockProvisioner) Provision(ctx context.Context, req *domain.TenantProvisioningRequest) (*domain.TenantProvisioningResult, error) {
	return m.provisionFunc(ctx, req)
}

// ---------------------------------------------------------------------------
// Mock Decommissioner
// ---------------------------------------------------------------------------

type mockDecommissioner struct {
	deallocated []string
	err         error
}

func (m *mockDecommissioner) Deallocate(_ context.Context, slug string) error {
	m.deallocated = append(m.deallocated, slug)
	return m.err
}

// ---------------------------------------------------------------------------
// Mock Verifier + VerifyPoller
// ---------------------------------------------------------------------------

type mockVerifier struct {
	requestFunc func(ctx context.Context, tenantSlug, domainName string, method domain.VerificationMethod) (*domain.DomainVerification, error)
	checkFunc   func(ctx context.Context, tenantSlug, domainName string) (*verify.CheckResult, error)
}

func (m *mockVerifier) RequestVerification(ctx context.Context, tenantSlug, domainName string, method domain.VerificationMethod) (*domain.DomainVerification, error) {
	return m.requestFunc(ctx, tenantSlug, domainName, method)
}

func (m *mockVerifier) Check(ctx context.Context, tenantSlug, domainName string) (*verify.CheckResult, error) {
	return m.checkFunc(ctx, tenantSlug, domainName)
}

type mockPoller struct {
	started []string
}

func (m *mockPoller) Start(_ context.Context, tenantSlug, domainName string) {
	m.started = append(m.started, tenantSlug+"/"+domainName)
}

// ---------------------------------------------------------------------------
// Mock AuditReader
// ---------------------------------------------------------------------------

type mockAuditReader struct {
	queryFunc func(ctx context.Context, filter domain.AuditFilter, limit, offset int) ([]*domain.AuditLog, error)
	statsFunc func(ctx context.Context, windowDays int) (*domain.AuditLogStats, error)
}

func (m *mockAuditReader) Query(ctx context.Context, filter domain.AuditFilter, limit, offset int) ([]*domain.AuditLog, error) {
	return m.queryFunc(ctx, filter, limit, offset)
}

func (m *mockAuditReader) Stats(ctx context.Context, windowDays int) (*domain.AuditLogStats, error) {
	return m.statsFunc(ctx, windowDays)
}

// ---------------------------------------------------------------------------
// Mock BillingService
// ---------------------------------------------------------------------------

type mockBillingService struct {
	recordEventFunc     func(ctx context.Context, e *domain.BillingEvent) (billing.Action, error)
	recordMetricsFunc   func(ctx context.Context, m *domain.TenantMetrics) error
	reconcileTenantFunc func(ctx context.Context, slug string) (billing.Action, error)
}

func (m *mockBillingService) RecordEvent(ctx context.Context, e *domain.BillingEvent) (billing.Action, error) {
	return m.recordEventFunc(ctx, e)
}

func (m *mockBillingService) RecordMetrics(ctx context.Context, tm *domain.TenantMetrics) error {
	return m.recordMetricsFunc(ctx, tm)
}

func (m *mockBillingService) ReconcileTenant(ctx context.Context, slug string) (billing.Action, error) {
	return m.reconcileTenantFunc(ctx, slug)
}
