package provision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mechanicbuddy/control-plane/internal/auth"
	"github.com/mechanicbuddy/control-plane/internal/domain"
	"github.com/mechanicbuddy/control-plane/internal/infra"
	redisstore "github.com/mechanicbuddy/control-plane/internal/store/redis"
)

// tierDemo is a request-level alias: it provisions a free-tier tenant
// flagged ephemeral. It is not a stored tier.
const tierDemo = "demo"

// maxSlugAttempts bounds the collision-suffix retry loop for derived slugs.
const maxSlugAttempts = 10

// abortTimeout bounds the compensating teardown of a failed run.
const abortTimeout = 30 * time.Second

// Driver allocates and tears down per-tenant infrastructure.
type Driver interface {
	Allocate(ctx context.Context, slug string, overrides *domain.ResourceOverrides, creds *infra.AdminCredentials) (*infra.Allocation, error)
	Deallocate(ctx context.Context, slug string) error
}

// Seeder populates a fresh tenant database with sample data.
type Seeder interface {
	Seed(ctx context.Context, slug, dsn string) error
}

// Publisher streams provisioning log entries to live watchers.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// OpsNotifier reports provisioning failures to the ops channel.
type OpsNotifier interface {
	ProvisioningFailed(ctx context.Context, slug, reason string)
}

// Orchestrator runs the multi-step tenant provisioning pipeline:
// registry insert, infrastructure allocation, credential generation,
// optional sample data, activation. A failure at any step rolls the
// tenant forward to deleted and tears down whatever was allocated.
type Orchestrator struct {
	tenants   domain.TenantRepository
	driver    Driver
	seeder    Seeder
	publisher Publisher
	notifier  OpsNotifier

	timeout time.Duration
	demoTTL time.Duration
}

// NewOrchestrator wires the provisioning pipeline. seeder, publisher and
// notifier may be nil; the corresponding steps are skipped.
func NewOrchestrator(tenants domain.TenantRepository, driver Driver, seeder Seeder, publisher Publisher, notifier OpsNotifier, timeout, demoTTL time.Duration) *Orchestrator {
	return &Orchestrator{
		tenants:   tenants,
		driver:    driver,
		seeder:    seeder,
		publisher: publisher,
		notifier:  notifier,
		timeout:   timeout,
		demoTTL:   demoTTL,
	}
}

// Provision creates a new tenant end to end. The returned result always
// carries the full step log; on failure it also carries the error message
// and err is non-nil. The admin password appears in the result exactly once
// and is never stored.
func (o *Orchestrator) Provision(ctx context.Context, req *domain.TenantProvisioningRequest) (*domain.TenantProvisioningResult, error) {
	start := time.Now()
	result := &domain.TenantProvisioningResult{}

	tier, isDemo, err := resolveTier(req)
	if err != nil {
		return fail(result, start, "", err), err
	}

	// Bound the whole run. A wedged Docker daemon must not hold the
	// request open indefinitely.
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	slug, err := o.reserveSlug(ctx, req, tier, isDemo, result)
	if err != nil {
		return fail(result, start, "", err), err
	}
	result.TenantID = slug

	adminEmail := auth.AdminEmail(req.OwnerEmail, slug)
	adminPassword, err := auth.GeneratePassword()
	if err != nil {
		o.abort(ctx, slug, result, fmt.Errorf("generating credentials: %w", err))
		return fail(result, start, slug, err), err
	}
	passwordHash, err := auth.HashPassword(adminPassword)
	if err != nil {
		o.abort(ctx, slug, result, fmt.Errorf("hashing credentials: %w", err))
		return fail(result, start, slug, err), err
	}
	o.step(ctx, slug, result, "credentials", "admin account created for "+adminEmail)

	// Only the hash leaves the control plane; the tenant container seeds
	// its admin account from it.
	alloc, err := o.driver.Allocate(ctx, slug, req.ResourceOverrides, &infra.AdminCredentials{
		Email:        adminEmail,
		PasswordHash: passwordHash,
	})
	if err != nil {
		o.abort(ctx, slug, result, fmt.Errorf("allocating infrastructure: %w", err))
		return fail(result, start, slug, err), err
	}
	o.step(ctx, slug, result, "allocate", "infrastructure allocated in namespace "+alloc.Namespace)

	if req.PopulateSampleData && o.seeder != nil {
		if err := o.seeder.Seed(ctx, slug, alloc.DBConnectionString); err != nil {
			o.abort(ctx, slug, result, fmt.Errorf("seeding sample data: %w", err))
			return fail(result, start, slug, err), err
		}
		o.step(ctx, slug, result, "seed", "sample data populated")
	}

	if err := o.tenants.SetProvisioned(ctx, slug, alloc.Namespace, alloc.DBConnectionString, alloc.APIURL); err != nil {
		o.abort(ctx, slug, result, fmt.Errorf("activating tenant: %w", err))
		return fail(result, start, slug, err), err
	}
	o.step(ctx, slug, result, "activate", "tenant is active")

	result.Success = true
	result.APIURL = alloc.APIURL
	result.AdminEmail = adminEmail
	result.AdminPassword = adminPassword
	result.ProvisioningDuration = time.Since(start)

	log.Info().
		Str("tenant", slug).
		Str("tier", string(tier)).
		Bool("demo", isDemo).
		Dur("duration", result.ProvisioningDuration).
		Msg("provision: tenant provisioned")

	return result, nil
}

// reserveSlug inserts the registry row in provisioning state, resolving
// slug collisions. An explicitly requested slug that is taken is an error;
// a derived slug gets numeric suffixes before giving up.
func (o *Orchestrator) reserveSlug(ctx context.Context, req *domain.TenantProvisioningRequest, tier domain.Tier, isDemo bool, result *domain.TenantProvisioningResult) (string, error) {
	if req.CompanyName == "" {
		return "", fmt.Errorf("provision: company name is required: %w", domain.ErrValidation)
	}

	explicit := req.TenantID != ""
	if explicit && !domain.ValidSlug(req.TenantID) {
		return "", fmt.Errorf("provision: invalid tenant id %q: %w", req.TenantID, domain.ErrValidation)
	}

	base := req.TenantID
	if !explicit {
		base = Slugify(req.CompanyName)
	}

	slug := base
	for attempt := 1; ; attempt++ {
		t := o.newTenant(req, slug, tier, isDemo)

		err := o.tenants.Create(ctx, t)
		if err == nil {
			o.step(ctx, slug, result, "register", "tenant registered as "+slug)
			return slug, nil
		}

		if !errors.Is(err, domain.ErrDuplicateTenantID) {
			return "", fmt.Errorf("provision: registering tenant: %w", err)
		}
		if explicit {
			return "", fmt.Errorf("provision: tenant id %q is taken: %w", slug, domain.ErrDuplicateTenantID)
		}
		if attempt >= maxSlugAttempts {
			return "", fmt.Errorf("provision: no free slug for %q: %w", base, domain.ErrDuplicateTenantID)
		}

		slug = WithSuffix(base, attempt+1)
	}
}

func (o *Orchestrator) newTenant(req *domain.TenantProvisioningRequest, slug string, tier domain.Tier, isDemo bool) *domain.Tenant {
	policy := domain.PolicyFor(tier)
	maxMechanics := policy.MaxMechanics
	maxStorageMB := policy.MaxStorageMB
	if ov := req.ResourceOverrides; ov != nil {
		if ov.MaxMechanics > 0 {
			maxMechanics = ov.MaxMechanics
		}
		if ov.StorageMB > 0 {
			maxStorageMB = ov.StorageMB
		}
	}

	now := time.Now()
	t := &domain.Tenant{
		TenantID:     slug,
		Tier:         tier,
		Status:       domain.TenantStatusProvisioning,
		OwnerEmail:   req.OwnerEmail,
		OwnerName:    req.OwnerName,
		MaxMechanics: maxMechanics,
		MaxStorageMB: maxStorageMB,
		CreatedAt:    now,
		IsDemo:       isDemo,
		Metadata:     req.Metadata,
	}

	if req.CustomDomain != "" {
		t.CustomDomain = &req.CustomDomain
	}
	if isDemo {
		ends := now.Add(o.demoTTL)
		t.SubscriptionEndsAt = &ends
	}

	return t
}

// abort is the compensating path: record the failure, mark the tenant
// deleted, tear down infrastructure, and alert ops. Teardown failures are
// logged, not raised; the watchdog retries orphans later.
func (o *Orchestrator) abort(ctx context.Context, slug string, result *domain.TenantProvisioningResult, cause error) {
	// The run context is often already past its deadline when a run is
	// aborted (a wedged driver is the usual cause), so teardown runs on a
	// fresh bounded context instead of the dead one.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), abortTimeout)
	defer cancel()

	o.log(ctx, slug, result, "abort", domain.LogLevelError, cause.Error())

	if err := o.tenants.UpdateStatus(ctx, slug, domain.TenantStatusDeleted, ""); err != nil {
		log.Error().Err(err).Str("tenant", slug).Msg("provision: marking failed tenant deleted")
	}

	if err := o.driver.Deallocate(ctx, slug); err != nil {
		log.Error().Err(err).Str("tenant", slug).Msg("provision: cleanup after failed run")
	}

	if o.notifier != nil {
		o.notifier.ProvisioningFailed(ctx, slug, cause.Error())
	}
}

func (o *Orchestrator) step(ctx context.Context, slug string, result *domain.TenantProvisioningResult, step, message string) {
	o.log(ctx, slug, result, step, domain.LogLevelInfo, message)
}

// log appends a step entry to the run log and streams it to live watchers.
// Publish failures are ignored: the stream is advisory, the result log is
// the record.
func (o *Orchestrator) log(ctx context.Context, slug string, result *domain.TenantProvisioningResult, step string, level domain.LogLevel, message string) {
	entry := domain.ProvisioningLogEntry{
		Step:      step,
		Level:     level,
		Message:   message,
		Timestamp: time.Now(),
	}
	result.Log = append(result.Log, entry)

	if o.publisher == nil || slug == "" {
		return
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return
	}
	_ = o.publisher.Publish(ctx, redisstore.ProvisionChannel(slug), payload)
}

func resolveTier(req *domain.TenantProvisioningRequest) (domain.Tier, bool, error) {
	if req.SubscriptionTier == tierDemo {
		if !req.ResourceOverrides.Empty() {
			return "", false, fmt.Errorf("provision: demo tenants cannot carry resource overrides: %w", domain.ErrTierMismatch)
		}
		return domain.TierFree, true, nil
	}

	tier := domain.Tier(req.SubscriptionTier)
	if !domain.ValidTier(tier) {
		return "", false, fmt.Errorf("provision: unknown tier %q: %w", req.SubscriptionTier, domain.ErrValidation)
	}

	if !req.ResourceOverrides.Empty() && !domain.PolicyFor(tier).AllowOverrides {
		return "", false, fmt.Errorf("provision: tier %q does not allow resource overrides: %w", tier, domain.ErrTierMismatch)
	}

	return tier, false, nil
}

// fail finalizes a result for an unsuccessful run. The terminal log entry
// of a failed run is always error-level.
func fail(result *domain.TenantProvisioningResult, start time.Time, slug string, err error) *domain.TenantProvisioningResult {
	result.Success = false
	result.TenantID = slug
	result.ErrorMessage = err.Error()
	result.ProvisioningDuration = time.Since(start)

	if n := len(result.Log); n == 0 || result.Log[n-1].Level != domain.LogLevelError {
		result.Log = append(result.Log, domain.ProvisioningLogEntry{
			Step:      "abort",
			Level:     domain.LogLevelError,
			Message:   err.Error(),
			Timestamp: time.Now(),
		})
	}

	return result
}
