package domain

import (
	"context"
	"regexp"
	"time"
)

type TenantStatus string

const (
	TenantStatusProvisioning TenantStatus = "provisioning"
	TenantStatusActive       TenantStatus = "active"
	TenantStatusSuspended    TenantStatus = "suspended"
	TenantStatusTrial        TenantStatus = "trial"
	TenantStatusDeleted      TenantStatus = "deleted"
)

// ValidTransition checks if a tenant status transition is allowed.
// Allowed edges:
//
//	provisioning -> active (orchestrator success) | deleted (hard abort)
//	active       -> suspended | deleted
//	suspended    -> active (resolved) | deleted
//	trial        -> active (conversion) | suspended | deleted (expiry)
//
// deleted is terminal. Everything else is rejected, never silently no-oped.
func (s TenantStatus) ValidTransition(to TenantStatus) bool {
	switch s {
	case TenantStatusProvisioning:
		return to == TenantStatusActive || to == TenantStatusDeleted
	case TenantStatusActive:
		return to == TenantStatusSuspended || to == TenantStatusDeleted
	case TenantStatusSuspended:
		return to == TenantStatusActive || to == TenantStatusDeleted
	case TenantStatusTrial:
		return to == TenantStatusActive || to == TenantStatusSuspended || to == TenantStatusDeleted
	default:
		return false
	}
}

// Suspension reasons. Admin-initiated suspensions are never auto-reinstated
// by billing reconciliation.
const (
	SuspensionReasonBilling = "billing"
	SuspensionReasonAdmin   = "admin"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// ValidSlug reports whether s is a well-formed tenant slug:
// lowercase alphanumeric with hyphens, 3-30 chars.
func ValidSlug(s string) bool {
	return len(s) >= 3 && len(s) <= 30 && slugPattern.MatchString(s)
}

// Tenant is one isolated workshop customer account.
// The slug (TenantID) is globally unique and immutable once assigned;
// soft-deleted tenants keep their slug forever so audit history stays
// unambiguous.
type Tenant struct {
	ID       int64        `json:"id"`
	TenantID string       `json:"tenantId"` // external slug
	Tier     Tier         `json:"tier"`
	Status   TenantStatus `json:"status"`

	OwnerEmail string `json:"ownerEmail"`
	OwnerName  string `json:"ownerName"`

	StripeCustomerID     *string `json:"stripeCustomerId,omitempty"`
	StripeSubscriptionID *string `json:"stripeSubscriptionId,omitempty"`

	CustomDomain   *string `json:"customDomain,omitempty"`
	DomainVerified bool    `json:"domainVerified"`

	// Populated only after successful provisioning; nil while provisioning.
	K8sNamespace       *string `json:"k8sNamespace,omitempty"`
	DBConnectionString *string `json:"-"`
	APIURL             *string `json:"apiUrl,omitempty"`

	MaxMechanics int `json:"maxMechanics"`
	MaxStorageMB int `json:"maxStorageMb"`

	CreatedAt          time.Time  `json:"createdAt"`
	TrialEndsAt        *time.Time `json:"trialEndsAt,omitempty"`
	SubscriptionEndsAt *time.Time `json:"subscriptionEndsAt,omitempty"`
	LastBilledAt       *time.Time `json:"lastBilledAt,omitempty"`
	LastActivityAt     *time.Time `json:"lastActivityAt,omitempty"`

	IsDemo           bool   `json:"isDemo"`
	SuspensionReason string `json:"suspensionReason,omitempty"`

	// Metadata is an open key-value bag carried at the boundary only.
	// Core logic must not branch on arbitrary keys; anything behaviorally
	// significant gets promoted to a named field.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// TenantFilter narrows List results.
type TenantFilter struct {
	Status TenantStatus
	Tier   Tier
	Search string // matches slug, owner email, owner name
}

type TenantRepository interface {
	// Create inserts a tenant row. Returns ErrDuplicateTenantID if the slug
	// is taken by any row, including soft-deleted ones.
	Create(ctx context.Context, t *Tenant) error
	GetBySlug(ctx context.Context, slug string) (*Tenant, error)
	// UpdateStatus applies a status transition, enforcing ValidTransition
	// under a row lock. reason is stored as the suspension reason when the
	// target status is suspended and cleared otherwise.
	UpdateStatus(ctx context.Context, slug string, to TenantStatus, reason string) error
	// SetProvisioned stores infra linkage and flips the tenant to active.
	SetProvisioned(ctx context.Context, slug, namespace, dsn, apiURL string) error
	SetDomainVerified(ctx context.Context, slug, domain string) error
	List(ctx context.Context, filter TenantFilter, limit, offset int) ([]*Tenant, error)
	// StuckInProvisioning returns tenants still in provisioning state whose
	// CreatedAt is before cutoff (crashed orchestrator runs).
	StuckInProvisioning(ctx context.Context, cutoff time.Time) ([]*Tenant, error)
}
