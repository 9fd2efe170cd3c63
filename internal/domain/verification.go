package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type VerificationMethod string

const (
	VerificationMethodDNS  VerificationMethod = "dns"
	VerificationMethodFile VerificationMethod = "file"
)

// DomainVerification is one pending ownership challenge for a
// (tenant, domain) pair. Unverified records past ExpiresAt are dead and
// must be regenerated with a fresh token, never re-checked.
type DomainVerification struct {
	ID                uuid.UUID          `json:"id"`
	TenantID          string             `json:"tenantId"` // tenant slug
	Domain            string             `json:"domain"`
	VerificationToken string             `json:"verificationToken"`
	Method            VerificationMethod `json:"method"`
	IsVerified        bool               `json:"isVerified"`
	VerifiedAt        *time.Time         `json:"verifiedAt,omitempty"`
	ExpiresAt         time.Time          `json:"expiresAt"`
	CreatedAt         time.Time          `json:"createdAt"`
}

// Expired reports whether the record is past its expiry at the given time.
func (v *DomainVerification) Expired(now time.Time) bool {
	return now.After(v.ExpiresAt)
}

type VerificationRepository interface {
	// Create inserts a fresh verification record, replacing any prior
	// unverified record for the same (tenant, domain) pair.
	Create(ctx context.Context, v *DomainVerification) error
	Get(ctx context.Context, tenantSlug, domain string) (*DomainVerification, error)
	MarkVerified(ctx context.Context, id uuid.UUID, at time.Time) error
}
