package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Billing event types consumed by reconciliation.
const (
	BillingEventPaymentSucceeded = "payment_succeeded"
	BillingEventPaymentFailed    = "payment_failed"
)

// BillingEvent is a time-series fact keyed by tenant slug, immutable once
// written. Used only as a reconciliation input, never edited.
type BillingEvent struct {
	ID          uuid.UUID      `json:"id"`
	TenantID    string         `json:"tenantId"`
	EventType   string         `json:"eventType"`
	AmountCents int64          `json:"amountCents,omitempty"`
	Currency    string         `json:"currency,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
}

// TenantMetrics is a usage snapshot keyed by tenant slug, immutable once
// written.
type TenantMetrics struct {
	TenantID      string    `json:"tenantId"`
	MechanicCount int       `json:"mechanicCount"`
	StorageUsedMB int       `json:"storageUsedMb"`
	RecordedAt    time.Time `json:"recordedAt"`
}

type BillingRepository interface {
	RecordEvent(ctx context.Context, e *BillingEvent) error
	// LastEvent returns the most recent event of the given type for a
	// tenant, or ErrNotFound if none exists.
	LastEvent(ctx context.Context, tenantSlug, eventType string) (*BillingEvent, error)
	RecordMetrics(ctx context.Context, m *TenantMetrics) error
	// LatestMetrics returns the newest usage snapshot, or ErrNotFound.
	LatestMetrics(ctx context.Context, tenantSlug string) (*TenantMetrics, error)
}
