package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AuditLog is one row per administrative HTTP request. Append-only:
// never mutated or deleted after insert.
type AuditLog struct {
	ID uuid.UUID `json:"id"`

	AdminID    uuid.UUID `json:"adminId"`
	AdminEmail string    `json:"adminEmail"`
	AdminRole  string    `json:"adminRole"`

	IPAddress  string `json:"ipAddress"`
	UserAgent  string `json:"userAgent"`
	HTTPMethod string `json:"httpMethod"`
	Endpoint   string `json:"endpoint"`

	ResourceType string `json:"resourceType"`
	ResourceID   string `json:"resourceId"`
	TenantID     string `json:"tenantId,omitempty"` // tenant slug, empty for non-tenant-scoped ops

	Timestamp  time.Time `json:"timestamp"`
	DurationMs int64     `json:"durationMs"`

	StatusCode    int  `json:"statusCode"`
	WasSuccessful bool `json:"wasSuccessful"`
}

// AuditFilter narrows Query results. Zero values are ignored.
type AuditFilter struct {
	SearchText string // matches admin email, endpoint, resource id
	ActionType string // HTTP method
	TenantID   string
	From       time.Time
	To         time.Time
}

// AuditLogStats is a derived aggregate over a trailing window, not stored.
type AuditLogStats struct {
	WindowDays      int   `json:"windowDays"`
	TotalRequests   int64 `json:"totalRequests"`
	DistinctAdmins  int64 `json:"distinctAdmins"`
	TenantScopedOps int64 `json:"tenantScopedOps"`
	AuthEvents      int64 `json:"authEvents"`
	FailedRequests  int64 `json:"failedRequests"`
}

type AuditRepository interface {
	Record(ctx context.Context, entry *AuditLog) error
	Query(ctx context.Context, filter AuditFilter, limit, offset int) ([]*AuditLog, error)
	Stats(ctx context.Context, windowDays int) (*AuditLogStats, error)
}
