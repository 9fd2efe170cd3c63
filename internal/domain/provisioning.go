package domain

import "time"

// ResourceOverrides customize infrastructure sizing for a tenant.
// Only enterprise-tier requests may carry overrides; supplying them at a
// lower tier is a validation error, not silently ignored.
type ResourceOverrides struct {
	CPULimit     string `json:"cpuLimit,omitempty"`
	MemLimit     string `json:"memLimit,omitempty"`
	StorageMB    int    `json:"storageMb,omitempty"`
	MaxMechanics int    `json:"maxMechanics,omitempty"`
}

// Empty reports whether no override field is set.
func (o *ResourceOverrides) Empty() bool {
	return o == nil || (o.CPULimit == "" && o.MemLimit == "" && o.StorageMB == 0 && o.MaxMechanics == 0)
}

// TenantProvisioningRequest is the command that creates a new tenant.
// SubscriptionTier "demo" provisions a free-tier tenant flagged ephemeral.
type TenantProvisioningRequest struct {
	CompanyName        string             `json:"companyName"`
	TenantID           string             `json:"tenantId,omitempty"` // optional explicit slug
	OwnerEmail         string             `json:"ownerEmail"`
	OwnerName          string             `json:"ownerName,omitempty"`
	SubscriptionTier   string             `json:"subscriptionTier"`
	CustomDomain       string             `json:"customDomain,omitempty"`
	PopulateSampleData bool               `json:"populateSampleData,omitempty"`
	ResourceOverrides  *ResourceOverrides `json:"resourceOverrides,omitempty"`
	Metadata           map[string]any     `json:"metadata,omitempty"`
}

type LogLevel string

const (
	LogLevelInfo    LogLevel = "info"
	LogLevelWarning LogLevel = "warning"
	LogLevelError   LogLevel = "error"
)

// ProvisioningLogEntry is one timestamped step record of a provisioning run.
// Entries for a run are strictly increasing in Timestamp; the terminal
// entry's level is error iff the run failed.
type ProvisioningLogEntry struct {
	Step      string    `json:"step"`
	Level     LogLevel  `json:"level"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// TenantProvisioningResult is the outcome of one provisioning run.
// AdminPassword is returned exactly once and never stored in plaintext.
type TenantProvisioningResult struct {
	Success              bool                   `json:"success"`
	TenantID             string                 `json:"tenantId,omitempty"`
	APIURL               string                 `json:"apiUrl,omitempty"`
	AdminEmail           string                 `json:"adminEmail,omitempty"`
	AdminPassword        string                 `json:"adminPassword,omitempty"`
	ErrorMessage         string                 `json:"errorMessage,omitempty"`
	ProvisioningDuration time.Duration          `json:"provisioningDurationNs"`
	Log                  []ProvisioningLogEntry `json:"log"`
}
