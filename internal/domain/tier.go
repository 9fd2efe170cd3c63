package domain

type Tier string

const (
	TierFree         Tier = "free"
	TierStarter      Tier = "starter"
	TierProfessional Tier = "professional"
	TierEnterprise   Tier = "enterprise"
)

// TierPolicy holds per-tier quota defaults and override eligibility.
// Tier behavior differences are a lookup table, not subclassing.
type TierPolicy struct {
	MaxMechanics   int
	MaxStorageMB   int
	AllowOverrides bool
}

var tierPolicies = map[Tier]TierPolicy{
	TierFree:         {MaxMechanics: 1, MaxStorageMB: 512},
	TierStarter:      {MaxMechanics: 5, MaxStorageMB: 2048},
	TierProfessional: {MaxMechanics: 20, MaxStorageMB: 10240},
	TierEnterprise:   {MaxMechanics: 100, MaxStorageMB: 51200, AllowOverrides: true},
}

// PolicyFor returns the quota policy for a tier. Unknown tiers fall back to
// the free policy.
func PolicyFor(t Tier) TierPolicy {
	p, ok := tierPolicies[t]
	if !ok {
		return tierPolicies[TierFree]
	}
	return p
}

// ValidTier reports whether t is a known subscription tier.
func ValidTier(t Tier) bool {
	_, ok := tierPolicies[t]
	return ok
}
