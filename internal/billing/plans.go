// Package billing provides plan definitions and plan resolution for the
// QuickAI platform.
package billing

import "quickai/internal/types"

// PlanRegistry defines the authoritative limits for each tier.
// This is the single source of truth for what each plan allows.
type PlanRegistry interface {
	// GetLimits returns the resource limits for the given plan tier.
	// For unknown tiers, returns the most restrictive (Free) limits to fail
	// safely.
	GetLimits(tier types.PlanTier) types.PlanLimits
}

// staticPlanRegistry is a compile-time plan registry backed by an in-memory
// map. It is the standard implementation for production use.
type staticPlanRegistry struct {
	limits map[types.PlanTier]types.PlanLimits
}

// planDefaults defines the hardcoded plan limits.
//
//	| Plan    | Feature calls/day |
//	|---------|-------------------|
//	| Free    | 10                |
//	| Premium | 0 (unlimited)     |
//
// Premium uses 0 to represent "unlimited" -- enforcement code must treat 0 as
// no limit.
var planDefaults = map[types.PlanTier]types.PlanLimits{
	types.PlanFree: {
		DailyFeatureCalls: 10,
	},
	types.PlanPremium: {
		DailyFeatureCalls: 0, // Unlimited -- enforcement treats 0 as no limit
	},
}

// freeLimits is cached to avoid map lookups on the fallback path.
var freeLimits = planDefaults[types.PlanFree]

// NewStaticPlanRegistry returns a PlanRegistry backed by the hardcoded plan
// limits. No database or external service is required.
func NewStaticPlanRegistry() PlanRegistry {
	// Copy the defaults into a new map so callers cannot mutate the
	// package-level variable.
	m := make(map[types.PlanTier]types.PlanLimits, len(planDefaults))
	for k, v := range planDefaults {
		m[k] = v
	}
	return &staticPlanRegistry{limits: m}
}

// GetLimits returns the resource limits for the given plan tier.
// If the tier is unknown, it returns the Free tier limits as a safe default.
func (r *staticPlanRegistry) GetLimits(tier types.PlanTier) types.PlanLimits {
	if limits, ok := r.limits[tier]; ok {
		return limits
	}
	return freeLimits
}
