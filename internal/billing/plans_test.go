package billing

import (
	"testing"

	"quickai/internal/types"
)

func TestNewStaticPlanRegistry(t *testing.T) {
	reg := NewStaticPlanRegistry()
	if reg == nil {
		t.Fatal("NewStaticPlanRegistry returned nil")
	}
}

func TestGetLimits_FreeTier(t *testing.T) {
	reg := NewStaticPlanRegistry()
	limits := reg.GetLimits(types.PlanFree)

	if limits.DailyFeatureCalls != 10 {
		t.Errorf("Free DailyFeatureCalls = %d, want 10", limits.DailyFeatureCalls)
	}
	if limits.Unlimited() {
		t.Error("Free tier must not be unlimited")
	}
}

func TestGetLimits_PremiumTier(t *testing.T) {
	reg := NewStaticPlanRegistry()
	limits := reg.GetLimits(types.PlanPremium)

	if limits.DailyFeatureCalls != 0 {
		t.Errorf("Premium DailyFeatureCalls = %d, want 0 (unlimited)", limits.DailyFeatureCalls)
	}
	if !limits.Unlimited() {
		t.Error("Premium tier must be unlimited")
	}
}

func TestGetLimits_UnknownTierFallsBackToFree(t *testing.T) {
	reg := NewStaticPlanRegistry()

	for _, tier := range []types.PlanTier{"nonexistent", ""} {
		limits := reg.GetLimits(tier)
		if limits.DailyFeatureCalls != 10 {
			t.Errorf("tier %q DailyFeatureCalls = %d, want free fallback 10", tier, limits.DailyFeatureCalls)
		}
	}
}
