package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quickai/internal/types"
)

type stubSubLookup struct {
	sub *types.Subscription
	err error
}

func (s *stubSubLookup) GetByUserID(_ context.Context, _ string) (*types.Subscription, error) {
	return s.sub, s.err
}

var resolveNow = time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return resolveNow }

func TestResolve_NoRecordIsFree(t *testing.T) {
	r := NewSubscriptionPlanResolver(&stubSubLookup{sub: nil}, fixedClock)

	plan, err := r.Resolve(context.Background(), "user_1")
	require.NoError(t, err)
	assert.Equal(t, types.PlanFree, plan)
}

func TestResolve_ActivePremium(t *testing.T) {
	sub := &types.Subscription{
		UserID:           "user_1",
		Plan:             types.PlanPremium,
		Status:           types.SubscriptionActive,
		CurrentPeriodEnd: resolveNow.AddDate(0, 1, 0),
	}
	r := NewSubscriptionPlanResolver(&stubSubLookup{sub: sub}, fixedClock)

	plan, err := r.Resolve(context.Background(), "user_1")
	require.NoError(t, err)
	assert.Equal(t, types.PlanPremium, plan)
}

func TestResolve_TrialingCountsAsEntitled(t *testing.T) {
	sub := &types.Subscription{
		Plan:             types.PlanPremium,
		Status:           types.SubscriptionTrialing,
		CurrentPeriodEnd: resolveNow.AddDate(0, 0, 7),
	}
	r := NewSubscriptionPlanResolver(&stubSubLookup{sub: sub}, fixedClock)

	plan, err := r.Resolve(context.Background(), "user_1")
	require.NoError(t, err)
	assert.Equal(t, types.PlanPremium, plan)
}

func TestResolve_CanceledLapsesToFree(t *testing.T) {
	sub := &types.Subscription{
		Plan:             types.PlanPremium,
		Status:           types.SubscriptionCanceled,
		CurrentPeriodEnd: resolveNow.AddDate(0, 1, 0),
	}
	r := NewSubscriptionPlanResolver(&stubSubLookup{sub: sub}, fixedClock)

	plan, err := r.Resolve(context.Background(), "user_1")
	require.NoError(t, err)
	assert.Equal(t, types.PlanFree, plan)
}

func TestResolve_PastDueLapsesToFree(t *testing.T) {
	sub := &types.Subscription{
		Plan:   types.PlanPremium,
		Status: types.SubscriptionPastDue,
	}
	r := NewSubscriptionPlanResolver(&stubSubLookup{sub: sub}, fixedClock)

	plan, err := r.Resolve(context.Background(), "user_1")
	require.NoError(t, err)
	assert.Equal(t, types.PlanFree, plan)
}

func TestResolve_ExpiredPeriodLapsesToFree(t *testing.T) {
	sub := &types.Subscription{
		Plan:             types.PlanPremium,
		Status:           types.SubscriptionActive,
		CurrentPeriodEnd: resolveNow.Add(-time.Hour),
	}
	r := NewSubscriptionPlanResolver(&stubSubLookup{sub: sub}, fixedClock)

	plan, err := r.Resolve(context.Background(), "user_1")
	require.NoError(t, err)
	assert.Equal(t, types.PlanFree, plan)
}

func TestResolve_ZeroPeriodEndStillEntitled(t *testing.T) {
	// A checkout-completed event arrives before the subscription.updated event
	// carrying the period end; the caller is premium in the meantime.
	sub := &types.Subscription{
		Plan:   types.PlanPremium,
		Status: types.SubscriptionActive,
	}
	r := NewSubscriptionPlanResolver(&stubSubLookup{sub: sub}, fixedClock)

	plan, err := r.Resolve(context.Background(), "user_1")
	require.NoError(t, err)
	assert.Equal(t, types.PlanPremium, plan)
}

func TestResolve_LookupErrorPropagates(t *testing.T) {
	r := NewSubscriptionPlanResolver(&stubSubLookup{err: errors.New("db down")}, fixedClock)

	_, err := r.Resolve(context.Background(), "user_1")
	require.Error(t, err)
}
