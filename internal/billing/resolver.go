package billing

import (
	"context"
	"time"

	"quickai/internal/types"
)

// SubscriptionLookup is the read-side of the subscription store needed by the
// resolver. Satisfied by *db.SubscriptionRepo.
type SubscriptionLookup interface {
	// GetByUserID returns nil (no error) when the caller has no record.
	GetByUserID(ctx context.Context, userID string) (*types.Subscription, error)
}

// PlanResolver determines the subscription tier a caller is on right now.
type PlanResolver interface {
	// Resolve is a pure lookup: it never mutates usage or subscription state.
	Resolve(ctx context.Context, userID string) (types.PlanTier, error)
}

// SubscriptionPlanResolver resolves plans from the persisted subscription
// record. Callers without a record, and callers whose subscription has
// lapsed, resolve to the free tier. A lapse takes effect immediately: requests
// after the lapse are evaluated as free even when earlier requests in the
// same usage period ran as premium, and the ledger is never rewritten.
type SubscriptionPlanResolver struct {
	subs SubscriptionLookup
	now  func() time.Time
}

// NewSubscriptionPlanResolver creates a resolver over the given subscription
// store. The clock parameter may be nil, in which case time.Now is used; it
// exists for deterministic tests.
func NewSubscriptionPlanResolver(subs SubscriptionLookup, clock func() time.Time) *SubscriptionPlanResolver {
	if clock == nil {
		clock = time.Now
	}
	return &SubscriptionPlanResolver{subs: subs, now: clock}
}

// Resolve implements PlanResolver.
func (r *SubscriptionPlanResolver) Resolve(ctx context.Context, userID string) (types.PlanTier, error) {
	sub, err := r.subs.GetByUserID(ctx, userID)
	if err != nil {
		return "", err
	}
	if !sub.Entitled(r.now()) {
		return types.PlanFree, nil
	}
	return sub.Plan, nil
}
