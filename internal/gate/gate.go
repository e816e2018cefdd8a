// Package gate implements the plan-gated request-authorization and
// usage-accounting flow. Every feature request passes through the gate before
// any downstream capability is invoked; the gate composes the plan resolver
// and the usage ledger into a single allow/deny decision, and records billed
// usage only after the capability reports success.
package gate

import (
	"context"
	"log/slog"
	"time"

	"quickai/internal/billing"
	"quickai/internal/types"
)

// UsageLedger is the durable per-(caller, period) counter store the gate
// reads and charges. Satisfied by *db.UsageRepo.
type UsageLedger interface {
	// Get returns 0 when no record exists; it never creates one.
	Get(ctx context.Context, userID string, period time.Time) (int, error)
	// Increment is an atomic read-modify-write on the caller's counter for
	// the period, creating the record if absent.
	Increment(ctx context.Context, userID string, period time.Time) (int, error)
}

// DenyReason explains a negative authorization decision.
type DenyReason string

const (
	DenyUnauthenticated DenyReason = "unauthenticated"
	DenyQuotaExceeded   DenyReason = "quota_exceeded"
)

// Decision is the outcome of an authorization check. It is derived fresh per
// request from the current plan and usage record and is never persisted.
type Decision struct {
	Allowed bool
	Reason  DenyReason

	Plan   types.PlanTier
	Used   int
	Limit  int // 0 means unlimited
	Period time.Time
}

// Remaining returns the number of invocations left in the period, or -1 for
// unlimited plans.
func (d Decision) Remaining() int {
	if d.Limit == 0 {
		return -1
	}
	if rem := d.Limit - d.Used; rem > 0 {
		return rem
	}
	return 0
}

// Gate composes the plan registry, plan resolver, and usage ledger.
type Gate struct {
	plans    billing.PlanRegistry
	resolver billing.PlanResolver
	ledger   UsageLedger
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a Gate. The clock parameter may be nil, in which case time.Now
// is used; it exists for deterministic tests of period boundaries.
func New(
	plans billing.PlanRegistry,
	resolver billing.PlanResolver,
	ledger UsageLedger,
	logger *slog.Logger,
	clock func() time.Time,
) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = time.Now
	}
	return &Gate{
		plans:    plans,
		resolver: resolver,
		ledger:   ledger,
		logger:   logger,
		now:      clock,
	}
}

// Authorize decides whether the caller may invoke a feature right now.
//
//  1. Unauthenticated callers are denied before plan resolution.
//  2. The plan is resolved (pure lookup, no side effects).
//  3. Current-period usage is read from the ledger.
//  4. Unlimited plans are always allowed; otherwise used < limit allows.
//
// Authorize has no side effects: permitted attempts are not billed usage.
// The ledger is charged only via RecordCompletion after the downstream
// capability reports success.
func (g *Gate) Authorize(ctx context.Context, actor *types.Actor, feature types.Feature) (Decision, error) {
	if actor == nil || actor.ID == "" {
		return Decision{Allowed: false, Reason: DenyUnauthenticated}, nil
	}

	plan, err := g.resolver.Resolve(ctx, actor.ID)
	if err != nil {
		return Decision{}, err
	}
	limits := g.plans.GetLimits(plan)

	period := types.UsagePeriod(g.now())
	used, err := g.ledger.Get(ctx, actor.ID, period)
	if err != nil {
		return Decision{}, err
	}

	d := Decision{
		Plan:   plan,
		Used:   used,
		Limit:  limits.DailyFeatureCalls,
		Period: period,
	}

	if limits.Unlimited() || used < limits.DailyFeatureCalls {
		d.Allowed = true
		return d, nil
	}

	d.Reason = DenyQuotaExceeded
	g.logger.Info("feature request denied: quota exceeded",
		slog.String("user_id", actor.ID),
		slog.String("feature", string(feature)),
		slog.String("plan", string(plan)),
		slog.Int("used", used),
		slog.Int("limit", limits.DailyFeatureCalls),
	)
	return d, nil
}

// RecordCompletion charges one completed feature invocation to the caller's
// ledger and returns the new count. It must be called exactly once per
// successful downstream completion, and never for failed, canceled, or
// timed-out dispatches -- that distinction between permitted attempts and
// billed usage is the gate's central invariant.
//
// The period is derived from the completion time, not request-submission
// time, so retried or queued requests land in the period they actually ran
// in. The ledger write runs on a context detached from request cancellation:
// once the capability has succeeded, a client disconnect must not lose the
// charge.
func (g *Gate) RecordCompletion(ctx context.Context, actor types.Actor, feature types.Feature) (int, error) {
	period := types.UsagePeriod(g.now())
	count, err := g.ledger.Increment(context.WithoutCancel(ctx), actor.ID, period)
	if err != nil {
		// The user received their result but the charge failed. Surface the
		// error loudly; the increment is not retried blindly because a second
		// attempt could double-count.
		g.logger.Error("failed to record completed feature invocation",
			slog.String("user_id", actor.ID),
			slog.String("feature", string(feature)),
			slog.String("error", err.Error()),
		)
		return 0, err
	}
	return count, nil
}

// Usage reports the caller's current-period standing without authorizing
// anything. Used by the account endpoint.
func (g *Gate) Usage(ctx context.Context, actor types.Actor) (Decision, error) {
	return g.Authorize(ctx, &actor, "")
}
