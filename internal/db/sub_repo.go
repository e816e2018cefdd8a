package db

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"quickai/internal/types"
)

// SubscriptionRepo manages the persisted plan association for each caller,
// kept in sync with Stripe via webhooks.
//
// Key invariant: ApplyEvent uses optimistic locking via last_event_at to
// handle out-of-order webhook delivery. A stale or duplicate event is an
// idempotent no-op, never a downgrade back in time.
type SubscriptionRepo struct {
	db     DBTX
	logger *slog.Logger
}

// NewSubscriptionRepo creates a new SubscriptionRepo backed by the given
// database connection (pool or transaction).
func NewSubscriptionRepo(db DBTX, logger *slog.Logger) *SubscriptionRepo {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubscriptionRepo{db: db, logger: logger}
}

// GetByUserID returns the caller's subscription record, or nil if the caller
// has never subscribed. Callers with no record resolve to the free plan.
func (r *SubscriptionRepo) GetByUserID(ctx context.Context, userID string) (*types.Subscription, error) {
	var sub types.Subscription
	var periodEnd, lastEvent *time.Time
	err := r.db.QueryRow(ctx,
		`SELECT user_id, plan, status, stripe_customer_id, current_period_end, last_event_at, updated_at
		 FROM subscriptions
		 WHERE user_id = $1`,
		userID,
	).Scan(&sub.UserID, &sub.Plan, &sub.Status, &sub.StripeCustomerID, &periodEnd, &lastEvent, &sub.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to read subscription", err)
	}
	if periodEnd != nil {
		sub.CurrentPeriodEnd = *periodEnd
	}
	if lastEvent != nil {
		sub.LastEventAt = *lastEvent
	}
	return &sub, nil
}

// ApplyEvent upserts the subscription state from a provider webhook event.
//
// The UPSERT only applies when the event is newer than the last processed one
// (last_event_at < event timestamp). RowsAffected == 0 therefore means a
// stale or duplicate delivery, which is logged and ignored.
func (r *SubscriptionRepo) ApplyEvent(
	ctx context.Context,
	userID string,
	plan types.PlanTier,
	status types.SubscriptionStatus,
	customerID string,
	periodEnd time.Time,
	eventAt time.Time,
) error {
	tag, err := r.db.Exec(ctx,
		`INSERT INTO subscriptions (user_id, plan, status, stripe_customer_id, current_period_end, last_event_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW())
		 ON CONFLICT (user_id)
		 DO UPDATE SET plan = EXCLUDED.plan,
		               status = EXCLUDED.status,
		               stripe_customer_id = EXCLUDED.stripe_customer_id,
		               current_period_end = EXCLUDED.current_period_end,
		               last_event_at = EXCLUDED.last_event_at,
		               updated_at = NOW()
		 WHERE subscriptions.last_event_at IS NULL
		    OR subscriptions.last_event_at < EXCLUDED.last_event_at`,
		userID, plan, status, customerID, periodEnd, eventAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to apply subscription event", err)
	}

	if tag.RowsAffected() == 0 {
		r.logger.Info("stale subscription event ignored (optimistic lock)",
			slog.String("user_id", userID),
			slog.Time("event_at", eventAt),
		)
	}
	return nil
}
