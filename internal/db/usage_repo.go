package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"quickai/internal/types"
)

// UsageRepo provides data access for the usage_ledger table: durable
// per-(caller, period) counters of completed feature invocations.
//
// The table has a composite primary key (user_id, period_date). Rows for past
// periods are never updated or deleted; a period reset is simply a new row
// under the new period_date, which preserves history for auditing.
type UsageRepo struct {
	db DBTX
}

// NewUsageRepo creates a new UsageRepo backed by the given database connection
// (pool or transaction).
func NewUsageRepo(db DBTX) *UsageRepo {
	return &UsageRepo{db: db}
}

// Get returns the usage count for the given caller and period. A missing row
// means zero usage; Get never creates the row.
func (r *UsageRepo) Get(ctx context.Context, userID string, period time.Time) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT count
		 FROM usage_ledger
		 WHERE user_id = $1 AND period_date = $2`,
		userID, period,
	).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to read usage count", err)
	}
	return count, nil
}

// Increment atomically adds one completed invocation to the caller's counter
// for the given period and returns the new count, creating the row if absent.
//
// The UPSERT is a single atomic read-modify-write on the (user_id,
// period_date) row, so concurrent increments for the same caller never lose
// updates. Contention is caller-scoped; increments for different callers
// never block each other.
func (r *UsageRepo) Increment(ctx context.Context, userID string, period time.Time) (int, error) {
	var newCount int
	err := r.db.QueryRow(ctx,
		`INSERT INTO usage_ledger (user_id, period_date, count, updated_at)
		 VALUES ($1, $2, 1, NOW())
		 ON CONFLICT (user_id, period_date)
		 DO UPDATE SET count = usage_ledger.count + 1, updated_at = NOW()
		 RETURNING count`,
		userID, period,
	).Scan(&newCount)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to increment usage count", err)
	}
	return newCount, nil
}
