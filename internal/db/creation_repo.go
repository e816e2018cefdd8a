package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"quickai/internal/types"
)

// CreationRepo provides data access for stored generation output and the
// community feed (published creations plus likes).
type CreationRepo struct {
	db DBTX
}

// NewCreationRepo creates a new CreationRepo backed by the given database
// connection (pool or transaction).
func NewCreationRepo(db DBTX) *CreationRepo {
	return &CreationRepo{db: db}
}

// Create inserts a new creation row.
func (r *CreationRepo) Create(ctx context.Context, c *types.Creation) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO creations (id, user_id, prompt, content, kind, publish, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW())`,
		c.ID, c.UserID, c.Prompt, c.Content, c.Kind, c.Publish,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to store creation", err)
	}
	return nil
}

// ListByUser returns all of the caller's creations, newest first.
func (r *CreationRepo) ListByUser(ctx context.Context, userID string) ([]types.Creation, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, prompt, content, kind, publish, created_at
		 FROM creations
		 WHERE user_id = $1
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list creations", err)
	}
	defer rows.Close()

	var out []types.Creation
	for rows.Next() {
		var c types.Creation
		if err := rows.Scan(&c.ID, &c.UserID, &c.Prompt, &c.Content, &c.Kind, &c.Publish, &c.CreatedAt); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan creation row", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating creation rows", err)
	}
	return out, nil
}

// ListPublished returns the community feed: published creations with their
// like counts, newest first.
func (r *CreationRepo) ListPublished(ctx context.Context) ([]types.Creation, error) {
	rows, err := r.db.Query(ctx,
		`SELECT c.id, c.user_id, c.prompt, c.content, c.kind, c.publish, c.created_at,
		        COUNT(l.user_id)
		 FROM creations c
		 LEFT JOIN creation_likes l ON l.creation_id = c.id
		 WHERE c.publish
		 GROUP BY c.id
		 ORDER BY c.created_at DESC`,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list published creations", err)
	}
	defer rows.Close()

	var out []types.Creation
	for rows.Next() {
		var c types.Creation
		if err := rows.Scan(&c.ID, &c.UserID, &c.Prompt, &c.Content, &c.Kind, &c.Publish, &c.CreatedAt, &c.Likes); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan feed row", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating feed rows", err)
	}
	return out, nil
}

// ListLikedIDs returns the IDs of published creations the given caller has
// liked. Used to mark the feed for the viewing user.
func (r *CreationRepo) ListLikedIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT creation_id FROM creation_likes WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list liked creations", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan liked row", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating liked rows", err)
	}
	return out, nil
}

// ToggleLike likes the creation if the caller has not liked it, or removes the
// like otherwise. Returns true when the result is a like, false when the
// result is an un-like. Only published creations can be liked.
//
// The INSERT ... ON CONFLICT DO NOTHING / DELETE pair makes the toggle safe
// under concurrent requests from the same caller: exactly one of the two
// operations affects a row.
func (r *CreationRepo) ToggleLike(ctx context.Context, creationID, userID string) (bool, error) {
	var publish bool
	err := r.db.QueryRow(ctx,
		`SELECT publish FROM creations WHERE id = $1`,
		creationID,
	).Scan(&publish)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, types.NewAppError(types.ErrCodeNotFoundCreation, "creation not found", nil)
		}
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to look up creation", err)
	}
	if !publish {
		return false, types.NewAppError(types.ErrCodeNotFoundCreation, "creation is not published", nil)
	}

	tag, err := r.db.Exec(ctx,
		`INSERT INTO creation_likes (creation_id, user_id, created_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (creation_id, user_id) DO NOTHING`,
		creationID, userID,
	)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to like creation", err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}

	// Already liked; toggle off.
	if _, err := r.db.Exec(ctx,
		`DELETE FROM creation_likes WHERE creation_id = $1 AND user_id = $2`,
		creationID, userID,
	); err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to unlike creation", err)
	}
	return false, nil
}
