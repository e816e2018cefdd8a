package types

import "context"

// Actor represents the authenticated caller performing a request. It is
// produced by the identity provider adapter from a verified bearer token and
// is immutable for the lifetime of the request.
type Actor struct {
	ID    string
	Email string
	// DeclaredPlan carries plan metadata the identity provider attached to
	// the token. It is advisory only; the plan resolver consults the
	// subscription record, never this field.
	DeclaredPlan PlanTier
}

// Context Keys
type contextKey string

const (
	actorKey     contextKey = "actor"
	requestIDKey contextKey = "request_id"
)

// WithActor stores the Actor in the context.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// GetActor retrieves the Actor from the context.
func GetActor(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey).(Actor)
	return actor, ok
}

// WithRequestID stores the request ID in the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
