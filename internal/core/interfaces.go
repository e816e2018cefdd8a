package core

import (
	"context"
	"time"

	"quickai/internal/types"
)

// Authenticator decouples the HTTP layer from the identity provider adapter,
// allowing for easy mocking in tests.
type Authenticator interface {
	// ResolveToken verifies the raw bearer token and returns the caller
	// identity. Distinct error codes:
	//   - auth_token_expired: valid signature, expired token.
	//   - auth_token_invalid: malformed, unverifiable, or missing subject.
	ResolveToken(ctx context.Context, token string) (*types.Actor, error)
}

// MetricsCollector defines the interface for recording API telemetry.
// The production implementation publishes to CloudWatch.
type MetricsCollector interface {
	// RecordRequest records request latency and count for a completed
	// request.
	RecordRequest(method, endpoint, status string, duration time.Duration)
}
