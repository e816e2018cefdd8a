// Package external provides the anti-corruption layer between QuickAI domain
// logic and third-party vendor APIs. All outbound HTTP calls are routed
// through the BaseClient, which enforces consistent resilience patterns:
// circuit breaking, bounded retries, and error mapping.
package external

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"quickai/internal/types"
)

// RetryPolicy configures the retry behavior for the BaseClient.
type RetryPolicy struct {
	MaxRetries int
	MinWait    time.Duration
	MaxWait    time.Duration
}

// DefaultRetryPolicy returns sensible defaults for external API calls.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 2,
		MinWait:    500 * time.Millisecond,
		MaxWait:    5 * time.Second,
	}
}

// BaseClient wraps an *http.Client and a circuit breaker to enforce
// consistent resilience on all outbound calls. Capability clients embed it.
//
// Retries apply to idempotent (GET/HEAD) requests only. Feature dispatches
// are POSTs with billing consequences downstream, so a failed dispatch is
// surfaced immediately rather than silently replayed.
type BaseClient struct {
	client      *http.Client
	breaker     *gobreaker.CircuitBreaker[*http.Response]
	retryPolicy RetryPolicy
	userAgent   string
	sleepFn     func(time.Duration) // injectable for tests
}

// NewBaseClient creates a BaseClient with the given http client, breaker
// name, and retry policy.
func NewBaseClient(httpClient *http.Client, breakerName string, policy RetryPolicy) *BaseClient {
	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})

	return &BaseClient{
		client:      httpClient,
		breaker:     cb,
		retryPolicy: policy,
		userAgent:   "QuickAI/1.0",
		sleepFn:     time.Sleep,
	}
}

// Do executes the request through the circuit breaker. 5xx and 429 responses
// count as breaker failures; other 4xx responses are returned to the caller
// as-is for vendor-specific handling.
func (c *BaseClient) Do(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	idempotent := req.Method == http.MethodGet || req.Method == http.MethodHead
	attempts := 1
	if idempotent {
		attempts += c.retryPolicy.MaxRetries
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			c.sleepFn(c.backoff(attempt))
		}

		resp, err := c.breaker.Execute(func() (*http.Response, error) {
			resp, err := c.client.Do(req)
			if err != nil {
				return nil, err
			}
			if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
				resp.Body.Close()
				return nil, &upstreamStatusError{status: resp.StatusCode}
			}
			return resp, nil
		})
		if err == nil {
			return resp, nil
		}
		lastErr = err

		// An open breaker will not recover within this request; stop early.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			break
		}
		if req.Context().Err() != nil {
			lastErr = req.Context().Err()
			break
		}
	}

	return nil, mapTransportError(lastErr)
}

// backoff computes the exponential backoff delay with jitter for a retry
// attempt.
func (c *BaseClient) backoff(attempt int) time.Duration {
	wait := time.Duration(float64(c.retryPolicy.MinWait) * math.Pow(2, float64(attempt-1)))
	if wait > c.retryPolicy.MaxWait {
		wait = c.retryPolicy.MaxWait
	}
	// Up to 25% jitter to avoid thundering herds on recovery.
	jitter := time.Duration(rand.Int64N(int64(wait)/4 + 1))
	return wait + jitter
}

// upstreamStatusError marks a response the breaker should treat as a failure.
type upstreamStatusError struct {
	status int
}

func (e *upstreamStatusError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.status)
}

// mapTransportError translates transport-level failures into AppErrors.
func mapTransportError(err error) error {
	if err == nil {
		return types.NewAppError(types.ErrCodeUpstreamUnavailable, "upstream request failed", nil)
	}

	var statusErr *upstreamStatusError
	switch {
	case errors.As(err, &statusErr) && statusErr.status == http.StatusTooManyRequests:
		return types.NewAppError(types.ErrCodeUpstreamRateLimited, "upstream rate limited the request", err)
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return types.NewAppError(types.ErrCodeUpstreamUnavailable, "upstream circuit breaker is open", err)
	default:
		return types.NewAppError(types.ErrCodeUpstreamUnavailable, "upstream request failed", err)
	}
}
