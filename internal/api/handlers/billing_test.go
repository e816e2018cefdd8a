package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quickai/internal/types"
)

const testWebhookSecret = "whsec_test"

// mockWebhookVerifier records the payload and signature it was asked to check.
type mockWebhookVerifier struct {
	err       error
	payload   []byte
	sigHeader string
	calls     int
}

func (m *mockWebhookVerifier) Verify(payload []byte, sigHeader, secret string) error {
	m.calls++
	m.payload = payload
	m.sigHeader = sigHeader
	if secret != testWebhookSecret {
		return errors.New("unexpected secret")
	}
	return m.err
}

// appliedEvent captures one ApplyEvent call.
type appliedEvent struct {
	userID     string
	plan       types.PlanTier
	status     types.SubscriptionStatus
	customerID string
	periodEnd  time.Time
	eventAt    time.Time
}

type mockSubApplier struct {
	applied []appliedEvent
	err     error
}

func (m *mockSubApplier) ApplyEvent(
	_ context.Context,
	userID string,
	plan types.PlanTier,
	status types.SubscriptionStatus,
	customerID string,
	periodEnd time.Time,
	eventAt time.Time,
) error {
	if m.err != nil {
		return m.err
	}
	m.applied = append(m.applied, appliedEvent{
		userID:     userID,
		plan:       plan,
		status:     status,
		customerID: customerID,
		periodEnd:  periodEnd,
		eventAt:    eventAt,
	})
	return nil
}

func newBillingTestHandler(verifier *mockWebhookVerifier, subs *mockSubApplier) *BillingHandler {
	return NewBillingHandler(verifier, subs, testWebhookSecret, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// buildStripeEvent assembles a minimal webhook event payload.
func buildStripeEvent(eventType string, created int64, object string) string {
	return fmt.Sprintf(`{"id":"evt_123","type":%q,"created":%d,"data":{"object":%s}}`, eventType, created, object)
}

func postWebhook(h *BillingHandler, payload, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/billing/webhook", strings.NewReader(payload))
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}
	rec := httptest.NewRecorder()
	h.HandleWebhook(rec, req)
	return rec
}

func TestWebhook_MissingSignatureHeader(t *testing.T) {
	verifier := &mockWebhookVerifier{}
	subs := &mockSubApplier{}
	h := newBillingTestHandler(verifier, subs)

	rec := postWebhook(h, `{}`, "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 0, verifier.calls)
	assert.Empty(t, subs.applied)
}

func TestWebhook_InvalidSignature(t *testing.T) {
	verifier := &mockWebhookVerifier{err: errors.New("signature mismatch")}
	subs := &mockSubApplier{}
	h := newBillingTestHandler(verifier, subs)

	rec := postWebhook(h, buildStripeEvent("checkout.session.completed", 1700000000, `{}`), "t=1,v1=bad")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "auth_token_invalid", errCode(t, rec))
	assert.Empty(t, subs.applied)
}

func TestWebhook_CheckoutCompleted(t *testing.T) {
	verifier := &mockWebhookVerifier{}
	subs := &mockSubApplier{}
	h := newBillingTestHandler(verifier, subs)

	payload := buildStripeEvent("checkout.session.completed", 1700000000,
		`{"client_reference_id":"user_42","customer":"cus_abc"}`)
	rec := postWebhook(h, payload, "t=1,v1=good")

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, subs.applied, 1)
	applied := subs.applied[0]
	assert.Equal(t, "user_42", applied.userID)
	assert.Equal(t, types.PlanPremium, applied.plan)
	assert.Equal(t, types.SubscriptionActive, applied.status)
	assert.Equal(t, "cus_abc", applied.customerID)
	assert.True(t, applied.periodEnd.IsZero(), "checkout carries no period end")
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), applied.eventAt)

	// The verifier saw the raw payload.
	assert.Equal(t, payload, string(verifier.payload))
	assert.Equal(t, "t=1,v1=good", verifier.sigHeader)
}

func TestWebhook_CheckoutCompleted_MetadataFallback(t *testing.T) {
	subs := &mockSubApplier{}
	h := newBillingTestHandler(&mockWebhookVerifier{}, subs)

	payload := buildStripeEvent("checkout.session.completed", 1700000000,
		`{"customer":"cus_abc","metadata":{"user_id":"user_77"}}`)
	rec := postWebhook(h, payload, "sig")

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, subs.applied, 1)
	assert.Equal(t, "user_77", subs.applied[0].userID)
}

func TestWebhook_SubscriptionUpdated_StatusMapping(t *testing.T) {
	tests := []struct {
		stripeStatus string
		wantStatus   types.SubscriptionStatus
		wantPlan     types.PlanTier
	}{
		{"active", types.SubscriptionActive, types.PlanPremium},
		{"trialing", types.SubscriptionTrialing, types.PlanPremium},
		{"past_due", types.SubscriptionPastDue, types.PlanPremium},
		{"unpaid", types.SubscriptionPastDue, types.PlanPremium},
		{"canceled", types.SubscriptionCanceled, types.PlanFree},
		{"incomplete_expired", types.SubscriptionCanceled, types.PlanFree},
	}

	for _, tc := range tests {
		t.Run(tc.stripeStatus, func(t *testing.T) {
			subs := &mockSubApplier{}
			h := newBillingTestHandler(&mockWebhookVerifier{}, subs)

			object := fmt.Sprintf(
				`{"status":%q,"customer":"cus_abc","current_period_end":1702600000,"metadata":{"user_id":"user_42"}}`,
				tc.stripeStatus)
			rec := postWebhook(h, buildStripeEvent("customer.subscription.updated", 1700000000, object), "sig")

			assert.Equal(t, http.StatusOK, rec.Code)
			require.Len(t, subs.applied, 1)
			applied := subs.applied[0]
			assert.Equal(t, tc.wantStatus, applied.status)
			assert.Equal(t, tc.wantPlan, applied.plan)
			assert.Equal(t, time.Unix(1702600000, 0).UTC(), applied.periodEnd)
		})
	}
}

func TestWebhook_SubscriptionDeleted(t *testing.T) {
	subs := &mockSubApplier{}
	h := newBillingTestHandler(&mockWebhookVerifier{}, subs)

	object := `{"status":"canceled","customer":"cus_abc","metadata":{"user_id":"user_42"}}`
	rec := postWebhook(h, buildStripeEvent("customer.subscription.deleted", 1700000100, object), "sig")

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, subs.applied, 1)
	applied := subs.applied[0]
	assert.Equal(t, types.PlanFree, applied.plan)
	assert.Equal(t, types.SubscriptionCanceled, applied.status)
}

func TestWebhook_PaymentFailed(t *testing.T) {
	subs := &mockSubApplier{}
	h := newBillingTestHandler(&mockWebhookVerifier{}, subs)

	object := `{"customer":"cus_abc","subscription_details":{"metadata":{"user_id":"user_42"}}}`
	rec := postWebhook(h, buildStripeEvent("invoice.payment_failed", 1700000200, object), "sig")

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, subs.applied, 1)
	applied := subs.applied[0]
	assert.Equal(t, "user_42", applied.userID)
	assert.Equal(t, types.PlanPremium, applied.plan, "plan untouched until the provider cancels")
	assert.Equal(t, types.SubscriptionPastDue, applied.status)
}

func TestWebhook_UnhandledEventType(t *testing.T) {
	subs := &mockSubApplier{}
	h := newBillingTestHandler(&mockWebhookVerifier{}, subs)

	rec := postWebhook(h, buildStripeEvent("customer.created", 1700000000, `{}`), "sig")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, subs.applied)
}

func TestWebhook_ProcessingFailureStillAcknowledged(t *testing.T) {
	// A store failure must not produce a non-200: Stripe would retry forever.
	subs := &mockSubApplier{err: errors.New("db down")}
	h := newBillingTestHandler(&mockWebhookVerifier{}, subs)

	payload := buildStripeEvent("checkout.session.completed", 1700000000,
		`{"client_reference_id":"user_42","customer":"cus_abc"}`)
	rec := postWebhook(h, payload, "sig")

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWebhook_MissingUserIDAcknowledged(t *testing.T) {
	subs := &mockSubApplier{}
	h := newBillingTestHandler(&mockWebhookVerifier{}, subs)

	rec := postWebhook(h, buildStripeEvent("checkout.session.completed", 1700000000, `{"customer":"cus_abc"}`), "sig")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, subs.applied)
}

func TestWebhook_MalformedJSON(t *testing.T) {
	subs := &mockSubApplier{}
	h := newBillingTestHandler(&mockWebhookVerifier{}, subs)

	rec := postWebhook(h, `{not json`, "sig")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, subs.applied)
}
