// This file implements the Stripe webhook handler that keeps local
// subscription state in sync with the payment provider.
//
// The handler is NOT behind auth middleware -- it is called directly by
// Stripe. Security is provided by verifying the Stripe-Signature header.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"quickai/internal/core"
	"quickai/internal/external"
	"quickai/internal/types"
)

// maxWebhookBodySize caps a Stripe webhook payload (64 KB). Stripe payloads
// are small; the limit protects against abuse.
const maxWebhookBodySize = 64 * 1024

// SubscriptionEventApplier synchronizes local billing state from provider
// events. Mirrors db.SubscriptionRepo.ApplyEvent, which resolves out-of-order
// deliveries via the event timestamp.
type SubscriptionEventApplier interface {
	ApplyEvent(
		ctx context.Context,
		userID string,
		plan types.PlanTier,
		status types.SubscriptionStatus,
		customerID string,
		periodEnd time.Time,
		eventAt time.Time,
	) error
}

// BillingHandler processes asynchronous billing events from Stripe.
type BillingHandler struct {
	verifier external.WebhookVerifier
	subs     SubscriptionEventApplier
	secret   string
	logger   *slog.Logger
}

// NewBillingHandler creates a BillingHandler with the provided dependencies.
func NewBillingHandler(
	verifier external.WebhookVerifier,
	subs SubscriptionEventApplier,
	secret string,
	logger *slog.Logger,
) *BillingHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &BillingHandler{
		verifier: verifier,
		subs:     subs,
		secret:   secret,
		logger:   logger,
	}
}

// RegisterRoutes mounts the webhook endpoint. The path is exempted from auth
// middleware; the Stripe signature is the authentication.
func (h *BillingHandler) RegisterRoutes(r chi.Router) {
	r.Post("/billing/webhook", h.HandleWebhook)
}

// HandleWebhook processes incoming Stripe webhook events.
//
//  1. Reads the body and the Stripe-Signature header.
//  2. Verifies the signature using the webhook signing secret.
//  3. Parses the event JSON and routes by event type.
//  4. Returns 200 OK even when internal processing fails: the failure is
//     logged for investigation, and acknowledging receipt stops Stripe from
//     retrying into an infinite loop.
func (h *BillingHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodySize)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.WarnContext(r.Context(), "failed to read webhook body", "error", err)
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationInvalidJSON,
			"failed to read request body",
			err,
		))
		return
	}

	sigHeader := r.Header.Get("Stripe-Signature")
	if sigHeader == "" {
		h.logger.WarnContext(r.Context(), "missing Stripe-Signature header")
		core.Error(w, r, types.NewAppError(
			types.ErrCodeAuthTokenMissing,
			"missing Stripe-Signature header",
			nil,
		))
		return
	}

	if err := h.verifier.Verify(payload, sigHeader, h.secret); err != nil {
		h.logger.WarnContext(r.Context(), "webhook signature verification failed", "error", err)
		core.Error(w, r, types.NewAppError(
			types.ErrCodeAuthTokenInvalid,
			"webhook signature verification failed",
			err,
		))
		return
	}

	var event stripeWebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to parse webhook event JSON", "error", err)
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationInvalidJSON,
			"invalid webhook event JSON",
			err,
		))
		return
	}

	h.logger.InfoContext(r.Context(), "processing stripe webhook event",
		"event_id", event.ID,
		"event_type", event.Type,
	)

	if err := h.routeEvent(r.Context(), &event); err != nil {
		h.logger.ErrorContext(r.Context(), "webhook event processing failed",
			"event_id", event.ID,
			"event_type", event.Type,
			"error", err,
		)
	}

	w.WriteHeader(http.StatusOK)
}

// routeEvent dispatches the webhook event by type. Unhandled types are
// acknowledged and ignored.
func (h *BillingHandler) routeEvent(ctx context.Context, event *stripeWebhookEvent) error {
	switch event.Type {
	case external.EventStripeCheckoutCompleted:
		return h.handleCheckoutCompleted(ctx, event)

	case external.EventStripeSubUpdated:
		return h.handleSubscriptionUpdated(ctx, event)

	case external.EventStripeSubDeleted:
		return h.handleSubscriptionDeleted(ctx, event)

	case external.EventStripePaymentFailed:
		return h.handlePaymentFailed(ctx, event)

	default:
		h.logger.InfoContext(ctx, "ignoring unhandled webhook event type",
			"event_type", event.Type,
		)
		return nil
	}
}

// handleCheckoutCompleted confirms a new premium subscription after the user
// completes the Stripe Checkout flow.
func (h *BillingHandler) handleCheckoutCompleted(ctx context.Context, event *stripeWebhookEvent) error {
	session, err := event.checkoutSession()
	if err != nil {
		return fmt.Errorf("checkout.session.completed: %w", err)
	}

	userID := session.userID()
	if userID == "" {
		return fmt.Errorf("checkout.session.completed: missing user_id in event %s", event.ID)
	}

	return h.subs.ApplyEvent(ctx,
		userID,
		types.PlanPremium,
		types.SubscriptionActive,
		session.Customer,
		time.Time{}, // period end arrives with the subscription.updated event
		event.eventTimestamp(),
	)
}

// handleSubscriptionUpdated covers renewals, trial transitions, and dunning
// status changes.
func (h *BillingHandler) handleSubscriptionUpdated(ctx context.Context, event *stripeWebhookEvent) error {
	sub, err := event.subscription()
	if err != nil {
		return fmt.Errorf("customer.subscription.updated: %w", err)
	}

	userID := sub.userID()
	if userID == "" {
		return fmt.Errorf("customer.subscription.updated: missing user_id in event %s", event.ID)
	}

	status := mapSubscriptionStatus(sub.Status)
	plan := types.PlanPremium
	if status == types.SubscriptionCanceled {
		plan = types.PlanFree
	}

	return h.subs.ApplyEvent(ctx,
		userID,
		plan,
		status,
		sub.Customer,
		sub.periodEnd(),
		event.eventTimestamp(),
	)
}

// handleSubscriptionDeleted reverts the caller to the free tier.
func (h *BillingHandler) handleSubscriptionDeleted(ctx context.Context, event *stripeWebhookEvent) error {
	sub, err := event.subscription()
	if err != nil {
		return fmt.Errorf("customer.subscription.deleted: %w", err)
	}

	userID := sub.userID()
	if userID == "" {
		return fmt.Errorf("customer.subscription.deleted: missing user_id in event %s", event.ID)
	}

	return h.subs.ApplyEvent(ctx,
		userID,
		types.PlanFree,
		types.SubscriptionCanceled,
		sub.Customer,
		sub.periodEnd(),
		event.eventTimestamp(),
	)
}

// handlePaymentFailed marks the subscription past due. The plan itself is
// untouched until the provider cancels; a past_due status already fails the
// entitlement check, which is the lapse-to-free behavior.
func (h *BillingHandler) handlePaymentFailed(ctx context.Context, event *stripeWebhookEvent) error {
	invoice, err := event.invoice()
	if err != nil {
		return fmt.Errorf("invoice.payment_failed: %w", err)
	}

	userID := invoice.userID()
	if userID == "" {
		return fmt.Errorf("invoice.payment_failed: missing user_id in event %s", event.ID)
	}

	h.logger.WarnContext(ctx, "payment failed, marking subscription past due",
		"event_id", event.ID,
		"user_id", userID,
	)

	return h.subs.ApplyEvent(ctx,
		userID,
		types.PlanPremium,
		types.SubscriptionPastDue,
		invoice.Customer,
		time.Time{},
		event.eventTimestamp(),
	)
}

// ---------------------------------------------------------------------------
// Stripe Event Parsing
// ---------------------------------------------------------------------------

// stripeWebhookEvent is a minimal representation of a Stripe webhook event
// tailored to the fields the handler needs. Avoiding the full stripe.Event
// type keeps the handler decoupled from the stripe-go model structs and makes
// testing straightforward.
type stripeWebhookEvent struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Created int64           `json:"created"`
	Data    stripeEventData `json:"data"`
}

type stripeEventData struct {
	Object json.RawMessage `json:"object"`
}

func (e *stripeWebhookEvent) eventTimestamp() time.Time {
	return time.Unix(e.Created, 0).UTC()
}

// stripeCheckoutSessionObj holds the minimal fields of a checkout session.
// The user ID is carried in client_reference_id (set when the checkout
// session is created) with metadata as fallback.
type stripeCheckoutSessionObj struct {
	ClientReferenceID string            `json:"client_reference_id"`
	Customer          string            `json:"customer"`
	Metadata          map[string]string `json:"metadata"`
}

func (s *stripeCheckoutSessionObj) userID() string {
	if s.ClientReferenceID != "" {
		return s.ClientReferenceID
	}
	return s.Metadata["user_id"]
}

// stripeSubscriptionObj holds the minimal fields of a subscription object.
type stripeSubscriptionObj struct {
	Status           string            `json:"status"`
	Customer         string            `json:"customer"`
	Metadata         map[string]string `json:"metadata"`
	CurrentPeriodEnd int64             `json:"current_period_end"`
}

func (s *stripeSubscriptionObj) userID() string {
	return s.Metadata["user_id"]
}

func (s *stripeSubscriptionObj) periodEnd() time.Time {
	if s.CurrentPeriodEnd == 0 {
		return time.Time{}
	}
	return time.Unix(s.CurrentPeriodEnd, 0).UTC()
}

// stripeInvoiceObj holds the minimal fields of an invoice object.
type stripeInvoiceObj struct {
	Customer            string            `json:"customer"`
	Metadata            map[string]string `json:"metadata"`
	SubscriptionDetails *stripeSubDetails `json:"subscription_details"`
}

type stripeSubDetails struct {
	Metadata map[string]string `json:"metadata"`
}

func (i *stripeInvoiceObj) userID() string {
	if i.SubscriptionDetails != nil {
		if id := i.SubscriptionDetails.Metadata["user_id"]; id != "" {
			return id
		}
	}
	return i.Metadata["user_id"]
}

func (e *stripeWebhookEvent) checkoutSession() (*stripeCheckoutSessionObj, error) {
	var s stripeCheckoutSessionObj
	if err := json.Unmarshal(e.Data.Object, &s); err != nil {
		return nil, fmt.Errorf("parse checkout session: %w", err)
	}
	return &s, nil
}

func (e *stripeWebhookEvent) subscription() (*stripeSubscriptionObj, error) {
	var s stripeSubscriptionObj
	if err := json.Unmarshal(e.Data.Object, &s); err != nil {
		return nil, fmt.Errorf("parse subscription: %w", err)
	}
	return &s, nil
}

func (e *stripeWebhookEvent) invoice() (*stripeInvoiceObj, error) {
	var i stripeInvoiceObj
	if err := json.Unmarshal(e.Data.Object, &i); err != nil {
		return nil, fmt.Errorf("parse invoice: %w", err)
	}
	return &i, nil
}

// mapSubscriptionStatus folds Stripe's status vocabulary into the local one.
// Statuses that don't grant access map to canceled.
func mapSubscriptionStatus(status string) types.SubscriptionStatus {
	switch status {
	case "active":
		return types.SubscriptionActive
	case "trialing":
		return types.SubscriptionTrialing
	case "past_due", "unpaid":
		return types.SubscriptionPastDue
	default:
		return types.SubscriptionCanceled
	}
}
