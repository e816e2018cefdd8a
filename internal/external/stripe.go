package external

import (
	"github.com/stripe/stripe-go/v82/webhook"
)

// Stripe webhook event types processed by the billing handler.
const (
	EventStripeCheckoutCompleted = "checkout.session.completed"
	EventStripeSubUpdated        = "customer.subscription.updated"
	EventStripeSubDeleted        = "customer.subscription.deleted"
	EventStripePaymentFailed     = "invoice.payment_failed"
)

// WebhookVerifier validates a webhook payload against its signature header.
type WebhookVerifier interface {
	Verify(payload []byte, header string, secret string) error
}

// StripeVerifier implements WebhookVerifier using stripe-go's webhook
// signature verification: HMAC-SHA256 with timestamp tolerance.
type StripeVerifier struct{}

// Verify validates a Stripe webhook payload against the signature header
// and signing secret.
func (v *StripeVerifier) Verify(payload []byte, header string, secret string) error {
	return webhook.ValidatePayload(payload, header, secret)
}
