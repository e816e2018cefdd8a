// Package types defines the shared domain model for the QuickAI platform:
// callers, plans, subscriptions, usage periods, and creations. It has no
// dependencies on other internal packages so that every layer can import it.
package types

import "time"

// PlanTier identifies a subscription tier.
type PlanTier string

const (
	PlanFree    PlanTier = "free"
	PlanPremium PlanTier = "premium"
)

// PlanLimits defines the resource constraints for a caller's plan.
// A limit of 0 means unlimited; enforcement code must treat 0 as no limit.
type PlanLimits struct {
	DailyFeatureCalls int `json:"daily_feature_calls"`
}

// Unlimited reports whether the plan places no cap on feature invocations.
func (l PlanLimits) Unlimited() bool {
	return l.DailyFeatureCalls == 0
}

// SubscriptionStatus mirrors the payment provider's subscription lifecycle.
type SubscriptionStatus string

const (
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionTrialing SubscriptionStatus = "trialing"
	SubscriptionPastDue  SubscriptionStatus = "past_due"
	SubscriptionCanceled SubscriptionStatus = "canceled"
)

// Subscription is the persisted plan association for a caller, kept in sync
// with the payment provider via webhooks.
type Subscription struct {
	UserID           string
	Plan             PlanTier
	Status           SubscriptionStatus
	StripeCustomerID string
	CurrentPeriodEnd time.Time
	LastEventAt      time.Time
	UpdatedAt        time.Time
}

// Entitled reports whether the subscription currently grants its plan.
// A lapsed subscription (canceled, past due, or past its period end) grants
// nothing; callers fall back to the free tier.
func (s *Subscription) Entitled(now time.Time) bool {
	if s == nil {
		return false
	}
	if s.Status != SubscriptionActive && s.Status != SubscriptionTrialing {
		return false
	}
	if !s.CurrentPeriodEnd.IsZero() && !s.CurrentPeriodEnd.After(now) {
		return false
	}
	return true
}

// Feature identifies a billable AI capability exposed by the API.
type Feature string

const (
	FeatureGenerateArticle   Feature = "generate-article"
	FeatureGenerateBlogTitle Feature = "generate-blog-title"
	FeatureGenerateImage     Feature = "generate-image"
	FeatureRemoveBackground  Feature = "remove-image-background"
	FeatureRemoveObject      Feature = "remove-image-object"
	FeatureResumeReview      Feature = "resume-review"
)

// UsagePeriod derives the ledger period identifier from an invocation time.
// Periods are UTC calendar days; the result is the UTC midnight that starts
// the day containing t. It is a pure function of t so that queued or retried
// requests are counted into the period of their actual invocation.
func UsagePeriod(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// CreationKind categorizes stored generation output.
type CreationKind string

const (
	CreationArticle   CreationKind = "article"
	CreationBlogTitle CreationKind = "blog-title"
	CreationImage     CreationKind = "image"
	CreationResume    CreationKind = "resume-review"
)

// Creation is a stored piece of generated content. For text kinds, Content
// holds the generated text; for images, it holds the stored media URL.
type Creation struct {
	ID        string       `json:"id"`
	UserID    string       `json:"user_id"`
	Prompt    string       `json:"prompt"`
	Content   string       `json:"content"`
	Kind      CreationKind `json:"kind"`
	Publish   bool         `json:"publish"`
	Likes     int          `json:"likes"`
	CreatedAt time.Time    `json:"created_at"`
}
