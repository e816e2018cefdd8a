// Package config defines the global configuration for the QuickAI backend.
// Configuration is loaded once at process initialization and is immutable
// thereafter, following 12-Factor principles: OS environment first, then an
// optional .env file for local development.
//
// Provider credentials are optional. A missing credential disables the
// dependent capability rather than failing startup; the set of available
// capabilities is computed once via Features() and consulted by routing and
// handlers instead of scattered runtime checks.
package config

import (
	"time"

	"quickai/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type
// used throughout configuration to prevent accidental logging of sensitive
// values.
type SecretString = types.SecretString

// Config is the top-level configuration struct. It is populated once during
// process initialization and never modified. Sub-components receive only the
// specific subsets they require.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"local" validate:"oneof=local dev staging prod"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	Server   ServerConfig
	Database DatabaseConfig
	Identity IdentityConfig
	AI       AIConfig
	Media    MediaConfig
	Billing  BillingConfig
	Metrics  MetricsConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string        `envconfig:"PORT" default:"8080"`
	RequestTimeout     time.Duration `envconfig:"REQUEST_TIMEOUT" default:"60s"`
	CorsAllowedOrigins []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
// The database is the only hard dependency: the usage ledger, subscriptions,
// and creations all live here, so a missing URL fails startup.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required"`

	MaxConns        int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout  time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
}

// IdentityConfig holds the identity provider verification key.
// Bearer tokens are JWTs signed by the external identity provider with this
// shared secret. Without it, every protected route is unavailable.
type IdentityConfig struct {
	JWTSecret SecretString `envconfig:"IDENTITY_JWT_SECRET"`
	Issuer    string       `envconfig:"IDENTITY_ISSUER"`
}

// AIConfig holds AI provider credentials and dispatch tuning.
type AIConfig struct {
	// Text generation via an OpenAI-compatible chat completions endpoint.
	TextAPIKey  SecretString `envconfig:"GEMINI_API_KEY"`
	TextBaseURL string       `envconfig:"TEXT_API_BASE_URL" default:"https://generativelanguage.googleapis.com/v1beta/openai"`
	TextModel   string       `envconfig:"TEXT_MODEL" default:"gemini-2.0-flash"`

	// Image generation and editing via the ClipDrop REST API.
	ClipDropAPIKey  SecretString `envconfig:"CLIPDROP_API_KEY"`
	ClipDropBaseURL string       `envconfig:"CLIPDROP_BASE_URL" default:"https://clipdrop-api.co"`

	// DispatchTimeout bounds every downstream capability call. Expiry is a
	// failed outcome and never charges usage.
	DispatchTimeout time.Duration `envconfig:"AI_DISPATCH_TIMEOUT" default:"45s"`
}

// MediaConfig holds S3-compatible object storage credentials for generated
// and edited images.
type MediaConfig struct {
	Bucket        string       `envconfig:"MEDIA_BUCKET"`
	Region        string       `envconfig:"MEDIA_REGION" default:"us-east-1"`
	AccessKey     string       `envconfig:"MEDIA_ACCESS_KEY"`
	SecretKey     SecretString `envconfig:"MEDIA_SECRET_KEY"`
	Endpoint      string       `envconfig:"MEDIA_ENDPOINT"`        // empty in prod; set for MinIO/LocalStack
	PublicBaseURL string       `envconfig:"MEDIA_PUBLIC_BASE_URL"` // optional CDN prefix for stored objects
}

// BillingConfig holds Stripe webhook credentials for subscription sync.
type BillingConfig struct {
	StripeWebhookSecret SecretString `envconfig:"STRIPE_WEBHOOK_SECRET"`
}

// MetricsConfig holds CloudWatch metric emission settings.
type MetricsConfig struct {
	Enabled   bool   `envconfig:"METRICS_ENABLED" default:"false"`
	Namespace string `envconfig:"METRIC_NAMESPACE" default:"QuickAI"`
	Region    string `envconfig:"AWS_REGION" default:"us-east-1"`
}

// Features describes which capabilities are available given the loaded
// configuration. It is computed once at startup; routes for unavailable
// capabilities respond with feature_not_configured instead of crashing.
type Features struct {
	Auth            bool // identity secret present; protected routes usable
	TextGeneration  bool // article, blog titles, resume review
	ImageGeneration bool // text-to-image (requires media storage)
	ImageEditing    bool // background/object removal (requires media storage)
	MediaStorage    bool
	Billing         bool // Stripe webhook route
	Metrics         bool
}

// Features computes capability availability from the loaded configuration.
func (c *Config) Features() Features {
	media := c.Media.Bucket != "" && c.Media.AccessKey != "" && c.Media.SecretKey.Unmask() != ""
	return Features{
		Auth:            c.Identity.JWTSecret.Unmask() != "",
		TextGeneration:  c.AI.TextAPIKey.Unmask() != "",
		ImageGeneration: c.AI.ClipDropAPIKey.Unmask() != "" && media,
		ImageEditing:    c.AI.ClipDropAPIKey.Unmask() != "" && media,
		MediaStorage:    media,
		Billing:         c.Billing.StripeWebhookSecret.Unmask() != "",
		Metrics:         c.Metrics.Enabled,
	}
}
