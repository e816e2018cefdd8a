// loader.go implements the configuration loading lifecycle.
//
// The loading sequence is:
//  1. Enforce UTC timezone so usage-period derivation never drifts.
//  2. Load a .env file via godotenv (non-fatal if absent).
//  3. Process envconfig struct tags to populate the Config struct.
//  4. Validate the struct using go-playground/validator.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Load loads and validates the service configuration from the environment.
// A .env file in the working directory supplements, but never overrides, the
// OS environment.
func Load() (*Config, error) {
	// Usage periods are UTC calendar days; pin the process timezone so that
	// time.Now() derived periods cannot drift with the host locale.
	time.Local = time.UTC

	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("processing environment configuration: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// LogAvailability logs, once at startup, which capabilities are disabled by
// missing configuration. Dependent routes respond with a clear
// "not configured" status instead of crashing the process.
func LogAvailability(logger *slog.Logger, f Features) {
	if !f.Auth {
		logger.Warn("IDENTITY_JWT_SECRET not set; all protected routes are disabled")
	}
	if !f.TextGeneration {
		logger.Warn("GEMINI_API_KEY not set; article, blog-title, and resume-review features are disabled")
	}
	if !f.MediaStorage {
		logger.Warn("media storage not configured; image features are disabled")
	}
	if f.MediaStorage && !f.ImageGeneration {
		logger.Warn("CLIPDROP_API_KEY not set; image generation and editing are disabled")
	}
	if !f.Billing {
		logger.Warn("STRIPE_WEBHOOK_SECRET not set; billing webhook is disabled")
	}
}
