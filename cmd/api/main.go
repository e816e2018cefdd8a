// Package main is the entry point for the QuickAI API server.
//
// It loads configuration, connects to Postgres, wires the downstream
// capability clients that are configured (missing ones log a warning at boot
// and their endpoints respond 503), builds the HTTP server with the core
// chassis, and starts listening.
//
// Graceful shutdown is handled via OS signal interception (SIGINT, SIGTERM).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"quickai/internal/api/handlers"
	"quickai/internal/auth"
	"quickai/internal/billing"
	"quickai/internal/config"
	"quickai/internal/core"
	"quickai/internal/db"
	"quickai/internal/external"
	"quickai/internal/gate"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("quickai API starting",
		"environment", cfg.Environment,
		"port", cfg.Server.Port,
	)

	features := cfg.Features()
	config.LogAvailability(logger, features)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	// Repositories.
	usageRepo := db.NewUsageRepo(pool)
	subRepo := db.NewSubscriptionRepo(pool, logger)
	creationRepo := db.NewCreationRepo(pool)

	// Plan resolution and the authorization gate.
	planRegistry := billing.NewStaticPlanRegistry()
	planResolver := billing.NewSubscriptionPlanResolver(subRepo, nil)
	usageGate := gate.New(planRegistry, planResolver, usageRepo, logger, nil)

	// Build the server chassis.
	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	srv.HealthCheck = pool.Ping

	if features.Auth {
		srv.Authenticator = auth.NewTokenVerifier(
			[]byte(cfg.Identity.JWTSecret.Unmask()),
			cfg.Identity.Issuer,
		)
	}

	if features.Metrics {
		metrics, err := external.NewCloudWatchMetrics(ctx, cfg.Metrics.Region, cfg.Metrics.Namespace, logger)
		if err != nil {
			logger.Warn("metrics disabled: cloudwatch init failed", "error", err)
		} else {
			srv.Metrics = metrics
		}
	}

	// Downstream capability clients. Each is wired only when its credentials
	// are present; endpoints for absent capabilities respond 503.
	caps := buildCapabilities(ctx, cfg, features, logger)

	aiHandler := handlers.NewAIHandler(
		usageGate,
		creationRepo,
		caps,
		srv.Validator,
		logger,
		cfg.AI.DispatchTimeout,
	)
	userHandler := handlers.NewUserHandler(creationRepo, usageGate, srv.Validator, logger)

	srv.RouteRegistrars = append(srv.RouteRegistrars,
		aiHandler.RegisterRoutes,
		userHandler.RegisterRoutes,
	)

	if features.Billing {
		billingHandler := handlers.NewBillingHandler(
			&external.StripeVerifier{},
			subRepo,
			cfg.Billing.StripeWebhookSecret.Unmask(),
			logger,
		)
		srv.RouteRegistrars = append(srv.RouteRegistrars, billingHandler.RegisterRoutes)
	}

	srv.MountRoutes()

	return runHTTPServer(srv, cfg, pool, logger)
}

// buildCapabilities constructs the configured downstream providers.
func buildCapabilities(ctx context.Context, cfg *config.Config, features config.Features, logger *slog.Logger) handlers.AICapabilities {
	var caps handlers.AICapabilities

	httpClient := &http.Client{Timeout: cfg.AI.DispatchTimeout}

	if features.TextGeneration {
		caps.Text = external.NewChatClient(httpClient, external.ChatClientConfig{
			APIKey:  cfg.AI.TextAPIKey.Unmask(),
			BaseURL: cfg.AI.TextBaseURL,
			Model:   cfg.AI.TextModel,
			Logger:  logger,
		})
	}

	if features.ImageGeneration || features.ImageEditing {
		clipdrop := external.NewClipDropClient(httpClient, external.ClipDropConfig{
			APIKey:  cfg.AI.ClipDropAPIKey.Unmask(),
			BaseURL: cfg.AI.ClipDropBaseURL,
			Logger:  logger,
		})
		caps.Image = clipdrop
		caps.Editor = clipdrop
	}

	if features.MediaStorage {
		store, err := external.NewS3MediaStore(ctx, cfg.Media)
		if err != nil {
			logger.Warn("media storage disabled: s3 init failed", "error", err)
		} else {
			caps.Media = store
		}
	}

	// Image capabilities need somewhere to put their output.
	if caps.Media == nil {
		caps.Image = nil
		caps.Editor = nil
	}

	return caps
}

// runHTTPServer starts the server with graceful shutdown.
func runHTTPServer(srv *core.Server, cfg *config.Config, pool *pgxpool.Pool, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	pool.Close()

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a structured slog.Logger configured for the given log level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	return slog.New(handler)
}
