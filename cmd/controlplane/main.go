package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mechanicbuddy/control-plane/internal/audit"
	"github.com/mechanicbuddy/control-plane/internal/auth"
	"github.com/mechanicbuddy/control-plane/internal/billing"
	"github.com/mechanicbuddy/control-plane/internal/config"
	"github.com/mechanicbuddy/control-plane/internal/infra"
	"github.com/mechanicbuddy/control-plane/internal/notify"
	"github.com/mechanicbuddy/control-plane/internal/provision"
	"github.com/mechanicbuddy/control-plane/internal/secrets"
	"github.com/mechanicbuddy/control-plane/internal/server"
	"github.com/mechanicbuddy/control-plane/internal/store/postgres"
	redisstore "github.com/mechanicbuddy/control-plane/internal/store/redis"
	"github.com/mechanicbuddy/control-plane/internal/verify"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
}

func run() error {
	// Initialize structured logging from environment.
	logLevel := os.Getenv("MB_LOG_LEVEL")
	level, parseErr := zerolog.ParseLevel(logLevel)
	if parseErr != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	logFormat := os.Getenv("MB_LOG_FORMAT")
	if logFormat == "text" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}

	ctx := context.Background()

	// Load configuration from environment.
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if cfg.Database.MaxConns < 0 || cfg.Database.MaxConns > math.MaxInt32 {
		return fmt.Errorf("database max_conns %d out of int32 range", cfg.Database.MaxConns)
	}

	// Vault encrypts tenant connection strings at rest.
	vault, err := secrets.NewVault([]byte(cfg.VaultKey))
	if err != nil {
		return fmt.Errorf("vault: %w", err)
	}

	// Connect to PostgreSQL.
	store, err := postgres.New(ctx, cfg.Database.DSN(), int32(cfg.Database.MaxConns), vault) //nolint:gosec // bounds checked above
	if err != nil {
		return err
	}
	defer store.Close()

	// Connect to Redis.
	pubsub, err := redisstore.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return err
	}
	defer pubsub.Close()

	// Create auth service and SSO providers.
	authSvc := auth.NewService(store.Operators(), cfg.JWT.Secret, cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL)
	providers := buildOAuthProviders(cfg)

	// Seed the first admin operator so a fresh deployment has a login.
	if cfg.Bootstrap.AdminEmail != "" {
		if err := authSvc.EnsureAdmin(ctx, cfg.Bootstrap.AdminEmail, cfg.Bootstrap.AdminPassword, cfg.Bootstrap.AdminName); err != nil {
			return fmt.Errorf("bootstrap admin: %w", err)
		}
		log.Info().Str("email", cfg.Bootstrap.AdminEmail).Msg("bootstrap admin ensured")
	}

	// Create Docker driver for per-tenant infrastructure.
	driver, err := infra.NewDockerDriver(
		cfg.Docker.Host,
		cfg.Docker.TenantImage,
		cfg.Docker.SeedImage,
		cfg.Docker.CPULimit,
		cfg.Docker.MemLimit,
		cfg.Docker.APIURLFormat,
	)
	if err != nil {
		return fmt.Errorf("docker driver: %w", err)
	}
	defer driver.Close()

	// Ops notifications (disabled when Slack is not configured).
	notifier := notify.New(cfg.Slack.BotToken, cfg.Slack.OpsChannel)
	if !notifier.Enabled() {
		log.Info().Msg("slack notifications disabled")
	}

	// Provisioning pipeline plus the watchdog that reaps crashed runs.
	orchestrator := provision.NewOrchestrator(
		store.Tenants(),
		driver,
		driver,
		pubsub,
		notifier,
		cfg.Provision.Timeout,
		cfg.Provision.DemoTTL,
	)
	watchdog := provision.NewWatchdog(store.Tenants(), driver, cfg.Provision.ReapAfter, cfg.Provision.ReapInterval)

	// Domain verification engine and background poller.
	verifier := verify.NewEngine(store.Verifications(), store.Tenants(), cfg.Verify.TokenTTL)
	poller := verify.NewPoller(verifier, cfg.Verify.PollInterval, cfg.Verify.PollAttempts)

	// Billing reconciliation with its periodic sweep.
	reconciler := billing.NewReconciler(store.Tenants(), store.Billing(), pubsub, notifier, cfg.Billing.GracePeriod)
	scheduler := billing.NewScheduler(reconciler, cfg.Billing.ReconcileInterval)

	// Audit recorder backing the fail-closed middleware.
	auditor := audit.NewRecorder(store.Audit())

	// Graceful shutdown on SIGINT / SIGTERM.
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go watchdog.Run(ctx)
	go scheduler.Run(ctx)

	// Create HTTP server with all routes wired.
	srv := server.New(ctx, cfg, server.Deps{
		Store:        store,
		PubSub:       pubsub,
		Auth:         authSvc,
		Providers:    providers,
		Orchestrator: orchestrator,
		Driver:       driver,
		Verifier:     verifier,
		Poller:       poller,
		Auditor:      auditor,
		Reconciler:   reconciler,
	})

	// Start server in background goroutine.
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("starting server")
		if startErr := srv.Start(ctx); startErr != nil {
			log.Error().Err(startErr).Msg("server error")
		}
	}()

	// Block until shutdown signal.
	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		return shutdownErr
	}

	// Stop in-flight verification polls after the listener drains.
	poller.Shutdown()

	log.Info().Msg("stopped")
	return nil
}

func buildOAuthProviders(cfg *config.Config) map[string]*auth.OAuthProvider {
	providers := make(map[string]*auth.OAuthProvider)
	if cfg.OAuth.GoogleClientID != "" {
		providers["google"] = auth.NewGoogleProvider(cfg.OAuth.GoogleClientID, cfg.OAuth.GoogleClientSecret, cfg.OAuth.RedirectURL)
	}
	if cfg.OAuth.GitHubClientID != "" {
		providers["github"] = auth.NewGitHubProvider(cfg.OAuth.GitHubClientID, cfg.OAuth.GitHubClientSecret, cfg.OAuth.RedirectURL)
	}
	return providers
}
