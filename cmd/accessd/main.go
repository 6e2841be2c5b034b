// Linden Access Core - identity and access control daemon
//
// accessd owns the installation's session: it authenticates against the
// local user store, keeps the access token fresh, evaluates route access
// for clients, and broadcasts session state transitions over WebSocket.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lindenpress/linden-access/migrations"

	"github.com/lindenpress/linden-access/internal/api"
	"github.com/lindenpress/linden-access/internal/audit"
	"github.com/lindenpress/linden-access/internal/credential"
	"github.com/lindenpress/linden-access/internal/infrastructure/config"
	"github.com/lindenpress/linden-access/internal/infrastructure/database"
	"github.com/lindenpress/linden-access/internal/infrastructure/logging"
	"github.com/lindenpress/linden-access/internal/session"
	"github.com/lindenpress/linden-access/internal/token"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Cancel on interrupt signals (Ctrl+C, SIGTERM) for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Linden Access Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Repositories
	users := session.NewUserRepository(db.DB)
	refreshTokens := session.NewRefreshTokenRepository(db.DB)
	auditRepo := audit.NewSQLiteRepository(db.DB)

	// Seed the initial admin account on first boot
	if _, seedErr := session.SeedAdmin(ctx, users, log); seedErr != nil {
		return fmt.Errorf("seeding admin account: %w", seedErr)
	}

	// Token codec and local authenticator
	codec := token.NewCodec(cfg.Security.JWT.Secret, cfg.GetAccessTokenTTL())
	authenticator := session.NewLocalAuthenticator(users, refreshTokens, codec, cfg.GetRefreshTokenTTL(), log)

	// Session machine over the persistent credential store
	store := credential.NewSQLiteStore(db.DB, cfg.Security.Session.Profile)
	machine := session.NewMachine(codec, store, authenticator, auditRepo, log, session.Config{
		RefreshLead: cfg.GetRefreshLead(),
	})

	// Restore any persisted session from a previous run
	if hydrateErr := machine.Hydrate(ctx); hydrateErr != nil {
		return fmt.Errorf("hydrating session: %w", hydrateErr)
	}
	log.Info("session hydrated", "state", machine.State())

	// Idle monitor: terminate the session after the inactivity window.
	// A zero timeout disables monitoring entirely.
	var idle *session.IdleMonitor
	if timeout := cfg.GetSessionIdleTimeout(); timeout > 0 {
		idle = session.NewIdleMonitor(timeout, func() {
			machine.Logout(context.Background(), session.LogoutIdleTimeout)
		}, log)
		if machine.State() == session.StateAuthenticated {
			idle.Enable()
		}
		log.Info("idle monitor configured", "timeout", timeout)
	} else {
		log.Info("idle monitor disabled")
	}

	// Start API server
	server, err := api.New(api.Deps{
		Config:    cfg.API,
		WS:        cfg.WebSocket,
		Logger:    log,
		Machine:   machine,
		Users:     users,
		Revoker:   authenticator,
		AuditRepo: auditRepo,
		Codec:     codec,
		Idle:      idle,
		Version:   version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error stopping API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "host", cfg.API.Host, "port", cfg.API.Port)

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, server); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	if idle != nil {
		idle.Disable()
	}

	// Deferred Close() calls will run in reverse order:
	// 1. API server
	// 2. Database

	log.Info("Linden Access Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses LINDEN_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("LINDEN_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
func healthCheck(ctx context.Context, db *database.DB, server *api.Server) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := server.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
	}

	return nil
}
