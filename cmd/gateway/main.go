// Package main is the entry point for the OCPI hub gateway.
// It initializes and starts the HTTP server that speaks OCPI 2.2 towards
// peer CPO and EMSP platforms.
//
// The application performs the following initialization sequence:
//  1. Load configuration from config file and environment variables
//  2. Initialize structured logging with zap
//  3. Open the configured audit backend (file, Redis stream, or none)
//  4. Build the party directory and entity stores
//  5. Configure the HTTP server with routes and middleware
//  6. Register health checks for observability
//  7. Start the HTTP server with graceful shutdown support
//
// Graceful shutdown is triggered by SIGINT (Ctrl+C) or SIGTERM signals.
//
// Example usage:
//
//	# Start with default config
//	./gateway
//
//	# Start with custom config file
//	./gateway --config=/etc/ocpihub/config.yaml
//
//	# Start with environment variable overrides
//	export OCPIHUB_SERVER_PORT=9090
//	export OCPIHUB_OCPI_ROLE=CPO
//	./gateway
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/chargeweave/ocpihub/internal/audit"
	"github.com/chargeweave/ocpihub/internal/config"
	"github.com/chargeweave/ocpihub/internal/events"
	"github.com/chargeweave/ocpihub/internal/observability"
	"github.com/chargeweave/ocpihub/internal/ocpi"
	"github.com/chargeweave/ocpihub/internal/party"
	"github.com/chargeweave/ocpihub/internal/registration"
	"github.com/chargeweave/ocpihub/internal/server"
	"github.com/chargeweave/ocpihub/internal/store"
	"github.com/chargeweave/ocpihub/internal/versions"
)

const (
	// Version is the application version (set via build flags).
	Version = "1.0.0"

	// ServiceName is the name of this service.
	ServiceName = "ocpihub-gateway"
)

var (
	configPath  = flag.String("config", "", "Path to configuration file")
	showVersion = flag.Bool("version", false, "Show version information and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Fprintf(os.Stdout, "%s version %s\n", ServiceName, Version)
		os.Exit(0)
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run executes the main application logic.
func run() error {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := observability.InitLogger(cfg.Observability.Logging.Format, cfg.Observability.Logging.Level)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("OCPI hub gateway starting",
		zap.String("version", Version),
		zap.String("service", ServiceName),
		zap.String("role", string(cfg.Role())),
		zap.String("party", cfg.OCPI.CountryCode+"*"+cfg.OCPI.PartyID),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		return err
	}
	defer components.Close(logger)

	return components.server.Start()
}

// applicationComponents holds everything that needs orderly teardown.
// redisClient is owned by the audit sink and closed through it; the field
// exists so a Redis health check can be registered.
type applicationComponents struct {
	notifier    *events.Notifier
	auditLog    *audit.Log
	redisClient *redis.Client
	server      *server.Server
}

// Close releases components in reverse initialization order.
func (c *applicationComponents) Close(logger *observability.Logger) {
	if err := c.notifier.Close(); err != nil {
		logger.Error("failed to close event notifier", zap.Error(err))
	}
	if err := c.auditLog.Close(); err != nil {
		logger.Error("failed to close audit log", zap.Error(err))
	}
	if err := logger.Sync(); err != nil {
		// Sync on stderr fails on some platforms; nothing actionable.
		_ = err
	}
}

func initializeComponents(cfg *config.Config, logger *observability.Logger) (*applicationComponents, error) {
	notifier := events.NewNotifier(logger.Logger, cfg.Store.EventBufferSize)

	auditLog, redisClient, err := setupAudit(cfg, logger)
	if err != nil {
		_ = notifier.Close()
		return nil, err
	}

	directory := party.NewDirectory(notifier, auditLog, logger.Logger)

	keepRemoved := store.PruneAllRemovedEvses
	if cfg.Store.KeepRemovedEvses {
		keepRemoved = store.KeepAllRemovedEvses
	}
	stores := store.NewSet(notifier, cfg.Store.AllowDowngrades, keepRemoved, logger.Logger)

	client := registration.NewVersionsClient(cfg.Registration.ClientTimeout, logger.Logger)
	handshake := registration.NewHandshake(registration.Identity{
		CountryCode: cfg.OCPI.CountryCode,
		PartyID:     cfg.OCPI.PartyID,
		Role:        cfg.Role(),
		BusinessDetails: ocpi.BusinessDetails{
			Name:    cfg.OCPI.BusinessName,
			Website: cfg.OCPI.BusinessWebsite,
		},
		VersionsURL: strings.TrimRight(cfg.OCPI.ExternalURL, "/") + "/versions",
	}, directory, client, auditLog, logger.Logger)

	negotiator := versions.NewNegotiator(cfg.OCPI.ExternalURL, cfg.Role(), cfg.OCPI.LocationsAsOpenData)

	srv := server.New(cfg, logger.Logger, directory, handshake, negotiator, stores)

	if redisClient != nil {
		srv.HealthChecker().RegisterHealthCheck("redis", observability.RedisHealthCheck(
			func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		))
	}

	return &applicationComponents{
		notifier:    notifier,
		auditLog:    auditLog,
		redisClient: redisClient,
		server:      srv,
	}, nil
}

// setupAudit opens the configured audit backend. The Redis client is returned
// so the caller can close it and register a health check.
func setupAudit(cfg *config.Config, logger *observability.Logger) (*audit.Log, *redis.Client, error) {
	switch cfg.Audit.Backend {
	case config.AuditBackendNone:
		return audit.NewLog(audit.NopSink{}, logger.Logger), nil, nil

	case config.AuditBackendFile:
		sink, err := audit.NewFileSink(cfg.Audit.FilePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open audit file: %w", err)
		}
		return audit.NewLog(sink, logger.Logger), nil, nil

	case config.AuditBackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addresses[0],
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		return audit.NewLog(audit.NewRedisSink(client, logger.Logger), logger.Logger), client, nil

	default:
		return nil, nil, fmt.Errorf("unknown audit backend: %q", cfg.Audit.Backend)
	}
}
