// Package main is the entry point for the message queue service.
// It wires the broker, access control and audit trail behind the HTTP API.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"mqueue-go/internal/api"
	"mqueue-go/internal/audit"
	"mqueue-go/internal/auth"
	"mqueue-go/internal/banner"
	"mqueue-go/internal/broker"
	memorybroker "mqueue-go/internal/broker/memory"
	redisbroker "mqueue-go/internal/broker/redis"
	"mqueue-go/internal/config"
	"mqueue-go/internal/events"
	kafkaevents "mqueue-go/internal/events/kafka"
	memoryevents "mqueue-go/internal/events/memory"
	"mqueue-go/internal/metrics"
	"mqueue-go/internal/queue"
	"mqueue-go/internal/registry"
	"mqueue-go/internal/store"
	memorystor "mqueue-go/internal/store/memory"
	postgresstor "mqueue-go/internal/store/postgres"
)

// recentEvents bounds the in-memory lifecycle event buffer.
const recentEvents = 1000

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config/config.yaml", "path to configuration file")
	flag.Parse()

	explicit := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "config" {
			explicit = true
		}
	})

	// Load configuration; the default path may be absent and env vars used instead
	cfg, err := config.Load(*configPath, !explicit)
	if err != nil {
		initLogger(&config.LoggerConfig{Level: "info", Format: "json"}).
			Error("failed to load configuration", "error", err, "path", *configPath)
		os.Exit(1)
	}

	// Initialize logger
	logger := initLogger(&cfg.Logger)
	logger.Info("configuration loaded",
		"path", *configPath,
		"storage_mode", cfg.Storage.Mode,
		"max_queue_size", cfg.Queue.MaxSize,
		"pull_timeout", cfg.Queue.PullTimeout,
		"auth_skip", cfg.Auth.Skip,
	)

	// Create context that listens for shutdown signals
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize dependencies based on storage mode
	deps, cleanup, err := initDependencies(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize dependencies", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	banner.Print(os.Stdout, cfg.Server.Address())

	// Start HTTP server
	go func() {
		if err := deps.server.Start(); err != nil {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	logger.Info("message queue service started",
		"address", cfg.Server.Address(),
		"storage_mode", cfg.Storage.Mode,
	)

	// Wait for shutdown signal
	<-ctx.Done()
	logger.Info("shutdown signal received")

	// Graceful shutdown; in-flight long polls get their full write timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
	defer shutdownCancel()

	if err := deps.server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("message queue service stopped")
}

// dependencies holds all initialized service dependencies.
type dependencies struct {
	server *api.Server
}

// initDependencies creates and wires all service dependencies based on config.
// Returns the dependencies and a cleanup function.
func initDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*dependencies, func(), error) {
	var (
		lists        broker.Broker
		blocking     broker.Blocker
		eventRepo    store.QueueEventRepository
		publisher    events.Publisher
		cleanupFuncs []func()
	)

	cleanup := func() {
		for i := len(cleanupFuncs) - 1; i >= 0; i-- {
			cleanupFuncs[i]()
		}
	}

	if cfg.Storage.UseMemory() {
		// Initialize in-memory implementations
		logger.Info("initializing in-memory storage")

		memBroker := memorybroker.New()
		lists = memBroker
		blocking = memBroker
		cleanupFuncs = append(cleanupFuncs, func() { _ = memBroker.Close() })

		eventRepo = memorystor.NewQueueEventRepository()

		memPublisher := memoryevents.NewPublisher(recentEvents)
		publisher = memPublisher
		cleanupFuncs = append(cleanupFuncs, func() { _ = memPublisher.Close() })
	} else {
		// Initialize real storage implementations
		logger.Info("initializing production storage (Redis, PostgreSQL, Kafka)")

		// Two Redis connections: blocking pops must never starve ordinary commands
		client, err := redisbroker.NewClient(&cfg.Redis, cfg.Redis.PoolSize)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		lists = redisbroker.New(client)
		cleanupFuncs = append(cleanupFuncs, func() { _ = client.Close() })

		blockingClient, err := redisbroker.NewClient(&cfg.Redis, cfg.Redis.BlockingPoolSize)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		blocking = redisbroker.New(blockingClient)
		cleanupFuncs = append(cleanupFuncs, func() { _ = blockingClient.Close() })

		// Initialize PostgreSQL
		db, err := postgresstor.NewDB(ctx, &cfg.Postgres)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		cleanupFuncs = append(cleanupFuncs, db.Close)

		// Run migrations
		if err := db.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, err
		}
		logger.Info("database migrations completed")

		eventRepo = postgresstor.NewQueueEventRepository(db)

		// Initialize Kafka
		kafkaProducer := kafkaevents.NewProducer(&cfg.Kafka)
		publisher = kafkaProducer
		cleanupFuncs = append(cleanupFuncs, func() { _ = kafkaProducer.Close() })
	}

	// Register reserved queues
	reg := registry.New(lists, logger)
	if err := reg.Bootstrap(ctx, cfg.Queue.Reserved, cfg.Queue.ShouldFlush()); err != nil {
		cleanup()
		return nil, nil, err
	}
	logger.Info("reserved queues registered", "queues", cfg.Queue.Reserved)

	// Initialize services
	queueService := queue.NewService(lists, blocking, reg, &cfg.Queue, logger)
	auditService := audit.NewService(eventRepo, publisher, logger)

	prometheus.MustRegister(metrics.NewDepthCollector(queueService.Depths, logger))

	// Initialize access control
	var verifier auth.Verifier = auth.NewHTTPVerifier(cfg.Auth.VerifyURL, cfg.Auth.Timeout)
	if cfg.Auth.CacheTTL > 0 {
		cached := auth.NewCachingVerifier(verifier, cfg.Auth.CacheTTL)
		verifier = cached
		cleanupFuncs = append(cleanupFuncs, cached.Stop)
	}
	if cfg.Auth.Skip {
		logger.Warn("access control is disabled")
	}
	guard := auth.NewGuard(verifier, auth.DefaultPolicy(), cfg.Auth.Skip, logger)

	// Initialize HTTP server
	server := api.NewServer(api.ServerDeps{
		Config:       &cfg.Server,
		Logger:       logger,
		Guard:        guard,
		Health:       queueService,
		QueueHandler: api.NewQueueHandler(queueService, logger),
		AdminHandler: api.NewAdminHandler(reg, auditService, logger),
		AuditHandler: api.NewAuditHandler(auditService, logger),
	})

	return &dependencies{
		server: server,
	}, cleanup, nil
}

// initLogger creates and configures the application logger.
func initLogger(cfg *config.LoggerConfig) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(cfg.Level),
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger
}

func parseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}
