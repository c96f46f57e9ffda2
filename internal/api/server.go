package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mqueue-go/internal/auth"
	"mqueue-go/internal/config"
)

const healthTimeout = 2 * time.Second

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP server with all configured routes and middleware.
type Server struct {
	app    *fiber.App
	config *config.ServerConfig
	logger *slog.Logger
	guard  *auth.Guard
	health Pinger

	// Handlers
	queueHandler *QueueHandler
	adminHandler *AdminHandler
	auditHandler *AuditHandler
}

// ServerDeps contains all dependencies required to create a new Server.
type ServerDeps struct {
	Config       *config.ServerConfig
	Logger       *slog.Logger
	Guard        *auth.Guard
	Health       Pinger
	QueueHandler *QueueHandler
	AdminHandler *AdminHandler
	AuditHandler *AuditHandler
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(deps ServerDeps) *Server {
	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
		// Enable strict routing for consistency
		StrictRouting: true,
		// Case sensitive routing
		CaseSensitive: true,
		// Values from c.Query and c.Get end up in caches and metric labels
		Immutable:     true,
		ReadTimeout:   deps.Config.ReadTimeout,
		// Must outlive a full long poll on /pull-n
		WriteTimeout: deps.Config.WriteTimeout,
		IdleTimeout:  deps.Config.IdleTimeout,
		// Custom error handler
		ErrorHandler: customErrorHandler,
	})

	s := &Server{
		app:          app,
		config:       deps.Config,
		logger:       deps.Logger,
		guard:        deps.Guard,
		health:       deps.Health,
		queueHandler: deps.QueueHandler,
		adminHandler: deps.AdminHandler,
		auditHandler: deps.AuditHandler,
	}

	// Register middleware
	s.registerMiddleware()

	// Register routes
	s.registerRoutes()

	return s
}

// App exposes the underlying Fiber app, mainly for app.Test in tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// registerMiddleware sets up the interceptors every request passes through.
// Access control is attached per route so unprotected paths never reach it.
func (s *Server) registerMiddleware() {
	// Recovery middleware to handle panics
	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	// Request ID middleware for tracing
	s.app.Use(requestid.New())

	// Logger middleware for request logging
	s.app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${method} | ${path} | ${error}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))
}

// registerRoutes sets up all routes.
func (s *Server) registerRoutes() {
	s.app.Get("/", s.hello)
	s.app.Get("/healthz", s.healthCheck)

	// Prometheus metrics endpoint
	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Messages
	s.app.Post("/push", s.guard.Require(auth.OpPush), s.queueHandler.Push)
	s.app.Post("/push-n", s.guard.Require(auth.OpPushBatch), s.queueHandler.PushBatch)
	s.app.Get("/pull", s.guard.Require(auth.OpPull), s.queueHandler.Pull)
	s.app.Get("/pull-n", s.guard.Require(auth.OpPullBatch), s.queueHandler.PullBatch)
	s.app.Get("/list", s.guard.Require(auth.OpList), s.queueHandler.List)

	// Queue lifecycle
	s.app.Post("/create", s.guard.Require(auth.OpCreate), s.adminHandler.Create)
	s.app.Delete("/delete", s.guard.Require(auth.OpDelete), s.adminHandler.Delete)
	s.app.Get("/audit", s.guard.Require(auth.OpAudit), s.auditHandler.List)

	// Anything else
	s.app.Use(s.notFound)
}

func (s *Server) hello(c *fiber.Ctx) error {
	return c.SendString("Hello from message queue service!")
}

// healthCheck returns the health status of the service.
func (s *Server) healthCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), healthTimeout)
	defer cancel()

	if err := s.health.Ping(ctx); err != nil {
		s.logger.Warn("health check failed", "error", err)
		return Error(c, fiber.StatusServiceUnavailable, ErrLabelServiceUnhealthy, "broker is unreachable")
	}

	return Success(c, map[string]string{
		"status": "healthy",
	})
}

func (s *Server) notFound(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).SendString(fmt.Sprintf("Path: %q not found", c.Path()))
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	addr := s.config.Address()
	s.logger.Info("starting HTTP server", "address", addr)
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.app.ShutdownWithContext(ctx)
}

// customErrorHandler handles errors returned from handlers and middleware.
func customErrorHandler(c *fiber.Ctx, err error) error {
	// Access control short-circuit
	var denied *auth.DeniedError
	if errors.As(err, &denied) {
		return Error(c, denied.Status, denied.Reason, denied.Message)
	}

	// Check if it's a Fiber error
	var e *fiber.Error
	if errors.As(err, &e) {
		return Error(c, e.Code, utils.StatusMessage(e.Code), e.Message)
	}

	// Default to internal server error
	return InternalError(c, ErrLabelInternalError, fmt.Sprintf("unexpected error: %v", err))
}
