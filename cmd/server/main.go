package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"
	"github.com/redis/go-redis/v9"

	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/apps"
	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/apps/fridgechef"
	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/config"
	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/database"
	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/dto"
	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/logging"
	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/realtime"
	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/routes"
	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/services"
	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/tenant"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

const logRetention = 30 * 24 * time.Hour

func main() {
	// Structured logging (JSON to stdout)
	logging.Setup(os.Getenv("LOG_LEVEL"))

	cfg := config.Load()

	if cfg.JWTSecret == "" {
		slog.Error("JWT_SECRET environment variable is required")
		os.Exit(1)
	}
	if cfg.DBDriver != "sqlite" && cfg.DBPassword == "" {
		slog.Error("DB_PASSWORD environment variable is required")
		os.Exit(1)
	}

	// App registry
	registry, err := tenant.LoadFromFile(cfg.AppsConfigPath)
	if err != nil {
		slog.Error("failed to load app registry", "path", cfg.AppsConfigPath, "error", err)
		os.Exit(1)
	}
	slog.Info("app registry loaded", "apps", len(registry.All()))

	// Database
	if err := database.Connect(cfg); err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	db := database.DB

	if err := database.MigrateShared(db); err != nil {
		slog.Error("shared migration failed", "error", err)
		os.Exit(1)
	}

	// PostgreSQL log handler (ERROR+ async batch)
	pgLogHandler := logging.NewPGHandler(db, 5*time.Second)
	slog.SetDefault(slog.New(logging.NewMultiHandler(
		slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logging.ParseLevel(os.Getenv("LOG_LEVEL"))}),
		pgLogHandler,
	)))

	cleanupDone := make(chan struct{})
	logging.StartCleanup(db, logRetention, cleanupDone)

	// Change notifications
	broker, err := newBroker(cfg)
	if err != nil {
		slog.Error("realtime broker failed", "error", err)
		os.Exit(1)
	}
	hub := realtime.NewHub(broker)

	// Services
	appleVerifier := services.NewAppleVerifier(cfg.AppleJWKSURL)
	authService := services.NewAuthService(db, cfg, registry, appleVerifier, services.LogMailer{})
	documentService := services.NewDocumentService(db, hub)
	profileService := services.NewProfileService(db, cfg, hub)

	plugins := []apps.Plugin{
		fridgechef.New(registry),
	}

	if err := apps.Migrate(db, plugins); err != nil {
		slog.Error("plugin migration failed", "error", err)
		os.Exit(1)
	}

	// Handlers
	streamHandler := handlers.NewStreamHandler(documentService, profileService, hub)
	h := routes.Handlers{
		Auth:     handlers.NewAuthHandler(authService),
		Health:   handlers.NewHealthHandler(db, registry),
		Profile:  handlers.NewProfileHandler(profileService),
		Document: handlers.NewDocumentHandler(documentService),
		Stream:   streamHandler,
		Admin:    handlers.NewAdminHandler(db),
	}

	// Sentry error tracking
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              dsn,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
			Environment:      os.Getenv("APP_ENV"),
		}); err != nil {
			slog.Error("sentry init failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	app := fiber.New(fiber.Config{
		BodyLimit:    6 * 1024 * 1024,
		ErrorHandler: customErrorHandler,
	})

	app.Use(sentryfiber.New(sentryfiber.Options{
		Repanic:         true,
		WaitForDelivery: false,
	}))

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path}\n",
	}))
	app.Use(middleware.CORS(cfg))
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		return c.Next()
	})
	app.Use(middleware.TenantMiddleware(registry))

	routes.Setup(app, cfg, db, profileService, h, plugins)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-quit
	slog.Info("shutting down server...")

	// Open streams block shutdown until they return.
	streamHandler.Close()
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	if err := hub.Close(); err != nil {
		slog.Error("realtime hub close error", "error", err)
	}
	appleVerifier.Close()
	close(cleanupDone)
	pgLogHandler.Stop()
	sentry.Flush(2 * time.Second)

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			slog.Error("database close error", "error", err)
		}
	}

	slog.Info("server stopped")
}

// newBroker relays notifications through Redis when REDIS_URL is set so
// several instances can share one database.
func newBroker(cfg *config.Config) (realtime.Broker, error) {
	if cfg.RedisURL == "" {
		slog.Info("realtime using in-process broker")
		return realtime.NewLocalBroker(), nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	broker, err := realtime.NewRedisBroker(ctx, client, realtime.DefaultChannel)
	if err != nil {
		return nil, err
	}
	slog.Info("realtime using redis broker", "channel", realtime.DefaultChannel)
	return broker, nil
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		message = e.Message
	}

	// Only expose error details for client errors (4xx), not server errors (5xx)
	if code >= 500 {
		slog.Error("unhandled server error", "method", c.Method(), "path", c.Path(), "error", err.Error())
		message = "Internal server error"
	}

	errCode := dto.CodeBadRequest
	switch {
	case code == fiber.StatusNotFound:
		errCode = dto.CodeNotFound
	case code == fiber.StatusUnauthorized:
		errCode = dto.CodeUnauthorized
	case code >= 500:
		errCode = dto.CodeInternal
	}

	return c.Status(code).JSON(dto.ErrorResponse{
		Error:   true,
		Code:    errCode,
		Message: message,
	})
}
