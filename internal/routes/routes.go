package routes

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/apps"
	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/config"
	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/dto"
	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"gorm.io/gorm"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Auth     *handlers.AuthHandler
	Health   *handlers.HealthHandler
	Profile  *handlers.ProfileHandler
	Document *handlers.DocumentHandler
	Stream   *handlers.StreamHandler
	Admin    *handlers.AdminHandler
}

func rateLimit(max int) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:               max,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(dto.ErrorResponse{
				Error:   true,
				Code:    dto.CodeTooManyRequests,
				Message: "Too many requests, try again later",
			})
		},
	})
}

func Setup(
	app *fiber.App,
	cfg *config.Config,
	db *gorm.DB,
	profiles *services.ProfileService,
	h Handlers,
	plugins []apps.Plugin,
) {
	api := app.Group("/api")

	// Health (no tenant required)
	api.Get("/health", h.Health.Check)

	// Auth: 10 req/min per IP
	auth := api.Group("/auth", rateLimit(10))
	auth.Post("/register", h.Auth.Register)
	auth.Post("/login", h.Auth.Login)
	auth.Post("/refresh", h.Auth.Refresh)
	auth.Post("/logout", h.Auth.Logout)
	auth.Post("/federated", h.Auth.FederatedSignIn)
	auth.Post("/password-reset", h.Auth.RequestPasswordReset)
	auth.Post("/password-reset/confirm", h.Auth.ConfirmPasswordReset)

	jwt := middleware.JWTProtected(cfg)

	// Streams are long lived and stay outside the request limiter.
	api.Get("/stream/:collection", jwt, h.Stream.Stream)

	protected := api.Group("", rateLimit(120), jwt)
	protected.Get("/me", h.Profile.Get)
	protected.Patch("/me", h.Profile.Update)

	docs := protected.Group("/docs")
	docs.Get("/:collection", h.Document.List)
	docs.Post("/:collection", h.Document.Create)
	docs.Get("/:collection/:id", h.Document.Get)
	docs.Put("/:collection/:id", h.Document.Set)
	docs.Patch("/:collection/:id", h.Document.Update)
	docs.Delete("/:collection/:id", h.Document.Delete)

	admin := api.Group("/admin", jwt, middleware.AdminRequired(db, cfg, profiles))
	admin.Get("/logs", h.Admin.ListLogs)
	admin.Delete("/logs", h.Admin.PurgeLogs)

	apps.Mount(api.Group("/p", rateLimit(30), jwt), admin, db, cfg, plugins)
}
