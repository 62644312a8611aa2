package middleware

import (
	"strings"

	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/dto"
	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/tenant"
	"github.com/gofiber/fiber/v2"
)

// Paths that don't require tenant identification.
var tenantSkipPaths = []string{
	"/api/health",
}

// TenantMiddleware resolves app_id from the X-App-ID header or app_id query
// param. Authenticated routes later replace it with the token's app_id.
func TenantMiddleware(registry *tenant.Registry) fiber.Handler {
	return func(c *fiber.Ctx) error {
		path := c.Path()
		for _, skip := range tenantSkipPaths {
			if strings.HasPrefix(path, skip) {
				return c.Next()
			}
		}

		appID := c.Get("X-App-ID")
		if appID == "" {
			appID = c.Query("app_id")
		}
		if appID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
				Error:   true,
				Code:    dto.CodeBadRequest,
				Message: "X-App-ID header is required",
			})
		}
		if !registry.Exists(appID) {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
				Error:   true,
				Code:    dto.CodeBadRequest,
				Message: "Invalid X-App-ID: " + appID,
			})
		}

		c.Locals("app_id", appID)
		return c.Next()
	}
}
