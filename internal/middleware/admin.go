package middleware

import (
	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/config"
	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/dto"
	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/models"
	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/services"
	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/tenant"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AdminRequired admits the configured admin token, or an authenticated user
// the profile service considers an admin.
func AdminRequired(db *gorm.DB, cfg *config.Config, profiles *services.ProfileService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if cfg.AdminToken != "" && c.Get("X-Admin-Token") == cfg.AdminToken {
			return c.Next()
		}

		claims, err := tenant.GetClaims(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Code: dto.CodeUnauthorized, Message: "Unauthorized",
			})
		}

		sub, _ := claims["sub"].(string)
		if userID, err := uuid.Parse(sub); err == nil {
			var user models.User
			if err := db.Scopes(tenant.ForTenant(tenant.GetAppID(c))).First(&user, "id = ?", userID).Error; err == nil {
				if profiles.IsAdmin(&user) {
					return c.Next()
				}
			}
		}

		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
			Error: true, Code: dto.CodeForbidden, Message: "Admin access required",
		})
	}
}
