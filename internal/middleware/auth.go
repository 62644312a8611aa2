package middleware

import (
	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/config"
	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/dto"
	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// JWTProtected validates the access token from the Authorization header or,
// for EventSource clients that cannot set headers, the access_token query
// parameter. The token's app_id becomes the request tenant.
func JWTProtected(cfg *config.Config) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey:  jwtware.SigningKey{Key: []byte(cfg.JWTSecret)},
		TokenLookup: "header:Authorization,query:access_token",
		SuccessHandler: func(c *fiber.Ctx) error {
			if token, ok := c.Locals("user").(*jwt.Token); ok {
				if claims, ok := token.Claims.(jwt.MapClaims); ok {
					if appID, ok := claims["app_id"].(string); ok && appID != "" {
						c.Locals("app_id", appID)
					}
				}
			}
			return c.Next()
		},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error:   true,
				Code:    dto.CodeUnauthorized,
				Message: "Unauthorized: invalid or expired token",
			})
		},
	})
}
