package tenant

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// GetAppID extracts the app_id from Fiber context locals.
func GetAppID(c *fiber.Ctx) string {
	if appID, ok := c.Locals("app_id").(string); ok {
		return appID
	}
	return ""
}

// GetClaims returns the verified JWT claims stored by the auth middleware.
func GetClaims(c *fiber.Ctx) (jwt.MapClaims, error) {
	token, ok := c.Locals("user").(*jwt.Token)
	if !ok {
		return nil, errors.New("invalid token in context")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid claims")
	}
	return claims, nil
}

// GetUserID extracts the user UUID from JWT claims in context.
func GetUserID(c *fiber.Ctx) (uuid.UUID, error) {
	claims, err := GetClaims(c)
	if err != nil {
		return uuid.Nil, err
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return uuid.Nil, errors.New("missing sub claim")
	}

	return uuid.Parse(sub)
}
