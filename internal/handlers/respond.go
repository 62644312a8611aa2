package handlers

import (
	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/dto"
	"github.com/gofiber/fiber/v2"
)

func fail(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(dto.ErrorResponse{
		Error: true, Code: code, Message: message,
	})
}

func badBody(c *fiber.Ctx) error {
	return fail(c, fiber.StatusBadRequest, dto.CodeBadRequest, "Invalid request body")
}

func unauthorized(c *fiber.Ctx) error {
	return fail(c, fiber.StatusUnauthorized, dto.CodeUnauthorized, "Unauthorized")
}

func internalError(c *fiber.Ctx) error {
	return fail(c, fiber.StatusInternalServerError, dto.CodeInternal, "Internal server error")
}
