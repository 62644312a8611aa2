package handlers

import (
	"errors"
	"log/slog"

	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/dto"
	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/services"
	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/tenant"
	"github.com/gofiber/fiber/v2"
)

type AuthHandler struct {
	authService *services.AuthService
}

func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	appID := tenant.GetAppID(c)
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	resp, err := h.authService.Register(appID, &req)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmailTaken):
			return fail(c, fiber.StatusConflict, dto.CodeEmailTaken, err.Error())
		case errors.Is(err, services.ErrWeakPassword):
			return fail(c, fiber.StatusBadRequest, dto.CodeBadRequest, err.Error())
		}
		slog.Error("register failed", "error", err, "app_id", appID)
		return internalError(c)
	}

	return c.Status(fiber.StatusCreated).JSON(resp)
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	appID := tenant.GetAppID(c)
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	resp, err := h.authService.Login(appID, &req)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			return fail(c, fiber.StatusUnauthorized, dto.CodeInvalidCredentials, err.Error())
		}
		slog.Error("login failed", "error", err, "app_id", appID)
		return internalError(c)
	}

	return c.JSON(resp)
}

func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	appID := tenant.GetAppID(c)
	var req dto.RefreshRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	resp, err := h.authService.Refresh(appID, &req)
	if err != nil {
		if errors.Is(err, services.ErrInvalidToken) || errors.Is(err, services.ErrUserNotFound) {
			return fail(c, fiber.StatusUnauthorized, dto.CodeInvalidToken, err.Error())
		}
		return internalError(c)
	}

	return c.JSON(resp)
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	appID := tenant.GetAppID(c)
	var req dto.LogoutRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	if err := h.authService.Logout(appID, &req); err != nil {
		return fail(c, fiber.StatusInternalServerError, dto.CodeInternal, "Failed to logout")
	}

	return c.JSON(fiber.Map{"message": "Logged out successfully"})
}

func (h *AuthHandler) FederatedSignIn(c *fiber.Ctx) error {
	appID := tenant.GetAppID(c)
	var req dto.FederatedSignInRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	if req.IdentityToken == "" {
		return fail(c, fiber.StatusBadRequest, dto.CodeBadRequest, "Identity token is required")
	}

	resp, err := h.authService.FederatedSignIn(c.UserContext(), appID, &req)
	if err != nil {
		if errors.Is(err, services.ErrUnsupportedProvider) {
			return fail(c, fiber.StatusBadRequest, dto.CodeBadRequest, err.Error())
		}
		return fail(c, fiber.StatusUnauthorized, dto.CodeInvalidToken, err.Error())
	}

	return c.JSON(resp)
}

func (h *AuthHandler) RequestPasswordReset(c *fiber.Ctx) error {
	appID := tenant.GetAppID(c)
	var req dto.PasswordResetRequest
	if err := c.BodyParser(&req); err != nil || req.Email == "" {
		return badBody(c)
	}

	if err := h.authService.RequestPasswordReset(c.UserContext(), appID, req.Email); err != nil {
		slog.Error("password reset request failed", "error", err, "app_id", appID)
		return internalError(c)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"message": "If the address is registered, a reset link was sent"})
}

func (h *AuthHandler) ConfirmPasswordReset(c *fiber.Ctx) error {
	appID := tenant.GetAppID(c)
	var req dto.PasswordResetConfirmRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	if err := h.authService.ResetPassword(appID, &req); err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidToken):
			return fail(c, fiber.StatusBadRequest, dto.CodeInvalidToken, err.Error())
		case errors.Is(err, services.ErrWeakPassword):
			return fail(c, fiber.StatusBadRequest, dto.CodeBadRequest, err.Error())
		}
		return internalError(c)
	}

	return c.JSON(fiber.Map{"message": "Password updated"})
}
