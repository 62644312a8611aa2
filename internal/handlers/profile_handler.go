package handlers

import (
	"errors"

	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/dto"
	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/services"
	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/tenant"
	"github.com/gofiber/fiber/v2"
)

type ProfileHandler struct {
	profiles *services.ProfileService
}

func NewProfileHandler(profiles *services.ProfileService) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

func (h *ProfileHandler) Get(c *fiber.Ctx) error {
	userID, err := tenant.GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	profile, err := h.profiles.Get(c.UserContext(), tenant.GetAppID(c), userID)
	if err != nil {
		return fail(c, fiber.StatusNotFound, dto.CodeNotFound, "Profile not found")
	}
	return c.JSON(profile)
}

func (h *ProfileHandler) Update(c *fiber.Ctx) error {
	userID, err := tenant.GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	var req dto.UpdateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	profile, err := h.profiles.Update(c.UserContext(), tenant.GetAppID(c), userID, &req)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidTaxID), errors.Is(err, services.ErrInvalidDisplayName):
			return fail(c, fiber.StatusBadRequest, dto.CodeBadRequest, err.Error())
		case errors.Is(err, services.ErrUserNotFound):
			return fail(c, fiber.StatusNotFound, dto.CodeNotFound, "Profile not found")
		}
		return internalError(c)
	}
	return c.JSON(profile)
}
