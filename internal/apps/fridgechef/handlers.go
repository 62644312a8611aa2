package fridgechef

import (
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/domain"
	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/dto"
	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/tenant"
	"github.com/gofiber/fiber/v2"
)

// CodeUnavailable is sent when the AI service is down and mock data is off.
const CodeUnavailable = "unavailable"

type ChefHandler struct {
	service *ChefService
}

func NewChefHandler(service *ChefService) *ChefHandler {
	return &ChefHandler{service: service}
}

// Analyze handles POST /api/p/fridgechef/analyze
func (h *ChefHandler) Analyze(c *fiber.Ctx) error {
	userID, err := tenant.GetUserID(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, dto.CodeUnauthorized, "Authentication required")
	}

	var req AnalyzeRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, dto.CodeBadRequest, "Invalid request body")
	}

	image, err := decodeImage(req.ImageData)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, dto.CodeBadRequest, ErrInvalidImage.Error())
	}

	resp, err := h.service.AnalyzeImage(c.UserContext(), tenant.GetAppID(c), userID, image, req.MIMEType)
	if err != nil {
		return h.aiError(c, err)
	}
	return c.JSON(resp)
}

// Recipes handles POST /api/p/fridgechef/recipes
func (h *ChefHandler) Recipes(c *fiber.Ctx) error {
	userID, err := tenant.GetUserID(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, dto.CodeUnauthorized, "Authentication required")
	}

	var req RecipesRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, dto.CodeBadRequest, "Invalid request body")
	}

	resp, err := h.service.SuggestRecipes(c.UserContext(), tenant.GetAppID(c), userID, &req)
	if err != nil {
		return h.aiError(c, err)
	}
	return c.JSON(resp)
}

// Usage handles GET /api/admin/fridgechef/usage?days=7
func (h *ChefHandler) Usage(c *fiber.Ctx) error {
	days := c.QueryInt("days", 7)
	if days < 1 || days > 365 {
		days = 7
	}
	appID := c.Query("app_id", tenant.GetAppID(c))

	stats, err := h.service.Usage(c.UserContext(), appID, time.Now().AddDate(0, 0, -days))
	if err != nil {
		return fail(c, fiber.StatusInternalServerError, dto.CodeInternal, "Failed to load usage")
	}
	return c.JSON(fiber.Map{"app_id": appID, "days": days, "usage": stats})
}

func (h *ChefHandler) aiError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ErrInvalidImage), errors.Is(err, ErrNoIngredients):
		return fail(c, fiber.StatusBadRequest, dto.CodeBadRequest, err.Error())
	case errors.Is(err, ErrAIUnavailable):
		return fail(c, fiber.StatusServiceUnavailable, CodeUnavailable, domain.AIFailedMessage)
	default:
		return fail(c, fiber.StatusBadGateway, dto.CodeAIFailed, domain.AIFailedMessage)
	}
}

func fail(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(dto.ErrorResponse{Error: true, Code: code, Message: message})
}

// decodeImage accepts raw base64 or a data URL.
func decodeImage(data string) ([]byte, error) {
	data = strings.TrimSpace(data)
	if i := strings.Index(data, ";base64,"); i >= 0 && strings.HasPrefix(data, "data:") {
		data = data[i+len(";base64,"):]
	}
	if data == "" || base64.StdEncoding.DecodedLen(len(data)) > maxImageBytes+3 {
		return nil, ErrInvalidImage
	}
	return base64.StdEncoding.DecodeString(data)
}
