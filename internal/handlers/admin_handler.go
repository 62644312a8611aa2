package handlers

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/logging"
	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/models"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// AdminHandler exposes persisted error logs to operators.
type AdminHandler struct {
	db *gorm.DB
}

func NewAdminHandler(db *gorm.DB) *AdminHandler {
	return &AdminHandler{db: db}
}

func (h *AdminHandler) ListLogs(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 100)
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	q := h.db.WithContext(c.UserContext()).Order("timestamp DESC").Limit(limit)
	if appID := c.Query("app_id"); appID != "" {
		q = q.Where("app_id = ?", appID)
	}
	if collection := c.Query("collection"); collection != "" {
		q = q.Where("collection = ?", collection)
	}

	var logs []models.SystemLog
	if err := q.Find(&logs).Error; err != nil {
		return internalError(c)
	}
	return c.JSON(fiber.Map{"logs": logs})
}

// PurgeLogs deletes logs older than ?days (default 30).
func (h *AdminHandler) PurgeLogs(c *fiber.Ctx) error {
	days := c.QueryInt("days", 30)
	if days < 1 {
		days = 30
	}
	n, err := logging.PurgeOlderThan(h.db, time.Now().AddDate(0, 0, -days))
	if err != nil {
		return internalError(c)
	}
	return c.JSON(fiber.Map{"deleted": n})
}
