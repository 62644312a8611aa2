// Package apps holds the server-side feature plugins mounted under /api/p.
package apps

import (
	"fmt"
	"log/slog"

	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/config"
	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/database"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// Plugin is a feature mounted next to the shared auth and document API.
type Plugin interface {
	// ID matches the app_id of apps.json.
	ID() string

	// Models are migrated at startup.
	Models() []interface{}

	// RegisterRoutes mounts the plugin on a group already prefixed with
	// /api/p and protected by JWT.
	RegisterRoutes(router fiber.Router, db *gorm.DB, cfg *config.Config)
}

// AdminPlugin is a Plugin that also serves admin-only routes.
type AdminPlugin interface {
	Plugin
	RegisterAdminRoutes(router fiber.Router, db *gorm.DB, cfg *config.Config)
}

// Migrate creates the tables of every plugin.
func Migrate(db *gorm.DB, plugins []Plugin) error {
	for _, p := range plugins {
		models := p.Models()
		if len(models) == 0 {
			continue
		}
		if err := database.MigrateModels(db, models); err != nil {
			return fmt.Errorf("migrate plugin %s: %w", p.ID(), err)
		}
		slog.Info("plugin migrated", "plugin", p.ID(), "models", len(models))
	}
	return nil
}

// Mount registers every plugin on the plugin group, and on the admin group
// for those that have admin routes.
func Mount(plugin, admin fiber.Router, db *gorm.DB, cfg *config.Config, plugins []Plugin) {
	for _, p := range plugins {
		p.RegisterRoutes(plugin, db, cfg)
		if ap, ok := p.(AdminPlugin); ok {
			ap.RegisterAdminRoutes(admin, db, cfg)
		}
	}
}
