package fridgechef

import (
	"context"
	"log/slog"

	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/config"
	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/tenant"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// Plugin implements apps.Plugin and apps.AdminPlugin for the AI proxy.
type Plugin struct {
	registry  *tenant.Registry
	providers []Provider

	service *ChefService
}

// New creates the plugin. Without explicit providers, RegisterRoutes builds
// them from config: Gemini first, then the OpenAI-compatible fallback.
func New(registry *tenant.Registry, providers ...Provider) *Plugin {
	return &Plugin{registry: registry, providers: providers}
}

func (p *Plugin) ID() string { return "fridgechef" }

func (p *Plugin) Models() []interface{} {
	return []interface{}{
		&AIRequest{},
	}
}

func (p *Plugin) RegisterRoutes(router fiber.Router, db *gorm.DB, cfg *config.Config) {
	providers := p.providers
	if len(providers) == 0 {
		providers = providersFromConfig(cfg)
	}
	p.service = NewChefService(db, p.registry, cfg.AITimeout, providers...)
	handler := NewChefHandler(p.service)

	router.Post("/fridgechef/analyze", handler.Analyze)
	router.Post("/fridgechef/recipes", handler.Recipes)
}

func (p *Plugin) RegisterAdminRoutes(router fiber.Router, db *gorm.DB, cfg *config.Config) {
	if p.service == nil {
		p.service = NewChefService(db, p.registry, cfg.AITimeout, p.providers...)
	}
	handler := NewChefHandler(p.service)
	router.Get("/fridgechef/usage", handler.Usage)
}

func providersFromConfig(cfg *config.Config) []Provider {
	var providers []Provider
	if cfg.GeminiAPIKey != "" {
		gemini, err := NewGeminiProvider(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			slog.Error("gemini provider disabled", "error", err)
		} else {
			providers = append(providers, gemini)
		}
	}
	if cfg.FallbackAPIKey != "" && cfg.FallbackAPIURL != "" {
		providers = append(providers, NewChatProvider(cfg.FallbackAPIURL, cfg.FallbackAPIKey, cfg.FallbackModel, cfg.AITimeout))
	}
	if len(providers) == 0 {
		slog.Warn("no AI provider configured; fridgechef serves mock data where allowed")
	}
	return providers
}
