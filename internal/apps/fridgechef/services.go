package fridgechef

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/domain"
	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/tenant"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	// ErrAIFailed is any AI failure that is not an availability problem.
	ErrAIFailed = errors.New(domain.AIFailedMessage)
	// ErrAIUnavailable is returned instead of mock data when the app has
	// the mock fallback switched off.
	ErrAIUnavailable = errors.New("AI service unavailable")
	ErrInvalidImage  = errors.New("image_data must be base64 and at most 4MB")
	ErrNoIngredients = errors.New("at least one ingredient is required")
)

const maxImageBytes = 4 << 20

const analyzeSystemPrompt = `Você é um assistente de cozinha. Liste os ingredientes e alimentos visíveis na foto.
Responda apenas com um ingrediente por linha, em português, sem quantidades e sem comentários.`

const recipesSystemPrompt = `Você é um chef que cria receitas caseiras em português.
Responda apenas com JSON no formato {"recipes":[{"title":"","time_minutes":0,"difficulty":"","servings":0,
"used_ingredients":[],"missing_ingredients":[],"instructions":[],"tags":[]}]}.
Sugira 3 receitas, priorize os ingredientes disponíveis e respeite todas as restrições informadas.`

// ChefService proxies image analysis and recipe generation to the first
// provider that answers.
type ChefService struct {
	db        *gorm.DB
	registry  *tenant.Registry
	providers []Provider
	timeout   time.Duration
	now       func() time.Time
}

func NewChefService(db *gorm.DB, registry *tenant.Registry, timeout time.Duration, providers ...Provider) *ChefService {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &ChefService{db: db, registry: registry, providers: providers, timeout: timeout, now: time.Now}
}

func (s *ChefService) AnalyzeImage(ctx context.Context, appID string, userID uuid.UUID, image []byte, mimeType string) (*AnalyzeResponse, error) {
	if len(image) == 0 || len(image) > maxImageBytes {
		return nil, ErrInvalidImage
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	start := s.now()
	text, provider, err := s.generate(ctx, GenerateRequest{
		System:   analyzeSystemPrompt,
		Prompt:   "Quais ingredientes aparecem nesta foto?",
		Image:    image,
		MIMEType: mimeType,
	})

	var resp *AnalyzeResponse
	if err == nil {
		ingredients := ParseIngredientList(text)
		if len(ingredients) == 0 {
			err = fmt.Errorf("%w: no ingredients in answer", ErrMalformedOutput)
		} else {
			resp = &AnalyzeResponse{Ingredients: ingredients}
		}
	}
	if err != nil {
		resp, err = withFallback(s, appID, KindAnalyze, err, func() *AnalyzeResponse {
			return &AnalyzeResponse{Ingredients: domain.MockIngredients(), Fallback: true}
		})
	}

	s.record(appID, userID, KindAnalyze, provider, resp != nil && resp.Fallback, err == nil, start)
	return resp, err
}

func (s *ChefService) SuggestRecipes(ctx context.Context, appID string, userID uuid.UUID, req *RecipesRequest) (*RecipesResponse, error) {
	ingredients := compact(req.Ingredients)
	if len(ingredients) == 0 {
		return nil, ErrNoIngredients
	}
	if req.Servings < 1 {
		req.Servings = 2
	}

	start := s.now()
	text, provider, err := s.generate(ctx, GenerateRequest{
		System: recipesSystemPrompt,
		Prompt: recipesPrompt(ingredients, req),
		JSON:   true,
	})

	var resp *RecipesResponse
	if err == nil {
		var recipes []domain.Recipe
		recipes, err = ParseRecipes(text)
		if err == nil {
			resp = &RecipesResponse{Recipes: recipes}
		}
	}
	if err != nil {
		resp, err = withFallback(s, appID, KindRecipes, err, func() *RecipesResponse {
			return &RecipesResponse{Recipes: domain.MockRecipes(), Fallback: true}
		})
	}

	s.record(appID, userID, KindRecipes, provider, resp != nil && resp.Fallback, err == nil, start)
	return resp, err
}

// generate tries providers in order and returns the last error when all fail.
func (s *ChefService) generate(ctx context.Context, req GenerateRequest) (string, string, error) {
	if len(s.providers) == 0 {
		return "", "", ErrNoProvider
	}

	var lastErr error
	var name string
	for _, p := range s.providers {
		name = p.Name()
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		text, err := p.Generate(callCtx, req)
		cancel()
		if err == nil {
			return text, name, nil
		}
		slog.Warn("AI provider failed", "provider", name, "error", err)
		lastErr = err
	}
	return "", name, lastErr
}

// withFallback decides what an AI failure turns into: mock data when the
// service is unreachable or unauthorized (and the app allows it), a generic
// failure otherwise.
func withFallback[T any](s *ChefService, appID, kind string, cause error, mock func() *T) (*T, error) {
	if errors.Is(cause, ErrMalformedOutput) || !IsUnavailable(cause) {
		slog.Error("AI request failed", "kind", kind, "app_id", appID, "error", cause)
		return nil, fmt.Errorf("%w: %v", ErrAIFailed, cause)
	}
	if !s.registry.HasFeature(appID, tenant.FeatureAIMockFallback) {
		return nil, fmt.Errorf("%w: %v", ErrAIUnavailable, cause)
	}
	slog.Warn("AI unavailable, serving mock data", "kind", kind, "app_id", appID, "error", cause)
	return mock(), nil
}

func (s *ChefService) record(appID string, userID uuid.UUID, kind, provider string, fallback, success bool, start time.Time) {
	entry := AIRequest{
		ID:        uuid.New(),
		AppID:     appID,
		UserID:    userID,
		Kind:      kind,
		Provider:  provider,
		Fallback:  fallback,
		Success:   success,
		LatencyMs: int(s.now().Sub(start).Milliseconds()),
	}
	if err := s.db.Create(&entry).Error; err != nil {
		slog.Warn("failed to record AI request", "kind", kind, "error", err)
	}
}

// Usage aggregates recorded requests per kind since the given time.
func (s *ChefService) Usage(ctx context.Context, appID string, since time.Time) ([]UsageStats, error) {
	var stats []UsageStats
	err := s.db.WithContext(ctx).Model(&AIRequest{}).
		Scopes(tenant.ForTenant(appID)).
		Select(`kind,
			COUNT(*) AS total,
			SUM(CASE WHEN success THEN 0 ELSE 1 END) AS failed,
			SUM(CASE WHEN fallback THEN 1 ELSE 0 END) AS fallbacks,
			AVG(latency_ms) AS avg_ms`).
		Where("created_at >= ?", since).
		Group("kind").
		Order("kind").
		Scan(&stats).Error
	return stats, err
}

func recipesPrompt(ingredients []string, req *RecipesRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ingredientes disponíveis: %s.\n", strings.Join(ingredients, ", "))
	if pantry := compact(req.Pantry); len(pantry) > 0 {
		fmt.Fprintf(&b, "Itens básicos da despensa: %s.\n", strings.Join(pantry, ", "))
	}
	fmt.Fprintf(&b, "Porções: %d.\n", req.Servings)
	if len(req.Profiles) > 0 {
		profiles, _ := json.Marshal(req.Profiles)
		fmt.Fprintf(&b, "Perfis de quem vai comer (restrições e preferências): %s\n", profiles)
	}
	return b.String()
}
