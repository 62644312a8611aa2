package fridgechef

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/domain"
	"github.com/google/uuid"
)

// AIRequest records one call to the AI proxy.
type AIRequest struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	AppID     string    `gorm:"size:50;not null;index" json:"app_id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	Kind      string    `gorm:"size:20;not null" json:"kind"`
	Provider  string    `gorm:"size:100" json:"provider"`
	Fallback  bool      `json:"fallback"`
	Success   bool      `json:"success"`
	LatencyMs int       `json:"latency_ms"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (AIRequest) TableName() string {
	return "fridgechef_ai_requests"
}

const (
	KindAnalyze = "analyze"
	KindRecipes = "recipes"
)

type AnalyzeRequest struct {
	ImageData string `json:"image_data"`
	MIMEType  string `json:"mime_type"`
}

type AnalyzeResponse struct {
	Ingredients []string `json:"ingredients"`
	Fallback    bool     `json:"fallback"`
}

type RecipesRequest struct {
	Ingredients []string                `json:"ingredients"`
	Pantry      []string                `json:"pantry"`
	Profiles    []domain.DietaryProfile `json:"profiles"`
	Servings    int                     `json:"servings"`
}

type RecipesResponse struct {
	Recipes  []domain.Recipe `json:"recipes"`
	Fallback bool            `json:"fallback"`
}

type UsageStats struct {
	Kind      string  `json:"kind"`
	Total     int64   `json:"total"`
	Failed    int64   `json:"failed"`
	Fallbacks int64   `json:"fallbacks"`
	AvgMs     float64 `json:"avg_latency_ms"`
}
