package docclient

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"

	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/domain"
)

// CodeUnavailable is the error code of an AI backend without providers.
const CodeUnavailable = "unavailable"

// ErrAIFailed is returned when the AI service answered but could not
// produce a result. Its message is the one shown to the user.
var ErrAIFailed = errors.New(domain.AIFailedMessage)

// RecipeQuery is the input to recipe suggestions.
type RecipeQuery struct {
	Ingredients []string                `json:"ingredients"`
	Pantry      []string                `json:"pantry"`
	Profiles    []domain.DietaryProfile `json:"profiles"`
	Servings    int                     `json:"servings"`
}

type analyzeRequest struct {
	ImageData string `json:"image_data"`
	MIMEType  string `json:"mime_type"`
}

type analyzeResponse struct {
	Ingredients []string `json:"ingredients"`
	Fallback    bool     `json:"fallback"`
}

type recipesResponse struct {
	Recipes  []domain.Recipe `json:"recipes"`
	Fallback bool            `json:"fallback"`
}

// AnalyzeImage lists the ingredients visible in a photo. When the service
// cannot be reached or refuses the caller, the demo ingredients are
// returned with fallback set.
func (c *Client) AnalyzeImage(ctx context.Context, image []byte, mimeType string) (ingredients []string, fallback bool, err error) {
	req := analyzeRequest{ImageData: base64.StdEncoding.EncodeToString(image), MIMEType: mimeType}
	var resp analyzeResponse
	if err := c.do(ctx, http.MethodPost, "/api/p/fridgechef/analyze", nil, req, &resp); err != nil {
		if useMock(ctx, err) {
			c.log.Warn("ingredient analysis unavailable, using demo data", "error", err)
			return domain.MockIngredients(), true, nil
		}
		return nil, false, c.aiFailure("analyze", err)
	}
	return resp.Ingredients, resp.Fallback, nil
}

// SuggestRecipes asks for recipes built from q, with the same fallback
// rules as AnalyzeImage.
func (c *Client) SuggestRecipes(ctx context.Context, q RecipeQuery) (recipes []domain.Recipe, fallback bool, err error) {
	var resp recipesResponse
	if err := c.do(ctx, http.MethodPost, "/api/p/fridgechef/recipes", nil, q, &resp); err != nil {
		if useMock(ctx, err) {
			c.log.Warn("recipe suggestions unavailable, using demo data", "error", err)
			return domain.MockRecipes(), true, nil
		}
		return nil, false, c.aiFailure("recipes", err)
	}
	return resp.Recipes, resp.Fallback, nil
}

// useMock reports whether err means the service is out of reach rather
// than failing on this input.
func useMock(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var se *StatusError
	if !errors.As(err, &se) {
		return !errors.Is(err, ErrSignedOut)
	}
	switch se.Status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return true
	case http.StatusServiceUnavailable:
		return se.Code == CodeUnavailable || se.Code == ""
	}
	return false
}

func (c *Client) aiFailure(op string, err error) error {
	c.log.Error("ai request failed", "op", op, "error", err)
	if statusOf(err) == http.StatusBadRequest {
		return err
	}
	return ErrAIFailed
}
