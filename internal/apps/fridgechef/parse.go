package fridgechef

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/domain"
)

// ErrMalformedOutput means the model answered with something we cannot use.
var ErrMalformedOutput = errors.New("malformed AI output")

var (
	listMarker   = regexp.MustCompile(`^\s*(?:[-*•·]+|\d+[.)]|[a-zA-Z][.)])\s*`)
	headingLike  = regexp.MustCompile(`(?i)^(?:#|(?:ingredientes|ingredients|lista|aqui|here|claro|sure|na imagem|in the image)\b)`)
	markdownBold = strings.NewReplacer("**", "", "__", "", "`", "")
)

const maxIngredientLength = 60

// ParseIngredientList turns a free-text model answer into ingredient names:
// one per line, list markers stripped, headings and chatter dropped, case
// insensitive duplicates removed.
func ParseIngredientList(text string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, raw := range strings.Split(text, "\n") {
		line := markdownBold.Replace(strings.TrimSpace(raw))
		line = strings.TrimSpace(listMarker.ReplaceAllString(line, ""))
		if line == "" || strings.HasSuffix(line, ":") || headingLike.MatchString(line) {
			continue
		}
		if len(line) > maxIngredientLength {
			continue
		}
		line = strings.TrimRight(line, ".;,")
		key := strings.ToLower(line)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, line)
	}
	return out
}

// ParseRecipes extracts recipes from model output that is either a JSON
// array, an object with a "recipes" array, or either of those wrapped in a
// code fence or prose.
func ParseRecipes(text string) ([]domain.Recipe, error) {
	content := stripFence(strings.TrimSpace(text))

	recipes, err := decodeRecipes(content)
	if err != nil {
		start := strings.IndexAny(content, "[{")
		end := strings.LastIndexAny(content, "]}")
		if start < 0 || end <= start {
			return nil, fmt.Errorf("%w: no JSON found", ErrMalformedOutput)
		}
		recipes, err = decodeRecipes(content[start : end+1])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
		}
	}

	out := make([]domain.Recipe, 0, len(recipes))
	for _, r := range recipes {
		if sanitized, ok := SanitizeRecipe(r); ok {
			out = append(out, sanitized)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no usable recipes", ErrMalformedOutput)
	}
	return out, nil
}

func decodeRecipes(content string) ([]domain.Recipe, error) {
	var list []domain.Recipe
	if err := json.Unmarshal([]byte(content), &list); err == nil {
		return list, nil
	}
	var wrapped struct {
		Recipes []domain.Recipe `json:"recipes"`
	}
	if err := json.Unmarshal([]byte(content), &wrapped); err != nil {
		return nil, err
	}
	if wrapped.Recipes == nil {
		return nil, errors.New("missing recipes field")
	}
	return wrapped.Recipes, nil
}

func stripFence(content string) string {
	if !strings.HasPrefix(content, "```") {
		return content
	}
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	return strings.TrimSpace(content)
}

// SanitizeRecipe enforces the minimum a recipe card needs.
func SanitizeRecipe(r domain.Recipe) (domain.Recipe, bool) {
	r.Title = strings.TrimSpace(r.Title)
	if r.Title == "" {
		return r, false
	}
	if r.Servings < 1 {
		r.Servings = 1
	}
	if r.TimeMinutes < 1 {
		r.TimeMinutes = 1
	}
	if r.Difficulty == "" {
		r.Difficulty = "Fácil"
	}
	r.UsedIngredients = compact(r.UsedIngredients)
	r.MissingIngredients = compact(r.MissingIngredients)
	r.Instructions = compact(r.Instructions)
	r.Tags = compact(r.Tags)
	r.Rating = 0
	r.Key = ""
	r.FavoriteID = ""
	r.CompletedAt = nil
	return r, true
}

func compact(list []string) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
