package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// IdentityKey is a stable content hash of the recipe: its normalized title
// plus its sorted, normalized ingredient names. Rating, image and other
// presentation fields do not take part.
func (r Recipe) IdentityKey() string {
	ingredients := make([]string, 0, len(r.UsedIngredients)+len(r.MissingIngredients))
	for _, list := range [][]string{r.UsedIngredients, r.MissingIngredients} {
		for _, ing := range list {
			if n := normalize(ing); n != "" {
				ingredients = append(ingredients, n)
			}
		}
	}
	sort.Strings(ingredients)

	h := sha256.New()
	h.Write([]byte(normalize(r.Title)))
	for _, ing := range ingredients {
		h.Write([]byte{0})
		h.Write([]byte(ing))
	}
	return hex.EncodeToString(h.Sum(nil)[:16])
}

// SameRecipe reports whether candidate is the recipe stored as favorite.
// Favorites without a recorded key fall back to exact title equality.
func SameRecipe(stored, candidate Recipe) bool {
	if stored.Key != "" {
		return stored.Key == candidate.IdentityKey()
	}
	return stored.Title == candidate.Title
}

// FindFavorite returns the favorite matching r, if any.
func FindFavorite(favorites []Recipe, r Recipe) (Recipe, bool) {
	for _, f := range favorites {
		if SameRecipe(f, r) {
			return f, true
		}
	}
	return Recipe{}, false
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// FallbackImageURL derives a deterministic illustration URL from a title.
func FallbackImageURL(title string) string {
	prompt := "foto de comida " + strings.TrimSpace(title)
	return "https://image.pollinations.ai/prompt/" + url.PathEscape(prompt) + "?width=640&height=480&nologo=true"
}
