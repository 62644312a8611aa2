package domain

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityKeyIgnoresPresentation(t *testing.T) {
	a := Recipe{Title: "Omelete", UsedIngredients: []string{"Ovos", "queijo"}, MissingIngredients: []string{"sal"}}
	b := Recipe{Title: "  omelete ", UsedIngredients: []string{"queijo", "ovos"}, MissingIngredients: []string{"Sal"}, Rating: 5, Image: "x"}
	assert.Equal(t, a.IdentityKey(), b.IdentityKey())

	c := Recipe{Title: "Omelete", UsedIngredients: []string{"ovos", "presunto"}}
	assert.NotEqual(t, a.IdentityKey(), c.IdentityKey())
}

func TestSameRecipe(t *testing.T) {
	r := Recipe{Title: "Omelete", UsedIngredients: []string{"ovos"}}
	other := Recipe{Title: "Omelete", UsedIngredients: []string{"ovos", "tomate"}}

	stored := r
	stored.Key = r.IdentityKey()
	assert.True(t, SameRecipe(stored, r))
	assert.False(t, SameRecipe(stored, other), "same title, different content")

	legacy := Recipe{Title: "Omelete"}
	assert.True(t, SameRecipe(legacy, other))
	assert.False(t, SameRecipe(legacy, Recipe{Title: "omelete"}), "legacy match is case sensitive")
}

func TestFallbackImageURLIsDeterministic(t *testing.T) {
	a := FallbackImageURL("Bolo de Cenoura")
	assert.Equal(t, a, FallbackImageURL("Bolo de Cenoura"))
	assert.NotEqual(t, a, FallbackImageURL("Bolo de Milho"))
	_, err := url.Parse(a)
	assert.NoError(t, err)
}

func TestShareLinks(t *testing.T) {
	link := RecipeShareLink(Recipe{Title: "Bolo & Café", TimeMinutes: 40, Servings: 8, UsedIngredients: []string{"3 ovos"}, Instructions: []string{"Misture"}})
	require.True(t, strings.HasPrefix(link, "https://wa.me/?text="))
	assert.NotContains(t, link, "+")
	assert.NotContains(t, strings.TrimPrefix(link, "https://wa.me/?text="), "&")

	text, err := url.QueryUnescape(strings.TrimPrefix(link, "https://wa.me/?text="))
	require.NoError(t, err)
	assert.Contains(t, text, "*Bolo & Café*")
	assert.Contains(t, text, "1. Misture")

	shop := ShoppingShareLink([]ShoppingItem{
		{Name: "Leite", Quantity: "2"},
		{Name: "Pão", Quantity: "1x", Checked: true},
	})
	text, err = url.QueryUnescape(strings.TrimPrefix(shop, "https://wa.me/?text="))
	require.NoError(t, err)
	assert.Contains(t, text, "- 2x Leite")
	assert.NotContains(t, text, "Pão")
}

func TestAuthErrorMessage(t *testing.T) {
	assert.Equal(t, "E-mail ou senha incorretos.", AuthErrorMessage(CodeInvalidCredentials))
	assert.Contains(t, AuthErrorMessage(CodeTooManyRequests), "Muitas tentativas")
	assert.Equal(t, genericAuthMessage, AuthErrorMessage("auth/whatever"))
}

func TestIsTemporaryID(t *testing.T) {
	assert.True(t, IsTemporaryID(""))
	assert.True(t, IsTemporaryID("tmp-123"))
	assert.False(t, IsTemporaryID(PrimaryMemberID))
	assert.False(t, IsTemporaryID("a1b2"))
}
