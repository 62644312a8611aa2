package fridgechef

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIngredientList(t *testing.T) {
	text := `Claro! Na imagem vejo:

## Ingredientes
1. Ovos
2) **Tomate**
- queijo
* Cebola roxa.
- ovos
Ingredientes encontrados:
• Leite
`
	assert.Equal(t, []string{"Ovos", "Tomate", "queijo", "Cebola roxa", "Leite"}, ParseIngredientList(text))
}

func TestParseIngredientListEmpty(t *testing.T) {
	assert.Empty(t, ParseIngredientList("\n\n  \n"))
}

func TestParseRecipesShapes(t *testing.T) {
	cases := map[string]string{
		"array":   `[{"title":"Omelete","servings":2,"time_minutes":10}]`,
		"wrapped": `{"recipes":[{"title":"Omelete","servings":2,"time_minutes":10}]}`,
		"fenced":  "```json\n{\"recipes\":[{\"title\":\"Omelete\",\"servings\":2,\"time_minutes\":10}]}\n```",
		"prose":   "Aqui estão as receitas:\n[{\"title\":\"Omelete\",\"servings\":2,\"time_minutes\":10}]\nBom apetite!",
	}
	for name, text := range cases {
		t.Run(name, func(t *testing.T) {
			recipes, err := ParseRecipes(text)
			require.NoError(t, err)
			require.Len(t, recipes, 1)
			assert.Equal(t, "Omelete", recipes[0].Title)
		})
	}
}

func TestParseRecipesSanitizes(t *testing.T) {
	recipes, err := ParseRecipes(`{"recipes":[
		{"title":"  Sopa  ","servings":0,"time_minutes":-5,"instructions":["Ferva", " "],"rating":5},
		{"title":"","servings":2}
	]}`)
	require.NoError(t, err)
	require.Len(t, recipes, 1)
	r := recipes[0]
	assert.Equal(t, "Sopa", r.Title)
	assert.Equal(t, 1, r.Servings)
	assert.Equal(t, 1, r.TimeMinutes)
	assert.Equal(t, []string{"Ferva"}, r.Instructions)
	assert.Zero(t, r.Rating)
}

func TestParseRecipesMalformed(t *testing.T) {
	for _, text := range []string{"", "desculpe, não consigo", `{"recipes":[{"title":""}]}`, `{"title": broken`} {
		_, err := ParseRecipes(text)
		assert.ErrorIs(t, err, ErrMalformedOutput, text)
	}
}
