package domain

// MockIngredients is what image analysis answers when the AI service is
// unreachable or unauthorized.
func MockIngredients() []string {
	return []string{"Ovos", "Tomate", "Queijo", "Cebola", "Leite", "Espinafre"}
}

// MockRecipes is the recipe-generation counterpart of MockIngredients.
func MockRecipes() []Recipe {
	return []Recipe{
		{
			Title:              "Omelete de Espinafre e Queijo",
			TimeMinutes:        15,
			Difficulty:         "Fácil",
			Servings:           2,
			UsedIngredients:    []string{"4 ovos", "1 xícara de espinafre", "50 g de queijo"},
			MissingIngredients: []string{"1 pitada de noz-moscada"},
			Instructions: []string{
				"Bata os ovos com sal e pimenta.",
				"Refogue o espinafre por 2 minutos.",
				"Junte os ovos e o queijo e cozinhe em fogo baixo até firmar.",
			},
			Tags: []string{TagVegetarian, TagGlutenFree},
		},
		{
			Title:              "Shakshuka Simples",
			TimeMinutes:        25,
			Difficulty:         "Média",
			Servings:           2,
			UsedIngredients:    []string{"3 tomates", "1 cebola", "4 ovos"},
			MissingIngredients: []string{"1 colher de chá de páprica", "1 dente de alho"},
			Instructions: []string{
				"Refogue a cebola e o alho no azeite.",
				"Adicione os tomates picados e a páprica e cozinhe por 10 minutos.",
				"Abra espaço no molho, quebre os ovos e tampe até as claras firmarem.",
			},
			Tags: []string{TagVegetarian, TagGlutenFree, TagLactoseFree},
		},
		{
			Title:              "Creme de Tomate com Queijo",
			TimeMinutes:        30,
			Difficulty:         "Fácil",
			Servings:           4,
			UsedIngredients:    []string{"5 tomates", "1 cebola", "1 xícara de leite", "100 g de queijo"},
			MissingIngredients: []string{"2 folhas de manjericão"},
			Instructions: []string{
				"Cozinhe tomates e cebola em 2 xícaras de água por 15 minutos.",
				"Bata no liquidificador com o leite.",
				"Volte ao fogo, acrescente o queijo e mexa até derreter.",
			},
			Tags: []string{TagVegetarian},
		},
	}
}
