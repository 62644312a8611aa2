package domain

import (
	"fmt"
	"net/url"
	"strings"
)

const shareBaseURL = "https://wa.me/?text="

// RecipeShareLink builds a messaging deep link with the recipe as text.
func RecipeShareLink(r Recipe) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s*\n", r.Title)
	if r.TimeMinutes > 0 {
		fmt.Fprintf(&b, "⏱ %d min", r.TimeMinutes)
		if r.Servings > 0 {
			fmt.Fprintf(&b, " · %d porções", r.Servings)
		}
		b.WriteString("\n")
	}
	b.WriteString("\nIngredientes:\n")
	for _, ing := range r.UsedIngredients {
		fmt.Fprintf(&b, "- %s\n", ing)
	}
	for _, ing := range r.MissingIngredients {
		fmt.Fprintf(&b, "- %s\n", ing)
	}
	if len(r.Instructions) > 0 {
		b.WriteString("\nModo de preparo:\n")
		for i, step := range r.Instructions {
			fmt.Fprintf(&b, "%d. %s\n", i+1, step)
		}
	}
	return shareBaseURL + encodeText(b.String())
}

// ShoppingShareLink shares the unchecked part of a shopping list.
func ShoppingShareLink(items []ShoppingItem) string {
	var b strings.Builder
	b.WriteString("*Lista de compras*\n")
	for _, it := range items {
		if it.Checked {
			continue
		}
		fmt.Fprintf(&b, "- %s %s\n", FormatQuantity(it.Quantity), it.Name)
	}
	return shareBaseURL + encodeText(b.String())
}

// encodeText escapes like a URI component: spaces become %20, not '+'.
func encodeText(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
