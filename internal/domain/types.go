// Package domain holds the recipe app's entities and the pure text helpers
// shared by the server and the client.
package domain

import "time"

// PrimaryMemberID is the family member that stands for the account owner.
// It exists by convention and is always written with merge semantics.
const PrimaryMemberID = "primary"

// Dietary restriction tags.
const (
	TagVegetarian  = "vegetarian"
	TagVegan       = "vegan"
	TagGlutenFree  = "gluten_free"
	TagLactoseFree = "lactose_free"
	TagNutFree     = "nut_free"
	TagLowSugar    = "low_sugar"
)

// Session identifies the signed-in principal.
type Session struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

type FamilyMember struct {
	ID           string   `json:"-"`
	Name         string   `json:"name"`
	Avatar       string   `json:"avatar"`
	Dislikes     string   `json:"dislikes"`
	Restrictions []string `json:"restrictions"`
	IsChild      bool     `json:"is_child"`
}

type Recipe struct {
	Title              string   `json:"title"`
	TimeMinutes        int      `json:"time_minutes"`
	Difficulty         string   `json:"difficulty"`
	Servings           int      `json:"servings"`
	UsedIngredients    []string `json:"used_ingredients"`
	MissingIngredients []string `json:"missing_ingredients"`
	Instructions       []string `json:"instructions"`
	Tags               []string `json:"tags"`
	Image              string   `json:"image,omitempty"`
	Rating             int      `json:"rating,omitempty"`

	// Key is the content identity recorded when the recipe was favorited.
	// Documents written before it existed leave it empty.
	Key string `json:"identity_key,omitempty"`

	// FavoriteID is the store-assigned id of the favorite document. It is
	// never written back to the store.
	FavoriteID string `json:"-"`

	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

type ShoppingItem struct {
	ID       string `json:"-"`
	Name     string `json:"name"`
	Quantity string `json:"quantity"`
	Checked  bool   `json:"checked"`
}

// Profile is what the root profile document says about the principal.
type Profile struct {
	Email                  string `json:"email"`
	DisplayName            string `json:"display_name"`
	TaxID                  string `json:"tax_id"`
	IsAdmin                bool   `json:"is_admin"`
	NeedsProfileCompletion bool   `json:"needs_profile_completion"`
}

// DietaryProfile is the per-member input to recipe generation.
type DietaryProfile struct {
	Name         string   `json:"name"`
	Restrictions []string `json:"restrictions"`
	Dislikes     string   `json:"dislikes"`
	IsChild      bool     `json:"is_child"`
}

// DietaryProfileOf projects a family member onto the recipe request shape.
func DietaryProfileOf(m FamilyMember) DietaryProfile {
	return DietaryProfile{
		Name:         m.Name,
		Restrictions: m.Restrictions,
		Dislikes:     m.Dislikes,
		IsChild:      m.IsChild,
	}
}
