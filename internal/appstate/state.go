// Package appstate is the client's synchronization layer: one state
// container fed by live collection subscriptions, a session manager that
// swaps the data path between the remote store and the demo shadow store,
// and the mutation commands the UI calls.
package appstate

import (
	"slices"

	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/domain"
)

// Route is the screen the UI should show.
type Route string

const (
	RouteSplash          Route = "splash"
	RouteWelcome         Route = "welcome"
	RouteLogin           Route = "login"
	RouteRegister        Route = "register"
	RouteForgotPassword  Route = "forgot-password"
	RouteHome            Route = "home"
	RouteCompleteProfile Route = "complete-profile"
	RouteRecipe          Route = "recipe"
	RouteCooking         Route = "cooking"
	RouteFavorites       Route = "favorites"
	RouteHistory         Route = "history"
	RouteShopping        Route = "shopping"
	RoutePantry          Route = "pantry"
	RouteProfiles        Route = "profiles"
)

// PreAuth reports whether r is only meaningful without a session.
func (r Route) PreAuth() bool {
	switch r {
	case RouteSplash, RouteWelcome, RouteLogin, RouteRegister, RouteForgotPassword:
		return true
	}
	return false
}

// State is everything the screens render from. Values handed out by the
// Store are copies.
type State struct {
	Session     *domain.Session
	DemoMode    bool
	AuthChecked bool
	Route       Route

	IsAdmin                bool
	NeedsProfileCompletion bool

	Members   []domain.FamilyMember
	Favorites []domain.Recipe
	History   []domain.Recipe
	Shopping  []domain.ShoppingItem
	Pantry    []string

	// ActiveProfiles is nil until a selection has been made or restored.
	ActiveProfiles []string

	CurrentRecipe *domain.Recipe

	// gen identifies the data path that may write snapshots.
	gen uint64
}

// SignedIn reports whether a real session is active.
func (s State) SignedIn() bool { return s.Session != nil }

// UID is the principal id, empty without a session.
func (s State) UID() string {
	if s.Session == nil {
		return ""
	}
	return s.Session.UID
}

// MemberIDs lists the ids of the known family members.
func (s State) MemberIDs() []string {
	ids := make([]string, 0, len(s.Members))
	for _, m := range s.Members {
		ids = append(ids, m.ID)
	}
	return ids
}

// ActiveMembers returns the members currently cooked for, in member order.
func (s State) ActiveMembers() []domain.FamilyMember {
	var out []domain.FamilyMember
	for _, m := range s.Members {
		if slices.Contains(s.ActiveProfiles, m.ID) {
			out = append(out, m)
		}
	}
	return out
}

// Clone returns a deep copy.
func (s State) Clone() State {
	out := s
	if s.Session != nil {
		sess := *s.Session
		out.Session = &sess
	}
	if s.Members != nil {
		out.Members = make([]domain.FamilyMember, len(s.Members))
		for i, m := range s.Members {
			m.Restrictions = slices.Clone(m.Restrictions)
			out.Members[i] = m
		}
	}
	out.Favorites = cloneRecipes(s.Favorites)
	out.History = cloneRecipes(s.History)
	out.Shopping = slices.Clone(s.Shopping)
	out.Pantry = slices.Clone(s.Pantry)
	out.ActiveProfiles = slices.Clone(s.ActiveProfiles)
	if s.CurrentRecipe != nil {
		r := cloneRecipe(*s.CurrentRecipe)
		out.CurrentRecipe = &r
	}
	return out
}

func cloneRecipes(in []domain.Recipe) []domain.Recipe {
	if in == nil {
		return nil
	}
	out := make([]domain.Recipe, len(in))
	for i, r := range in {
		out[i] = cloneRecipe(r)
	}
	return out
}

func cloneRecipe(r domain.Recipe) domain.Recipe {
	r.UsedIngredients = slices.Clone(r.UsedIngredients)
	r.MissingIngredients = slices.Clone(r.MissingIngredients)
	r.Instructions = slices.Clone(r.Instructions)
	r.Tags = slices.Clone(r.Tags)
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		r.CompletedAt = &t
	}
	return r
}
