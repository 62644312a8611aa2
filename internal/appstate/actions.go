package appstate

import (
	"slices"

	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/domain"
)

// Action is a typed state transition.
type Action interface {
	apply(State) State
}

// Navigated moves to another screen.
type Navigated struct{ Route Route }

func (a Navigated) apply(s State) State {
	s.Route = a.Route
	return s
}

// RecipeSelected opens a recipe. A nil recipe closes it.
type RecipeSelected struct{ Recipe *domain.Recipe }

func (a RecipeSelected) apply(s State) State {
	if a.Recipe == nil {
		s.CurrentRecipe = nil
		return s
	}
	r := cloneRecipe(*a.Recipe)
	s.CurrentRecipe = &r
	s.Route = RouteRecipe
	return s
}

// CurrentRecipeRated sets the rating on the recipe being viewed.
type CurrentRecipeRated struct{ Rating int }

func (a CurrentRecipeRated) apply(s State) State {
	if s.CurrentRecipe != nil {
		r := *s.CurrentRecipe
		r.Rating = a.Rating
		s.CurrentRecipe = &r
	}
	return s
}

// SelectionSet replaces the active selection. Ids of members that have not
// arrived yet are kept until the next member snapshot reconciles them.
type SelectionSet struct{ IDs []string }

func (a SelectionSet) apply(s State) State {
	out := make([]string, 0, len(a.IDs))
	for _, id := range a.IDs {
		if id != "" && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	s.ActiveProfiles = out
	return s
}

// sessionStarted records a signed-in principal. Authentication always ends
// demo mode; data from a different principal is dropped.
type sessionStarted struct {
	session domain.Session
	gen     uint64
}

func (a sessionStarted) apply(s State) State {
	if s.UID() != a.session.UID || s.DemoMode {
		s = clearData(s)
		s.IsAdmin = false
		s.NeedsProfileCompletion = false
	}
	sess := a.session
	s.Session = &sess
	s.DemoMode = false
	s.AuthChecked = true
	s.gen = a.gen
	return s
}

// sessionEnded clears the session. Without demo mode the synchronized data
// goes with it. An empty route keeps the current screen.
type sessionEnded struct {
	route Route
	gen   uint64
}

func (a sessionEnded) apply(s State) State {
	s.Session = nil
	s.AuthChecked = true
	s.IsAdmin = false
	s.NeedsProfileCompletion = false
	if !s.DemoMode {
		s = clearData(s)
	}
	if a.route != "" {
		s.Route = a.route
	}
	s.gen = a.gen
	return s
}

// authChecked ends the splash screen even when the provider never answered.
type authChecked struct{}

func (authChecked) apply(s State) State {
	s.AuthChecked = true
	if s.Route == RouteSplash && s.Session == nil {
		if s.DemoMode {
			s.Route = RouteWelcome
		} else {
			s.Route = RouteLogin
		}
	}
	return s
}

// demoChanged switches the shadow store on or off. Either way the data
// starts empty.
type demoChanged struct {
	enabled bool
	route   Route
	gen     uint64
}

func (a demoChanged) apply(s State) State {
	s = clearData(s)
	s.DemoMode = a.enabled
	if a.enabled {
		s.Session = nil
		s.IsAdmin = false
		s.NeedsProfileCompletion = false
	}
	if a.route != "" {
		s.Route = a.route
	}
	s.gen = a.gen
	return s
}

// scoped applies a snapshot only while its data path is still current, so
// late deliveries from a torn-down session are dropped.
type scoped struct {
	gen    uint64
	action Action
}

func (a scoped) apply(s State) State {
	if s.gen != a.gen {
		return s
	}
	return a.action.apply(s)
}

// membersReplaced installs a family-member snapshot and prunes the active
// selection down to members that still exist. An unchanged selection is
// left as is.
type membersReplaced struct{ members []domain.FamilyMember }

func (a membersReplaced) apply(s State) State {
	s.Members = a.members
	if s.ActiveProfiles != nil {
		if pruned := intersect(s.ActiveProfiles, s.MemberIDs()); !slices.Equal(pruned, s.ActiveProfiles) {
			s.ActiveProfiles = pruned
		}
	}
	return s
}

type favoritesReplaced struct{ favorites []domain.Recipe }

func (a favoritesReplaced) apply(s State) State {
	s.Favorites = a.favorites
	return s
}

type historyReplaced struct{ history []domain.Recipe }

func (a historyReplaced) apply(s State) State {
	s.History = a.history
	return s
}

type shoppingReplaced struct{ items []domain.ShoppingItem }

func (a shoppingReplaced) apply(s State) State {
	s.Shopping = a.items
	return s
}

type pantryReplaced struct{ items []string }

func (a pantryReplaced) apply(s State) State {
	s.Pantry = a.items
	return s
}

// profileChanged installs the flags derived from the root profile document.
type profileChanged struct{ profile domain.Profile }

func (a profileChanged) apply(s State) State {
	s.IsAdmin = a.profile.IsAdmin
	s.NeedsProfileCompletion = a.profile.NeedsProfileCompletion
	return s
}

// selectionRestored adopts a cached selection unless one already exists.
type selectionRestored struct{ ids []string }

func (a selectionRestored) apply(s State) State {
	if s.ActiveProfiles == nil {
		s.ActiveProfiles = intersect(a.ids, s.MemberIDs())
	}
	return s
}

// reduce applies a and then the navigation guards.
func reduce(prev State, a Action) State {
	return guard(prev, a.apply(prev))
}

// guard enforces the routing rules that hold whichever action ran: a
// session never sits on a pre-auth screen, and a profile that starts
// needing completion is sent to the completion screen at once.
func guard(prev, next State) State {
	if next.Session == nil {
		return next
	}
	if next.NeedsProfileCompletion && !prev.NeedsProfileCompletion {
		next.Route = RouteCompleteProfile
		return next
	}
	if !next.NeedsProfileCompletion && next.Route == RouteCompleteProfile {
		next.Route = RouteHome
	}
	if next.Route.PreAuth() {
		next.Route = RouteHome
	}
	return next
}

func clearData(s State) State {
	s.Members = nil
	s.Favorites = nil
	s.History = nil
	s.Shopping = nil
	s.Pantry = nil
	s.ActiveProfiles = nil
	s.CurrentRecipe = nil
	return s
}

// intersect keeps the ids of want that appear in have, in want's order,
// without duplicates. The result is never nil.
func intersect(want, have []string) []string {
	out := make([]string, 0, len(want))
	for _, id := range want {
		if slices.Contains(have, id) && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}
