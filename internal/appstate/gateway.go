package appstate

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/domain"
)

// Collection names of a principal's document namespace.
const (
	CollectionMembers   = "family_members"
	CollectionFavorites = "favorites"
	CollectionHistory   = "history"
	CollectionShopping  = "shopping_items"
	CollectionSettings  = "settings"

	// PantryDocID is the settings document that holds the pantry set.
	PantryDocID = "pantry"
)

// ErrPermissionDenied is reported by a DocumentStore subscription the
// server refused.
var ErrPermissionDenied = errors.New("permission denied")

// Sink receives full snapshots. Each call replaces the previous value.
type Sink interface {
	Members([]domain.FamilyMember)
	Favorites([]domain.Recipe)
	History([]domain.Recipe)
	Shopping([]domain.ShoppingItem)
	Pantry([]string)
	Profile(domain.Profile)
}

// DataGateway is the data path of one session: live subscriptions plus the
// writes the UI can issue. The remote and demo implementations are picked
// once when the session is established.
type DataGateway interface {
	// Subscribe starts delivering snapshots to sink until ctx ends.
	Subscribe(ctx context.Context, sink Sink) error

	SaveMember(ctx context.Context, m domain.FamilyMember) error
	AddFavorite(ctx context.Context, r domain.Recipe) error
	RemoveFavorite(ctx context.Context, favoriteID string) error
	RateFavorite(ctx context.Context, favoriteID string, rating int) error
	AppendHistory(ctx context.Context, r domain.Recipe) error
	AddShoppingItem(ctx context.Context, item domain.ShoppingItem) error
	UpdateShoppingItem(ctx context.Context, item domain.ShoppingItem) error
	RemoveShoppingItem(ctx context.Context, id string) error
	SetPantry(ctx context.Context, items []string) error
}

// Document is one stored document of a collection.
type Document struct {
	ID   string
	Data json.RawMessage
}

// DocumentStore is the remote per-principal document store.
//
// Listen and ListenProfile return once the subscription is set up and then
// call onSnapshot with the complete contents on every change until ctx
// ends. A subscription that fails for good calls onError once and stops.
type DocumentStore interface {
	Listen(ctx context.Context, collection string, onSnapshot func([]Document), onError func(error)) error
	ListenProfile(ctx context.Context, onProfile func(domain.Profile), onError func(error)) error

	Create(ctx context.Context, collection string, data any) (string, error)
	Set(ctx context.Context, collection, id string, data any, merge bool) error
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	Delete(ctx context.Context, collection, id string) error
}

// AuthProvider is the authentication service.
type AuthProvider interface {
	// Watch calls fn with the current principal (nil when signed out) once
	// the provider knows it, and again on every change until ctx ends.
	Watch(ctx context.Context, fn func(*domain.Session))

	SignIn(ctx context.Context, email, password string) error
	Register(ctx context.Context, email, password, displayName string) error
	SignOut(ctx context.Context) error
	SendPasswordReset(ctx context.Context, email string) error
}

// AuthError is an authentication failure carrying the provider's error
// code. Its message is the one shown to the user.
type AuthError struct {
	Code string
	Err  error
}

func (e *AuthError) Error() string { return domain.AuthErrorMessage(e.Code) }

func (e *AuthError) Unwrap() error { return e.Err }

// AsAuthError wraps any provider failure so the user sees a mapped message.
func AsAuthError(err error) *AuthError {
	if err == nil {
		return nil
	}
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr
	}
	return &AuthError{Err: err}
}
