package appstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/domain"
)

// SchemaVersion is written into every document this client stores.
// Documents without a version are read as version 1.
const SchemaVersion = 1

var errNewerSchema = errors.New("document written by a newer client")

var _ DataGateway = (*RemoteGateway)(nil)

// RemoteGateway reads and writes through a DocumentStore. Writes are not
// applied locally; the subscription reflects them back.
type RemoteGateway struct {
	store DocumentStore
	log   *slog.Logger
}

func NewRemoteGateway(store DocumentStore, log *slog.Logger) *RemoteGateway {
	if log == nil {
		log = slog.Default()
	}
	return &RemoteGateway{store: store, log: log}
}

type memberRecord struct {
	Schema int `json:"schema"`
	domain.FamilyMember
}

type recipeRecord struct {
	Schema int `json:"schema"`
	domain.Recipe
}

type shoppingRecord struct {
	Schema int `json:"schema"`
	domain.ShoppingItem
}

type pantryRecord struct {
	Schema int      `json:"schema"`
	Items  []string `json:"items"`
}

func (g *RemoteGateway) Subscribe(ctx context.Context, sink Sink) error {
	type listener struct {
		collection string
		snapshot   func([]Document)
		empty      func()
	}
	listeners := []listener{
		{CollectionMembers, func(docs []Document) { sink.Members(decodeMembers(g.log, docs)) }, func() { sink.Members(nil) }},
		{CollectionFavorites, func(docs []Document) { sink.Favorites(decodeFavorites(g.log, docs)) }, func() { sink.Favorites(nil) }},
		{CollectionHistory, func(docs []Document) { sink.History(decodeHistory(g.log, docs)) }, func() { sink.History(nil) }},
		{CollectionShopping, func(docs []Document) { sink.Shopping(decodeShopping(g.log, docs)) }, func() { sink.Shopping(nil) }},
		{CollectionSettings, func(docs []Document) { sink.Pantry(decodePantry(g.log, docs)) }, func() { sink.Pantry(nil) }},
	}

	for _, l := range listeners {
		l := l
		onError := func(err error) {
			g.log.Warn("subscription failed, showing empty collection", "collection", l.collection, "error", err)
			l.empty()
		}
		if err := g.store.Listen(ctx, l.collection, l.snapshot, onError); err != nil {
			return fmt.Errorf("listen %s: %w", l.collection, err)
		}
	}

	onProfileError := func(err error) {
		g.log.Warn("profile subscription failed, treating account as non-admin", "error", err)
		sink.Profile(domain.Profile{})
	}
	if err := g.store.ListenProfile(ctx, sink.Profile, onProfileError); err != nil {
		return fmt.Errorf("listen profile: %w", err)
	}
	return nil
}

// SaveMember merges into the primary member or any member the store already
// knows, and creates everything else.
func (g *RemoteGateway) SaveMember(ctx context.Context, m domain.FamilyMember) error {
	rec := memberRecord{Schema: SchemaVersion, FamilyMember: m}
	if m.ID == domain.PrimaryMemberID || !domain.IsTemporaryID(m.ID) {
		return g.store.Set(ctx, CollectionMembers, m.ID, rec, true)
	}
	_, err := g.store.Create(ctx, CollectionMembers, rec)
	return err
}

func (g *RemoteGateway) AddFavorite(ctx context.Context, r domain.Recipe) error {
	if r.Image == "" {
		r.Image = domain.FallbackImageURL(r.Title)
	}
	r.Key = r.IdentityKey()
	r.FavoriteID = ""
	r.CompletedAt = nil
	_, err := g.store.Create(ctx, CollectionFavorites, recipeRecord{Schema: SchemaVersion, Recipe: r})
	return err
}

func (g *RemoteGateway) RemoveFavorite(ctx context.Context, favoriteID string) error {
	return g.store.Delete(ctx, CollectionFavorites, favoriteID)
}

func (g *RemoteGateway) RateFavorite(ctx context.Context, favoriteID string, rating int) error {
	return g.store.Update(ctx, CollectionFavorites, favoriteID, map[string]any{"rating": rating})
}

func (g *RemoteGateway) AppendHistory(ctx context.Context, r domain.Recipe) error {
	r.FavoriteID = ""
	_, err := g.store.Create(ctx, CollectionHistory, recipeRecord{Schema: SchemaVersion, Recipe: r})
	return err
}

func (g *RemoteGateway) AddShoppingItem(ctx context.Context, item domain.ShoppingItem) error {
	_, err := g.store.Create(ctx, CollectionShopping, shoppingRecord{Schema: SchemaVersion, ShoppingItem: item})
	return err
}

func (g *RemoteGateway) UpdateShoppingItem(ctx context.Context, item domain.ShoppingItem) error {
	return g.store.Update(ctx, CollectionShopping, item.ID, map[string]any{
		"schema":   SchemaVersion,
		"name":     item.Name,
		"quantity": item.Quantity,
		"checked":  item.Checked,
	})
}

func (g *RemoteGateway) RemoveShoppingItem(ctx context.Context, id string) error {
	return g.store.Delete(ctx, CollectionShopping, id)
}

// SetPantry always rewrites the whole set.
func (g *RemoteGateway) SetPantry(ctx context.Context, items []string) error {
	if items == nil {
		items = []string{}
	}
	return g.store.Set(ctx, CollectionSettings, PantryDocID, pantryRecord{Schema: SchemaVersion, Items: items}, true)
}

// decodeDoc unmarshals one document into T after checking its version.
func decodeDoc[T any](doc Document, version func(T) int) (T, error) {
	var v T
	if err := json.Unmarshal(doc.Data, &v); err != nil {
		return v, err
	}
	if version(v) > SchemaVersion {
		return v, errNewerSchema
	}
	return v, nil
}

func skip(log *slog.Logger, collection string, doc Document, err error) {
	log.Warn("skipping invalid document", "collection", collection, "id", doc.ID, "error", err)
}

func decodeMembers(log *slog.Logger, docs []Document) []domain.FamilyMember {
	out := make([]domain.FamilyMember, 0, len(docs))
	for _, doc := range docs {
		rec, err := decodeDoc(doc, func(r memberRecord) int { return r.Schema })
		if err == nil && strings.TrimSpace(rec.Name) == "" {
			err = errors.New("member without name")
		}
		if err != nil {
			skip(log, CollectionMembers, doc, err)
			continue
		}
		m := rec.FamilyMember
		m.ID = doc.ID
		out = append(out, m)
	}
	return out
}

func decodeRecipes(log *slog.Logger, collection string, docs []Document, keepID bool) []domain.Recipe {
	out := make([]domain.Recipe, 0, len(docs))
	for _, doc := range docs {
		rec, err := decodeDoc(doc, func(r recipeRecord) int { return r.Schema })
		if err == nil && strings.TrimSpace(rec.Title) == "" {
			err = errors.New("recipe without title")
		}
		if err != nil {
			skip(log, collection, doc, err)
			continue
		}
		r := rec.Recipe
		if keepID {
			r.FavoriteID = doc.ID
		}
		out = append(out, r)
	}
	return out
}

func decodeFavorites(log *slog.Logger, docs []Document) []domain.Recipe {
	return decodeRecipes(log, CollectionFavorites, docs, true)
}

func decodeHistory(log *slog.Logger, docs []Document) []domain.Recipe {
	return decodeRecipes(log, CollectionHistory, docs, false)
}

func decodeShopping(log *slog.Logger, docs []Document) []domain.ShoppingItem {
	out := make([]domain.ShoppingItem, 0, len(docs))
	for _, doc := range docs {
		rec, err := decodeDoc(doc, func(r shoppingRecord) int { return r.Schema })
		if err == nil && strings.TrimSpace(rec.Name) == "" {
			err = errors.New("item without name")
		}
		if err != nil {
			skip(log, CollectionShopping, doc, err)
			continue
		}
		item := rec.ShoppingItem
		item.ID = doc.ID
		out = append(out, item)
	}
	return out
}

// decodePantry reads the pantry document out of the settings collection. A
// missing or unreadable document is the empty set.
func decodePantry(log *slog.Logger, docs []Document) []string {
	for _, doc := range docs {
		if doc.ID != PantryDocID {
			continue
		}
		rec, err := decodeDoc(doc, func(r pantryRecord) int { return r.Schema })
		if err != nil {
			skip(log, CollectionSettings, doc, err)
			return []string{}
		}
		items := make([]string, 0, len(rec.Items))
		for _, it := range rec.Items {
			if it = strings.TrimSpace(it); it != "" {
				items = append(items, it)
			}
		}
		return items
	}
	return []string{}
}
