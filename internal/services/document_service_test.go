package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/realtime"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDocumentService(t *testing.T) (*DocumentService, *realtime.Hub) {
	t.Helper()
	hub := realtime.NewHub(realtime.NewLocalBroker())
	t.Cleanup(func() { hub.Close() })
	return NewDocumentService(newTestDB(t), hub), hub
}

func waitSignal(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("expected change notification")
	}
}

func decode(t *testing.T, raw []byte) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestDocumentCreateListDelete(t *testing.T) {
	svc, hub := newDocumentService(t)
	ctx := context.Background()
	owner := uuid.New()

	changes, cancel := hub.Subscribe(realtime.Key{AppID: testApp, OwnerID: owner.String(), Collection: CollectionFavorites})
	defer cancel()

	first, err := svc.Create(ctx, testApp, owner, CollectionFavorites, json.RawMessage(`{"title":"Omelete"}`))
	require.NoError(t, err)
	waitSignal(t, changes)
	_, err = svc.Create(ctx, testApp, owner, CollectionFavorites, json.RawMessage(`{"title":"Panqueca"}`))
	require.NoError(t, err)
	waitSignal(t, changes)

	docs, err := svc.List(ctx, testApp, owner, CollectionFavorites)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	titles := []interface{}{decode(t, docs[0].Data)["title"], decode(t, docs[1].Data)["title"]}
	assert.ElementsMatch(t, []interface{}{"Omelete", "Panqueca"}, titles)

	// Other owners see nothing.
	other, err := svc.List(ctx, testApp, uuid.New(), CollectionFavorites)
	require.NoError(t, err)
	assert.Empty(t, other)

	require.NoError(t, svc.Delete(ctx, testApp, owner, CollectionFavorites, first.DocID))
	waitSignal(t, changes)
	require.NoError(t, svc.Delete(ctx, testApp, owner, CollectionFavorites, first.DocID))

	docs, err = svc.List(ctx, testApp, owner, CollectionFavorites)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestDocumentSetMergeAndReplace(t *testing.T) {
	svc, _ := newDocumentService(t)
	ctx := context.Background()
	owner := uuid.New()

	_, err := svc.Set(ctx, testApp, owner, CollectionFamilyMembers, "primary",
		json.RawMessage(`{"name":"Ana","restrictions":["vegan"]}`), true)
	require.NoError(t, err)

	_, err = svc.Set(ctx, testApp, owner, CollectionFamilyMembers, "primary",
		json.RawMessage(`{"dislikes":["coentro"]}`), true)
	require.NoError(t, err)

	doc, err := svc.Get(ctx, testApp, owner, CollectionFamilyMembers, "primary")
	require.NoError(t, err)
	data := decode(t, doc.Data)
	assert.Equal(t, "Ana", data["name"])
	assert.Equal(t, []interface{}{"coentro"}, data["dislikes"])

	_, err = svc.Set(ctx, testApp, owner, CollectionFamilyMembers, "primary",
		json.RawMessage(`{"name":"Bia"}`), false)
	require.NoError(t, err)
	doc, err = svc.Get(ctx, testApp, owner, CollectionFamilyMembers, "primary")
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"name": "Bia"}, decode(t, doc.Data))
}

func TestDocumentUpdate(t *testing.T) {
	svc, _ := newDocumentService(t)
	ctx := context.Background()
	owner := uuid.New()

	created, err := svc.Create(ctx, testApp, owner, CollectionShoppingItems, json.RawMessage(`{"name":"Ovos","checked":false}`))
	require.NoError(t, err)

	updated, err := svc.Update(ctx, testApp, owner, CollectionShoppingItems, created.DocID, json.RawMessage(`{"checked":true}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"name": "Ovos", "checked": true}, decode(t, updated.Data))

	_, err = svc.Update(ctx, testApp, owner, CollectionShoppingItems, "missing", json.RawMessage(`{"checked":true}`))
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestDocumentValidation(t *testing.T) {
	svc, _ := newDocumentService(t)
	ctx := context.Background()
	owner := uuid.New()

	_, err := svc.List(ctx, testApp, owner, "recipes")
	assert.ErrorIs(t, err, ErrUnknownCollection)

	_, err = svc.Create(ctx, testApp, owner, CollectionHistory, json.RawMessage(`[1,2]`))
	assert.ErrorIs(t, err, ErrInvalidDocument)

	_, err = svc.Create(ctx, testApp, owner, CollectionHistory, json.RawMessage(`null`))
	assert.ErrorIs(t, err, ErrInvalidDocument)

	_, err = svc.Set(ctx, testApp, owner, CollectionHistory, "a/b", json.RawMessage(`{}`), false)
	assert.ErrorIs(t, err, ErrInvalidDocumentID)

	_, err = svc.Get(ctx, testApp, owner, CollectionHistory, "nope")
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}
