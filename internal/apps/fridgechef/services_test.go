package fridgechef

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/domain"
	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/tenant"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testApp = "fridgechef"

type stubProvider struct {
	name  string
	text  string
	err   error
	calls int
	last  GenerateRequest
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Generate(_ context.Context, req GenerateRequest) (string, error) {
	p.calls++
	p.last = req
	return p.text, p.err
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&AIRequest{}))
	return db
}

func newRegistry(mock bool) *tenant.Registry {
	return tenant.NewRegistry(&tenant.AppConfig{
		AppID:    testApp,
		Features: map[string]bool{tenant.FeatureAIMockFallback: mock},
	})
}

func newService(t *testing.T, mock bool, providers ...Provider) *ChefService {
	t.Helper()
	return NewChefService(newTestDB(t), newRegistry(mock), time.Second, providers...)
}

var jpeg = []byte{0xff, 0xd8, 0xff, 0xe0}

func TestAnalyzeUsesFirstWorkingProvider(t *testing.T) {
	broken := &stubProvider{name: "a", err: errors.New("boom")}
	good := &stubProvider{name: "b", text: "- Ovos\n- Tomate"}
	svc := newService(t, true, broken, good)

	resp, err := svc.AnalyzeImage(context.Background(), testApp, uuid.New(), jpeg, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Ovos", "Tomate"}, resp.Ingredients)
	assert.False(t, resp.Fallback)
	assert.Equal(t, 1, broken.calls)
	assert.Equal(t, "image/jpeg", good.last.MIMEType)
}

func TestAnalyzeFallsBackToMockWhenUnavailable(t *testing.T) {
	cases := map[string]error{
		"forbidden status": &StatusError{Provider: "chat", Code: http.StatusForbidden},
		"unauthorized":     &StatusError{Provider: "chat", Code: http.StatusUnauthorized},
		"api key message":  errors.New("Error 400, Message: API key not valid"),
		"403 message":      errors.New("googleapi: Error 403: permission denied"),
	}
	for name, cause := range cases {
		t.Run(name, func(t *testing.T) {
			svc := newService(t, true, &stubProvider{name: "p", err: cause})
			resp, err := svc.AnalyzeImage(context.Background(), testApp, uuid.New(), jpeg, "image/png")
			require.NoError(t, err)
			assert.True(t, resp.Fallback)
			assert.Equal(t, domain.MockIngredients(), resp.Ingredients)
		})
	}
}

func TestNoProviderServesMock(t *testing.T) {
	svc := newService(t, true)
	resp, err := svc.SuggestRecipes(context.Background(), testApp, uuid.New(), &RecipesRequest{Ingredients: []string{"ovos"}})
	require.NoError(t, err)
	assert.True(t, resp.Fallback)
	assert.Equal(t, domain.MockRecipes(), resp.Recipes)
}

func TestMockDisabledReportsUnavailable(t *testing.T) {
	svc := newService(t, false)
	_, err := svc.SuggestRecipes(context.Background(), testApp, uuid.New(), &RecipesRequest{Ingredients: []string{"ovos"}})
	assert.ErrorIs(t, err, ErrAIUnavailable)
}

func TestGenericFailureIsNotMasked(t *testing.T) {
	svc := newService(t, true, &stubProvider{name: "p", err: &StatusError{Provider: "p", Code: http.StatusInternalServerError}})
	_, err := svc.SuggestRecipes(context.Background(), testApp, uuid.New(), &RecipesRequest{Ingredients: []string{"ovos"}})
	assert.ErrorIs(t, err, ErrAIFailed)

	svc = newService(t, true, &stubProvider{name: "p", text: "não sei"})
	_, err = svc.SuggestRecipes(context.Background(), testApp, uuid.New(), &RecipesRequest{Ingredients: []string{"ovos"}})
	assert.ErrorIs(t, err, ErrAIFailed, "malformed JSON is a generic failure")
}

func TestSuggestRecipesPrompt(t *testing.T) {
	p := &stubProvider{name: "p", text: `{"recipes":[{"title":"Omelete","servings":2,"time_minutes":10}]}`}
	svc := newService(t, true, p)

	resp, err := svc.SuggestRecipes(context.Background(), testApp, uuid.New(), &RecipesRequest{
		Ingredients: []string{"ovos", " "},
		Pantry:      []string{"sal"},
		Profiles:    []domain.DietaryProfile{{Name: "Bia", Restrictions: []string{domain.TagVegetarian}, IsChild: true}},
	})
	require.NoError(t, err)
	assert.Len(t, resp.Recipes, 1)
	assert.True(t, p.last.JSON)
	assert.Contains(t, p.last.Prompt, "Ingredientes disponíveis: ovos.")
	assert.Contains(t, p.last.Prompt, "sal")
	assert.Contains(t, p.last.Prompt, "vegetarian")
	assert.Contains(t, p.last.Prompt, "Porções: 2.")

	_, err = svc.SuggestRecipes(context.Background(), testApp, uuid.New(), &RecipesRequest{Ingredients: []string{" "}})
	assert.ErrorIs(t, err, ErrNoIngredients)
}

func TestUsageAggregates(t *testing.T) {
	good := &stubProvider{name: "p", text: "Ovos"}
	svc := newService(t, true, good)
	user := uuid.New()

	_, err := svc.AnalyzeImage(context.Background(), testApp, user, jpeg, "")
	require.NoError(t, err)
	good.err = &StatusError{Provider: "p", Code: http.StatusForbidden}
	_, err = svc.AnalyzeImage(context.Background(), testApp, user, jpeg, "")
	require.NoError(t, err)

	stats, err := svc.Usage(context.Background(), testApp, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, KindAnalyze, stats[0].Kind)
	assert.EqualValues(t, 2, stats[0].Total)
	assert.EqualValues(t, 1, stats[0].Fallbacks)
	assert.EqualValues(t, 0, stats[0].Failed)
}

func TestChatProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":" Ovos\nLeite "}}]}`))
	}))
	defer srv.Close()

	text, err := NewChatProvider(srv.URL, "good", "m", time.Second).Generate(context.Background(), GenerateRequest{Prompt: "hi", Image: jpeg, MIMEType: "image/jpeg"})
	require.NoError(t, err)
	assert.Equal(t, "Ovos\nLeite", text)

	_, err = NewChatProvider(srv.URL, "bad", "m", time.Second).Generate(context.Background(), GenerateRequest{Prompt: "hi"})
	assert.True(t, IsUnavailable(err))

	_, err = NewChatProvider("http://127.0.0.1:1", "good", "m", time.Second).Generate(context.Background(), GenerateRequest{Prompt: "hi"})
	assert.True(t, IsUnavailable(err), "connection refused counts as unreachable")
}
