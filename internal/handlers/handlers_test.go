package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/config"
	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/database"
	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/dto"
	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/models"
	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/realtime"
	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/services"
	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/tenant"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testApp = "fridgechef"

type fixture struct {
	app    *fiber.App
	db     *gorm.DB
	userID uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, database.MigrateShared(db))

	hub := realtime.NewHub(realtime.NewLocalBroker())
	t.Cleanup(func() { hub.Close() })

	user := models.User{ID: uuid.New(), AppID: testApp, Email: "ana@example.com", Password: "x", DisplayName: "Ana"}
	require.NoError(t, db.Create(&user).Error)

	docs := NewDocumentHandler(services.NewDocumentService(db, hub))
	profiles := NewProfileHandler(services.NewProfileService(db, &config.Config{}, hub))

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user", &jwt.Token{Claims: jwt.MapClaims{"sub": user.ID.String()}})
		c.Locals("app_id", testApp)
		return c.Next()
	})
	app.Get("/me", profiles.Get)
	app.Patch("/me", profiles.Update)
	app.Get("/docs/:collection", docs.List)
	app.Post("/docs/:collection", docs.Create)
	app.Get("/docs/:collection/:id", docs.Get)
	app.Put("/docs/:collection/:id", docs.Set)
	app.Patch("/docs/:collection/:id", docs.Update)
	app.Delete("/docs/:collection/:id", docs.Delete)

	return &fixture{app: app, db: db, userID: user.ID}
}

func (f *fixture) do(t *testing.T, method, path, body string) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	resp, err := f.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

func TestDocumentLifecycle(t *testing.T) {
	f := newFixture(t)

	status, body := f.do(t, http.MethodPost, "/docs/shopping_items", `{"name":"Leite","quantity":"2","checked":false}`)
	require.Equal(t, fiber.StatusCreated, status)
	var created dto.CreateDocumentResponse
	require.NoError(t, json.Unmarshal(body, &created))
	require.NotEmpty(t, created.ID)

	status, _ = f.do(t, http.MethodPatch, "/docs/shopping_items/"+created.ID, `{"checked":true}`)
	require.Equal(t, fiber.StatusOK, status)

	status, body = f.do(t, http.MethodGet, "/docs/shopping_items", "")
	require.Equal(t, fiber.StatusOK, status)
	var snap dto.SnapshotResponse
	require.NoError(t, json.Unmarshal(body, &snap))
	assert.Equal(t, "shopping_items", snap.Collection)
	require.Len(t, snap.Docs, 1)
	assert.JSONEq(t, `{"name":"Leite","quantity":"2","checked":true}`, string(snap.Docs[0].Data))

	status, _ = f.do(t, http.MethodDelete, "/docs/shopping_items/"+created.ID, "")
	assert.Equal(t, fiber.StatusNoContent, status)
	status, _ = f.do(t, http.MethodDelete, "/docs/shopping_items/"+created.ID, "")
	assert.Equal(t, fiber.StatusNoContent, status, "delete is idempotent")

	status, _ = f.do(t, http.MethodGet, "/docs/shopping_items/"+created.ID, "")
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestDocumentSetWithMerge(t *testing.T) {
	f := newFixture(t)

	status, _ := f.do(t, http.MethodPut, "/docs/family_members/primary", `{"name":"Ana","restrictions":["vegan"]}`)
	require.Equal(t, fiber.StatusOK, status)

	status, body := f.do(t, http.MethodPut, "/docs/family_members/primary?merge=true", `{"avatar":"🍋"}`)
	require.Equal(t, fiber.StatusOK, status)
	var doc dto.DocumentResponse
	require.NoError(t, json.Unmarshal(body, &doc))
	assert.Equal(t, "primary", doc.ID)
	assert.JSONEq(t, `{"name":"Ana","restrictions":["vegan"],"avatar":"🍋"}`, string(doc.Data))
}

func TestDocumentErrors(t *testing.T) {
	f := newFixture(t)

	status, body := f.do(t, http.MethodGet, "/docs/secrets", "")
	assert.Equal(t, fiber.StatusNotFound, status)
	var errResp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(body, &errResp))
	assert.Equal(t, dto.CodeNotFound, errResp.Code)

	status, _ = f.do(t, http.MethodPost, "/docs/favorites", `["not","an","object"]`)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = f.do(t, http.MethodPatch, "/docs/favorites/missing", `{"rating":4}`)
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestProfileHandler(t *testing.T) {
	f := newFixture(t)

	status, body := f.do(t, http.MethodGet, "/me", "")
	require.Equal(t, fiber.StatusOK, status)
	var profile dto.ProfileResponse
	require.NoError(t, json.Unmarshal(body, &profile))
	assert.True(t, profile.NeedsProfileCompletion)

	status, body = f.do(t, http.MethodPatch, "/me", `{"tax_id":"529.982.247-25"}`)
	require.Equal(t, fiber.StatusOK, status)
	require.NoError(t, json.Unmarshal(body, &profile))
	assert.Equal(t, "52998224725", profile.TaxID)
	assert.False(t, profile.NeedsProfileCompletion)

	status, _ = f.do(t, http.MethodPatch, "/me", `{"tax_id":"123"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestHealthCheck(t *testing.T) {
	f := newFixture(t)
	registry := tenant.NewRegistry(&tenant.AppConfig{AppID: testApp})
	f.app.Get("/health", NewHealthHandler(f.db, registry).Check)

	status, body := f.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, status)
	var resp dto.HealthResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Equal(t, "ok", resp.DB)
	assert.Equal(t, 1, resp.AppCount)
}
