package fridgechef

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/domain"
	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/dto"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(svc *ChefService) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user", &jwt.Token{Claims: jwt.MapClaims{"sub": uuid.NewString()}})
		c.Locals("app_id", testApp)
		return c.Next()
	})
	h := NewChefHandler(svc)
	app.Post("/fridgechef/analyze", h.Analyze)
	app.Post("/fridgechef/recipes", h.Recipes)
	return app
}

func post(t *testing.T, app *fiber.App, path, body string) (*http.Response, dto.ErrorResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)

	var errBody dto.ErrorResponse
	if resp.StatusCode >= 400 {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&errBody))
	}
	return resp, errBody
}

func TestAnalyzeHandler(t *testing.T) {
	app := newTestApp(newService(t, true, &stubProvider{name: "p", text: "Ovos"}))

	body := `{"image_data":"data:image/png;base64,` + base64.StdEncoding.EncodeToString(jpeg) + `","mime_type":"image/png"}`
	resp, _ := post(t, app, "/fridgechef/analyze", body)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var out AnalyzeResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, []string{"Ovos"}, out.Ingredients)

	resp, errBody := post(t, app, "/fridgechef/analyze", `{"image_data":"%%%"}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, dto.CodeBadRequest, errBody.Code)
}

func TestRecipesHandlerGenericFailure(t *testing.T) {
	app := newTestApp(newService(t, true, &stubProvider{name: "p", text: "sem json"}))

	resp, errBody := post(t, app, "/fridgechef/recipes", `{"ingredients":["ovos"]}`)
	assert.Equal(t, fiber.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, dto.CodeAIFailed, errBody.Code)
	assert.Equal(t, domain.AIFailedMessage, errBody.Message)
}

func TestRecipesHandlerUnavailable(t *testing.T) {
	app := newTestApp(newService(t, false))

	resp, errBody := post(t, app, "/fridgechef/recipes", `{"ingredients":["ovos"]}`)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, CodeUnavailable, errBody.Code)
}
