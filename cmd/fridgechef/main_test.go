package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/domain"
	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/kv"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestLoadConfigPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := "server_url: http://from-file:8080/\napp_id: from-file\nlog_level: error\nauth_timeout: 5s\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("FRIDGECHEF_APP_ID", "from-env")
	t.Setenv("FRIDGECHEF_LOG_LEVEL", "info")

	cmd := &cobra.Command{Use: "test"}
	addConfigFlags(cmd)
	require.NoError(t, cmd.ParseFlags([]string{"--config", path, "--log-level", "debug"}))

	cfg, err := loadConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, "http://from-file:8080", cfg.ServerURL)
	assert.Equal(t, "from-env", cfg.AppID)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 5*time.Second, cfg.AuthTimeout)
	assert.Equal(t, "state.json", filepath.Base(cfg.StateFile))
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	addConfigFlags(cmd)
	require.NoError(t, cmd.ParseFlags([]string{"--config", filepath.Join(t.TempDir(), "nope.yaml")}))

	_, err := loadConfig(cmd)
	assert.Error(t, err)
}

func demoShell(t *testing.T) (*shell, *bytes.Buffer) {
	t.Helper()
	ctx := context.Background()
	c := newClient(ctx, Config{
		ServerURL:   "http://127.0.0.1:1",
		AppID:       "fridgechef",
		AuthTimeout: time.Minute,
	}, kv.NewMemory(), quiet)
	t.Cleanup(c.Close)
	var out bytes.Buffer
	return newShell(ctx, c, &out), &out
}

func TestShellDemoSession(t *testing.T) {
	sh, out := demoShell(t)
	script := strings.Join([]string{
		"demo",
		"buy Leite 2",
		"buy Arroz",
		"shopping",
		"check 1",
		"suggest ovos,leite",
		"open 1",
		"favorite",
		"favorites",
		"pantry add sal",
		"pantry",
		"bogus",
		"quit",
		"status",
	}, "\n")

	require.NoError(t, sh.run(strings.NewReader(script)))

	text := out.String()
	assert.Contains(t, text, "[screen: home]")
	assert.Contains(t, text, "[ ] 2x Leite")
	assert.Contains(t, text, "[ ] 1x Arroz")
	assert.Contains(t, text, domain.MockRecipes()[0].Title)
	assert.Contains(t, text, `unknown command "bogus"`)
	assert.Contains(t, text, "sal")

	st := sh.c.app.Snapshot()
	assert.True(t, st.DemoMode)
	require.Len(t, st.Shopping, 2)
	assert.True(t, st.Shopping[0].Checked)
	assert.Len(t, st.Favorites, 1)
	assert.Equal(t, []string{"sal"}, st.Pantry)
	assert.NotContains(t, text, "Members: 0  Favorites: 1", "nothing runs after quit")
}

func TestShellAddMissingAndRate(t *testing.T) {
	sh, out := demoShell(t)
	sh.c.app.EnterDemo(context.Background())
	recipe := domain.Recipe{
		Title:              "Panqueca",
		Servings:           2,
		MissingIngredients: []string{"2 ovos", "leite"},
	}
	sh.listed = []domain.Recipe{recipe}

	for _, line := range []string{"open 1", "add-missing", "rate 4", "rate 9", "cooked"} {
		require.NoError(t, sh.exec(line))
	}

	assert.Contains(t, out.String(), "2 item(s) added")
	assert.Contains(t, out.String(), "rating must be between 1 and 5")
	st := sh.c.app.Snapshot()
	assert.Len(t, st.Shopping, 2)
	require.NotNil(t, st.CurrentRecipe)
	assert.Equal(t, 4, st.CurrentRecipe.Rating)
	require.Len(t, st.History, 1)
	assert.NotNil(t, st.History[0].CompletedAt)
}

func TestShellRecoversFromPanics(t *testing.T) {
	sh, out := demoShell(t)
	sh.cmds["boom"] = shellCommand{run: func(*shell, []string) error { panic("boom") }}

	assert.NoError(t, sh.exec("boom"))
	assert.Contains(t, out.String(), crashMessage)
	assert.NoError(t, sh.exec("status"))
}

func TestShellNeedsOpenRecipe(t *testing.T) {
	sh, out := demoShell(t)
	require.NoError(t, sh.exec("favorite"))
	assert.Contains(t, out.String(), "no recipe open")
}
