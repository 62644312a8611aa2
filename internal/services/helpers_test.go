package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/config"
	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/database"
	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/tenant"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testApp = "fridgechef"

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.MigrateShared(db))
	return db
}

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:           "test-secret",
		JWTAccessExpiry:     15 * time.Minute,
		JWTRefreshExpiry:    time.Hour,
		PasswordResetExpiry: time.Hour,
		PasswordResetURL:    "https://example.test/reset",
		AdminEmails:         "chef@example.com",
	}
}

func testRegistry() *tenant.Registry {
	return tenant.NewRegistry(&tenant.AppConfig{
		AppID:          testApp,
		AppName:        "FridgeChef",
		BundleID:       "app.fridgechef",
		AppleClientIDs: []string{"app.fridgechef.web"},
		Features:       map[string]bool{tenant.FeatureFederatedLogin: true},
	})
}

type sentMail struct {
	to, subject, body string
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *recordingMailer) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

func (m *recordingMailer) last() sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return sentMail{}
	}
	return m.sent[len(m.sent)-1]
}

type stubVerifier struct {
	claims *FederatedClaims
	err    error
	gotAud []string
}

func (v *stubVerifier) Verify(_ context.Context, _ string, audiences []string) (*FederatedClaims, error) {
	v.gotAud = audiences
	return v.claims, v.err
}
