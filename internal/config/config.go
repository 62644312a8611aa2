package config

import (
	"os"
	"time"
)

type Config struct {
	// Database
	DBDriver     string
	DBHost       string
	DBPort       string
	DBUser       string
	DBPassword   string
	DBName       string
	DBSSLMode    string
	DBSQLitePath string

	// JWT
	JWTSecret        string
	JWTAccessExpiry  time.Duration
	JWTRefreshExpiry time.Duration

	// Password reset
	PasswordResetExpiry time.Duration
	PasswordResetURL    string

	// Federated sign-in
	AppleJWKSURL string

	// AI providers
	GeminiAPIKey string
	GeminiModel  string

	FallbackAPIKey string
	FallbackAPIURL string
	FallbackModel  string

	AITimeout time.Duration

	// Admin
	AdminEmails  string
	AdminUserIDs string
	AdminToken   string

	// Realtime fan-out; empty keeps notifications in-process.
	RedisURL string

	// Server
	Port        string
	CORSOrigins string

	// App registry
	AppsConfigPath string
}

func Load() *Config {
	return &Config{
		DBDriver:     getEnv("DB_DRIVER", "postgres"),
		DBHost:       getEnv("DB_HOST", "localhost"),
		DBPort:       getEnv("DB_PORT", "5432"),
		DBUser:       getEnv("DB_USER", "postgres"),
		DBPassword:   getEnv("DB_PASSWORD", ""),
		DBName:       getEnv("DB_NAME", "fridgechef"),
		DBSSLMode:    getEnv("DB_SSLMODE", "disable"),
		DBSQLitePath: getEnv("DB_SQLITE_PATH", "fridgechef.db"),

		JWTSecret:        getEnv("JWT_SECRET", ""),
		JWTAccessExpiry:  parseDuration(getEnv("JWT_ACCESS_EXPIRY", "15m")),
		JWTRefreshExpiry: parseDuration(getEnv("JWT_REFRESH_EXPIRY", "720h")),

		PasswordResetExpiry: parseDuration(getEnv("PASSWORD_RESET_EXPIRY", "1h")),
		PasswordResetURL:    getEnv("PASSWORD_RESET_URL", "https://fridgechef.app/reset"),

		AppleJWKSURL: getEnv("APPLE_JWKS_URL", "https://appleid.apple.com/auth/keys"),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.0-flash"),

		FallbackAPIKey: getEnv("FALLBACK_AI_API_KEY", ""),
		FallbackAPIURL: getEnv("FALLBACK_AI_API_URL", "https://api.deepseek.com/v1/chat/completions"),
		FallbackModel:  getEnv("FALLBACK_AI_MODEL", "deepseek-chat"),

		AITimeout: parseDuration(getEnv("AI_TIMEOUT", "60s")),

		AdminEmails:  getEnv("ADMIN_EMAILS", ""),
		AdminUserIDs: getEnv("ADMIN_USER_IDS", ""),
		AdminToken:   getEnv("ADMIN_TOKEN", ""),

		RedisURL: getEnv("REDIS_URL", ""),

		Port:        getEnv("PORT", "8080"),
		CORSOrigins: getEnv("CORS_ORIGINS", "*"),

		AppsConfigPath: getEnv("APPS_CONFIG_PATH", "apps.json"),
	}
}

func (c *Config) DSN() string {
	return "host=" + c.DBHost +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" port=" + c.DBPort +
		" sslmode=" + c.DBSSLMode +
		" TimeZone=UTC"
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func parseDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 15 * time.Minute
	}
	return d
}
