// Package kv is the client's small local key-value storage: the demo flag,
// the remembered e-mail, the refresh token and the active-profile cache.
package kv

import "errors"

// Keys used by the client.
const (
	KeyDemoMode        = "demoMode"
	KeyRememberedEmail = "rememberedEmail"
	KeyRefreshToken    = "auth.refreshToken"
)

// ErrNotFound is returned by Get for a missing key.
var ErrNotFound = errors.New("kv: key not found")

// Store is a string key-value store. Implementations are safe for concurrent
// use.
type Store interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

// ActiveProfilesKey is the per-principal key of the active-profile cache.
func ActiveProfilesKey(uid string) string {
	return "activeProfiles:" + uid
}
