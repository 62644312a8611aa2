package tenant

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// Feature flags understood by the server.
const (
	FeatureAIMockFallback = "ai_mock_fallback"
	FeatureFederatedLogin = "federated_login"
)

type AppConfig struct {
	AppID          string          `json:"app_id"`
	AppName        string          `json:"app_name"`
	BundleID       string          `json:"bundle_id"`
	AppleClientIDs []string        `json:"apple_client_ids"`
	Features       map[string]bool `json:"features"`
}

type AppsFile struct {
	Apps []AppConfig `json:"apps"`
}

type Registry struct {
	mu   sync.RWMutex
	apps map[string]*AppConfig
}

func NewRegistry(apps ...*AppConfig) *Registry {
	r := &Registry{
		apps: make(map[string]*AppConfig),
	}
	for _, cfg := range apps {
		r.Register(cfg)
	}
	return r
}

func LoadFromFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read apps config: %w", err)
	}

	var file AppsFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse apps config: %w", err)
	}

	registry := NewRegistry()
	for i := range file.Apps {
		registry.Register(&file.Apps[i])
	}
	return registry, nil
}

func (r *Registry) Register(cfg *AppConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.apps[cfg.AppID] = cfg
}

func (r *Registry) Get(appID string) *AppConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.apps[appID]
}

func (r *Registry) Exists(appID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.apps[appID]
	return ok
}

func (r *Registry) HasFeature(appID, feature string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.apps[appID]
	if !ok {
		return false
	}
	return cfg.Features[feature]
}

func (r *Registry) All() []*AppConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*AppConfig, 0, len(r.apps))
	for _, cfg := range r.apps {
		result = append(result, cfg)
	}
	return result
}

// AppleAudiences lists the client ids an Apple identity token may be issued for.
func (r *Registry) AppleAudiences(appID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.apps[appID]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(cfg.AppleClientIDs)+1)
	if cfg.BundleID != "" {
		out = append(out, cfg.BundleID)
	}
	return append(out, cfg.AppleClientIDs...)
}
