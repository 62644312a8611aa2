package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
)

const appleIssuer = "https://appleid.apple.com"

// FederatedClaims is what a verified third-party identity token tells us.
type FederatedClaims struct {
	Subject string
	Email   string
}

// FederatedVerifier checks identity tokens from an external identity provider.
type FederatedVerifier interface {
	Verify(ctx context.Context, identityToken string, audiences []string) (*FederatedClaims, error)
}

type appleClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// AppleVerifier validates Sign in with Apple identity tokens against Apple's
// published JWKS. The key set is fetched on first use and refreshed in the
// background.
type AppleVerifier struct {
	jwksURL string

	mu   sync.Mutex
	jwks *keyfunc.JWKS
}

func NewAppleVerifier(jwksURL string) *AppleVerifier {
	return &AppleVerifier{jwksURL: jwksURL}
}

func (v *AppleVerifier) keys() (*keyfunc.JWKS, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.jwks != nil {
		return v.jwks, nil
	}

	jwks, err := keyfunc.Get(v.jwksURL, keyfunc.Options{
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  5 * time.Minute,
		RefreshTimeout:    10 * time.Second,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			slog.Warn("apple JWKS refresh failed", "error", err)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS: %w", err)
	}
	v.jwks = jwks
	return jwks, nil
}

func (v *AppleVerifier) Verify(_ context.Context, identityToken string, audiences []string) (*FederatedClaims, error) {
	jwks, err := v.keys()
	if err != nil {
		return nil, err
	}

	claims := &appleClaims{}
	if _, err := jwt.ParseWithClaims(identityToken, claims, jwks.Keyfunc,
		jwt.WithIssuer(appleIssuer),
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithExpirationRequired(),
	); err != nil {
		return nil, err
	}

	if !audienceAllowed(claims.Audience, audiences) {
		return nil, errors.New("token audience not allowed")
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}

	return &FederatedClaims{Subject: claims.Subject, Email: claims.Email}, nil
}

// Close stops the background JWKS refresh.
func (v *AppleVerifier) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.jwks != nil {
		v.jwks.EndBackground()
		v.jwks = nil
	}
}

func audienceAllowed(got jwt.ClaimStrings, allowed []string) bool {
	for _, a := range got {
		for _, want := range allowed {
			if a == want {
				return true
			}
		}
	}
	return false
}
