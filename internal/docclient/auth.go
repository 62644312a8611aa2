package docclient

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/appstate"
	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/domain"
	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/dto"
	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/kv"
)

// refreshSkew renews access tokens this long before they expire.
const refreshSkew = 30 * time.Second

var (
	_ appstate.AuthProvider = (*Auth)(nil)
	_ TokenSource           = (*Auth)(nil)
)

// Auth is the session provider backed by /api/auth. The refresh token is
// kept in the key-value store so a restart restores the session.
type Auth struct {
	api *Client
	kv  kv.Store
	log *slog.Logger
	now func() time.Time

	// refreshMu serializes token refreshes; mu guards the fields below.
	refreshMu sync.Mutex
	mu        sync.Mutex
	session   *domain.Session
	access    string
	refresh   string
	epoch     uint64
	known     bool
	restoring bool
	watchers  map[int]func(*domain.Session)
	nextID    int
	wg        sync.WaitGroup
}

func NewAuth(baseURL, appID string, store kv.Store, opts ...Option) *Auth {
	a := &Auth{
		kv:       store,
		now:      time.Now,
		watchers: make(map[int]func(*domain.Session)),
	}
	// Auth endpoints are public, so the client carries no token source.
	a.api = New(baseURL, appID, nil, opts...)
	a.log = a.api.log
	if a.kv == nil {
		a.kv = kv.NewMemory()
	}
	return a
}

// Watch reports the current principal once it is known, restoring a stored
// session first, and then every change until ctx ends.
func (a *Auth) Watch(ctx context.Context, fn func(*domain.Session)) {
	a.mu.Lock()
	id := a.nextID
	a.nextID++
	a.watchers[id] = fn
	known, cur, epoch := a.known, a.session, a.epoch
	start := !known && !a.restoring
	if start {
		a.restoring = true
		a.wg.Add(1)
	}
	a.mu.Unlock()

	context.AfterFunc(ctx, func() {
		a.mu.Lock()
		delete(a.watchers, id)
		a.mu.Unlock()
	})

	switch {
	case start:
		go func() {
			defer a.wg.Done()
			a.restore(context.WithoutCancel(ctx), epoch)
		}()
	case known:
		fn(copySession(cur))
	}
}

// Wait blocks until a pending session restore has finished.
func (a *Auth) Wait() { a.wg.Wait() }

// restore exchanges the stored refresh token for a session. Its outcome
// is dropped if the principal changed meanwhile.
func (a *Auth) restore(ctx context.Context, epoch uint64) {
	token, err := a.kv.Get(kv.KeyRefreshToken)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			a.log.Warn("failed to read stored session", "error", err)
		}
		a.install(nil, &epoch)
		return
	}

	resp, err := a.exchange(ctx, token)
	if err != nil {
		a.log.Info("stored session not restored", "error", err)
		if status := statusOf(err); status == http.StatusUnauthorized || status == http.StatusBadRequest {
			a.forgetAt(epoch)
		}
		a.install(nil, &epoch)
		return
	}
	a.install(resp, &epoch)
}

func (a *Auth) SignIn(ctx context.Context, email, password string) error {
	var resp dto.AuthResponse
	if err := a.api.do(ctx, http.MethodPost, "/api/auth/login", nil, dto.LoginRequest{Email: email, Password: password}, &resp); err != nil {
		return authError(err)
	}
	a.setSession(&resp)
	return nil
}

func (a *Auth) Register(ctx context.Context, email, password, displayName string) error {
	var resp dto.AuthResponse
	req := dto.RegisterRequest{Email: email, Password: password, DisplayName: displayName}
	if err := a.api.do(ctx, http.MethodPost, "/api/auth/register", nil, req, &resp); err != nil {
		return authError(err)
	}
	a.setSession(&resp)
	return nil
}

// SignInWithIdentityToken signs in with a third-party identity token.
func (a *Auth) SignInWithIdentityToken(ctx context.Context, provider, identityToken, fullName string) error {
	var resp dto.AuthResponse
	req := dto.FederatedSignInRequest{Provider: provider, IdentityToken: identityToken, FullName: fullName}
	if err := a.api.do(ctx, http.MethodPost, "/api/auth/federated", nil, req, &resp); err != nil {
		return authError(err)
	}
	a.setSession(&resp)
	return nil
}

// SignOut revokes the refresh token on a best-effort basis; the local
// session always ends.
func (a *Auth) SignOut(ctx context.Context) error {
	a.mu.Lock()
	refresh := a.refresh
	a.mu.Unlock()

	if refresh != "" {
		if err := a.api.do(ctx, http.MethodPost, "/api/auth/logout", nil, dto.LogoutRequest{RefreshToken: refresh}, nil); err != nil {
			a.log.Warn("remote logout failed", "error", err)
		}
	}
	a.forget()
	a.setSession(nil)
	return nil
}

func (a *Auth) SendPasswordReset(ctx context.Context, email string) error {
	if err := a.api.do(ctx, http.MethodPost, "/api/auth/password-reset", nil, dto.PasswordResetRequest{Email: email}, nil); err != nil {
		return authError(err)
	}
	return nil
}

// AccessToken returns a bearer token valid for at least refreshSkew,
// refreshing it when needed. A refused refresh ends the session.
func (a *Auth) AccessToken(ctx context.Context) (string, error) {
	token, err := a.freshToken(ctx)
	if errors.Is(err, errSessionRevoked) {
		a.setSession(nil)
		return "", ErrSignedOut
	}
	return token, err
}

var errSessionRevoked = errors.New("session revoked")

func (a *Auth) freshToken(ctx context.Context) (string, error) {
	a.refreshMu.Lock()
	defer a.refreshMu.Unlock()

	a.mu.Lock()
	access, refresh := a.access, a.refresh
	a.mu.Unlock()

	if access == "" {
		return "", ErrSignedOut
	}
	if !a.expiring(access) {
		return access, nil
	}

	resp, err := a.exchange(ctx, refresh)
	if err != nil {
		if statusOf(err) == http.StatusUnauthorized {
			a.forget()
			return "", errSessionRevoked
		}
		return "", err
	}
	a.storeTokens(resp)
	return resp.AccessToken, nil
}

func (a *Auth) exchange(ctx context.Context, refresh string) (*dto.AuthResponse, error) {
	var resp dto.AuthResponse
	if err := a.api.do(ctx, http.MethodPost, "/api/auth/refresh", nil, dto.RefreshRequest{RefreshToken: refresh}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// expiring reads the exp claim without verifying the signature; the
// server is the one that checks it.
func (a *Auth) expiring(token string) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !a.now().Add(refreshSkew).Before(exp.Time)
}

func (a *Auth) storeTokens(resp *dto.AuthResponse) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.setTokensLocked(resp.AccessToken, resp.RefreshToken)
}

func (a *Auth) forget() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.setTokensLocked("", "")
}

func (a *Auth) forgetAt(epoch uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.epoch == epoch {
		a.setTokensLocked("", "")
	}
}

// setTokensLocked keeps the refresh token in the store next to the
// in-memory pair.
func (a *Auth) setTokensLocked(access, refresh string) {
	a.access, a.refresh = access, refresh
	var err error
	if refresh == "" {
		err = a.kv.Delete(kv.KeyRefreshToken)
	} else {
		err = a.kv.Set(kv.KeyRefreshToken, refresh)
	}
	if err != nil {
		a.log.Warn("failed to persist session", "error", err)
	}
}

func (a *Auth) setSession(resp *dto.AuthResponse) { a.install(resp, nil) }

// install replaces the session (nil for signed out) and notifies
// watchers. With since set, it only applies if nothing else changed the
// session after that epoch.
func (a *Auth) install(resp *dto.AuthResponse, since *uint64) {
	var sess *domain.Session
	if resp != nil {
		sess = &domain.Session{
			UID:         resp.User.ID.String(),
			Email:       resp.User.Email,
			DisplayName: resp.User.DisplayName,
		}
	}

	a.mu.Lock()
	if since != nil && *since != a.epoch {
		a.restoring = false
		a.mu.Unlock()
		return
	}
	a.epoch++
	if resp != nil {
		a.setTokensLocked(resp.AccessToken, resp.RefreshToken)
	}
	a.session = sess
	a.known = true
	a.restoring = false
	watchers := make([]func(*domain.Session), 0, len(a.watchers))
	for _, fn := range a.watchers {
		watchers = append(watchers, fn)
	}
	a.mu.Unlock()

	for _, fn := range watchers {
		fn(copySession(sess))
	}
}

func copySession(s *domain.Session) *domain.Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// authError keeps the backend's error code for message mapping. Transport
// failures carry no code.
func authError(err error) error {
	var se *StatusError
	if errors.As(err, &se) {
		code := se.Code
		if se.Status == http.StatusTooManyRequests {
			code = domain.CodeTooManyRequests
		}
		return &appstate.AuthError{Code: strings.TrimSpace(code), Err: err}
	}
	return &appstate.AuthError{Err: err}
}
