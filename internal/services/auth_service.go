package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/config"
	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/dto"
	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/models"
	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/tenant"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrEmailTaken          = errors.New("email already registered")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrInvalidToken        = errors.New("invalid or expired token")
	ErrUserNotFound        = errors.New("user not found")
	ErrWeakPassword        = errors.New("email required and password must be at least 8 characters")
	ErrUnsupportedProvider = errors.New("unsupported sign-in provider")
)

const minPasswordLength = 8

type AuthService struct {
	db        *gorm.DB
	cfg       *config.Config
	registry  *tenant.Registry
	federated FederatedVerifier
	mailer    Mailer
	now       func() time.Time
}

func NewAuthService(db *gorm.DB, cfg *config.Config, registry *tenant.Registry, federated FederatedVerifier, mailer Mailer) *AuthService {
	return &AuthService{
		db:        db,
		cfg:       cfg,
		registry:  registry,
		federated: federated,
		mailer:    mailer,
		now:       time.Now,
	}
}

func (s *AuthService) Register(appID string, req *dto.RegisterRequest) (*dto.AuthResponse, error) {
	email := normalizeEmail(req.Email)
	if email == "" || len(req.Password) < minPasswordLength {
		return nil, ErrWeakPassword
	}

	var existing models.User
	if err := s.db.Scopes(tenant.ForTenant(appID)).Where("email = ?", email).First(&existing).Error; err == nil {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		displayName = strings.Split(email, "@")[0]
	}

	user := models.User{
		ID:           uuid.New(),
		AppID:        appID,
		Email:        email,
		Password:     string(hash),
		DisplayName:  displayName,
		Role:         "user",
		AuthProvider: "email",
	}

	if err := s.db.Create(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return s.generateTokenPair(appID, &user)
}

func (s *AuthService) Login(appID string, req *dto.LoginRequest) (*dto.AuthResponse, error) {
	var user models.User
	if err := s.db.Scopes(tenant.ForTenant(appID)).Where("email = ?", normalizeEmail(req.Email)).First(&user).Error; err != nil {
		return nil, ErrInvalidCredentials
	}

	if user.Password == "" {
		// Federated-only account.
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.generateTokenPair(appID, &user)
}

func (s *AuthService) Refresh(appID string, req *dto.RefreshRequest) (*dto.AuthResponse, error) {
	tokenHash := hashToken(req.RefreshToken)

	var stored models.RefreshToken
	if err := s.db.Scopes(tenant.ForTenant(appID)).Where("token_hash = ? AND revoked = ?", tokenHash, false).First(&stored).Error; err != nil {
		return nil, ErrInvalidToken
	}

	s.db.Model(&stored).Update("revoked", true)
	if s.now().After(stored.ExpiresAt) {
		return nil, ErrInvalidToken
	}

	var user models.User
	if err := s.db.Scopes(tenant.ForTenant(appID)).First(&user, "id = ?", stored.UserID).Error; err != nil {
		return nil, ErrUserNotFound
	}

	return s.generateTokenPair(appID, &user)
}

func (s *AuthService) Logout(appID string, req *dto.LogoutRequest) error {
	return s.db.Model(&models.RefreshToken{}).
		Scopes(tenant.ForTenant(appID)).
		Where("token_hash = ?", hashToken(req.RefreshToken)).
		Update("revoked", true).Error
}

// FederatedSignIn verifies a third-party identity token and signs the
// matching account in, creating it on first use.
func (s *AuthService) FederatedSignIn(ctx context.Context, appID string, req *dto.FederatedSignInRequest) (*dto.AuthResponse, error) {
	if req.Provider != "" && req.Provider != "apple" {
		return nil, ErrUnsupportedProvider
	}
	if req.IdentityToken == "" {
		return nil, errors.New("identity token is required")
	}
	if s.federated == nil || !s.registry.HasFeature(appID, tenant.FeatureFederatedLogin) {
		return nil, ErrUnsupportedProvider
	}

	claims, err := s.federated.Verify(ctx, req.IdentityToken, s.registry.AppleAudiences(appID))
	if err != nil {
		slog.Warn("federated token verification failed", "error", err, "app_id", appID)
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	subject := claims.Subject
	email := normalizeEmail(claims.Email)
	if email == "" {
		email = normalizeEmail(req.Email)
	}
	if email == "" {
		email = subject + "@privaterelay.appleid.com"
	}

	var user models.User
	err = s.db.Scopes(tenant.ForTenant(appID)).
		Where("apple_user_id = ? OR email = ?", subject, email).First(&user).Error

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		displayName := strings.TrimSpace(req.FullName)
		if displayName == "" {
			displayName = strings.Split(email, "@")[0]
		}
		user = models.User{
			ID:           uuid.New(),
			AppID:        appID,
			Email:        email,
			DisplayName:  displayName,
			Role:         "user",
			AppleUserID:  &subject,
			AuthProvider: "apple",
		}
		if err := s.db.Create(&user).Error; err != nil {
			return nil, fmt.Errorf("failed to create federated user: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to look up federated user: %w", err)
	case user.AppleUserID == nil:
		s.db.Model(&user).Updates(map[string]interface{}{
			"apple_user_id": subject,
		})
		user.AppleUserID = &subject
	}

	return s.generateTokenPair(appID, &user)
}

// RequestPasswordReset mails a single-use reset link. Unknown addresses get
// the same (nil) answer so accounts cannot be enumerated.
func (s *AuthService) RequestPasswordReset(ctx context.Context, appID, email string) error {
	var user models.User
	if err := s.db.Scopes(tenant.ForTenant(appID)).Where("email = ?", normalizeEmail(email)).First(&user).Error; err != nil {
		return nil
	}

	rawToken, err := randomToken()
	if err != nil {
		return err
	}

	record := models.PasswordResetToken{
		ID:        uuid.New(),
		AppID:     appID,
		UserID:    user.ID,
		TokenHash: hashToken(rawToken),
		ExpiresAt: s.now().Add(s.cfg.PasswordResetExpiry),
	}
	if err := s.db.Create(&record).Error; err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}

	link := s.cfg.PasswordResetURL + "?token=" + rawToken
	body := "Olá " + user.DisplayName + ",\n\nPara redefinir sua senha acesse:\n" + link +
		"\n\nSe você não pediu a redefinição, ignore este e-mail."
	if err := s.mailer.Send(ctx, user.Email, "Redefinição de senha", body); err != nil {
		return fmt.Errorf("failed to send reset email: %w", err)
	}
	return nil
}

// ResetPassword consumes a reset token and revokes every refresh token of
// the account.
func (s *AuthService) ResetPassword(appID string, req *dto.PasswordResetConfirmRequest) error {
	if len(req.NewPassword) < minPasswordLength {
		return ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		var record models.PasswordResetToken
		if err := tx.Scopes(tenant.ForTenant(appID)).
			Where("token_hash = ? AND used_at IS NULL", hashToken(req.Token)).
			First(&record).Error; err != nil {
			return ErrInvalidToken
		}
		now := s.now()
		if now.After(record.ExpiresAt) {
			return ErrInvalidToken
		}

		if err := tx.Model(&record).Update("used_at", now).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.User{}).Where("id = ?", record.UserID).Update("password", string(hash)).Error; err != nil {
			return err
		}
		return tx.Model(&models.RefreshToken{}).
			Where("user_id = ? AND app_id = ?", record.UserID, appID).
			Update("revoked", true).Error
	})
}

func (s *AuthService) generateTokenPair(appID string, user *models.User) (*dto.AuthResponse, error) {
	accessToken, err := s.generateAccessToken(appID, user)
	if err != nil {
		return nil, err
	}

	refreshToken, err := s.generateRefreshToken(appID, user)
	if err != nil {
		return nil, err
	}

	return &dto.AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User: dto.UserResponse{
			ID:          user.ID,
			Email:       user.Email,
			DisplayName: user.DisplayName,
		},
	}, nil
}

func (s *AuthService) generateAccessToken(appID string, user *models.User) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub":    user.ID.String(),
		"email":  user.Email,
		"name":   user.DisplayName,
		"app_id": appID,
		"iat":    now.Unix(),
		"exp":    now.Add(s.cfg.JWTAccessExpiry).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecret))
}

func (s *AuthService) generateRefreshToken(appID string, user *models.User) (string, error) {
	rawToken, err := randomToken()
	if err != nil {
		return "", err
	}

	record := models.RefreshToken{
		ID:        uuid.New(),
		AppID:     appID,
		UserID:    user.ID,
		TokenHash: hashToken(rawToken),
		ExpiresAt: s.now().Add(s.cfg.JWTRefreshExpiry),
	}

	if err := s.db.Create(&record).Error; err != nil {
		return "", fmt.Errorf("failed to store refresh token: %w", err)
	}

	return rawToken, nil
}

func randomToken() (string, error) {
	rawBytes := make([]byte, 32)
	if _, err := rand.Read(rawBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return base64.URLEncoding.EncodeToString(rawBytes), nil
}

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return fmt.Sprintf("%x", h)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
