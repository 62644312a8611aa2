package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode"

	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/config"
	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/dto"
	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/models"
	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/realtime"
	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/tenant"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrInvalidTaxID       = errors.New("tax id must have 11 digits")
	ErrInvalidDisplayName = errors.New("display name must be 1 to 120 characters")
)

// ProfileService serves the root profile document: identity fields plus the
// derived admin and profile-completion flags.
type ProfileService struct {
	db           *gorm.DB
	hub          *realtime.Hub
	adminEmails  []string
	adminUserIDs []string
}

func NewProfileService(db *gorm.DB, cfg *config.Config, hub *realtime.Hub) *ProfileService {
	return &ProfileService{
		db:           db,
		hub:          hub,
		adminEmails:  ParseCSV(cfg.AdminEmails),
		adminUserIDs: ParseCSV(cfg.AdminUserIDs),
	}
}

func (s *ProfileService) Get(ctx context.Context, appID string, userID uuid.UUID) (*dto.ProfileResponse, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Scopes(tenant.ForTenant(appID)).First(&user, "id = ?", userID).Error; err != nil {
		return nil, ErrUserNotFound
	}
	return s.toResponse(&user), nil
}

// IsAdmin checks config-based admin lists first, then the stored role.
func (s *ProfileService) IsAdmin(user *models.User) bool {
	return contains(s.adminEmails, user.Email) ||
		contains(s.adminUserIDs, user.ID.String()) ||
		user.Role == "admin"
}

func (s *ProfileService) Update(ctx context.Context, appID string, userID uuid.UUID, req *dto.UpdateProfileRequest) (*dto.ProfileResponse, error) {
	updates := map[string]interface{}{}

	if req.DisplayName != nil {
		name := strings.TrimSpace(*req.DisplayName)
		if name == "" || len([]rune(name)) > 120 {
			return nil, ErrInvalidDisplayName
		}
		updates["display_name"] = name
	}
	if req.TaxID != nil {
		taxID, err := NormalizeTaxID(*req.TaxID)
		if err != nil {
			return nil, err
		}
		updates["tax_id"] = taxID
	}

	if len(updates) > 0 {
		result := s.db.WithContext(ctx).Model(&models.User{}).
			Scopes(tenant.ForTenant(appID)).
			Where("id = ?", userID).
			Updates(updates)
		if result.Error != nil {
			return nil, result.Error
		}
		if result.RowsAffected == 0 {
			return nil, ErrUserNotFound
		}
		s.publish(ctx, appID, userID)
	}

	return s.Get(ctx, appID, userID)
}

func (s *ProfileService) toResponse(user *models.User) *dto.ProfileResponse {
	return &dto.ProfileResponse{
		ID:                     user.ID,
		Email:                  user.Email,
		DisplayName:            user.DisplayName,
		TaxID:                  user.TaxID,
		IsAdmin:                s.IsAdmin(user),
		NeedsProfileCompletion: strings.TrimSpace(user.TaxID) == "",
	}
}

func (s *ProfileService) publish(ctx context.Context, appID string, userID uuid.UUID) {
	if s.hub == nil {
		return
	}
	key := realtime.Key{AppID: appID, OwnerID: userID.String(), Collection: CollectionProfile}
	if err := s.hub.Publish(context.WithoutCancel(ctx), key); err != nil {
		slog.Warn("failed to publish profile change", "app_id", appID, "error", err)
	}
}

// NormalizeTaxID strips punctuation from a CPF and checks it has 11 digits.
func NormalizeTaxID(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '.' || r == '-' || r == ' ':
		default:
			return "", ErrInvalidTaxID
		}
	}
	if b.Len() != 11 {
		return "", ErrInvalidTaxID
	}
	return b.String(), nil
}

// ParseCSV splits a comma separated list, dropping blanks.
func ParseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func contains(list []string, val string) bool {
	for _, item := range list {
		if item == val {
			return true
		}
	}
	return false
}
