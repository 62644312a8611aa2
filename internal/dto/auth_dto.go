package dto

import "github.com/google/uuid"

type RegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type FederatedSignInRequest struct {
	Provider      string `json:"provider"`
	IdentityToken string `json:"identity_token"`
	FullName      string `json:"full_name,omitempty"`
	Email         string `json:"email,omitempty"`
}

type PasswordResetRequest struct {
	Email string `json:"email"`
}

type PasswordResetConfirmRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

type AuthResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	User         UserResponse `json:"user"`
}

type UserResponse struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
}

// ProfileResponse is the root profile document of a principal.
type ProfileResponse struct {
	ID                     uuid.UUID `json:"id"`
	Email                  string    `json:"email"`
	DisplayName            string    `json:"display_name"`
	TaxID                  string    `json:"tax_id"`
	IsAdmin                bool      `json:"is_admin"`
	NeedsProfileCompletion bool      `json:"needs_profile_completion"`
}

type UpdateProfileRequest struct {
	DisplayName *string `json:"display_name,omitempty"`
	TaxID       *string `json:"tax_id,omitempty"`
}

// Error codes returned in ErrorResponse.Code.
const (
	CodeBadRequest         = "bad_request"
	CodeUnauthorized       = "unauthorized"
	CodeInvalidCredentials = "invalid_credentials"
	CodeEmailTaken         = "email_taken"
	CodeInvalidToken       = "invalid_token"
	CodeTooManyRequests    = "too_many_requests"
	CodeNotFound           = "not_found"
	CodeForbidden          = "forbidden"
	CodeInternal           = "internal"
	CodeAIFailed           = "ai_failed"
)

type ErrorResponse struct {
	Error   bool   `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	DB        string `json:"db"`
	AppCount  int    `json:"app_count"`
}
