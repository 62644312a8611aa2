package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is the account owner; its row doubles as the root profile document.
type User struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	AppID        string         `gorm:"size:50;not null;uniqueIndex:idx_users_app_email" json:"-"`
	Email        string         `gorm:"not null;size:255;uniqueIndex:idx_users_app_email" json:"email"`
	Password     string         `gorm:"not null" json:"-"`
	DisplayName  string         `gorm:"size:120" json:"display_name"`
	TaxID        string         `gorm:"size:20" json:"tax_id"`
	Role         string         `gorm:"size:20;default:'user'" json:"role"`
	AppleUserID  *string        `gorm:"size:255;index" json:"-"`
	AuthProvider string         `gorm:"size:50;default:'email'" json:"-"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}
