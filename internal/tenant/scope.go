package tenant

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ForTenant returns a GORM scope that filters by app_id.
func ForTenant(appID string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("app_id = ?", appID)
	}
}

// ForOwner narrows to one principal's document namespace inside an app.
func ForOwner(appID string, ownerID uuid.UUID) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("app_id = ? AND owner_id = ?", appID, ownerID)
	}
}
