package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Document is one entry of a per-owner collection. DocID is the id clients
// see; it is store-assigned on create but may be chosen by the client on
// upsert (e.g. the "primary" family member).
type Document struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"-"`
	AppID      string         `gorm:"size:50;not null;uniqueIndex:idx_documents_path" json:"-"`
	OwnerID    uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_documents_path" json:"-"`
	Collection string         `gorm:"size:50;not null;uniqueIndex:idx_documents_path" json:"-"`
	DocID      string         `gorm:"size:64;not null;uniqueIndex:idx_documents_path" json:"id"`
	Data       datatypes.JSON `json:"data"`
	CreatedAt  time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

func (Document) TableName() string {
	return "documents"
}
