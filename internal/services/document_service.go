package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/models"
	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/realtime"
	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/tenant"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrUnknownCollection = errors.New("unknown collection")
	ErrDocumentNotFound  = errors.New("document not found")
	ErrInvalidDocument   = errors.New("document data must be a JSON object")
	ErrInvalidDocumentID = errors.New("invalid document id")
)

// Collection names of a principal's namespace.
const (
	CollectionFamilyMembers = "family_members"
	CollectionFavorites     = "favorites"
	CollectionHistory       = "history"
	CollectionShoppingItems = "shopping_items"
	CollectionSettings      = "settings"

	// CollectionProfile is the read-only root profile pseudo-collection.
	CollectionProfile = "profile"
)

var writableCollections = map[string]bool{
	CollectionFamilyMembers: true,
	CollectionFavorites:     true,
	CollectionHistory:       true,
	CollectionShoppingItems: true,
	CollectionSettings:      true,
}

// IsCollection reports whether name is a writable document collection.
func IsCollection(name string) bool {
	return writableCollections[name]
}

// DocumentService is the per-principal document store. Every successful
// write announces the collection on the realtime hub.
type DocumentService struct {
	db  *gorm.DB
	hub *realtime.Hub
}

func NewDocumentService(db *gorm.DB, hub *realtime.Hub) *DocumentService {
	return &DocumentService{db: db, hub: hub}
}

func (s *DocumentService) List(ctx context.Context, appID string, ownerID uuid.UUID, collection string) ([]models.Document, error) {
	if !IsCollection(collection) {
		return nil, ErrUnknownCollection
	}
	var docs []models.Document
	err := s.db.WithContext(ctx).Scopes(tenant.ForOwner(appID, ownerID)).
		Where("collection = ?", collection).
		Order("created_at ASC, doc_id ASC").
		Find(&docs).Error
	if err != nil {
		return nil, err
	}
	return docs, nil
}

func (s *DocumentService) Get(ctx context.Context, appID string, ownerID uuid.UUID, collection, docID string) (*models.Document, error) {
	if !IsCollection(collection) {
		return nil, ErrUnknownCollection
	}
	doc, err := s.find(s.db.WithContext(ctx), appID, ownerID, collection, docID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDocumentNotFound
	}
	return doc, err
}

// Create stores data under a store-assigned id.
func (s *DocumentService) Create(ctx context.Context, appID string, ownerID uuid.UUID, collection string, data json.RawMessage) (*models.Document, error) {
	if !IsCollection(collection) {
		return nil, ErrUnknownCollection
	}
	if _, err := decodeObject(data); err != nil {
		return nil, err
	}

	doc := models.Document{
		ID:         uuid.New(),
		AppID:      appID,
		OwnerID:    ownerID,
		Collection: collection,
		DocID:      uuid.NewString(),
		Data:       datatypes.JSON(data),
	}
	if err := s.db.WithContext(ctx).Create(&doc).Error; err != nil {
		return nil, fmt.Errorf("failed to create document: %w", err)
	}

	s.publish(ctx, appID, ownerID, collection)
	return &doc, nil
}

// Set writes data at docID, creating the document when missing. With merge
// the top-level keys of data are laid over the existing object; without it
// the document is replaced.
func (s *DocumentService) Set(ctx context.Context, appID string, ownerID uuid.UUID, collection, docID string, data json.RawMessage, merge bool) (*models.Document, error) {
	if !IsCollection(collection) {
		return nil, ErrUnknownCollection
	}
	if err := validateDocID(docID); err != nil {
		return nil, err
	}
	incoming, err := decodeObject(data)
	if err != nil {
		return nil, err
	}

	var out models.Document
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.find(tx, appID, ownerID, collection, docID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			out = models.Document{
				ID:         uuid.New(),
				AppID:      appID,
				OwnerID:    ownerID,
				Collection: collection,
				DocID:      docID,
				Data:       datatypes.JSON(data),
			}
			return tx.Create(&out).Error
		}
		if err != nil {
			return err
		}

		next := data
		if merge {
			current, err := decodeObject(json.RawMessage(existing.Data))
			if err != nil {
				current = map[string]json.RawMessage{}
			}
			next, err = mergeObjects(current, incoming)
			if err != nil {
				return err
			}
		}
		existing.Data = datatypes.JSON(next)
		out = *existing
		return tx.Model(existing).Update("data", existing.Data).Error
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, appID, ownerID, collection)
	return &out, nil
}

// Update merges fields into an existing document.
func (s *DocumentService) Update(ctx context.Context, appID string, ownerID uuid.UUID, collection, docID string, fields json.RawMessage) (*models.Document, error) {
	if !IsCollection(collection) {
		return nil, ErrUnknownCollection
	}
	incoming, err := decodeObject(fields)
	if err != nil {
		return nil, err
	}

	var out models.Document
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.find(tx, appID, ownerID, collection, docID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrDocumentNotFound
		}
		if err != nil {
			return err
		}
		current, err := decodeObject(json.RawMessage(existing.Data))
		if err != nil {
			current = map[string]json.RawMessage{}
		}
		next, err := mergeObjects(current, incoming)
		if err != nil {
			return err
		}
		existing.Data = datatypes.JSON(next)
		out = *existing
		return tx.Model(existing).Update("data", existing.Data).Error
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, appID, ownerID, collection)
	return &out, nil
}

// Delete removes a document. Deleting a missing document is not an error.
func (s *DocumentService) Delete(ctx context.Context, appID string, ownerID uuid.UUID, collection, docID string) error {
	if !IsCollection(collection) {
		return ErrUnknownCollection
	}
	result := s.db.WithContext(ctx).Scopes(tenant.ForOwner(appID, ownerID)).
		Where("collection = ? AND doc_id = ?", collection, docID).
		Delete(&models.Document{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		s.publish(ctx, appID, ownerID, collection)
	}
	return nil
}

func (s *DocumentService) find(db *gorm.DB, appID string, ownerID uuid.UUID, collection, docID string) (*models.Document, error) {
	var doc models.Document
	err := db.Scopes(tenant.ForOwner(appID, ownerID)).
		Where("collection = ? AND doc_id = ?", collection, docID).
		First(&doc).Error
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *DocumentService) publish(ctx context.Context, appID string, ownerID uuid.UUID, collection string) {
	if s.hub == nil {
		return
	}
	key := realtime.Key{AppID: appID, OwnerID: ownerID.String(), Collection: collection}
	if err := s.hub.Publish(context.WithoutCancel(ctx), key); err != nil {
		slog.Warn("failed to publish change", "collection", collection, "app_id", appID, "error", err)
	}
}

func validateDocID(id string) error {
	if id == "" || len(id) > 64 || strings.ContainsAny(id, "/?#") {
		return ErrInvalidDocumentID
	}
	return nil
}

func decodeObject(data json.RawMessage) (map[string]json.RawMessage, error) {
	var obj map[string]json.RawMessage
	if len(data) == 0 {
		return nil, ErrInvalidDocument
	}
	if err := json.Unmarshal(data, &obj); err != nil || obj == nil {
		return nil, ErrInvalidDocument
	}
	return obj, nil
}

func mergeObjects(base, overlay map[string]json.RawMessage) (json.RawMessage, error) {
	merged := make(map[string]json.RawMessage, len(base)+len(overlay))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range overlay {
		merged[k] = v
	}
	return json.Marshal(merged)
}
