package dto

import (
	"encoding/json"
	"time"
)

// DocumentResponse is the wire form of a stored document.
type DocumentResponse struct {
	ID        string          `json:"id"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// SnapshotResponse carries the complete current contents of a collection.
type SnapshotResponse struct {
	Collection string             `json:"collection"`
	Docs       []DocumentResponse `json:"docs"`
}

type CreateDocumentResponse struct {
	ID string `json:"id"`
}
