package storage

import (
	"context"
	"encoding/json"
	"time"
)

// Document is a single record of a collection as the remote store keeps it.
// Body is the record JSON exactly as the client sent it.
type Document struct {
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Collection string
	ID         string
	UpdatedBy  string
	Body       json.RawMessage
}

// DocumentStorage defines interface for collection documents persistence
type DocumentStorage interface {
	// PutDocument creates or replaces a document (last writer wins)
	// Returns true if the document did not exist before
	PutDocument(ctx context.Context, doc *Document) (bool, error)

	// GetDocument retrieves a single document
	// Returns ErrDocumentNotFound if document doesn't exist
	GetDocument(ctx context.Context, collection, id string) (*Document, error)

	// ListDocuments retrieves all documents of a collection ordered by id
	// Returns empty slice if collection is empty
	ListDocuments(ctx context.Context, collection string) ([]*Document, error)

	// DeleteDocument removes a document
	// Returns ErrDocumentNotFound if document doesn't exist
	DeleteDocument(ctx context.Context, collection, id string) error
}
