// Package storage defines the persistence interface for the ordered document list.
package storage

import (
	"context"
	"fmt"

	"github.com/hyperjump/kotae/internal/models"
)

// Store types accepted by NewDocumentStore.
const (
	TypeJSON   = "json"
	TypeSQLite = "sqlite"
)

// DocumentStore is an append-only ordered sequence of documents. The position
// returned by Append is the document's identity.
type DocumentStore interface {
	Append(ctx context.Context, doc models.Document) (int, error)
	Get(ctx context.Context, position int) (*models.Document, error)
	List(ctx context.Context, offset, limit int) ([]*models.Document, error)
	Count(ctx context.Context) (int, error)
	// Truncate drops every document at position n or later.
	Truncate(ctx context.Context, n int) error

	Save(ctx context.Context, path string) error
	// Load replaces the contents with the documents stored at path.
	// A missing file yields an empty store.
	Load(ctx context.Context, path string) error

	Close() error
}

// NewDocumentStore creates a store of the given type. path is only used by
// stores that are bound to a file when opened (sqlite).
func NewDocumentStore(storeType, path string) (DocumentStore, error) {
	switch storeType {
	case TypeJSON, "":
		return NewJSONStore(), nil
	case TypeSQLite:
		return NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("%w: unknown storage type: %s (supported: json, sqlite)", models.ErrConfiguration, storeType)
	}
}

func outOfRange(position, count int) error {
	return fmt.Errorf("%w: position %d, count %d", models.ErrIndexOutOfRange, position, count)
}
