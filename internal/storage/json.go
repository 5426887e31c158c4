package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/hyperjump/kotae/internal/models"
)

// JSONStore keeps documents in memory and persists them as a JSON array of
// {content, metadata} records.
type JSONStore struct {
	docs []models.Document
	mu   sync.RWMutex
}

// NewJSONStore returns an empty store.
func NewJSONStore() *JSONStore {
	return &JSONStore{}
}

// Append adds doc at the next position.
func (s *JSONStore) Append(ctx context.Context, doc models.Document) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = append(s.docs, copyDocument(doc))
	return len(s.docs) - 1, nil
}

// Get returns a copy of the document at position.
func (s *JSONStore) Get(ctx context.Context, position int) (*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if position < 0 || position >= len(s.docs) {
		return nil, outOfRange(position, len(s.docs))
	}
	doc := copyDocument(s.docs[position])
	return &doc, nil
}

// List returns up to limit documents starting at offset. limit <= 0 means all.
func (s *JSONStore) List(ctx context.Context, offset, limit int) ([]*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if offset < 0 {
		offset = 0
	}
	end := len(s.docs)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	var out []*models.Document
	for i := offset; i < end; i++ {
		doc := copyDocument(s.docs[i])
		out = append(out, &doc)
	}
	return out, nil
}

// Count returns the number of documents.
func (s *JSONStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs), nil
}

// Truncate drops documents at positions >= n.
func (s *JSONStore) Truncate(ctx context.Context, n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n < 0 {
		n = 0
	}
	if n < len(s.docs) {
		s.docs = s.docs[:n]
	}
	return nil
}

// Save writes the documents to path via a temp file and rename.
func (s *JSONStore) Save(ctx context.Context, path string) error {
	s.mu.RLock()
	docs := s.docs
	if docs == nil {
		docs = []models.Document{}
	}
	data, err := json.Marshal(docs)
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal documents: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create documents directory: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write documents: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace documents: %w", err)
	}
	return nil
}

// Load replaces the documents with those stored at path.
func (s *JSONStore) Load(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			s.mu.Lock()
			s.docs = nil
			s.mu.Unlock()
			return nil
		}
		return fmt.Errorf("failed to read documents: %w", err)
	}
	var docs []models.Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return fmt.Errorf("failed to parse documents: %w", err)
	}
	s.mu.Lock()
	s.docs = docs
	s.mu.Unlock()
	return nil
}

// Close is a no-op for JSONStore.
func (s *JSONStore) Close() error {
	return nil
}

func copyDocument(doc models.Document) models.Document {
	out := models.Document{Content: doc.Content}
	if doc.Metadata != nil {
		out.Metadata = make(map[string]string, len(doc.Metadata))
		for k, v := range doc.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

var _ DocumentStore = (*JSONStore)(nil)
