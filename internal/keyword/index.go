// Package keyword provides a full-text index over stored documents, keyed by
// document position.
package keyword

import (
	"context"

	"github.com/hyperjump/kotae/internal/models"
)

// SearchOptions are optional parameters for keyword search. Nil means defaults.
type SearchOptions struct {
	// SourceBoost multiplies matches in the source file name. Values <= 1 disable the boost.
	SourceBoost float64
	// Fuzziness is the maximum edit distance per term (1 or 2). 0 means exact terms.
	Fuzziness int
}

// Index defines keyword index operations.
type Index interface {
	Index(ctx context.Context, position int, doc *models.Document) error
	Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]Result, error)
	Rebuild(ctx context.Context, docs []*models.Document) error
	DocCount() (uint64, error)
	Close() error
}

// Result is a single keyword hit.
type Result struct {
	Position int
	Score    float64
}
