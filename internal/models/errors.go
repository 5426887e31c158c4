package models

import "errors"

var (
	// ErrDimensionMismatch is returned when a vector's length disagrees with the
	// dimension already established for the index.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrIndexOutOfRange is returned when a position is outside the stored range.
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrIndexNotInitialized is returned when searching before anything was ingested.
	ErrIndexNotInitialized = errors.New("index not initialized")

	// ErrEmbeddingBackend is returned when the embedding or completion backend fails.
	ErrEmbeddingBackend = errors.New("embedding backend error")

	// ErrConfiguration is returned when the configuration cannot build a component.
	ErrConfiguration = errors.New("configuration error")

	// ErrTemplateNotFound is returned for an unknown prompt template name.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrStoreMismatch is returned when persisted documents and vectors disagree in count.
	ErrStoreMismatch = errors.New("document store and vector index disagree")

	// ErrKeywordDisabled is returned for keyword search without a keyword index.
	ErrKeywordDisabled = errors.New("keyword index not configured")
)
