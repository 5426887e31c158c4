// Package retriever ingests text files into the document store and vector
// index and answers nearest-neighbour queries against them.
package retriever

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/keyword"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/storage"
	"github.com/hyperjump/kotae/internal/vector"
)

// State reports whether the retriever can serve searches.
type State string

const (
	// StateEmpty means no dimension has been established yet.
	StateEmpty State = "empty"
	// StateReady means the dimension is fixed and searches are valid.
	StateReady State = "ready"
)

// DefaultTopK is used when neither the call nor the configuration sets top_k.
const DefaultTopK = 3

// Retriever couples a document store and a vector index by position:
// document i is described by vector i.
type Retriever struct {
	backend       embedding.Backend
	docs          storage.DocumentStore
	index         vector.VectorIndex
	keyword       keyword.Index
	ownsKeyword   bool
	topK          int
	indexPath     string
	documentsPath string
	logger        *zap.Logger
	mu            sync.Mutex
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithLogger sets a logger for ingest and search events.
func WithLogger(l *zap.Logger) Option {
	return func(r *Retriever) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithKeywordIndex attaches a keyword index that is updated on every ingest.
func WithKeywordIndex(k keyword.Index) Option {
	return func(r *Retriever) { r.keyword = k }
}

// New creates a retriever over existing stores. Nothing is loaded from disk.
func New(cfg *config.Config, backend embedding.Backend, docs storage.DocumentStore, index vector.VectorIndex, opts ...Option) *Retriever {
	r := &Retriever{
		backend:       backend,
		docs:          docs,
		index:         index,
		topK:          cfg.Retrieval.TopK,
		indexPath:     cfg.Storage.IndexPath,
		documentsPath: cfg.Storage.DocumentsPath,
		logger:        zap.NewNop(),
	}
	if r.topK <= 0 {
		r.topK = DefaultTopK
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Open builds the stores described by cfg and loads any persisted state.
// Documents stored past the last persisted vector are dropped; fewer
// documents than vectors fails with ErrStoreMismatch.
// When storage.keyword_index_path is set and no keyword index was supplied,
// a Bleve index is opened there and rebuilt if it is out of step.
func Open(ctx context.Context, cfg *config.Config, backend embedding.Backend, opts ...Option) (*Retriever, error) {
	index := vector.NewFlatIndex()
	if err := index.Load(cfg.Storage.IndexPath); err != nil {
		return nil, fmt.Errorf("failed to load vector index: %w", err)
	}
	docs, err := storage.NewDocumentStore(cfg.Storage.Type, cfg.Storage.DocumentsPath)
	if err != nil {
		return nil, err
	}
	if err := docs.Load(ctx, cfg.Storage.DocumentsPath); err != nil {
		_ = docs.Close()
		return nil, fmt.Errorf("failed to load documents: %w", err)
	}
	r := New(cfg, backend, docs, index, opts...)
	count, err := r.reconcile(ctx)
	if err != nil {
		_ = docs.Close()
		return nil, err
	}
	if r.keyword == nil && cfg.Storage.KeywordIndexPath != "" {
		kw, err := keyword.NewBleveIndex(cfg.Storage.KeywordIndexPath)
		if err != nil {
			_ = docs.Close()
			return nil, err
		}
		r.keyword = kw
		r.ownsKeyword = true
	}
	if r.keyword != nil {
		if err := r.syncKeyword(ctx, count); err != nil {
			r.logger.Warn("keyword index rebuild failed", zap.Error(err))
		}
	}
	r.logger.Debug("retriever opened",
		zap.Int("documents", count),
		zap.Int("dimension", index.Dimension()),
		zap.String("backend", backend.Name()))
	return r, nil
}

// reconcile drops stored documents past the last persisted vector. A store
// that is durable on append, such as SQLite, keeps the rows of a batch that
// failed before the index was saved; those rows were never persisted as a pair.
// Fewer documents than vectors cannot be repaired and is ErrStoreMismatch.
func (r *Retriever) reconcile(ctx context.Context) (int, error) {
	count, err := r.docs.Count(ctx)
	if err != nil {
		return 0, err
	}
	size := r.index.Size()
	if count > size {
		r.logger.Warn("dropping documents without persisted vectors",
			zap.Int("documents", count),
			zap.Int("vectors", size))
		if err := r.docs.Truncate(ctx, size); err != nil {
			return 0, fmt.Errorf("failed to drop unindexed documents: %w", err)
		}
		if err := r.docs.Save(ctx, r.documentsPath); err != nil {
			return 0, fmt.Errorf("failed to save documents: %w", err)
		}
		count = size
	}
	if count != size {
		return 0, fmt.Errorf("%w: %d documents, %d vectors", models.ErrStoreMismatch, count, size)
	}
	return count, nil
}

func (r *Retriever) syncKeyword(ctx context.Context, count int) error {
	indexed, err := r.keyword.DocCount()
	if err != nil {
		return err
	}
	if indexed == uint64(count) {
		return nil
	}
	all, err := r.docs.List(ctx, 0, 0)
	if err != nil {
		return err
	}
	r.logger.Info("rebuilding keyword index", zap.Uint64("indexed", indexed), zap.Int("documents", count))
	return r.keyword.Rebuild(ctx, all)
}

// LoadDocuments ingests every .txt file directly inside dir in name order,
// then persists both stores. On failure the files ingested so far remain in
// memory but nothing is persisted. It returns the number of files ingested.
func (r *Retriever) LoadDocuments(ctx context.Context, dir string) (int, error) {
	files, err := ListTextFiles(dir)
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if _, err := r.ingestLocked(ctx, path); err != nil {
			return n, err
		}
		n++
	}
	if err := r.persistLocked(ctx); err != nil {
		return n, err
	}
	r.logger.Info("documents loaded", zap.String("dir", dir), zap.Int("count", n))
	return n, nil
}

// IngestFile ingests a single file and persists both stores.
func (r *Retriever) IngestFile(ctx context.Context, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.ingestLocked(ctx, path); err != nil {
		return err
	}
	return r.persistLocked(ctx)
}

// ingestLocked appends one file. The embedding dimension is checked against
// the index before the document is stored, and the document is removed again
// if the index still rejects the vector. An empty index takes its dimension
// from the first stored document.
func (r *Retriever) ingestLocked(ctx context.Context, path string) (int, error) {
	name := filepath.Base(path)
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", name, err)
	}
	content := strings.ToValidUTF8(string(data), "\uFFFD")

	vec, err := r.backend.Embed(ctx, content)
	if err != nil {
		return 0, fmt.Errorf("failed to embed %s: %w", name, err)
	}
	if len(vec) == 0 {
		return 0, fmt.Errorf("%w: empty embedding for %s", models.ErrEmbeddingBackend, name)
	}
	if dim := r.index.Dimension(); dim != 0 && dim != len(vec) {
		return 0, fmt.Errorf("failed to index %s: %w: index has %d, got %d",
			name, models.ErrDimensionMismatch, dim, len(vec))
	}

	doc := models.NewFileDocument(name, content)
	position, err := r.docs.Append(ctx, doc)
	if err != nil {
		return 0, fmt.Errorf("failed to store %s: %w", name, err)
	}
	err = r.index.Initialize(len(vec))
	if err == nil {
		_, err = r.index.Add(ctx, [][]float32{vec})
	}
	if err != nil {
		if terr := r.docs.Truncate(ctx, position); terr != nil {
			r.logger.Error("failed to roll back document", zap.Int("position", position), zap.Error(terr))
		}
		return 0, fmt.Errorf("failed to index %s: %w", name, err)
	}

	if r.keyword != nil {
		if err := r.keyword.Index(ctx, position, &doc); err != nil {
			r.logger.Warn("keyword index update failed", zap.String("file", name), zap.Error(err))
		}
	}
	r.logger.Debug("document ingested",
		zap.String("file", name),
		zap.Int("position", position),
		zap.Int("dimension", len(vec)))
	return position, nil
}

func (r *Retriever) persistLocked(ctx context.Context) error {
	if err := r.index.Save(r.indexPath); err != nil {
		return fmt.Errorf("failed to save vector index: %w", err)
	}
	if err := r.docs.Save(ctx, r.documentsPath); err != nil {
		return fmt.Errorf("failed to save documents: %w", err)
	}
	return nil
}

// Search embeds query and returns the topK nearest documents, nearest first.
// topK <= 0 uses the configured default.
func (r *Retriever) Search(ctx context.Context, query string, topK int) ([]*models.SearchResult, error) {
	if topK <= 0 {
		topK = r.topK
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	neighbors, err := r.nearestLocked(ctx, query, topK)
	if err != nil {
		return nil, err
	}
	results := make([]*models.SearchResult, 0, len(neighbors))
	for i, nb := range neighbors {
		doc, err := r.docs.Get(ctx, nb.Position)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve position %d: %w", nb.Position, err)
		}
		results = append(results, &models.SearchResult{
			Position: nb.Position,
			Distance: nb.Distance,
			Rank:     i + 1,
			Document: doc,
		})
	}
	r.logger.Debug("search", zap.String("query", query), zap.Int("top_k", topK), zap.Int("results", len(results)))
	return results, nil
}

func (r *Retriever) nearestLocked(ctx context.Context, query string, k int) ([]vector.Neighbor, error) {
	if r.index.Dimension() == 0 {
		return nil, models.ErrIndexNotInitialized
	}
	vec, err := r.backend.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	return r.index.Search(ctx, vec, k)
}

// KeywordSearch runs a full-text query against the keyword index.
func (r *Retriever) KeywordSearch(ctx context.Context, query string, topK int) ([]*models.SearchResult, error) {
	return r.keywordSearch(ctx, query, topK, 0)
}

// keywordSearch matches terms within fuzziness edits; 0 means exact terms.
func (r *Retriever) keywordSearch(ctx context.Context, query string, topK, fuzziness int) ([]*models.SearchResult, error) {
	if r.keyword == nil {
		return nil, models.ErrKeywordDisabled
	}
	if topK <= 0 {
		topK = r.topK
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	hits, err := r.keywordLocked(ctx, query, topK, fuzziness)
	if err != nil {
		return nil, err
	}
	results := make([]*models.SearchResult, 0, len(hits))
	for _, hit := range hits {
		doc, err := r.docs.Get(ctx, hit.Position)
		if err != nil {
			r.logger.Warn("keyword hit outside document store", zap.Int("position", hit.Position), zap.Error(err))
			continue
		}
		results = append(results, &models.SearchResult{
			Position: hit.Position,
			Score:    hit.Score,
			Rank:     len(results) + 1,
			Document: doc,
		})
	}
	return results, nil
}

func (r *Retriever) keywordLocked(ctx context.Context, query string, k, fuzziness int) ([]keyword.Result, error) {
	return r.keyword.Search(ctx, query, k, &keyword.SearchOptions{SourceBoost: 2, Fuzziness: fuzziness})
}

// Document returns the document at position.
func (r *Retriever) Document(ctx context.Context, position int) (*models.Document, error) {
	return r.docs.Get(ctx, position)
}

// Sources returns the distinct source file names of stored documents, in
// first-ingested order.
func (r *Retriever) Sources(ctx context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	docs, err := r.docs.List(ctx, 0, 0)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(docs))
	var sources []string
	for _, doc := range docs {
		src := doc.Source()
		if src == "" || seen[src] {
			continue
		}
		seen[src] = true
		sources = append(sources, src)
	}
	return sources, nil
}

// Count returns the number of stored documents.
func (r *Retriever) Count(ctx context.Context) (int, error) {
	return r.docs.Count(ctx)
}

// Dimension returns the established vector dimension, or 0.
func (r *Retriever) Dimension() int {
	return r.index.Dimension()
}

// State reports StateReady once the vector dimension is established.
func (r *Retriever) State() State {
	if r.index.Dimension() == 0 {
		return StateEmpty
	}
	return StateReady
}

// Stats summarizes the retriever for status reporting.
type Stats struct {
	Documents      int    `json:"documents"`
	Vectors        int    `json:"vectors"`
	Dimension      int    `json:"dimension"`
	State          State  `json:"state"`
	KeywordEnabled bool   `json:"keyword_enabled"`
	Backend        string `json:"backend"`
}

// Stats returns document and vector counts along with the current state.
func (r *Retriever) Stats(ctx context.Context) (Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count, err := r.docs.Count(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Documents:      count,
		Vectors:        r.index.Size(),
		Dimension:      r.index.Dimension(),
		State:          r.State(),
		KeywordEnabled: r.keyword != nil,
		Backend:        r.backend.Name(),
	}, nil
}

// KeywordEnabled reports whether a keyword index is attached.
func (r *Retriever) KeywordEnabled() bool {
	return r.keyword != nil
}

// Backend returns the embedding backend.
func (r *Retriever) Backend() embedding.Backend {
	return r.backend
}

// Close releases the stores. A keyword index passed through WithKeywordIndex
// is left open for its owner.
func (r *Retriever) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	if r.ownsKeyword {
		if err := r.keyword.Close(); err != nil {
			firstErr = err
		}
	}
	if err := r.docs.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := r.index.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
