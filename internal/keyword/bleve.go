package keyword

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/hyperjump/kotae/internal/models"
)

// BleveIndex implements Index using Bleve.
type BleveIndex struct {
	index bleve.Index
}

type indexedDocument struct {
	Content string `json:"content"`
	Source  string `json:"source"`
}

func newMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer: lowercase and tokenize, no stemming.
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("content", textFieldMapping)
	docMapping.AddFieldMappingsAt("source", textFieldMapping)
	im.AddDocumentMapping("document", docMapping)
	im.DefaultType = "document"
	im.DefaultMapping = docMapping
	return im
}

// NewBleveIndex creates or opens a Bleve index at path. An empty path keeps
// the index in memory.
func NewBleveIndex(path string) (*BleveIndex, error) {
	if path == "" {
		index, err := bleve.NewMemOnly(newMapping())
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory Bleve index: %w", err)
		}
		return &BleveIndex{index: index}, nil
	}

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	index, err := bleve.New(path, newMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

func docID(position int) string {
	return strconv.Itoa(position)
}

var sourceSeparators = strings.NewReplacer(".", " ", "_", " ", "-", " ")

// toIndexed splits the source file name on separators so "report.txt" is
// searchable as "report".
func toIndexed(doc *models.Document) indexedDocument {
	return indexedDocument{
		Content: doc.Content,
		Source:  sourceSeparators.Replace(filepath.Base(doc.Source())),
	}
}

// Index adds or replaces the document at position.
func (b *BleveIndex) Index(ctx context.Context, position int, doc *models.Document) error {
	if err := b.index.Index(docID(position), toIndexed(doc)); err != nil {
		return fmt.Errorf("failed to index document %d: %w", position, err)
	}
	return nil
}

// Rebuild indexes docs at positions 0..len(docs)-1 in one batch and removes
// any entries beyond that range.
func (b *BleveIndex) Rebuild(ctx context.Context, docs []*models.Document) error {
	batch := b.index.NewBatch()
	for i, doc := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := batch.Index(docID(i), toIndexed(doc)); err != nil {
			return fmt.Errorf("failed to batch document %d: %w", i, err)
		}
	}

	// Ids are dense, so anything indexed at or beyond len(docs) is stale.
	count, err := b.index.DocCount()
	if err != nil {
		return err
	}
	for i := len(docs); uint64(i) < count; i++ {
		batch.Delete(docID(i))
	}

	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to rebuild keyword index: %w", err)
	}
	return nil
}

// Search runs a match query over content and source and returns up to limit hits.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]Result, error) {
	if limit <= 0 {
		return nil, nil
	}
	sourceBoost := 1.0
	fuzziness := 0
	if opts != nil {
		if opts.SourceBoost > 1 {
			sourceBoost = opts.SourceBoost
		}
		if opts.Fuzziness > 0 {
			fuzziness = min(opts.Fuzziness, 2)
		}
	}

	content := buildFieldQuery(query, "content", fuzziness, 1)
	source := buildFieldQuery(query, "source", fuzziness, sourceBoost)
	req := bleve.NewSearchRequest(bleve.NewDisjunctionQuery(content, source))
	req.Size = limit

	results, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]Result, 0, len(results.Hits))
	for _, hit := range results.Hits {
		pos, err := strconv.Atoi(hit.ID)
		if err != nil {
			continue
		}
		out = append(out, Result{Position: pos, Score: hit.Score})
	}
	return out, nil
}

// buildFieldQuery matches query against field. With fuzziness > 0 each term
// becomes a fuzzy query and any term may match.
func buildFieldQuery(query, field string, fuzziness int, boost float64) blevequery.Query {
	if fuzziness == 0 {
		q := bleve.NewMatchQuery(query)
		q.SetField(field)
		q.SetBoost(boost)
		return q
	}
	terms := strings.Fields(strings.ToLower(query))
	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetField(field)
		fq.SetFuzziness(fuzziness)
		fq.SetBoost(boost)
		queries = append(queries, fq)
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// DocCount returns the number of indexed documents.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}

var _ Index = (*BleveIndex)(nil)
