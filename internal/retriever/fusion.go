package retriever

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/keyword"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/vector"
)

// Default weights for HybridSearch.
const (
	DefaultKeywordWeight  = 0.5
	DefaultSemanticWeight = 0.5
)

// candidateFactor widens each side of a hybrid query before fusion.
const candidateFactor = 3

// fused holds a position with its combined and per-source scores.
type fused struct {
	position int
	score    float64
	keyword  float64
	semantic float64
	distance float32
}

// normalizeKeywordScores scales keyword scores to [0,1] by the best hit.
func normalizeKeywordScores(hits []keyword.Result) map[int]float64 {
	normalized := make(map[int]float64, len(hits))
	var maxScore float64
	for _, h := range hits {
		if h.Score > maxScore {
			maxScore = h.Score
		}
	}
	for _, h := range hits {
		if maxScore > 0 {
			normalized[h.Position] = h.Score / maxScore
		} else {
			normalized[h.Position] = 0
		}
	}
	return normalized
}

// semanticScores maps squared distance to a similarity in (0,1].
func semanticScores(neighbors []vector.Neighbor) (map[int]float64, map[int]float32) {
	scores := make(map[int]float64, len(neighbors))
	distances := make(map[int]float32, len(neighbors))
	for _, nb := range neighbors {
		scores[nb.Position] = 1 / (1 + float64(nb.Distance))
		distances[nb.Position] = nb.Distance
	}
	return scores, distances
}

// fuse merges both score maps with weights, best first. Equal scores keep
// the lower position first.
func fuse(keywordScores, semantic map[int]float64, distances map[int]float32, keywordWeight, semanticWeight float64) []*fused {
	byPos := make(map[int]*fused, len(keywordScores)+len(semantic))
	for pos, score := range keywordScores {
		byPos[pos] = &fused{position: pos, keyword: score}
	}
	for pos, score := range semantic {
		f, ok := byPos[pos]
		if !ok {
			f = &fused{position: pos}
			byPos[pos] = f
		}
		f.semantic = score
		f.distance = distances[pos]
	}
	results := make([]*fused, 0, len(byPos))
	for _, f := range byPos {
		f.score = keywordWeight*f.keyword + semanticWeight*f.semantic
		results = append(results, f)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].position < results[j].position
	})
	return results
}

// HybridSearch combines vector and keyword retrieval. Both sides are
// normalized to [0,1] and summed with the default weights.
func (r *Retriever) HybridSearch(ctx context.Context, query string, topK int) ([]*models.SearchResult, error) {
	return r.hybridSearch(ctx, query, topK, 0)
}

func (r *Retriever) hybridSearch(ctx context.Context, query string, topK, fuzziness int) ([]*models.SearchResult, error) {
	if r.keyword == nil {
		return nil, models.ErrKeywordDisabled
	}
	if topK <= 0 {
		topK = r.topK
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	candidates := topK * candidateFactor
	neighbors, err := r.nearestLocked(ctx, query, candidates)
	if err != nil {
		return nil, err
	}
	hits, err := r.keywordLocked(ctx, query, candidates, fuzziness)
	if err != nil {
		return nil, err
	}
	semantic, distances := semanticScores(neighbors)
	merged := fuse(normalizeKeywordScores(hits), semantic, distances, DefaultKeywordWeight, DefaultSemanticWeight)

	results := make([]*models.SearchResult, 0, topK)
	for _, f := range merged {
		if len(results) == topK {
			break
		}
		doc, err := r.docs.Get(ctx, f.position)
		if err != nil {
			r.logger.Warn("hybrid hit outside document store", zap.Int("position", f.position), zap.Error(err))
			continue
		}
		results = append(results, &models.SearchResult{
			Position: f.position,
			Distance: f.distance,
			Score:    f.score,
			Rank:     len(results) + 1,
			Document: doc,
		})
	}
	r.logger.Debug("hybrid search",
		zap.String("query", query),
		zap.Int("vector_candidates", len(neighbors)),
		zap.Int("keyword_candidates", len(hits)),
		zap.Int("results", len(results)))
	return results, nil
}

// SearchMode dispatches q to the index selected by q.Mode. q.Fuzziness
// applies to the keyword side of keyword and hybrid queries.
func (r *Retriever) SearchMode(ctx context.Context, q models.SearchQuery) ([]*models.SearchResult, error) {
	switch q.Mode {
	case models.SearchModeKeyword:
		return r.keywordSearch(ctx, q.Query, q.TopK, q.Fuzziness)
	case models.SearchModeHybrid:
		return r.hybridSearch(ctx, q.Query, q.TopK, q.Fuzziness)
	default:
		return r.Search(ctx, q.Query, q.TopK)
	}
}
