package models

import "fmt"

// SearchMode selects which index answers a search.
type SearchMode string

const (
	// SearchModeVector ranks documents by embedding distance.
	SearchModeVector SearchMode = "vector"
	// SearchModeKeyword ranks documents by full-text relevance.
	SearchModeKeyword SearchMode = "keyword"
	// SearchModeHybrid fuses vector and keyword scores.
	SearchModeHybrid SearchMode = "hybrid"
)

// MaxTopK caps the number of results a single query may request.
const MaxTopK = 100

// MaxFuzziness is the largest per-term edit distance a keyword query may use.
const MaxFuzziness = 2

// SearchQuery is a retrieval request.
type SearchQuery struct {
	Query     string     `json:"query"`
	TopK      int        `json:"top_k,omitempty"`
	Mode      SearchMode `json:"mode,omitempty"`
	Fuzziness int        `json:"fuzziness,omitempty"` // keyword edit distance per term
	Template  string     `json:"template,omitempty"`  // used by ask only
}

// Validate checks the query and normalizes mode and top_k.
// A zero TopK is left as-is so the retriever applies its configured default.
func (q *SearchQuery) Validate() error {
	if q.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if q.TopK < 0 {
		return fmt.Errorf("top_k must not be negative")
	}
	if q.Fuzziness < 0 || q.Fuzziness > MaxFuzziness {
		return fmt.Errorf("fuzziness must be between 0 and %d", MaxFuzziness)
	}
	if q.TopK > MaxTopK {
		q.TopK = MaxTopK
	}
	switch q.Mode {
	case "":
		q.Mode = SearchModeVector
	case SearchModeVector, SearchModeKeyword, SearchModeHybrid:
	default:
		return fmt.Errorf("unknown search mode: %s (supported: vector, keyword, hybrid)", q.Mode)
	}
	return nil
}
