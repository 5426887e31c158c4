package models

// SearchResult is a single retrieval hit.
type SearchResult struct {
	Position int       `json:"position"`
	Distance float32   `json:"distance"`
	Score    float64   `json:"score,omitempty"` // keyword relevance; unset for vector hits
	Rank     int       `json:"rank"`
	Document *Document `json:"document"`
}

// SearchResponse is the response for a search request.
type SearchResponse struct {
	Results   []*SearchResult `json:"results"`
	Query     string          `json:"query"`
	Mode      SearchMode      `json:"mode"`
	QueryTime int64           `json:"query_time_ms"`
}

// AskResponse is the response for a question answered from retrieved context.
type AskResponse struct {
	Answer   string          `json:"answer"`
	Template string          `json:"template"`
	Sources  []*SearchResult `json:"sources"`
}
