package domain

import "github.com/kailas-cloud/ragpipe/internal/domain/record"

// SearchResult is a single retrieved passage. Created fresh per query and
// never persisted; pipeline stages transform result slices into new slices
// rather than mutating shared ones.
type SearchResult struct {
	ID            string          `json:"id"`
	ChunkID       string          `json:"chunkId,omitempty"`
	DocumentID    string          `json:"documentId,omitempty"`
	Content       string          `json:"content"`
	Meta          record.Metadata `json:"metadata"`
	SemanticScore float64         `json:"semanticScore"`
	KeywordScore  float64         `json:"keywordScore"`
	Relevance     float64         `json:"relevanceScore"`
	Distance      float64         `json:"distance"`
	Rank          int             `json:"rank"`
}

// CacheInfo describes how the response cache handled a query.
type CacheInfo struct {
	Hit   bool   `json:"hit"`
	Key   string `json:"key"`
	AgeMS int64  `json:"ageMs"`
}

// SearchTimings breaks a search call down by phase, in milliseconds.
type SearchTimings struct {
	OptimizeMS int64 `json:"optimizeMs"`
	SemanticMS int64 `json:"semanticMs"`
	KeywordMS  int64 `json:"keywordMs"`
	MergeMS    int64 `json:"mergeMs"`
	TotalMS    int64 `json:"totalMs"`
}

// SearchResponse is the output of the search engine for one query.
type SearchResponse struct {
	Query             string         `json:"query"`
	OptimizedQuery    string         `json:"optimizedQuery"`
	Results           []SearchResult `json:"results"`
	TotalFound        int            `json:"totalFound"`
	Timings           SearchTimings  `json:"timings"`
	Cache             CacheInfo      `json:"cacheInfo"`
	FallbackEmbedding bool           `json:"fallbackEmbedding,omitempty"`
}

// CloneResults returns a shallow copy of the result slice so downstream
// stages never alias the cached sequence.
func (r *SearchResponse) CloneResults() []SearchResult {
	out := make([]SearchResult, len(r.Results))
	copy(out, r.Results)
	return out
}
