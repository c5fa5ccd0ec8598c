package ragpipe

import (
	"context"
	"time"

	raguc "github.com/kailas-cloud/ragpipe/internal/usecase/rag"
	vectorstoreuc "github.com/kailas-cloud/ragpipe/internal/usecase/vectorstore"
)

// EmbeddingResult is the output of a single embedding call.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// Embedder converts text into an embedding vector.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// StoreMethod selects how a store request is persisted.
type StoreMethod string

const (
	// StoreBulk writes all surviving records in one atomic call.
	StoreBulk StoreMethod = "bulk"
	// StoreBatch writes fixed-size sub-batches independently.
	StoreBatch StoreMethod = "batch"
	// StoreStream writes records one at a time in input order.
	StoreStream StoreMethod = "stream"
)

// Record is one pre-embedded record to persist.
type Record struct {
	ID         string
	DocumentID string
	ChunkID    string
	Vector     []float32
	Content    string

	Source    string
	Title     string
	DocType   string
	FileName  string
	CreatedAt time.Time
	Tags      map[string]string
}

// StoreItemResult reports the outcome for one stored record.
type StoreItemResult struct {
	ID          string
	Status      string // "stored", "duplicate", "failed"
	DuplicateOf string
	Error       string
}

// StoreResult summarizes one store request.
type StoreResult struct {
	Stored     int
	Failed     int
	Duplicates int
	Items      []StoreItemResult
}

// QueryRequest is one end-to-end pipeline call.
type QueryRequest struct {
	Query          string
	ConversationID string
	UserID         string
	AgentID        string
	Filters        map[string]string
	// AllowedDocuments restricts results to the named documents. Empty
	// means no restriction.
	AllowedDocuments []string
	MaxSources       int
	MinScore         float64
	QualityThreshold float64
}

// ScoredResult is one quality-ranked passage behind an assembled context.
type ScoredResult struct {
	ID        string
	Content   string
	Relevance float64
	Quality   float64
}

// QueryResponse is the assembled pipeline output.
type QueryResponse struct {
	Context             string
	TokenCount          int
	CompressionRatio    float64
	Sources             []string
	ConversationSummary string
	KeyInsights         []string
	EntityMentions      map[string]int
	Results             []ScoredResult

	CompositeScore        float64
	MeetsQualityThreshold bool
	CacheHit              bool
	FallbackEmbedding     bool

	AlternativeQueries []string
	RelatedEntities    []string
	FollowUpQuestions  []string

	TotalMS int64
}

// ConversationMessage is one retained conversation turn.
type ConversationMessage struct {
	Role      string
	Content   string
	Timestamp time.Time
}

// ConversationInfo is a read-only copy of one conversation's memory.
type ConversationInfo struct {
	ID            string
	UserID        string
	AgentID       string
	Messages      []ConversationMessage
	Summary       string
	Topics        []string
	ContextWindow int
	LastUpdated   time.Time
}

// HealthReport aggregates component health checks.
type HealthReport struct {
	Status string
	Checks map[string]bool
}

func queryResponseFromPipeline(resp raguc.Response) QueryResponse {
	results := make([]ScoredResult, len(resp.Quality.Results))
	for i, r := range resp.Quality.Results {
		sr := ScoredResult{ID: r.ID, Content: r.Content, Relevance: r.Relevance}
		if i < len(resp.Quality.Metrics) {
			sr.Quality = resp.Quality.Metrics[i].Overall
		}
		results[i] = sr
	}

	return QueryResponse{
		Context:               resp.Context.Content,
		TokenCount:            resp.Context.TokenCount,
		CompressionRatio:      resp.Context.CompressionRatio,
		Sources:               resp.Context.Sources,
		ConversationSummary:   resp.Context.ConversationSummary,
		KeyInsights:           resp.Context.KeyInsights,
		EntityMentions:        resp.Context.EntityMentions,
		Results:               results,
		CompositeScore:        resp.CompositeScore,
		MeetsQualityThreshold: resp.MeetsQualityThreshold,
		CacheHit:              resp.CacheHit,
		FallbackEmbedding:     resp.Fallback,
		AlternativeQueries:    resp.Recommendations.AlternativeQueries,
		RelatedEntities:       resp.Recommendations.RelatedEntities,
		FollowUpQuestions:     resp.Recommendations.FollowUpQuestions,
		TotalMS:               resp.Timings.TotalMS,
	}
}

func storeResultFromUsecase(result vectorstoreuc.StorageResult) StoreResult {
	items := make([]StoreItemResult, len(result.Results))
	for i, r := range result.Results {
		items[i] = StoreItemResult{
			ID:          r.ID,
			Status:      string(r.Status),
			DuplicateOf: r.DuplicateOf,
			Error:       r.Error,
		}
	}
	return StoreResult{
		Stored:     result.Stored,
		Failed:     result.Failed,
		Duplicates: result.Duplicates,
		Items:      items,
	}
}
