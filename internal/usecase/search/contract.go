package search

import (
	"context"

	"github.com/kailas-cloud/ragpipe/internal/db"
	"github.com/kailas-cloud/ragpipe/internal/domain"
)

// Searcher runs similarity and text queries against the backend.
type Searcher interface {
	QueryByVector(
		ctx context.Context, collection string,
		vector []float32, topK int, tags map[string]string,
	) ([]db.QueryHit, error)

	TextScores(
		ctx context.Context, collection string,
		query string, topK int, tags map[string]string,
	) ([]db.QueryHit, error)

	SupportsTextSearch(ctx context.Context) bool
}

// Embedder vectorizes query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// AccessRecorder receives read notifications for tiering decisions.
type AccessRecorder interface {
	Touch(ids ...string)
}
