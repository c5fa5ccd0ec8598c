package embedding

import (
	"context"
	"math"
	"math/rand"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragpipe/internal/domain"
	"github.com/kailas-cloud/ragpipe/internal/metrics"
)

// FallbackEmbedder wraps a provider and serves a deterministic pseudo-random
// vector when the provider fails. The same text always yields the same
// vector (hash-seeded), so tests run without network access. Fallback
// results are flagged so callers can surface degraded retrieval quality.
type FallbackEmbedder struct {
	inner  domain.Embedder
	dim    int
	logger *zap.Logger
}

// NewFallbackEmbedder creates the fallback decorator. dim is the vector
// dimension the deterministic generator must produce.
func NewFallbackEmbedder(inner domain.Embedder, dim int, logger *zap.Logger) *FallbackEmbedder {
	return &FallbackEmbedder{inner: inner, dim: dim, logger: logger}
}

// Embed delegates to the provider and falls back on any provider error.
// Context cancellation is not masked: a dead deadline propagates.
func (f *FallbackEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	result, err := f.inner.Embed(ctx, text)
	if err == nil {
		return result, nil
	}
	if ctx.Err() != nil {
		return domain.EmbeddingResult{}, ctx.Err()
	}

	f.logger.Warn("Embedding provider unavailable, using deterministic fallback", zap.Error(err))
	metrics.EmbeddingFallbackTotal.Inc()

	return domain.EmbeddingResult{
		Embedding: DeterministicVector(text, f.dim),
		Fallback:  true,
	}, nil
}

// DeterministicVector generates a hash-seeded unit vector for text.
func DeterministicVector(text string, dim int) []float32 {
	seed := int64(xxhash.Sum64String(text)) //nolint:gosec // stable seed, not cryptographic
	rng := rand.New(rand.NewSource(seed))   //nolint:gosec // determinism is the point

	vec := make([]float32, dim)
	var norm float64
	for i := range vec {
		v := rng.Float64()*2 - 1
		vec[i] = float32(v)
		norm += v * v
	}

	norm = math.Sqrt(norm)
	if norm == 0 {
		return vec
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}
