package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragpipe/internal/domain"
)

type scriptedEmbedder struct {
	calls   int
	results []domain.EmbeddingResult
	errs    []error
}

func (s *scriptedEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	i := s.calls
	s.calls++
	if i >= len(s.errs) {
		i = len(s.errs) - 1
	}
	return s.results[i], s.errs[i]
}

func TestFallbackEmbedderDelegatesOnSuccess(t *testing.T) {
	inner := &scriptedEmbedder{
		results: []domain.EmbeddingResult{{Embedding: []float32{1, 0}, TotalTokens: 3}},
		errs:    []error{nil},
	}
	f := NewFallbackEmbedder(inner, 2, zap.NewNop())

	result, err := f.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if result.Fallback {
		t.Error("expected Fallback=false on provider success")
	}
	if result.TotalTokens != 3 {
		t.Errorf("TotalTokens = %d, want 3", result.TotalTokens)
	}
}

func TestFallbackEmbedderDeterministicOnFailure(t *testing.T) {
	inner := &scriptedEmbedder{
		results: []domain.EmbeddingResult{{}},
		errs:    []error{fmt.Errorf("boom: %w", domain.ErrEmbeddingProviderError)},
	}
	f := NewFallbackEmbedder(inner, 8, zap.NewNop())

	first, err := f.Embed(context.Background(), "same text")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if !first.Fallback {
		t.Fatal("expected Fallback=true on provider failure")
	}
	if len(first.Embedding) != 8 {
		t.Fatalf("dimension = %d, want 8", len(first.Embedding))
	}

	second, err := f.Embed(context.Background(), "same text")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	for i := range first.Embedding {
		if first.Embedding[i] != second.Embedding[i] {
			t.Fatalf("fallback vector not deterministic at index %d", i)
		}
	}
}

func TestFallbackEmbedderDistinctTexts(t *testing.T) {
	a := DeterministicVector("alpha", 16)
	b := DeterministicVector("beta", 16)

	same := true
	for i := range a {
		if a[i] != b[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("different texts produced identical fallback vectors")
	}
}

func TestDeterministicVectorIsUnit(t *testing.T) {
	vec := DeterministicVector("normalize me", 32)

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if math.Abs(math.Sqrt(norm)-1.0) > 1e-4 {
		t.Errorf("norm = %f, want 1.0", math.Sqrt(norm))
	}
}

func TestFallbackEmbedderPropagatesCancellation(t *testing.T) {
	inner := &scriptedEmbedder{
		results: []domain.EmbeddingResult{{}},
		errs:    []error{context.Canceled},
	}
	f := NewFallbackEmbedder(inner, 4, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := f.Embed(ctx, "text"); !errors.Is(err, context.Canceled) {
		t.Errorf("Embed() error = %v, want context.Canceled", err)
	}
}

func TestRetryEmbedderRecoversAfterRateLimit(t *testing.T) {
	inner := &scriptedEmbedder{
		results: []domain.EmbeddingResult{{}, {}, {Embedding: []float32{1}}},
		errs:    []error{domain.ErrRateLimited, domain.ErrRateLimited, nil},
	}
	r := NewRetryEmbedder(inner, 3, zap.NewNop())

	var backoffs []time.Duration
	r.sleep = func(_ context.Context, d time.Duration) error {
		backoffs = append(backoffs, d)
		return nil
	}

	result, err := r.Embed(context.Background(), "text")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(result.Embedding) != 1 {
		t.Error("expected result from the successful attempt")
	}
	if inner.calls != 3 {
		t.Errorf("calls = %d, want 3", inner.calls)
	}
	if len(backoffs) != 2 || backoffs[1] != 2*backoffs[0] {
		t.Errorf("backoffs = %v, want two doubling waits", backoffs)
	}
}

func TestRetryEmbedderExhaustsAttempts(t *testing.T) {
	inner := &scriptedEmbedder{
		results: []domain.EmbeddingResult{{}},
		errs:    []error{domain.ErrRateLimited},
	}
	r := NewRetryEmbedder(inner, 3, zap.NewNop())
	r.sleep = func(_ context.Context, _ time.Duration) error { return nil }

	_, err := r.Embed(context.Background(), "text")
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Errorf("Embed() error = %v, want ErrRateLimited", err)
	}
	if inner.calls != 3 {
		t.Errorf("calls = %d, want 3", inner.calls)
	}
}

func TestRetryEmbedderStopsOnNonRetryable(t *testing.T) {
	inner := &scriptedEmbedder{
		results: []domain.EmbeddingResult{{}},
		errs:    []error{domain.ErrInvalidConfig},
	}
	r := NewRetryEmbedder(inner, 5, zap.NewNop())
	r.sleep = func(_ context.Context, _ time.Duration) error { return nil }

	if _, err := r.Embed(context.Background(), "text"); err == nil {
		t.Fatal("expected error")
	}
	if inner.calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry on permanent error)", inner.calls)
	}
}
