package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragpipe/internal/domain"
)

const baseBackoff = 200 * time.Millisecond

// RetryEmbedder retries transient provider failures with exponential backoff.
// Only upstream errors are retried; context cancellation aborts immediately.
type RetryEmbedder struct {
	inner       domain.Embedder
	maxAttempts int
	logger      *zap.Logger

	// sleep is replaceable in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetryEmbedder creates the retry decorator. maxAttempts includes the
// first try; values below 1 are treated as 1.
func NewRetryEmbedder(inner domain.Embedder, maxAttempts int, logger *zap.Logger) *RetryEmbedder {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &RetryEmbedder{
		inner:       inner,
		maxAttempts: maxAttempts,
		logger:      logger,
		sleep:       sleepCtx,
	}
}

// Embed retries retryable errors up to maxAttempts with doubling backoff.
func (r *RetryEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	var lastErr error

	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := baseBackoff << (attempt - 1)
			r.logger.Debug("Retrying embedding request",
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", backoff),
			)
			if err := r.sleep(ctx, backoff); err != nil {
				return domain.EmbeddingResult{}, err
			}
		}

		result, err := r.inner.Embed(ctx, text)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !retryable(err) {
			break
		}
	}

	return domain.EmbeddingResult{}, fmt.Errorf("embed after %d attempts: %w", r.maxAttempts, lastErr)
}

func retryable(err error) bool {
	return errors.Is(err, domain.ErrRateLimited) ||
		errors.Is(err, domain.ErrEmbeddingProviderError)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err() //nolint:wrapcheck // deadline propagation
	case <-t.C:
		return nil
	}
}
