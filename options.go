package ragpipe

import (
	"time"

	"go.uber.org/zap"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	driver   string // "redis" or "memory"
	addrs    []string
	password string

	embedder      Embedder
	openaiAPIKey  string
	openaiBaseURL string
	openaiModel   string

	collection       string
	vectorDimensions int
	maxRetries       int
	noFallback       bool
	noEmbeddingCache bool

	enableDeduplication bool
	dedupThreshold      float64
	enableCompression   bool
	compressionLevel    int
	compressionAlgo     string

	cacheTTL         time.Duration
	cacheMaxEntries  int
	maxConcurrent    int
	maxContextTokens int
	timeout          time.Duration

	logger *zap.Logger
}

// WithRedis configures the client to connect to a Redis instance.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "redis"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithMemoryStore configures an in-process backend. Useful for tests and
// single-node deployments without persistence.
func WithMemoryStore() Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "memory"
	})
}

// WithOpenAI sets an OpenAI-compatible embedding provider.
func WithOpenAI(apiKey, model string) Option {
	return optionFunc(func(c *clientConfig) {
		c.openaiAPIKey = apiKey
		c.openaiModel = model
	})
}

// WithBaseURL points the embedding provider at a custom endpoint.
func WithBaseURL(url string) Option {
	return optionFunc(func(c *clientConfig) {
		c.openaiBaseURL = url
	})
}

// WithEmbedder sets a custom embedding provider. Takes precedence over
// WithOpenAI.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithCollection sets the vector collection queried by the pipeline.
// Default: "documents".
func WithCollection(name string) Option {
	return optionFunc(func(c *clientConfig) {
		c.collection = name
	})
}

// WithVectorDimensions sets the embedding dimension. Default: 1024.
func WithVectorDimensions(dim int) Option {
	return optionFunc(func(c *clientConfig) {
		c.vectorDimensions = dim
	})
}

// WithMaxRetries sets how many attempts the embedding provider gets before
// the fallback kicks in. Default: 3.
func WithMaxRetries(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxRetries = n
	})
}

// WithoutFallback disables deterministic fallback embeddings. Provider
// failures then surface as errors instead of degraded results.
func WithoutFallback() Option {
	return optionFunc(func(c *clientConfig) {
		c.noFallback = true
	})
}

// WithoutEmbeddingCache disables the persistent embedding cache.
func WithoutEmbeddingCache() Option {
	return optionFunc(func(c *clientConfig) {
		c.noEmbeddingCache = true
	})
}

// WithDeduplication enables duplicate detection on storage. threshold is the
// cosine similarity above which two vectors count as duplicates (default 0.95).
func WithDeduplication(threshold float64) Option {
	return optionFunc(func(c *clientConfig) {
		c.enableDeduplication = true
		c.dedupThreshold = threshold
	})
}

// WithCompression enables vector compression on storage. level is 1-9,
// algorithm is "quantization", "reduction", or "hybrid".
func WithCompression(level int, algorithm string) Option {
	return optionFunc(func(c *clientConfig) {
		c.enableCompression = true
		c.compressionLevel = level
		c.compressionAlgo = algorithm
	})
}

// WithResponseCache configures the search response cache.
// A zero ttl disables caching.
func WithResponseCache(ttl time.Duration, maxEntries int) Option {
	return optionFunc(func(c *clientConfig) {
		c.cacheTTL = ttl
		c.cacheMaxEntries = maxEntries
	})
}

// WithMaxConcurrent bounds concurrent search execution. Default: 8.
func WithMaxConcurrent(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxConcurrent = n
	})
}

// WithMaxContextTokens sets the assembled context token budget. Default: 4000.
func WithMaxContextTokens(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxContextTokens = n
	})
}

// WithTimeout bounds one end-to-end pipeline call. Default: 30s.
func WithTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.timeout = d
	})
}

// WithLogger enables structured logging for pipeline operations.
// Pass nil to disable (default).
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}
