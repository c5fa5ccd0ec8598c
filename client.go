package ragpipe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragpipe/internal/db"
	dbMemory "github.com/kailas-cloud/ragpipe/internal/db/memory"
	dbRedis "github.com/kailas-cloud/ragpipe/internal/db/redis"
	"github.com/kailas-cloud/ragpipe/internal/domain"
	"github.com/kailas-cloud/ragpipe/internal/domain/record"
	"github.com/kailas-cloud/ragpipe/internal/metrics"
	"github.com/kailas-cloud/ragpipe/internal/repository/embcache"
	openaitr "github.com/kailas-cloud/ragpipe/internal/transport/openai"
	contextoptuc "github.com/kailas-cloud/ragpipe/internal/usecase/contextopt"
	embeddinguc "github.com/kailas-cloud/ragpipe/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/ragpipe/internal/usecase/health"
	qualityuc "github.com/kailas-cloud/ragpipe/internal/usecase/quality"
	raguc "github.com/kailas-cloud/ragpipe/internal/usecase/rag"
	searchuc "github.com/kailas-cloud/ragpipe/internal/usecase/search"
	vectorstoreuc "github.com/kailas-cloud/ragpipe/internal/usecase/vectorstore"
)

const defaultReadinessTimeout = 10 * time.Second

// Client is the ragpipe SDK entry point: the full retrieval pipeline
// embedded in-process.
type Client struct {
	store      db.Backend
	vectors    *vectorstoreuc.Service
	contextSvc *contextoptuc.Service
	pipeline   *raguc.Service
	healthSvc  *healthuc.Service
	collection string
	cancel     context.CancelFunc
}

// New creates a ragpipe Client and connects to the backend.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		collection:       "documents",
		vectorDimensions: 1024,
		maxRetries:       3,
	}
	for _, o := range opts {
		o.apply(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}

	if cfg.driver == "" {
		return nil, errors.New("ragpipe: backend required (use WithRedis or WithMemoryStore)")
	}

	metrics.RegisterPipelineMetrics()

	store, err := createStore(cfg)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("ragpipe: backend not ready: %w", err)
	}
	if err := store.EnsureCollection(ctx, cfg.collection, cfg.vectorDimensions); err != nil {
		store.Close()
		return nil, fmt.Errorf("ragpipe: ensure collection: %w", err)
	}

	return wireClient(store, cfg)
}

func createStore(cfg *clientConfig) (db.Backend, error) {
	switch cfg.driver {
	case "redis":
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.addrs,
			Password: cfg.password,
		})
		if err != nil {
			return nil, fmt.Errorf("ragpipe: create redis store: %w", err)
		}
		return s, nil
	case "memory":
		return dbMemory.NewStore(), nil
	default:
		return nil, fmt.Errorf("ragpipe: unknown driver %q", cfg.driver)
	}
}

func wireClient(store db.Backend, cfg *clientConfig) (*Client, error) {
	log := cfg.logger

	emb, checker, err := buildEmbedder(store, cfg)
	if err != nil {
		store.Close()
		return nil, err
	}

	vectors := vectorstoreuc.New(store, store, vectorstoreuc.Options{
		Dimension:           cfg.vectorDimensions,
		EnableDeduplication: cfg.enableDeduplication,
		EnableCompression:   cfg.enableCompression,
		CompressionLevel:    cfg.compressionLevel,
		Algorithm:           record.Algorithm(cfg.compressionAlgo),
		DuplicateThreshold:  cfg.dedupThreshold,
	}, log)

	searchSvc := searchuc.New(store, emb, vectors, searchuc.Options{
		Collection:    cfg.collection,
		CacheTTL:      cfg.cacheTTL,
		CacheMaxItems: cfg.cacheMaxEntries,
		MaxConcurrent: cfg.maxConcurrent,
		EnableCache:   cfg.cacheTTL > 0,
	}, log)

	qualitySvc := qualityuc.New(qualityuc.Options{
		EnableDeduplication: true,
		EnableFiltering:     true,
		EnableReranking:     true,
	}, log)

	contextSvc := contextoptuc.New(contextoptuc.Options{
		MaxContextTokens:  cfg.maxContextTokens,
		EnableCompression: true,
	}, log)

	pipeline := raguc.New(searchSvc, qualitySvc, contextSvc, raguc.Options{
		Timeout: cfg.timeout,
	}, log)

	healthSvc := healthuc.New(store, checker)

	sweepCtx, cancel := context.WithCancel(context.Background())
	searchSvc.StartCacheSweep(sweepCtx)
	contextSvc.StartMemorySweep(sweepCtx)
	vectors.StartTierSweep(sweepCtx, cfg.collection)

	return &Client{
		store:      store,
		vectors:    vectors,
		contextSvc: contextSvc,
		pipeline:   pipeline,
		healthSvc:  healthSvc,
		collection: cfg.collection,
		cancel:     cancel,
	}, nil
}

// buildEmbedder assembles the embedding chain: provider, persistent cache,
// retry, deterministic fallback. Returns the chain head and the provider
// health checker (nil when no real provider is configured).
func buildEmbedder(store db.Backend, cfg *clientConfig) (domain.Embedder, healthuc.EmbeddingChecker, error) {
	var (
		emb     domain.Embedder
		checker healthuc.EmbeddingChecker
	)

	switch {
	case cfg.embedder != nil:
		emb = &embedderAdapter{inner: cfg.embedder}
	case cfg.openaiAPIKey != "":
		provider := openaitr.NewEmbedder(&openaitr.Config{
			APIKey:     cfg.openaiAPIKey,
			BaseURL:    cfg.openaiBaseURL,
			Model:      cfg.openaiModel,
			Dimensions: cfg.vectorDimensions,
			Provider:   "openai",
			Logger:     cfg.logger,
		})
		emb = provider
		checker = provider
	default:
		if cfg.noFallback {
			return nil, nil, errors.New(
				"ragpipe: embedder required (use WithOpenAI or WithEmbedder, or allow the fallback)")
		}
		emb = noopEmbedder{}
	}

	if _, isNoop := emb.(noopEmbedder); !isNoop {
		if !cfg.noEmbeddingCache {
			emb = embcache.New(emb, store, metrics.EmbeddingCacheTotal, cfg.logger)
		}
		emb = embeddinguc.NewRetryEmbedder(emb, cfg.maxRetries, cfg.logger)
	}
	if !cfg.noFallback {
		emb = embeddinguc.NewFallbackEmbedder(emb, cfg.vectorDimensions, cfg.logger)
	}

	return emb, checker, nil
}

// Close stops background sweeps and releases all resources.
func (c *Client) Close() {
	if c.cancel != nil {
		c.cancel()
	}
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks backend connectivity.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Query runs the full pipeline for one request.
func (c *Client) Query(ctx context.Context, req QueryRequest) (QueryResponse, error) {
	resp, err := c.pipeline.Query(ctx, raguc.Request{
		Query:            req.Query,
		ConversationID:   req.ConversationID,
		UserID:           req.UserID,
		AgentID:          req.AgentID,
		Filters:          req.Filters,
		AllowedDocuments: req.AllowedDocuments,
		MaxSources:       req.MaxSources,
		MinScore:         req.MinScore,
		QualityThreshold: req.QualityThreshold,
	})
	if err != nil {
		return QueryResponse{}, fmt.Errorf("query: %w", err)
	}
	return queryResponseFromPipeline(resp), nil
}

// StoreRecords persists pre-embedded records into a collection.
func (c *Client) StoreRecords(
	ctx context.Context, collection string, records []Record, method StoreMethod,
) (StoreResult, error) {
	if collection == "" {
		collection = c.collection
	}
	if collection != c.collection {
		if err := c.store.EnsureCollection(ctx, collection, 0); err != nil {
			return StoreResult{}, fmt.Errorf("store records: %w", err)
		}
	}

	recs := make([]record.Record, 0, len(records))
	for _, item := range records {
		rec, err := record.New(item.ID, item.DocumentID, item.ChunkID, item.Vector, item.Content, record.Metadata{
			Source:    item.Source,
			Title:     item.Title,
			DocType:   item.DocType,
			FileName:  item.FileName,
			CreatedAt: item.CreatedAt,
			Tags:      item.Tags,
		})
		if err != nil {
			return StoreResult{}, fmt.Errorf("store records: %w", err)
		}
		recs = append(recs, rec)
	}

	result, err := c.vectors.StoreVectors(ctx, collection, recs, vectorstoreuc.Method(method))
	if err != nil {
		return StoreResult{}, fmt.Errorf("store records: %w", err)
	}
	return storeResultFromUsecase(result), nil
}

// Conversation returns a read-only copy of a conversation's memory.
func (c *Client) Conversation(id string) (ConversationInfo, bool) {
	snap, ok := c.contextSvc.Conversation(id)
	if !ok {
		return ConversationInfo{}, false
	}

	messages := make([]ConversationMessage, len(snap.Messages))
	for i, m := range snap.Messages {
		messages[i] = ConversationMessage{
			Role:      string(m.Role),
			Content:   m.Content,
			Timestamp: m.Timestamp,
		}
	}

	return ConversationInfo{
		ID:            snap.ID,
		UserID:        snap.UserID,
		AgentID:       snap.AgentID,
		Messages:      messages,
		Summary:       snap.Summary,
		Topics:        snap.Topics,
		ContextWindow: snap.ContextWindow,
		LastUpdated:   snap.LastUpdated,
	}, true
}

// EndConversation evicts a conversation's memory. Returns false when unknown.
func (c *Client) EndConversation(id string) bool {
	return c.contextSvc.EndConversation(id)
}

// Health probes the backend and the embedding provider.
func (c *Client) Health(ctx context.Context) HealthReport {
	report := c.healthSvc.Check(ctx)

	checks := make(map[string]bool, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = v.OK
	}
	return HealthReport{Status: string(report.Status), Checks: checks}
}

// embedderAdapter wraps the public Embedder to satisfy internal
// domain.Embedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}
	return domain.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

// noopEmbedder always fails; with the fallback enabled every query is served
// a deterministic vector instead.
type noopEmbedder struct{}

func (noopEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{}, fmt.Errorf(
		"ragpipe: embedder not configured: %w", domain.ErrEmbeddingProviderError)
}
