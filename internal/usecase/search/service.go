package search

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragpipe/internal/db"
	"github.com/kailas-cloud/ragpipe/internal/domain"
	"github.com/kailas-cloud/ragpipe/internal/domain/record"
	"github.com/kailas-cloud/ragpipe/internal/logger"
	"github.com/kailas-cloud/ragpipe/internal/metrics"
)

// Request is one search call.
type Request struct {
	Query    string
	Scope    string
	Filters  map[string]string
	TopK     int
	MinScore float64
}

// Options configures the search engine.
type Options struct {
	Collection    string
	DefaultTopK   int
	CacheTTL      time.Duration
	CacheMaxItems int
	MaxConcurrent int
	EnableCache   bool
	SweepInterval time.Duration
}

// Service is the search and cache engine. It optimizes query text, runs
// semantic and keyword retrieval concurrently, fuses the rankings, and
// memoizes full responses.
type Service struct {
	store  Searcher
	embed  Embedder
	access AccessRecorder
	cache  *responseCache
	gate   *gate
	qopt   *queryOptimizer
	opts   Options
	logger *zap.Logger
}

// New creates the search engine. access may be nil when tiering is off.
func New(store Searcher, embed Embedder, access AccessRecorder, opts Options, log *zap.Logger) *Service {
	if opts.DefaultTopK <= 0 {
		opts.DefaultTopK = 10
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 8
	}
	return &Service{
		store:  store,
		embed:  embed,
		access: access,
		cache:  newResponseCache(opts.CacheTTL, opts.CacheMaxItems, log),
		gate:   newGate(opts.MaxConcurrent),
		qopt:   newQueryOptimizer(),
		opts:   opts,
		logger: log,
	}
}

// StartCacheSweep runs the periodic TTL purge until ctx is done.
func (s *Service) StartCacheSweep(ctx context.Context) {
	s.cache.startSweep(ctx, s.opts.SweepInterval)
}

// Search runs the full retrieval pipeline for one query.
// Semantic retrieval failure fails the call; keyword retrieval failure is
// non-fatal when semantic results exist.
func (s *Service) Search(ctx context.Context, req Request) (domain.SearchResponse, error) {
	if err := s.gate.acquire(ctx); err != nil {
		return domain.SearchResponse{}, fmt.Errorf("acquire query slot: %w", err)
	}
	defer s.gate.release()

	total := time.Now()
	log := logger.FromContext(ctx)

	optStart := time.Now()
	optimized := s.qopt.optimize(req.Query)
	optimizeMS := time.Since(optStart).Milliseconds()

	key := cacheKey(optimized, req)
	if s.opts.EnableCache {
		if cached, age, ok := s.cache.get(key); ok {
			cached.Cache = domain.CacheInfo{Hit: true, Key: key, AgeMS: age.Milliseconds()}
			cached.Timings.TotalMS = time.Since(total).Milliseconds()
			log.Debug("Search cache hit", zap.String("key", key))
			return cached, nil
		}
	}

	topK := req.TopK
	if topK <= 0 {
		topK = s.opts.DefaultTopK
	}

	embResult, err := s.embed.Embed(ctx, optimized)
	if err != nil {
		return domain.SearchResponse{}, fmt.Errorf("vectorize query: %w", err)
	}

	// Keyword retrieval runs alongside semantic retrieval.
	type keywordOut struct {
		results []domain.SearchResult
		tookMS  int64
		err     error
	}
	kwCh := make(chan keywordOut, 1)
	go func() {
		start := time.Now()
		results, kwErr := s.searchKeyword(ctx, optimized, topK, req.Filters)
		kwCh <- keywordOut{results: results, tookMS: time.Since(start).Milliseconds(), err: kwErr}
	}()

	semStart := time.Now()
	semantic, err := s.searchSemantic(ctx, embResult.Embedding, topK, req.Filters)
	semanticMS := time.Since(semStart).Milliseconds()
	if err != nil {
		<-kwCh
		return domain.SearchResponse{}, fmt.Errorf("semantic search: %w", err)
	}
	metrics.StageDuration.WithLabelValues("semantic_search").Observe(float64(semanticMS) / 1000)

	kw := <-kwCh
	if kw.err != nil {
		log.Warn("Keyword search failed, continuing with semantic results", zap.Error(kw.err))
		kw.results = nil
	}

	mergeStart := time.Now()
	results := fuseRRF(semantic, kw.results, topK)
	results = filterMinScore(results, req.MinScore)
	mergeMS := time.Since(mergeStart).Milliseconds()

	if s.access != nil {
		ids := make([]string, len(results))
		for i, r := range results {
			ids[i] = r.ID
		}
		s.access.Touch(ids...)
	}

	resp := domain.SearchResponse{
		Query:          req.Query,
		OptimizedQuery: optimized,
		Results:        results,
		TotalFound:     len(results),
		Timings: domain.SearchTimings{
			OptimizeMS: optimizeMS,
			SemanticMS: semanticMS,
			KeywordMS:  kw.tookMS,
			MergeMS:    mergeMS,
			TotalMS:    time.Since(total).Milliseconds(),
		},
		Cache:             domain.CacheInfo{Hit: false, Key: key},
		FallbackEmbedding: embResult.Fallback,
	}

	if s.opts.EnableCache {
		s.cache.put(key, resp)
	}
	return resp, nil
}

func (s *Service) searchSemantic(
	ctx context.Context, vector []float32, topK int, filters map[string]string,
) ([]domain.SearchResult, error) {
	hits, err := s.store.QueryByVector(ctx, s.opts.Collection, vector, topK, filters)
	if err != nil {
		return nil, fmt.Errorf("query by vector: %w", err)
	}

	results := make([]domain.SearchResult, len(hits))
	for i, hit := range hits {
		results[i] = hitToResult(hit)
		results[i].SemanticScore = hit.Score
		results[i].Distance = hit.Distance
	}
	return results, nil
}

func (s *Service) searchKeyword(
	ctx context.Context, query string, topK int, filters map[string]string,
) ([]domain.SearchResult, error) {
	if !s.store.SupportsTextSearch(ctx) {
		return nil, nil
	}

	hits, err := s.store.TextScores(ctx, s.opts.Collection, query, topK, filters)
	if err != nil {
		return nil, fmt.Errorf("text scores: %w", err)
	}

	results := make([]domain.SearchResult, len(hits))
	for i, hit := range hits {
		results[i] = hitToResult(hit)
		results[i].KeywordScore = hit.Score
	}
	return results, nil
}

func hitToResult(hit db.QueryHit) domain.SearchResult {
	result := domain.SearchResult{
		ID:         hit.ID,
		Content:    hit.Fields["content"],
		DocumentID: hit.Fields["documentId"],
		ChunkID:    hit.Fields["chunkId"],
	}
	if raw, ok := hit.Fields["meta"]; ok && raw != "" {
		var meta record.Metadata
		if json.Unmarshal([]byte(raw), &meta) == nil {
			result.Meta = meta
		}
	}
	return result
}

// filterMinScore drops results whose retrieval score falls below minScore.
// The comparison uses the underlying semantic or keyword score, both in the
// same [0,1] scale as the caller's threshold; the fused rank score is not
// comparable to it.
func filterMinScore(results []domain.SearchResult, minScore float64) []domain.SearchResult {
	if minScore <= 0 {
		return results
	}
	filtered := results[:0]
	for _, r := range results {
		score := r.SemanticScore
		if r.KeywordScore > score {
			score = r.KeywordScore
		}
		if score >= minScore {
			filtered = append(filtered, r)
		}
	}
	for i := range filtered {
		filtered[i].Rank = i + 1
	}
	return filtered
}

// cacheKey hashes the optimized query, caller scope, filters, and the
// knobs that change the result set.
func cacheKey(optimized string, req Request) string {
	h := xxhash.New()
	_, _ = h.WriteString(optimized)
	_, _ = h.WriteString("|")
	_, _ = h.WriteString(req.Scope)
	_, _ = h.WriteString("|")

	keys := make([]string, 0, len(req.Filters))
	for k := range req.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		_, _ = h.WriteString(k)
		_, _ = h.WriteString("=")
		_, _ = h.WriteString(req.Filters[k])
		_, _ = h.WriteString("&")
	}

	_, _ = h.WriteString(strconv.Itoa(req.TopK))
	_, _ = h.WriteString("|")
	_, _ = h.WriteString(strconv.FormatFloat(req.MinScore, 'f', 4, 64))

	return strconv.FormatUint(h.Sum64(), 16)
}
