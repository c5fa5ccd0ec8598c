package rag

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragpipe/internal/domain"
	"github.com/kailas-cloud/ragpipe/internal/domain/conversation"
	"github.com/kailas-cloud/ragpipe/internal/logger"
	"github.com/kailas-cloud/ragpipe/internal/metrics"
	"github.com/kailas-cloud/ragpipe/internal/usecase/search"
)

// Composite quality score weights.
const (
	compositeRelevanceWeight   = 0.4
	compositeDiversityWeight   = 0.2
	compositeCredibilityWeight = 0.2
	compositeCoherenceWeight   = 0.2
)

// Request is one end-to-end pipeline call.
type Request struct {
	Query            string            `json:"query"`
	ConversationID   string            `json:"conversationId,omitempty"`
	UserID           string            `json:"userId,omitempty"`
	AgentID          string            `json:"agentId,omitempty"`
	Filters          map[string]string `json:"filters,omitempty"`
	AllowedDocuments []string          `json:"allowedDocuments,omitempty"`
	MaxSources       int               `json:"maxSources,omitempty"`
	MinScore         float64           `json:"minScore,omitempty"`
	QualityThreshold float64           `json:"qualityThreshold,omitempty"`
}

// StageTimings aggregates per-stage wall time in milliseconds.
type StageTimings struct {
	SearchMS  int64 `json:"searchMs"`
	QualityMS int64 `json:"qualityMs"`
	ContextMS int64 `json:"contextMs"`
	TotalMS   int64 `json:"totalMs"`
}

// Response is the pipeline output handed to the caller.
type Response struct {
	Context         domain.OptimizedContext `json:"context"`
	Quality         domain.QualityReport    `json:"quality"`
	Recommendations Recommendations         `json:"recommendations"`
	CompositeScore  float64                 `json:"compositeScore"`
	// MeetsQualityThreshold reports whether the composite score cleared
	// the configured quality threshold. Low-quality responses are still
	// returned; the flag lets callers decide what to do with them.
	MeetsQualityThreshold bool         `json:"meetsQualityThreshold"`
	Timings               StageTimings `json:"timings"`
	CacheHit              bool         `json:"cacheHit"`
	Fallback              bool         `json:"fallbackEmbedding,omitempty"`
}

// Options configures the orchestrator.
type Options struct {
	MaxSources       int
	QualityThreshold float64
	Timeout          time.Duration
}

// Service sequences search, quality, context optimization, and
// recommendation synthesis. It does no algorithmic work of its own and
// propagates the first hard failure from any stage.
type Service struct {
	search     SearchEngine
	quality    QualityEngine
	contextOpt ContextEngine
	opts       Options
	logger     *zap.Logger
}

// New creates the orchestrator.
func New(searchEngine SearchEngine, qualityEngine QualityEngine, contextEngine ContextEngine, opts Options, log *zap.Logger) *Service {
	if opts.MaxSources <= 0 {
		opts.MaxSources = 10
	}
	if opts.QualityThreshold <= 0 {
		opts.QualityThreshold = 0.6
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Service{
		search:     searchEngine,
		quality:    qualityEngine,
		contextOpt: contextEngine,
		opts:       opts,
		logger:     log,
	}
}

// Query runs the full pipeline for one request.
func (s *Service) Query(ctx context.Context, req Request) (Response, error) {
	if req.Query == "" {
		return Response{}, fmt.Errorf("empty query: %w", domain.ErrMissingContent)
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	total := time.Now()
	log := logger.FromContext(ctx)

	maxSources := req.MaxSources
	if maxSources <= 0 {
		maxSources = s.opts.MaxSources
	}

	searchStart := time.Now()
	searchResp, err := s.search.Search(ctx, search.Request{
		Query:    req.Query,
		Scope:    req.UserID,
		Filters:  req.Filters,
		TopK:     maxSources,
		MinScore: req.MinScore,
	})
	searchMS := time.Since(searchStart).Milliseconds()
	if err != nil {
		return Response{}, s.stageFailure(ctx, "search", err)
	}
	metrics.StageDuration.WithLabelValues("search").Observe(float64(searchMS) / 1000)

	results := searchResp.CloneResults()
	results = filterSources(results, req.AllowedDocuments)

	qualityStart := time.Now()
	report := s.quality.Process(searchResp.OptimizedQuery, results)
	qualityMS := time.Since(qualityStart).Milliseconds()
	metrics.StageDuration.WithLabelValues("quality").Observe(float64(qualityMS) / 1000)

	if req.ConversationID != "" {
		s.contextOpt.RecordMessage(
			req.ConversationID, req.UserID, req.AgentID,
			conversation.RoleUser, req.Query,
		)
	}

	contextStart := time.Now()
	optimized := s.contextOpt.Optimize(ctx, req.Query, report.Results, req.ConversationID)
	contextMS := time.Since(contextStart).Milliseconds()
	if err := ctx.Err(); err != nil {
		// Never hand back a silently truncated context.
		return Response{}, s.stageFailure(ctx, "context", err)
	}

	recs := s.recommend(req, optimized)

	threshold := req.QualityThreshold
	if threshold <= 0 {
		threshold = s.opts.QualityThreshold
	}
	composite := compositeScore(report, optimized)

	resp := Response{
		Context:               optimized,
		Quality:               report,
		Recommendations:       recs,
		CompositeScore:        composite,
		MeetsQualityThreshold: composite >= threshold,
		CacheHit:              searchResp.Cache.Hit,
		Fallback:              searchResp.FallbackEmbedding,
		Timings: StageTimings{
			SearchMS:  searchMS,
			QualityMS: qualityMS,
			ContextMS: contextMS,
			TotalMS:   time.Since(total).Milliseconds(),
		},
	}

	if !resp.MeetsQualityThreshold {
		log.Warn("Composite quality below threshold",
			zap.Float64("compositeScore", composite),
			zap.Float64("threshold", threshold),
		)
	}
	log.Info("Pipeline query completed",
		zap.Int("results", len(report.Results)),
		zap.Int("contextTokens", optimized.TokenCount),
		zap.Float64("compositeScore", resp.CompositeScore),
		zap.Bool("cacheHit", resp.CacheHit),
		zap.Int64("totalMs", resp.Timings.TotalMS),
	)
	return resp, nil
}

// filterSources keeps only results from the allowed documents. An empty
// allow-list keeps everything. Results without a document id fall back to
// their own id, so pre-chunked corpora can be filtered too.
func filterSources(results []domain.SearchResult, allowed []string) []domain.SearchResult {
	if len(allowed) == 0 {
		return results
	}
	allow := make(map[string]struct{}, len(allowed))
	for _, id := range allowed {
		allow[id] = struct{}{}
	}

	filtered := results[:0]
	for _, r := range results {
		id := r.DocumentID
		if id == "" {
			id = r.ID
		}
		if _, ok := allow[id]; ok {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

func (s *Service) stageFailure(ctx context.Context, stage string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %w", domain.ErrTimeout, err)
	}
	return domain.NewStageError(stage, err)
}

// compositeScore blends relevance, diversity, credibility, and coherence of
// the final output.
func compositeScore(report domain.QualityReport, optimized domain.OptimizedContext) float64 {
	if len(report.Metrics) == 0 {
		return 0
	}

	var relevance, diversity, credibility float64
	for _, m := range report.Metrics {
		relevance += m.Relevance
		diversity += m.Diversity
		credibility += m.Authority
	}
	n := float64(len(report.Metrics))
	relevance /= n
	diversity /= n
	credibility /= n

	return relevance*compositeRelevanceWeight +
		diversity*compositeDiversityWeight +
		credibility*compositeCredibilityWeight +
		optimized.Meta.CoherenceScore*compositeCoherenceWeight
}
