package quality

import (
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragpipe/internal/domain"
	"github.com/kailas-cloud/ragpipe/internal/metrics"
)

// Options configures the quality engine.
type Options struct {
	DuplicateThreshold  float64
	MinQualityScore     float64
	Strategy            Strategy
	EnableDeduplication bool
	EnableFiltering     bool
	EnableReranking     bool
}

// Service is the quality and reranking engine. It scores, deduplicates,
// filters, and reorders a raw result set. An empty input is a valid input:
// the engine returns an empty report with zero scores rather than erroring.
type Service struct {
	scorer *scorer
	opts   Options
	logger *zap.Logger
}

// New creates the quality engine.
func New(opts Options, logger *zap.Logger) *Service {
	if opts.DuplicateThreshold <= 0 {
		opts.DuplicateThreshold = 0.85
	}
	if opts.MinQualityScore <= 0 {
		opts.MinQualityScore = 0.5
	}
	if opts.Strategy == "" {
		opts.Strategy = StrategyScore
	}
	return &Service{
		scorer: newScorer(),
		opts:   opts,
		logger: logger,
	}
}

// Process turns a raw result set into a deduplicated, quality-filtered,
// reordered set with per-result metrics and improvement deltas.
func (s *Service) Process(query string, results []domain.SearchResult) domain.QualityReport {
	if len(results) == 0 {
		return domain.QualityReport{}
	}

	inputMetrics := s.scorer.scoreAll(query, results)
	before := averages(inputMetrics)

	items := make([]ranked, len(results))
	for i := range results {
		items[i] = ranked{result: results[i], metrics: inputMetrics[i]}
	}

	var groups []domain.DuplicateGroup
	removed := 0
	if s.opts.EnableDeduplication {
		var survivors []int
		survivors, groups = groupDuplicates(results, s.opts.DuplicateThreshold)
		removed = len(results) - len(survivors)
		for _, g := range groups {
			metrics.DuplicatesDetectedTotal.WithLabelValues("result_set").
				Add(float64(len(g.DuplicateIndices)))
		}

		kept := make([]ranked, 0, len(survivors))
		for _, idx := range survivors {
			kept = append(kept, items[idx])
		}
		items = kept
	}

	filtered := 0
	if s.opts.EnableFiltering {
		kept := items[:0]
		for _, it := range items {
			if it.metrics.Overall >= s.opts.MinQualityScore {
				kept = append(kept, it)
			}
		}
		filtered = len(items) - len(kept)
		items = kept
	}

	if s.opts.EnableReranking {
		items = rerank(items, s.opts.Strategy)
	}

	// Diversity shifts once duplicates are gone; rescore the final set.
	finalResults := make([]domain.SearchResult, len(items))
	for i, it := range items {
		finalResults[i] = it.result
	}
	finalMetrics := s.scorer.scoreAll(query, finalResults)
	for i := range finalMetrics {
		// Keep the input relevance ordering visible to callers.
		finalResults[i].Rank = i + 1
	}
	after := averages(finalMetrics)

	if removed > 0 || filtered > 0 {
		s.logger.Debug("Quality pass trimmed result set",
			zap.Int("input", len(results)),
			zap.Int("duplicatesRemoved", removed),
			zap.Int("qualityFiltered", filtered),
		)
	}

	return domain.QualityReport{
		Results:         finalResults,
		Metrics:         finalMetrics,
		DuplicateGroups: groups,
		RemovedCount:    removed,
		FilteredCount:   filtered,
		Improvement: domain.QualityImprovement{
			Relevance: after.Relevance - before.Relevance,
			Diversity: after.Diversity - before.Diversity,
			Quality:   after.Overall - before.Overall,
		},
	}
}

func averages(metrics []domain.QualityMetrics) domain.QualityMetrics {
	if len(metrics) == 0 {
		return domain.QualityMetrics{}
	}
	var avg domain.QualityMetrics
	for _, m := range metrics {
		avg.Relevance += m.Relevance
		avg.Diversity += m.Diversity
		avg.Overall += m.Overall
	}
	n := float64(len(metrics))
	avg.Relevance /= n
	avg.Diversity /= n
	avg.Overall /= n
	return avg
}
