package domain

// Quality score weights. The overall score is the weighted blend of the six
// factors; weights sum to 1.
const (
	WeightRelevance    = 0.30
	WeightDiversity    = 0.15
	WeightCompleteness = 0.15
	WeightCoherence    = 0.15
	WeightFreshness    = 0.10
	WeightAuthority    = 0.15
)

// QualityMetrics holds the per-result factor scores for one query.
type QualityMetrics struct {
	Relevance    float64 `json:"relevance"`
	Diversity    float64 `json:"diversity"`
	Completeness float64 `json:"completeness"`
	Coherence    float64 `json:"coherence"`
	Freshness    float64 `json:"freshness"`
	Authority    float64 `json:"authority"`
	Overall      float64 `json:"overall"`
}

// WeightedOverall computes the blended overall score from the factor scores.
func (m QualityMetrics) WeightedOverall() float64 {
	return m.Relevance*WeightRelevance +
		m.Diversity*WeightDiversity +
		m.Completeness*WeightCompleteness +
		m.Coherence*WeightCoherence +
		m.Freshness*WeightFreshness +
		m.Authority*WeightAuthority
}

// DuplicateGroup clusters results judged to represent the same content.
// Computed once per result set, consumed to filter, never persisted.
type DuplicateGroup struct {
	OriginalIndex     int     `json:"originalIndex"`
	DuplicateIndices  []int   `json:"duplicateIndices"`
	Similarity        float64 `json:"similarity"`
	RepresentativeKey string  `json:"representativeContent"`
}

// QualityImprovement reports measured deltas versus the unranked input.
type QualityImprovement struct {
	Relevance float64 `json:"relevance"`
	Diversity float64 `json:"diversity"`
	Quality   float64 `json:"quality"`
}

// QualityReport is the output of the quality and reranking engine.
type QualityReport struct {
	Results         []SearchResult     `json:"results"`
	Metrics         []QualityMetrics   `json:"metrics"`
	DuplicateGroups []DuplicateGroup   `json:"duplicateGroups"`
	RemovedCount    int                `json:"removedCount"`
	FilteredCount   int                `json:"filteredCount"`
	Improvement     QualityImprovement `json:"improvement"`
}
