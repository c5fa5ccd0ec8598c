package quality

import (
	"sort"

	"github.com/kailas-cloud/ragpipe/internal/domain"
	"github.com/kailas-cloud/ragpipe/internal/domain/text"
)

// Strategy selects the reranking algorithm.
type Strategy string

const (
	// StrategyScore orders by overall quality, descending.
	StrategyScore Strategy = "score"
	// StrategyDiversity greedily balances quality against novelty.
	StrategyDiversity Strategy = "diversity"
	// StrategyHybrid splits candidates in half, applies score-based and
	// diversity-based ordering, and interleaves the two lists.
	StrategyHybrid Strategy = "hybrid"
)

// Greedy diversity selection weights.
const (
	greedyQualityWeight   = 0.7
	greedyDiversityWeight = 0.3
)

type ranked struct {
	result  domain.SearchResult
	metrics domain.QualityMetrics
}

func rerank(items []ranked, strategy Strategy) []ranked {
	switch strategy {
	case StrategyDiversity:
		return rerankDiversity(items)
	case StrategyHybrid:
		return rerankHybrid(items)
	case StrategyScore:
		fallthrough
	default:
		return rerankScore(items)
	}
}

// rerankScore is a total order consistent with the overall quality score.
func rerankScore(items []ranked) []ranked {
	out := make([]ranked, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].metrics.Overall > out[j].metrics.Overall
	})
	return out
}

// rerankDiversity greedily picks the remaining candidate maximizing
// quality*w_q + (1 - maxSimilarityToSelected)*w_d at every step.
func rerankDiversity(items []ranked) []ranked {
	out := make([]ranked, 0, len(items))
	remaining := make([]ranked, len(items))
	copy(remaining, items)

	for len(remaining) > 0 {
		best := 0
		bestScore := -1.0
		for i, cand := range remaining {
			score := cand.metrics.Overall*greedyQualityWeight +
				(1-maxSimilarity(cand, out))*greedyDiversityWeight
			if score > bestScore {
				best = i
				bestScore = score
			}
		}
		out = append(out, remaining[best])
		remaining = append(remaining[:best], remaining[best+1:]...)
	}
	return out
}

func maxSimilarity(cand ranked, selected []ranked) float64 {
	maxSim := 0.0
	for _, s := range selected {
		if sim := text.Overlap(cand.result.Content, s.result.Content); sim > maxSim {
			maxSim = sim
		}
	}
	return maxSim
}

// rerankHybrid orders the first half by score and the second half by
// diversity, then interleaves the two lists position-by-position.
func rerankHybrid(items []ranked) []ranked {
	if len(items) < 2 {
		return rerankScore(items)
	}

	mid := len(items) / 2
	first := rerankScore(items[:mid])
	second := rerankDiversity(items[mid:])

	out := make([]ranked, 0, len(items))
	for i := 0; i < len(first) || i < len(second); i++ {
		if i < len(first) {
			out = append(out, first[i])
		}
		if i < len(second) {
			out = append(out, second[i])
		}
	}
	return out
}
