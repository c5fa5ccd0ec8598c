package search

import (
	"sort"

	"github.com/kailas-cloud/ragpipe/internal/domain"
)

// rrfK is the Reciprocal Rank Fusion constant (standard value from Cormack et al. 2009).
const rrfK = 60

// fuseRRF merges semantic and keyword results via Reciprocal Rank Fusion.
// score(d) = sum of 1/(k + rank_i(d)) for each ranking where d appears.
// When a result appears in both lists, the semantic copy is kept and the
// keyword score is folded in.
func fuseRRF(semantic, keyword []domain.SearchResult, topK int) []domain.SearchResult {
	type scored struct {
		res   domain.SearchResult
		score float64
	}

	merged := make(map[string]*scored, len(semantic)+len(keyword))
	order := make([]string, 0, len(semantic)+len(keyword))

	for rank, r := range semantic {
		s := 1.0 / float64(rrfK+rank+1)
		merged[r.ID] = &scored{res: r, score: s}
		order = append(order, r.ID)
	}

	for rank, r := range keyword {
		s := 1.0 / float64(rrfK+rank+1)
		if existing, ok := merged[r.ID]; ok {
			existing.score += s
			existing.res.KeywordScore = r.KeywordScore
			continue
		}
		merged[r.ID] = &scored{res: r, score: s}
		order = append(order, r.ID)
	}

	results := make([]domain.SearchResult, 0, len(merged))
	for _, id := range order {
		s := merged[id]
		s.res.Relevance = s.score
		results = append(results, s.res)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Relevance > results[j].Relevance
	})

	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	for i := range results {
		results[i].Rank = i + 1
	}
	return results
}
