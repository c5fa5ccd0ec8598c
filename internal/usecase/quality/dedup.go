package quality

import (
	"github.com/kailas-cloud/ragpipe/internal/domain"
	"github.com/kailas-cloud/ragpipe/internal/domain/text"
)

// groupDuplicates clusters results whose pairwise content similarity exceeds
// the threshold. Exactly one representative per group survives: the first
// encountered in input order, which is typically the highest-ranked.
func groupDuplicates(
	results []domain.SearchResult, threshold float64,
) (survivors []int, groups []domain.DuplicateGroup) {
	taken := make([]bool, len(results))

	for i := range results {
		if taken[i] {
			continue
		}
		survivors = append(survivors, i)

		var dupIdx []int
		maxSim := 0.0
		for j := i + 1; j < len(results); j++ {
			if taken[j] {
				continue
			}
			sim := text.Overlap(results[i].Content, results[j].Content)
			if sim > threshold {
				taken[j] = true
				dupIdx = append(dupIdx, j)
				if sim > maxSim {
					maxSim = sim
				}
			}
		}

		if len(dupIdx) > 0 {
			groups = append(groups, domain.DuplicateGroup{
				OriginalIndex:     i,
				DuplicateIndices:  dupIdx,
				Similarity:        maxSim,
				RepresentativeKey: snippet(results[i].Content),
			})
		}
	}
	return survivors, groups
}

// snippet keeps the first 80 characters for the group key.
func snippet(content string) string {
	if len(content) > 80 {
		return content[:80]
	}
	return content
}
