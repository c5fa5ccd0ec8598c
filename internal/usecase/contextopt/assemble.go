package contextopt

import (
	"sort"
	"strings"

	"github.com/kailas-cloud/ragpipe/internal/domain"
	"github.com/kailas-cloud/ragpipe/internal/domain/text"
)

// summaryBudgetShare caps the token share of the conversation summary.
const summaryBudgetShare = 0.2

type assembled struct {
	content    string
	tokenCount int
	included   []domain.Chunk
	summary    string
}

// assemble fills the token budget: up to 20% goes to the conversation
// summary when it fits, the remainder to chunks in descending relevance
// order. A chunk that would overflow is skipped whole, never truncated.
func assemble(chunks []domain.Chunk, summary string, maxTokens int) assembled {
	if maxTokens <= 0 {
		maxTokens = 4000
	}

	var parts []string
	used := 0

	var usedSummary string
	if summary != "" {
		budget := int(float64(maxTokens) * summaryBudgetShare)
		if n := text.EstimateTokens(summary); n <= budget {
			parts = append(parts, summary)
			used += n
			usedSummary = summary
		}
	}

	ordered := make([]domain.Chunk, len(chunks))
	copy(ordered, chunks)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Relevance > ordered[j].Relevance
	})

	var included []domain.Chunk
	for _, chunk := range ordered {
		if chunk.TokenCount == 0 || used+chunk.TokenCount > maxTokens {
			continue
		}
		parts = append(parts, chunk.Content)
		used += chunk.TokenCount
		included = append(included, chunk)
	}

	return assembled{
		content:    strings.Join(parts, "\n\n"),
		tokenCount: used,
		included:   included,
		summary:    usedSummary,
	}
}
