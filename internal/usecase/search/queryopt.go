package search

import (
	"strings"
	"sync"

	"github.com/kailas-cloud/ragpipe/internal/domain/text"
)

// memoLimit bounds the optimized-query memo. The memo is dropped wholesale
// when full; per-entry eviction is not worth the bookkeeping for short keys.
const memoLimit = 1024

// queryOptimizer normalizes query text: trim, lowercase, stop-word removal.
// Results are memoized per raw query. Safe for concurrent use.
type queryOptimizer struct {
	mu   sync.RWMutex
	memo map[string]string
}

func newQueryOptimizer() *queryOptimizer {
	return &queryOptimizer{memo: make(map[string]string)}
}

func (q *queryOptimizer) optimize(raw string) string {
	q.mu.RLock()
	if opt, ok := q.memo[raw]; ok {
		q.mu.RUnlock()
		return opt
	}
	q.mu.RUnlock()

	opt := normalizeQuery(raw)

	q.mu.Lock()
	if len(q.memo) >= memoLimit {
		q.memo = make(map[string]string)
	}
	q.memo[raw] = opt
	q.mu.Unlock()

	return opt
}

// normalizeQuery lowercases and strips stop words. A query made entirely of
// stop words is kept as-is (lowercased) rather than emptied.
func normalizeQuery(raw string) string {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	words := strings.Fields(trimmed)

	kept := make([]string, 0, len(words))
	for _, w := range words {
		if !text.IsStopWord(w) {
			kept = append(kept, w)
		}
	}
	if len(kept) == 0 {
		return trimmed
	}
	return strings.Join(kept, " ")
}
