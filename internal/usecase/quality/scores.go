package quality

import (
	"math"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/kailas-cloud/ragpipe/internal/domain"
	"github.com/kailas-cloud/ragpipe/internal/domain/text"
)

// Relevance blend weights: semantic score, keyword overlap with the query,
// contextual term overlap with query plus title.
const (
	relevanceSemanticWeight = 0.5
	relevanceKeywordWeight  = 0.3
	relevanceContextWeight  = 0.2
)

// freshnessHalfLife is the content-age half-life for the freshness factor.
const freshnessHalfLife = 365 * 24 * time.Hour

// scoreCacheLimit bounds the per-(result, query) factor cache.
const scoreCacheLimit = 4096

type scoreKey struct {
	resultID  string
	queryHash uint64
}

// cachedFactors holds the factors that depend only on the result and the
// query, not on the rest of the result set. Diversity is always recomputed.
type cachedFactors struct {
	relevance    float64
	completeness float64
	coherence    float64
	freshness    float64
	authority    float64
}

// scorer computes per-result quality factors with a bounded memo.
type scorer struct {
	mu    sync.Mutex
	cache map[scoreKey]cachedFactors

	now func() time.Time
}

func newScorer() *scorer {
	return &scorer{
		cache: make(map[scoreKey]cachedFactors),
		now:   time.Now,
	}
}

// scoreAll computes the six factors for every result. Diversity is measured
// within the given set; the remaining factors are memoized per result/query.
func (s *scorer) scoreAll(query string, results []domain.SearchResult) []domain.QualityMetrics {
	metrics := make([]domain.QualityMetrics, len(results))
	qh := xxhash.Sum64String(query)

	for i := range results {
		f := s.factors(qh, query, &results[i])
		metrics[i] = domain.QualityMetrics{
			Relevance:    f.relevance,
			Diversity:    diversity(i, results),
			Completeness: f.completeness,
			Coherence:    f.coherence,
			Freshness:    f.freshness,
			Authority:    f.authority,
		}
		metrics[i].Overall = metrics[i].WeightedOverall()
	}
	return metrics
}

func (s *scorer) factors(qh uint64, query string, r *domain.SearchResult) cachedFactors {
	key := scoreKey{resultID: r.ID, queryHash: qh}

	s.mu.Lock()
	if f, ok := s.cache[key]; ok {
		s.mu.Unlock()
		return f
	}
	s.mu.Unlock()

	f := cachedFactors{
		relevance:    relevance(query, r),
		completeness: completeness(r),
		coherence:    coherence(r.Content),
		freshness:    s.freshness(r.Meta.CreatedAt),
		authority:    authority(r),
	}

	s.mu.Lock()
	if len(s.cache) >= scoreCacheLimit {
		s.cache = make(map[scoreKey]cachedFactors)
	}
	s.cache[key] = f
	s.mu.Unlock()
	return f
}

func relevance(query string, r *domain.SearchResult) float64 {
	semantic := clamp01(r.SemanticScore)
	keyword := text.Overlap(query, r.Content)
	contextual := text.Overlap(query, r.Meta.Title+" "+r.Content)

	return semantic*relevanceSemanticWeight +
		keyword*relevanceKeywordWeight +
		contextual*relevanceContextWeight
}

// diversity is the product of (1 - similarity) against every other result.
// A result identical to many others scores near zero.
func diversity(i int, results []domain.SearchResult) float64 {
	if len(results) <= 1 {
		return 1
	}
	d := 1.0
	for j := range results {
		if j == i {
			continue
		}
		d *= 1 - text.Overlap(results[i].Content, results[j].Content)
	}
	return clamp01(d)
}

func completeness(r *domain.SearchResult) float64 {
	// Content length saturates at 500 characters.
	length := float64(len(r.Content)) / 500
	if length > 1 {
		length = 1
	}

	metaFields := 0.0
	if r.Meta.Title != "" {
		metaFields++
	}
	if r.Meta.Source != "" {
		metaFields++
	}
	if r.Meta.DocType != "" {
		metaFields++
	}
	if !r.Meta.CreatedAt.IsZero() {
		metaFields++
	}

	surrounding := 0.0
	if r.DocumentID != "" {
		surrounding += 0.5
	}
	if r.ChunkID != "" {
		surrounding += 0.5
	}

	return length*0.5 + (metaFields/4)*0.3 + surrounding*0.2
}

// coherence scores sentence structure and penalizes repetition.
func coherence(content string) float64 {
	sentences := text.Sentences(content)
	if len(sentences) == 0 {
		return 0
	}

	// Sentence length in the 5..30 word band reads as structured prose.
	structured := 0
	totalWords := 0
	for _, s := range sentences {
		n := len(text.Words(s))
		totalWords += n
		if n >= 5 && n <= 30 {
			structured++
		}
	}
	structure := float64(structured) / float64(len(sentences))

	words := text.Words(content)
	if len(words) == 0 {
		return structure * 0.6
	}
	unique := make(map[string]struct{}, len(words))
	for _, w := range words {
		unique[w] = struct{}{}
	}
	variety := float64(len(unique)) / float64(len(words))

	return structure*0.6 + variety*0.4
}

// freshness decays exponentially with content age, half-life one year.
// Undated content gets a neutral score.
func (s *scorer) freshness(createdAt time.Time) float64 {
	if createdAt.IsZero() {
		return 0.5
	}
	age := s.now().Sub(createdAt)
	if age <= 0 {
		return 1
	}
	return math.Pow(0.5, age.Hours()/freshnessHalfLife.Hours())
}

var docTypePriors = map[string]float64{
	"documentation": 0.9,
	"specification": 0.9,
	"paper":         0.85,
	"article":       0.7,
	"wiki":          0.65,
	"blog":          0.5,
	"forum":         0.3,
	"comment":       0.2,
}

func authority(r *domain.SearchResult) float64 {
	score := 0.5
	if prior, ok := docTypePriors[strings.ToLower(r.Meta.DocType)]; ok {
		score = prior
	}

	name := strings.ToLower(filepath.Base(r.Meta.FileName))
	switch {
	case strings.HasPrefix(name, "readme"),
		strings.Contains(name, "official"),
		strings.Contains(name, "spec"):
		score += 0.1
	case strings.Contains(name, "draft"),
		strings.Contains(name, "tmp"),
		strings.Contains(name, "scratch"):
		score -= 0.1
	}

	return clamp01(score)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
