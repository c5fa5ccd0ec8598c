package contextopt

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragpipe/internal/domain"
	"github.com/kailas-cloud/ragpipe/internal/domain/conversation"
	"github.com/kailas-cloud/ragpipe/internal/domain/text"
	"github.com/kailas-cloud/ragpipe/internal/metrics"
)

// Options configures the context optimizer.
type Options struct {
	MaxContextTokens    int
	MaxChunkWords       int
	OverlapWords        int
	ChunkingStrategy    domain.ChunkingStrategy
	CompressionStrategy domain.CompressionStrategy
	CompressionRatio    float64
	EnableCompression   bool

	MemorySize    int
	IdleTimeout   time.Duration
	SweepInterval time.Duration
}

// Service is the context optimizer: it chunks and compresses quality-filtered
// results, tracks per-conversation memory, and assembles a token-bounded
// context block.
type Service struct {
	chunker    *chunker
	compressor *compressor
	memory     *memoryStore
	opts       Options
	logger     *zap.Logger
}

// New creates the context optimizer.
func New(opts Options, logger *zap.Logger) *Service {
	if opts.MaxContextTokens <= 0 {
		opts.MaxContextTokens = 4000
	}
	if opts.MaxChunkWords <= 0 {
		opts.MaxChunkWords = 120
	}
	if opts.OverlapWords < 0 || opts.OverlapWords >= opts.MaxChunkWords {
		opts.OverlapWords = 20
	}
	if opts.ChunkingStrategy == "" {
		opts.ChunkingStrategy = domain.ChunkingSemantic
	}
	if opts.CompressionStrategy == "" {
		opts.CompressionStrategy = domain.CompressionExtractive
	}
	if opts.CompressionRatio <= 0 || opts.CompressionRatio > 1 {
		opts.CompressionRatio = 0.6
	}

	return &Service{
		chunker:    &chunker{maxWords: opts.MaxChunkWords, overlapWords: opts.OverlapWords},
		compressor: &compressor{strategy: opts.CompressionStrategy, ratio: opts.CompressionRatio},
		memory:     newMemoryStore(opts.MemorySize, opts.IdleTimeout, logger),
		opts:       opts,
		logger:     logger,
	}
}

// StartMemorySweep evicts idle conversations until ctx is done.
func (s *Service) StartMemorySweep(ctx context.Context) {
	s.memory.startSweep(ctx, s.opts.SweepInterval)
}

// RecordMessage appends a turn to a conversation's memory.
func (s *Service) RecordMessage(convID, userID, agentID string, role conversation.Role, content string) {
	if convID == "" || content == "" {
		return
	}
	s.memory.addMessage(convID, userID, agentID, conversation.Message{Role: role, Content: content})
}

// Conversation returns a read-only copy of a conversation's memory.
func (s *Service) Conversation(convID string) (Snapshot, bool) {
	return s.memory.snapshot(convID)
}

// EndConversation evicts a conversation. Returns false when unknown.
func (s *Service) EndConversation(convID string) bool {
	return s.memory.drop(convID)
}

// Optimize turns a quality-filtered result set plus conversation memory into
// a token-bounded context. Empty input yields an empty context with zero
// scores, not an error.
func (s *Service) Optimize(
	ctx context.Context, query string, results []domain.SearchResult, convID string,
) domain.OptimizedContext {
	start := time.Now()
	defer func() {
		metrics.StageDuration.WithLabelValues("context_optimize").Observe(time.Since(start).Seconds())
	}()

	var snap Snapshot
	if convID != "" {
		snap, _ = s.memory.snapshot(convID)
	}

	originalTokens := 0
	for i := range results {
		originalTokens += text.EstimateTokens(results[i].Content)
	}

	chunks := s.chunker.chunkResults(results, s.opts.ChunkingStrategy)
	if s.opts.EnableCompression {
		for i := range chunks {
			if ctx.Err() != nil {
				break
			}
			s.compressor.compressChunk(&chunks[i], snap.Entities)
		}
	}

	out := assemble(chunks, snap.Summary, s.opts.MaxContextTokens)

	ratio := 1.0
	if originalTokens > 0 {
		ratio = float64(out.tokenCount) / float64(originalTokens)
	}

	result := domain.OptimizedContext{
		Content:             out.content,
		TokenCount:          out.tokenCount,
		RelevanceScore:      weightedRelevance(out.included),
		CompressionRatio:    ratio,
		Sources:             sourceIDs(out.included),
		ConversationSummary: out.summary,
		KeyInsights:         keyInsights(out.content),
		EntityMentions:      entityMentions(out.content, snap.Entities),
		Meta: domain.ContextMetadata{
			OriginalTokenCount: originalTokens,
			ChunkingStrategy:   s.opts.ChunkingStrategy,
			Version:            1,
		},
	}

	// Output metrics describe the assembled content, not the inputs.
	result.Meta.QualityScore = assembledQuality(out)
	result.Meta.CoherenceScore = assembledCoherence(out.content)
	result.Meta.TopicConsistency = topicConsistency(out.included)
	return result
}

func weightedRelevance(chunks []domain.Chunk) float64 {
	totalTokens := 0
	sum := 0.0
	for _, c := range chunks {
		sum += c.Relevance * float64(c.TokenCount)
		totalTokens += c.TokenCount
	}
	if totalTokens == 0 {
		return 0
	}
	return sum / float64(totalTokens)
}

func sourceIDs(chunks []domain.Chunk) []string {
	seen := make(map[string]struct{}, len(chunks))
	var out []string
	for _, c := range chunks {
		if _, ok := seen[c.SourceID]; ok {
			continue
		}
		seen[c.SourceID] = struct{}{}
		out = append(out, c.SourceID)
	}
	return out
}

// keyInsights picks the highest term-frequency sentences of the assembled
// content.
func keyInsights(content string) []string {
	sentences := text.Sentences(content)
	if len(sentences) == 0 {
		return nil
	}

	freq := text.TermFrequencies(content)
	best := ""
	bestScore := -1.0
	var insights []string
	for _, s := range sentences {
		words := text.ContentWords(s)
		if len(words) < 4 {
			continue
		}
		score := 0.0
		for _, w := range words {
			score += float64(freq[w])
		}
		score /= float64(len(words))
		if score > bestScore {
			best = s
			bestScore = score
		}
	}
	if best != "" {
		insights = append(insights, best)
	}
	return insights
}

// entityMentions counts occurrences of extracted and tracked entities in the
// assembled content.
func entityMentions(content string, tracked map[string]int) map[string]int {
	mentions := make(map[string]int)
	lower := strings.ToLower(content)

	for _, e := range text.Entities(content) {
		mentions[e] = strings.Count(lower, strings.ToLower(e))
	}
	for e := range tracked {
		if n := strings.Count(lower, strings.ToLower(e)); n > 0 {
			mentions[e] = n
		}
	}
	return mentions
}

func assembledQuality(out assembled) float64 {
	if len(out.included) == 0 {
		return 0
	}
	return weightedRelevance(out.included)
}

func assembledCoherence(content string) float64 {
	sentences := text.Sentences(content)
	if len(sentences) <= 1 {
		if len(sentences) == 1 {
			return 1
		}
		return 0
	}
	sum := 0.0
	for i := 1; i < len(sentences); i++ {
		sum += text.Overlap(sentences[i-1], sentences[i])
	}
	return sum / float64(len(sentences)-1)
}

// topicConsistency is the average pairwise overlap of included chunks.
func topicConsistency(chunks []domain.Chunk) float64 {
	if len(chunks) <= 1 {
		if len(chunks) == 1 {
			return 1
		}
		return 0
	}
	sum := 0.0
	pairs := 0
	for i := range chunks {
		for j := i + 1; j < len(chunks); j++ {
			sum += text.Overlap(chunks[i].Content, chunks[j].Content)
			pairs++
		}
	}
	return sum / float64(pairs)
}
