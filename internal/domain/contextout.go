package domain

// ChunkingStrategy selects how content is split before assembly.
type ChunkingStrategy string

const (
	// ChunkingSemantic cuts only at low-similarity sentence boundaries.
	ChunkingSemantic ChunkingStrategy = "semantic"
	// ChunkingAdaptive scales the chunk size by measured content properties.
	ChunkingAdaptive ChunkingStrategy = "adaptive"
	// ChunkingTopic clusters sentences by extracted topic before chunking.
	ChunkingTopic ChunkingStrategy = "topic"
	// ChunkingStandard uses fixed word windows with fixed overlap.
	ChunkingStandard ChunkingStrategy = "standard"
)

// CompressionStrategy selects how chunk content is compressed.
type CompressionStrategy string

const (
	// CompressionExtractive keeps the top-scored sentences in original order.
	CompressionExtractive CompressionStrategy = "extractive"
	// CompressionAbstractive builds a short summary from key phrases and entities.
	CompressionAbstractive CompressionStrategy = "abstractive"
	// CompressionHybrid runs extractive at sqrt(ratio) then abstractive.
	CompressionHybrid CompressionStrategy = "hybrid"
)

// Chunk is a bounded span of source content treated as one unit during
// assembly. A chunk is included whole or not at all.
type Chunk struct {
	ID         string  `json:"id"`
	Content    string  `json:"content"`
	SourceID   string  `json:"sourceId"`
	Relevance  float64 `json:"relevance"`
	TokenCount int     `json:"tokenCount"`
	Compressed bool    `json:"compressed"`
	Topic      string  `json:"topic,omitempty"`
}

// ContextMetadata is the explicit metadata schema of an assembled context.
type ContextMetadata struct {
	OriginalTokenCount int              `json:"originalTokenCount"`
	ChunkingStrategy   ChunkingStrategy `json:"chunkingStrategy"`
	QualityScore       float64          `json:"qualityScore"`
	CoherenceScore     float64          `json:"coherenceScore"`
	TopicConsistency   float64          `json:"topicConsistency"`
	Version            int              `json:"version"`
}

// OptimizedContext is the immutable pipeline output: a token-bounded context
// block ready for a downstream model. The core does not retain it.
type OptimizedContext struct {
	Content             string          `json:"content"`
	TokenCount          int             `json:"tokenCount"`
	RelevanceScore      float64         `json:"relevanceScore"`
	CompressionRatio    float64         `json:"compressionRatio"`
	Sources             []string        `json:"sources"`
	Meta                ContextMetadata `json:"metadata"`
	ConversationSummary string          `json:"conversationSummary,omitempty"`
	KeyInsights         []string        `json:"keyInsights"`
	EntityMentions      map[string]int  `json:"entityMentions"`
}
