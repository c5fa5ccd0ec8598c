package contextopt

import (
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/kailas-cloud/ragpipe/internal/domain"
	"github.com/kailas-cloud/ragpipe/internal/domain/text"
)

// boundarySimilarity is the sentence-boundary cut threshold for semantic
// chunking: a chunk may only end where the similarity to the next sentence
// drops below it, keeping topically continuous text together.
const boundarySimilarity = 0.3

type chunker struct {
	maxWords     int
	overlapWords int
}

// chunkResults splits every result into chunks carrying the result's
// relevance and id.
func (c *chunker) chunkResults(
	results []domain.SearchResult, strategy domain.ChunkingStrategy,
) []domain.Chunk {
	var chunks []domain.Chunk
	for i := range results {
		r := &results[i]
		for _, piece := range c.chunkContent(r.Content, strategy) {
			chunks = append(chunks, domain.Chunk{
				ID:         uuid.NewString(),
				Content:    piece.content,
				SourceID:   r.ID,
				Relevance:  r.Relevance,
				TokenCount: text.EstimateTokens(piece.content),
				Topic:      piece.topic,
			})
		}
	}
	return chunks
}

type piece struct {
	content string
	topic   string
}

func (c *chunker) chunkContent(content string, strategy domain.ChunkingStrategy) []piece {
	if strings.TrimSpace(content) == "" {
		return nil
	}

	switch strategy {
	case domain.ChunkingSemantic:
		return toPieces(c.chunkSemantic(content, c.maxWords))
	case domain.ChunkingAdaptive:
		scaled := int(float64(c.maxWords) * adaptiveScale(content))
		return toPieces(c.chunkSemantic(content, scaled))
	case domain.ChunkingTopic:
		return c.chunkByTopic(content)
	case domain.ChunkingStandard:
		fallthrough
	default:
		return toPieces(c.chunkStandard(content))
	}
}

func toPieces(parts []string) []piece {
	out := make([]piece, len(parts))
	for i, p := range parts {
		out[i] = piece{content: p}
	}
	return out
}

// chunkStandard cuts fixed word-count windows with fixed overlap. The
// no-semantic-awareness fallback.
func (c *chunker) chunkStandard(content string) []string {
	words := strings.Fields(content)
	if len(words) <= c.maxWords {
		return []string{content}
	}

	var out []string
	step := c.maxWords - c.overlapWords
	if step < 1 {
		step = 1
	}
	for start := 0; start < len(words); start += step {
		end := start + c.maxWords
		if end > len(words) {
			end = len(words)
		}
		out = append(out, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}
	return out
}

// chunkSemantic accumulates sentences up to maxWords, then cuts only at a
// boundary whose similarity to the next sentence is low. An overlap window
// of trailing words carries into the next chunk.
func (c *chunker) chunkSemantic(content string, maxWords int) []string {
	sentences := text.Sentences(content)
	if len(sentences) <= 1 {
		return []string{content}
	}
	if maxWords < 1 {
		maxWords = c.maxWords
	}

	var out []string
	var current []string
	currentWords := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		chunkText := strings.Join(current, " ")
		out = append(out, chunkText)

		// Carry the trailing overlap window into the next chunk.
		words := strings.Fields(chunkText)
		if c.overlapWords > 0 && len(words) > c.overlapWords {
			current = []string{strings.Join(words[len(words)-c.overlapWords:], " ")}
			currentWords = c.overlapWords
			return
		}
		current = nil
		currentWords = 0
	}

	for _, sentence := range sentences {
		n := len(strings.Fields(sentence))

		if currentWords > 0 && currentWords+n > maxWords {
			// Only cut where the topic actually shifts.
			last := current[len(current)-1]
			if text.Overlap(last, sentence) < boundarySimilarity {
				flush()
			}
		}

		current = append(current, sentence)
		currentWords += n
	}
	// A pure-overlap tail already appears in the previous chunk.
	overlapTail := len(out) > 0 && len(current) == 1 && currentWords == c.overlapWords
	if len(current) > 0 && !overlapTail {
		out = append(out, strings.Join(current, " "))
	}
	return out
}

// adaptiveScale blends content density, topic coherence, and readability
// into a 0.5x..1.5x multiplier for the chunk size.
func adaptiveScale(content string) float64 {
	words := text.Words(content)
	if len(words) == 0 {
		return 1
	}

	// Density: share of content words among all words.
	contentWords := text.ContentWords(content)
	density := float64(len(contentWords)) / float64(len(words))

	// Coherence: average similarity between adjacent sentences.
	sentences := text.Sentences(content)
	coherence := 0.5
	if len(sentences) > 1 {
		sum := 0.0
		for i := 1; i < len(sentences); i++ {
			sum += text.Overlap(sentences[i-1], sentences[i])
		}
		coherence = sum / float64(len(sentences)-1)
	}

	// Readability: penalize very long average sentence length.
	avgLen := float64(len(words)) / math.Max(1, float64(len(sentences)))
	readability := 1 - math.Min(1, avgLen/40)

	blend := density*0.4 + coherence*0.3 + readability*0.3
	return 0.5 + blend // 0.5x .. 1.5x
}

// chunkByTopic clusters sentences by best-matching extracted topic keyword,
// then chunks within each topic group independently.
func (c *chunker) chunkByTopic(content string) []piece {
	topics := text.TopTerms(content, 5)
	if len(topics) == 0 {
		return toPieces(c.chunkStandard(content))
	}

	groups := make(map[string][]string)
	order := make([]string, 0, len(topics))

	for _, sentence := range text.Sentences(content) {
		best := topics[0]
		bestScore := -1.0
		for _, topic := range topics {
			score := text.Overlap(topic, sentence)
			if score > bestScore {
				best = topic
				bestScore = score
			}
		}
		if _, ok := groups[best]; !ok {
			order = append(order, best)
		}
		groups[best] = append(groups[best], sentence)
	}

	var out []piece
	for _, topic := range order {
		grouped := strings.Join(groups[topic], " ")
		for _, part := range c.chunkStandard(grouped) {
			out = append(out, piece{content: part, topic: topic})
		}
	}
	return out
}
