package contextopt

import (
	"math"
	"sort"
	"strings"

	"github.com/kailas-cloud/ragpipe/internal/domain"
	"github.com/kailas-cloud/ragpipe/internal/domain/text"
)

// compressionAcceptQuality is the minimum measured quality for a compressed
// chunk to replace the original.
const compressionAcceptQuality = 0.8

// compressor applies the configured lossy text compression to chunks.
// A compressed chunk is accepted only when its measured quality (ratio
// closeness, entity preservation, coherence) clears the bar; otherwise the
// original is kept.
type compressor struct {
	strategy domain.CompressionStrategy
	ratio    float64
}

func (c *compressor) compressChunk(chunk *domain.Chunk, entities map[string]int) {
	compressed := c.apply(chunk.Content, entities)
	if compressed == "" || compressed == chunk.Content {
		return
	}

	if quality := compressionQuality(chunk.Content, compressed, c.ratio); quality >= compressionAcceptQuality {
		chunk.Content = compressed
		chunk.TokenCount = text.EstimateTokens(compressed)
		chunk.Compressed = true
	}
}

func (c *compressor) apply(content string, entities map[string]int) string {
	switch c.strategy {
	case domain.CompressionAbstractive:
		return abstractive(content, entities)
	case domain.CompressionHybrid:
		extracted := extractive(content, math.Sqrt(c.ratio))
		return abstractive(extracted, entities)
	case domain.CompressionExtractive:
		fallthrough
	default:
		return extractive(content, c.ratio)
	}
}

// extractive keeps the top ratio fraction of sentences by term-frequency
// weighted importance, preserving original order.
func extractive(content string, ratio float64) string {
	sentences := text.Sentences(content)
	if len(sentences) <= 1 {
		return content
	}

	freq := text.TermFrequencies(content)
	type scored struct {
		index int
		score float64
	}
	scores := make([]scored, len(sentences))
	for i, s := range sentences {
		words := text.ContentWords(s)
		sum := 0.0
		for _, w := range words {
			sum += float64(freq[w])
		}
		if len(words) > 0 {
			sum /= float64(len(words))
		}
		scores[i] = scored{index: i, score: sum}
	}

	keep := int(math.Ceil(float64(len(sentences)) * ratio))
	if keep < 1 {
		keep = 1
	}
	if keep >= len(sentences) {
		return content
	}

	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })
	kept := scores[:keep]
	sort.Slice(kept, func(i, j int) bool { return kept[i].index < kept[j].index })

	parts := make([]string, len(kept))
	for i, s := range kept {
		parts[i] = sentences[s.index]
	}
	return strings.Join(parts, " ")
}

// abstractive builds a short summary from key phrases and tracked
// conversation entities.
func abstractive(content string, entities map[string]int) string {
	sentences := text.Sentences(content)
	if len(sentences) == 0 {
		return content
	}

	terms := text.TopTerms(content, 5)

	var mentioned []string
	lower := strings.ToLower(content)
	for entity := range entities {
		if strings.Contains(lower, strings.ToLower(entity)) {
			mentioned = append(mentioned, entity)
		}
	}
	sort.Strings(mentioned)

	var b strings.Builder
	b.WriteString(sentences[0])
	if len(terms) > 0 {
		b.WriteString(" Key points: ")
		b.WriteString(strings.Join(terms, ", "))
		b.WriteString(".")
	}
	if len(mentioned) > 0 {
		b.WriteString(" Mentions: ")
		b.WriteString(strings.Join(mentioned, ", "))
		b.WriteString(".")
	}
	return b.String()
}

// compressionQuality blends ratio closeness, entity preservation, and
// structural coherence of the compressed text.
func compressionQuality(original, compressed string, targetRatio float64) float64 {
	origTokens := text.EstimateTokens(original)
	if origTokens == 0 {
		return 0
	}
	actualRatio := float64(text.EstimateTokens(compressed)) / float64(origTokens)
	closeness := 1 - math.Abs(actualRatio-targetRatio)
	if closeness < 0 {
		closeness = 0
	}

	preservation := 1.0
	origEntities := text.Entities(original)
	if len(origEntities) > 0 {
		kept := 0
		lower := strings.ToLower(compressed)
		for _, e := range origEntities {
			if strings.Contains(lower, strings.ToLower(e)) {
				kept++
			}
		}
		preservation = float64(kept) / float64(len(origEntities))
	}

	coherent := 0.0
	if sentences := text.Sentences(compressed); len(sentences) > 0 {
		structured := 0
		for _, s := range sentences {
			if n := len(text.Words(s)); n >= 3 && n <= 40 {
				structured++
			}
		}
		coherent = float64(structured) / float64(len(sentences))
	}

	return closeness*0.4 + preservation*0.4 + coherent*0.2
}
