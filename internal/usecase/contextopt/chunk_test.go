package contextopt

import (
	"strings"
	"testing"

	"github.com/kailas-cloud/ragpipe/internal/domain"
)

func TestChunkStandardWindows(t *testing.T) {
	c := &chunker{maxWords: 10, overlapWords: 2}

	words := make([]string, 26)
	for i := range words {
		words[i] = string(rune('a' + i))
	}
	content := strings.Join(words, " ")

	chunks := c.chunkStandard(content)

	if len(chunks) < 3 {
		t.Fatalf("chunks = %d, want at least 3 windows", len(chunks))
	}
	for i, ch := range chunks {
		if n := len(strings.Fields(ch)); n > 10 {
			t.Errorf("chunk %d has %d words, exceeds window", i, n)
		}
	}
	// Overlap: each window starts 8 words after the previous.
	first := strings.Fields(chunks[0])
	second := strings.Fields(chunks[1])
	if second[0] != first[8] {
		t.Errorf("second window starts at %q, want %q (step = max - overlap)", second[0], first[8])
	}
}

func TestChunkStandardShortContent(t *testing.T) {
	c := &chunker{maxWords: 100, overlapWords: 10}
	chunks := c.chunkStandard("just a few words")
	if len(chunks) != 1 || chunks[0] != "just a few words" {
		t.Errorf("chunks = %v, want the content unchanged", chunks)
	}
}

func TestChunkSemanticKeepsContinuousText(t *testing.T) {
	c := &chunker{maxWords: 12, overlapWords: 0}

	// Two sentences on one topic, then a topic shift.
	content := "Cache eviction uses recency order. Cache eviction also honors entry age. Giraffes roam the savanna at dawn."

	chunks := c.chunkSemantic(content, 12)

	if len(chunks) != 2 {
		t.Fatalf("chunks = %d (%v), want 2 (cut only at the topic shift)", len(chunks), chunks)
	}
	if !strings.Contains(chunks[0], "recency") || !strings.Contains(chunks[0], "entry age") {
		t.Errorf("first chunk must keep both cache sentences: %q", chunks[0])
	}
	if !strings.Contains(chunks[1], "Giraffes") {
		t.Errorf("second chunk = %q, want the giraffe sentence", chunks[1])
	}
}

func TestChunkTopicGroupsSentences(t *testing.T) {
	c := &chunker{maxWords: 50, overlapWords: 0}

	content := "Redis stores keys quickly. Postgres handles relational joins. Redis expires keys by ttl. Postgres plans queries with statistics."

	pieces := c.chunkByTopic(content)

	if len(pieces) < 2 {
		t.Fatalf("pieces = %d, want at least 2 topic groups", len(pieces))
	}
	for _, p := range pieces {
		if p.topic == "" {
			t.Errorf("piece %q lacks a topic tag", p.content)
		}
		if strings.Contains(p.content, "Redis") && strings.Contains(p.content, "Postgres") {
			t.Errorf("topics mixed in one piece: %q", p.content)
		}
	}
}

func TestChunkResultsCarriesRelevance(t *testing.T) {
	c := &chunker{maxWords: 100, overlapWords: 10}

	results := []domain.SearchResult{
		{ID: "r1", Content: "Some source content here.", Relevance: 0.42},
	}

	chunks := c.chunkResults(results, domain.ChunkingStandard)

	if len(chunks) != 1 {
		t.Fatalf("chunks = %d, want 1", len(chunks))
	}
	if chunks[0].SourceID != "r1" || chunks[0].Relevance != 0.42 {
		t.Errorf("chunk = %+v, want source r1 with relevance 0.42", chunks[0])
	}
	if chunks[0].ID == "" {
		t.Error("chunk id must be assigned")
	}
	if chunks[0].TokenCount == 0 {
		t.Error("chunk token count must be estimated")
	}
}

func TestAdaptiveScaleRange(t *testing.T) {
	contents := []string{
		"One dense technical passage. It repeats terminology. Terminology repeats here.",
		"a of the to and in it is was on",
		strings.Repeat("many different unique interesting shiny novel tokens appear constantly everywhere ", 10),
	}
	for _, content := range contents {
		scale := adaptiveScale(content)
		if scale < 0.5 || scale > 1.5 {
			t.Errorf("adaptiveScale(%.20q) = %f, outside 0.5..1.5", content, scale)
		}
	}
}
