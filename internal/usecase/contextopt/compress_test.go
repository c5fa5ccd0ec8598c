package contextopt

import (
	"strings"
	"testing"

	"github.com/kailas-cloud/ragpipe/internal/domain"
	"github.com/kailas-cloud/ragpipe/internal/domain/text"
)

func TestExtractiveKeepsOrderAndRatio(t *testing.T) {
	content := "Important caching terms appear here caching caching. Filler sentence with unrelated chatter words. More caching discussion continues caching here. Final filler remark closes things out."

	compressed := extractive(content, 0.5)

	sentences := text.Sentences(compressed)
	if len(sentences) != 2 {
		t.Fatalf("kept %d sentences, want 2 of 4 at ratio 0.5", len(sentences))
	}
	// The two caching-heavy sentences score highest and keep input order.
	if !strings.Contains(sentences[0], "Important caching") {
		t.Errorf("first kept sentence = %q, want the opening caching sentence", sentences[0])
	}
	if !strings.Contains(sentences[1], "More caching") {
		t.Errorf("second kept sentence = %q", sentences[1])
	}
}

func TestExtractiveSingleSentenceUnchanged(t *testing.T) {
	content := "Only one sentence here."
	if got := extractive(content, 0.3); got != content {
		t.Errorf("extractive = %q, want unchanged", got)
	}
}

func TestAbstractiveMentionsEntities(t *testing.T) {
	content := "The report covers Kubernetes scaling. Nodes join clusters through Kubernetes APIs. Scaling depends on the scheduler."
	entities := map[string]int{"Kubernetes": 3, "Terraform": 1}

	summary := abstractive(content, entities)

	if !strings.Contains(summary, "Key points:") {
		t.Errorf("summary lacks key points: %q", summary)
	}
	if !strings.Contains(summary, "Kubernetes") {
		t.Errorf("summary must mention the tracked entity present in content: %q", summary)
	}
	if strings.Contains(summary, "Terraform") {
		t.Errorf("entity absent from content must not be mentioned: %q", summary)
	}
}

func TestCompressChunkRejectionKeepsOriginal(t *testing.T) {
	// A single sentence cannot be extracted below ratio, so the compressed
	// form equals the original and no substitution happens.
	c := &compressor{strategy: domain.CompressionExtractive, ratio: 0.3}
	chunk := domain.Chunk{
		Content:    "One short sentence only.",
		TokenCount: text.EstimateTokens("One short sentence only."),
	}
	original := chunk.Content

	c.compressChunk(&chunk, nil)

	if chunk.Compressed {
		t.Error("chunk must not be flagged compressed")
	}
	if chunk.Content != original {
		t.Errorf("content changed to %q, want original kept", chunk.Content)
	}
}

func TestCompressionQualityBounds(t *testing.T) {
	cases := []struct{ original, compressed string }{
		{"Some original text spanning several words here.", "Some original text."},
		{"Alpha beta gamma delta.", ""},
		{"The Service talks to Redis. Redis stores state.", "The Service talks to Redis."},
	}
	for _, tc := range cases {
		q := compressionQuality(tc.original, tc.compressed, 0.6)
		if q < 0 || q > 1 {
			t.Errorf("quality(%q) = %f, outside [0,1]", tc.compressed, q)
		}
	}
}
