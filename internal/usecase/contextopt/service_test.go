package contextopt

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragpipe/internal/domain"
	"github.com/kailas-cloud/ragpipe/internal/domain/conversation"
)

func TestOptimizeEmptyResults(t *testing.T) {
	s := New(Options{}, zap.NewNop())

	out := s.Optimize(context.Background(), "query", nil, "")

	if out.Content != "" || out.TokenCount != 0 {
		t.Errorf("empty input must produce an empty context, got %+v", out)
	}
	if out.Meta.QualityScore != 0 || out.RelevanceScore != 0 {
		t.Errorf("empty input must have zero scores, got %+v", out.Meta)
	}
}

func TestOptimizeHonorsTokenBudget(t *testing.T) {
	s := New(Options{
		MaxContextTokens: 100,
		MaxChunkWords:    30,
		OverlapWords:     5,
		ChunkingStrategy: domain.ChunkingStandard,
	}, zap.NewNop())

	long := strings.Repeat("informative retrieval augmented generation passage text ", 30)
	results := []domain.SearchResult{
		{ID: "r1", Content: long, Relevance: 0.9},
		{ID: "r2", Content: long, Relevance: 0.5},
	}

	out := s.Optimize(context.Background(), "query", results, "")

	if out.TokenCount > 100 {
		t.Fatalf("TokenCount = %d, exceeds budget 100", out.TokenCount)
	}
	if out.Meta.OriginalTokenCount <= out.TokenCount {
		t.Errorf("original tokens %d must exceed assembled %d here",
			out.Meta.OriginalTokenCount, out.TokenCount)
	}
	if out.CompressionRatio <= 0 || out.CompressionRatio >= 1 {
		t.Errorf("CompressionRatio = %f, want within (0,1)", out.CompressionRatio)
	}
}

func TestOptimizeIncludesConversationSummary(t *testing.T) {
	s := New(Options{MaxContextTokens: 400}, zap.NewNop())

	for i := 0; i < 6; i++ {
		s.RecordMessage("conv-1", "u1", "a1", conversation.RoleUser,
			"Explain vector compression tradeoffs?")
	}

	results := []domain.SearchResult{
		{ID: "r1", Content: "Quantization maps floats onto a coarse grid.", Relevance: 0.8},
	}

	out := s.Optimize(context.Background(), "compression", results, "conv-1")

	if out.ConversationSummary == "" {
		t.Fatal("summary must be carried into the optimized context")
	}
	if !strings.Contains(out.Content, out.ConversationSummary) {
		t.Error("included summary must appear in the assembled content")
	}
}

func TestOptimizeTracksSourcesAndEntities(t *testing.T) {
	s := New(Options{MaxContextTokens: 400}, zap.NewNop())

	results := []domain.SearchResult{
		{ID: "r1", Content: "The scheduler hands work to Kubernetes nodes.", Relevance: 0.9},
		{ID: "r2", Content: "Autoscaling reacts to load in Kubernetes clusters.", Relevance: 0.7},
	}

	out := s.Optimize(context.Background(), "scaling", results, "")

	if len(out.Sources) != 2 {
		t.Fatalf("Sources = %v, want both result ids", out.Sources)
	}
	if out.EntityMentions["Kubernetes"] != 2 {
		t.Errorf("EntityMentions[Kubernetes] = %d, want 2", out.EntityMentions["Kubernetes"])
	}
	if len(out.KeyInsights) == 0 {
		t.Error("key insights must be extracted from the assembled content")
	}
}

func TestConversationLifecycleThroughService(t *testing.T) {
	s := New(Options{}, zap.NewNop())

	s.RecordMessage("conv-9", "u1", "a1", conversation.RoleUser, "Discussing Prometheus metrics today.")

	snap, ok := s.Conversation("conv-9")
	if !ok {
		t.Fatal("conversation must exist after RecordMessage")
	}
	if snap.UserID != "u1" || len(snap.Messages) != 1 {
		t.Errorf("snapshot = %+v", snap)
	}

	if !s.EndConversation("conv-9") {
		t.Fatal("EndConversation must succeed")
	}
	if _, ok := s.Conversation("conv-9"); ok {
		t.Fatal("conversation must be gone after EndConversation")
	}
}
