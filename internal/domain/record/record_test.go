package record

import (
	"errors"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	r, err := New("emb-1", "doc-1", "chunk-1", []float32{0.1, 0.2}, "hello", Metadata{Title: "t"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if r.ID() != "emb-1" {
		t.Errorf("ID() = %q", r.ID())
	}
	if r.StorageTier() != TierHot {
		t.Errorf("StorageTier() = %q, want hot", r.StorageTier())
	}
	if r.Compressed() {
		t.Error("new record must not be compressed")
	}
	if r.Meta().Version != 1 {
		t.Errorf("Meta().Version = %d, want 1", r.Meta().Version)
	}
}

func TestNew_RequiresVectorAndContent(t *testing.T) {
	if _, err := New("a", "d", "c", nil, "content", Metadata{}); !errors.Is(err, ErrMissingEmbedding) {
		t.Errorf("missing vector err = %v, want ErrMissingEmbedding", err)
	}
	if _, err := New("a", "d", "c", []float32{1}, "", Metadata{}); !errors.Is(err, ErrMissingContent) {
		t.Errorf("missing content err = %v, want ErrMissingContent", err)
	}
	if _, err := New("", "d", "c", []float32{1}, "content", Metadata{}); err == nil {
		t.Error("expected error for missing ID")
	}
}

func TestSetCompressed(t *testing.T) {
	r, _ := New("a", "d", "c", []float32{1, 2, 3}, "content", Metadata{})
	r.SetCompressed([]float32{1, 2, 0}, AlgorithmReduction, 0.92)

	if !r.Compressed() {
		t.Error("expected compressed flag")
	}
	if r.Algorithm() != AlgorithmReduction {
		t.Errorf("Algorithm() = %q", r.Algorithm())
	}
	if r.CompressionQuality() != 0.92 {
		t.Errorf("CompressionQuality() = %f", r.CompressionQuality())
	}
	if r.Vector()[2] != 0 {
		t.Errorf("vector not replaced: %v", r.Vector())
	}
}

func TestTouch(t *testing.T) {
	r, _ := New("a", "d", "c", []float32{1}, "content", Metadata{})
	now := time.Now()
	r.Touch(now)
	r.Touch(now.Add(time.Second))

	if r.AccessCount() != 2 {
		t.Errorf("AccessCount() = %d, want 2", r.AccessCount())
	}
	if !r.LastAccess().Equal(now.Add(time.Second)) {
		t.Errorf("LastAccess() = %v", r.LastAccess())
	}
}
