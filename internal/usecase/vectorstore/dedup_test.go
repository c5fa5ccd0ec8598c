package vectorstore

import (
	"testing"

	"github.com/kailas-cloud/ragpipe/internal/domain/record"
)

func mustRecord(t *testing.T, id string, vector []float32, content string) record.Record {
	t.Helper()
	rec, err := record.New(id, "doc-1", "chunk-1", vector, content, record.Metadata{})
	if err != nil {
		t.Fatalf("record.New(%s): %v", id, err)
	}
	return rec
}

func TestDedupContentHashNormalization(t *testing.T) {
	d := newDeduper(0.95)

	a := mustRecord(t, "a", []float32{1, 0}, "The quick brown fox")
	b := mustRecord(t, "b", []float32{0, 1}, "  the   QUICK brown\tfox  ")

	if _, _, isDup := d.check(&a); isDup {
		t.Fatal("first record must not be a duplicate")
	}

	dupOf, stage, isDup := d.check(&b)
	if !isDup {
		t.Fatal("whitespace/case variant must be caught as duplicate")
	}
	if stage != StageContentHash {
		t.Errorf("stage = %s, want %s", stage, StageContentHash)
	}
	if dupOf != "a" {
		t.Errorf("dupOf = %s, want a", dupOf)
	}
}

func TestDedupVectorHashRounding(t *testing.T) {
	d := newDeduper(0.95)

	// Same vector after rounding to 3 decimals, different content.
	a := mustRecord(t, "a", []float32{0.1234, 0.5678}, "first framing")
	b := mustRecord(t, "b", []float32{0.12342, 0.56779}, "second framing")

	if _, _, isDup := d.check(&a); isDup {
		t.Fatal("first record must not be a duplicate")
	}

	dupOf, stage, isDup := d.check(&b)
	if !isDup {
		t.Fatal("rounding-identical vector must be caught as duplicate")
	}
	if stage != StageVectorHash {
		t.Errorf("stage = %s, want %s", stage, StageVectorHash)
	}
	if dupOf != "a" {
		t.Errorf("dupOf = %s, want a", dupOf)
	}
}

func TestDedupSemanticSimilarity(t *testing.T) {
	d := newDeduper(0.95)

	// cos(a, b) = 0.97: above the 0.95 threshold but not hash-identical.
	a := mustRecord(t, "a", []float32{1, 0}, "original passage")
	b := mustRecord(t, "b", []float32{0.97, 0.2431}, "reworded passage")

	if _, _, isDup := d.check(&a); isDup {
		t.Fatal("first record must not be a duplicate")
	}

	dupOf, stage, isDup := d.check(&b)
	if !isDup {
		t.Fatal("0.97-similar vector must be caught at threshold 0.95")
	}
	if stage != StageSemantic {
		t.Errorf("stage = %s, want %s", stage, StageSemantic)
	}
	if dupOf != "a" {
		t.Errorf("dupOf = %s, want a", dupOf)
	}
}

func TestDedupBelowThresholdPasses(t *testing.T) {
	d := newDeduper(0.95)

	a := mustRecord(t, "a", []float32{1, 0}, "one topic")
	b := mustRecord(t, "b", []float32{0.5, 0.866}, "another topic entirely")

	if _, _, isDup := d.check(&a); isDup {
		t.Fatal("first record must not be a duplicate")
	}
	if _, _, isDup := d.check(&b); isDup {
		t.Fatal("cos=0.5 must pass at threshold 0.95")
	}
}

func TestDedupRecentWindowBounded(t *testing.T) {
	d := newDeduper(0.95)

	for i := 0; i < recentWindowSize+10; i++ {
		d.mu.Lock()
		d.remember("id", []float32{1})
		d.mu.Unlock()
	}

	if len(d.recent) != recentWindowSize {
		t.Errorf("recent window = %d, want %d", len(d.recent), recentWindowSize)
	}
}
