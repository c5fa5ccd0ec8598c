package quality

import (
	"testing"

	"github.com/kailas-cloud/ragpipe/internal/domain"
)

func rankedItem(id, content string, overall float64) ranked {
	return ranked{
		result:  domain.SearchResult{ID: id, Content: content},
		metrics: domain.QualityMetrics{Overall: overall},
	}
}

func TestRerankScoreTotalOrder(t *testing.T) {
	items := []ranked{
		rankedItem("b", "beta", 0.5),
		rankedItem("a", "alpha", 0.9),
		rankedItem("c", "gamma", 0.2),
	}

	out := rerankScore(items)

	want := []string{"a", "b", "c"}
	for i, w := range want {
		if out[i].result.ID != w {
			t.Errorf("out[%d] = %s, want %s", i, out[i].result.ID, w)
		}
	}
}

func TestRerankDiversityGreedyStep(t *testing.T) {
	// "near" duplicates "first"; "fresh" is distinct but scores lower.
	// After picking "first", the greedy step must prefer "fresh":
	//   near:  0.8*0.7 + (1-1.0)*0.3 = 0.56
	//   fresh: 0.6*0.7 + (1-0.0)*0.3 = 0.72
	items := []ranked{
		rankedItem("first", "identical content words here", 0.9),
		rankedItem("near", "identical content words here", 0.8),
		rankedItem("fresh", "some other topic entirely unrelated", 0.6),
	}

	out := rerankDiversity(items)

	if out[0].result.ID != "first" {
		t.Fatalf("out[0] = %s, want first (highest quality, empty selection)", out[0].result.ID)
	}
	if out[1].result.ID != "fresh" {
		t.Errorf("out[1] = %s, want fresh (diversity outweighs quality)", out[1].result.ID)
	}
	if out[2].result.ID != "near" {
		t.Errorf("out[2] = %s, want near", out[2].result.ID)
	}
}

func TestRerankDiversityMonotonicity(t *testing.T) {
	items := []ranked{
		rankedItem("a", "alpha topic one content", 0.9),
		rankedItem("b", "beta topic two content", 0.7),
		rankedItem("c", "alpha topic one content", 0.85),
		rankedItem("d", "delta topic four content", 0.4),
	}

	out := rerankDiversity(items)

	// Replay the greedy selection and confirm every pick maximized the
	// marginal diversity-adjusted score at its step.
	remaining := make([]ranked, len(items))
	copy(remaining, items)
	var selected []ranked

	for step, pick := range out {
		marginal := func(cand ranked) float64 {
			return cand.metrics.Overall*greedyQualityWeight +
				(1-maxSimilarity(cand, selected))*greedyDiversityWeight
		}
		pickScore := marginal(pick)
		for _, cand := range remaining {
			if marginal(cand) > pickScore+1e-9 {
				t.Fatalf("step %d picked %s (%f) but %s scores %f",
					step, pick.result.ID, pickScore, cand.result.ID, marginal(cand))
			}
		}
		for i, cand := range remaining {
			if cand.result.ID == pick.result.ID {
				remaining = append(remaining[:i], remaining[i+1:]...)
				break
			}
		}
		selected = append(selected, pick)
	}
}

func TestRerankHybridInterleaves(t *testing.T) {
	items := []ranked{
		rankedItem("a", "content a", 0.9),
		rankedItem("b", "content b", 0.8),
		rankedItem("c", "content c", 0.7),
		rankedItem("d", "content d", 0.6),
	}

	out := rerankHybrid(items)

	if len(out) != 4 {
		t.Fatalf("len = %d, want 4", len(out))
	}
	// First half {a,b} score-ordered, second half {c,d} diversity-ordered,
	// interleaved position-by-position.
	if out[0].result.ID != "a" || out[1].result.ID != "c" {
		t.Errorf("interleave start = %s,%s, want a,c", out[0].result.ID, out[1].result.ID)
	}
}

func TestRerankHybridSingleItem(t *testing.T) {
	items := []ranked{rankedItem("only", "content", 0.5)}
	out := rerankHybrid(items)
	if len(out) != 1 || out[0].result.ID != "only" {
		t.Errorf("out = %+v", out)
	}
}
