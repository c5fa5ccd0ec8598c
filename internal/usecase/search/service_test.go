package search

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragpipe/internal/db"
	"github.com/kailas-cloud/ragpipe/internal/domain"
)

type mockSearcher struct {
	mu           sync.Mutex
	vectorCalls  int
	textCalls    int
	vectorHits   []db.QueryHit
	textHits     []db.QueryHit
	vectorErr    error
	textErr      error
	supportsText bool
}

func (m *mockSearcher) QueryByVector(
	_ context.Context, _ string, _ []float32, _ int, _ map[string]string,
) ([]db.QueryHit, error) {
	m.mu.Lock()
	m.vectorCalls++
	m.mu.Unlock()
	return m.vectorHits, m.vectorErr
}

func (m *mockSearcher) TextScores(
	_ context.Context, _ string, _ string, _ int, _ map[string]string,
) ([]db.QueryHit, error) {
	m.mu.Lock()
	m.textCalls++
	m.mu.Unlock()
	return m.textHits, m.textErr
}

func (m *mockSearcher) SupportsTextSearch(_ context.Context) bool { return m.supportsText }

type stubEmbedder struct {
	vec []float32
	err error
}

func (s *stubEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	if s.err != nil {
		return domain.EmbeddingResult{}, s.err
	}
	return domain.EmbeddingResult{Embedding: s.vec}, nil
}

type touchSpy struct {
	mu  sync.Mutex
	ids []string
}

func (t *touchSpy) Touch(ids ...string) {
	t.mu.Lock()
	t.ids = append(t.ids, ids...)
	t.mu.Unlock()
}

func hit(id string, score float64) db.QueryHit {
	return db.QueryHit{
		ID:    id,
		Score: score,
		Fields: map[string]string{
			"content": "content for " + id,
		},
	}
}

func newTestSearch(store *mockSearcher, embed Embedder, access AccessRecorder) *Service {
	return New(store, embed, access, Options{
		Collection:  "docs",
		EnableCache: true,
		CacheTTL:    5 * time.Minute,
	}, zap.NewNop())
}

func TestSearchMergesBothRankings(t *testing.T) {
	store := &mockSearcher{
		supportsText: true,
		vectorHits:   []db.QueryHit{hit("a", 0.9), hit("b", 0.8)},
		textHits:     []db.QueryHit{hit("b", 2.1), hit("c", 1.4)},
	}
	s := newTestSearch(store, &stubEmbedder{vec: []float32{1, 0}}, nil)

	resp, err := s.Search(context.Background(), Request{Query: "test query"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.TotalFound != 3 {
		t.Fatalf("TotalFound = %d, want 3", resp.TotalFound)
	}
	if resp.Results[0].ID != "b" {
		t.Errorf("top result = %s, want b (in both rankings)", resp.Results[0].ID)
	}
	if resp.Cache.Hit {
		t.Error("first call must be a cache miss")
	}
}

func TestSearchCacheHitIdenticalOrdering(t *testing.T) {
	store := &mockSearcher{
		supportsText: true,
		vectorHits:   []db.QueryHit{hit("a", 0.9), hit("b", 0.8), hit("c", 0.7)},
	}
	s := newTestSearch(store, &stubEmbedder{vec: []float32{1, 0}}, nil)
	ctx := context.Background()

	first, err := s.Search(ctx, Request{Query: "same query", Scope: "user-1"})
	if err != nil {
		t.Fatalf("first Search: %v", err)
	}

	second, err := s.Search(ctx, Request{Query: "same query", Scope: "user-1"})
	if err != nil {
		t.Fatalf("second Search: %v", err)
	}
	if !second.Cache.Hit {
		t.Fatal("second identical call must hit the cache")
	}
	if len(second.Results) != len(first.Results) {
		t.Fatalf("cached result count %d != %d", len(second.Results), len(first.Results))
	}
	for i := range first.Results {
		if second.Results[i].ID != first.Results[i].ID {
			t.Errorf("cached ordering differs at %d: %s != %s",
				i, second.Results[i].ID, first.Results[i].ID)
		}
	}
	if store.vectorCalls != 1 {
		t.Errorf("vector calls = %d, want 1 (second served from cache)", store.vectorCalls)
	}
}

func TestSearchMinScoreUsesRetrievalScale(t *testing.T) {
	store := &mockSearcher{
		supportsText: true,
		vectorHits:   []db.QueryHit{hit("strong", 0.9), hit("weak", 0.3)},
	}
	s := newTestSearch(store, &stubEmbedder{vec: []float32{1, 0}}, nil)

	// 0.5 is a cosine-scale threshold. The fused rank score never exceeds
	// ~0.03, so filtering must use the underlying retrieval scores.
	resp, err := s.Search(context.Background(), Request{Query: "test query", MinScore: 0.5})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].ID != "strong" {
		t.Fatalf("Results = %+v, want only the strong hit", resp.Results)
	}
	if resp.Results[0].Rank != 1 {
		t.Errorf("Rank = %d, want 1 after filtering", resp.Results[0].Rank)
	}
}

func TestSearchMinScoreKeepsKeywordOnlyHits(t *testing.T) {
	store := &mockSearcher{
		supportsText: true,
		vectorHits:   []db.QueryHit{hit("semantic", 0.9)},
		textHits:     []db.QueryHit{hit("keyword", 0.8)},
	}
	s := newTestSearch(store, &stubEmbedder{vec: []float32{1, 0}}, nil)

	resp, err := s.Search(context.Background(), Request{Query: "test query", MinScore: 0.5})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("Results = %+v, want both hits (keyword score clears the threshold)", resp.Results)
	}
}

func TestSearchScopeSeparatesCacheEntries(t *testing.T) {
	store := &mockSearcher{vectorHits: []db.QueryHit{hit("a", 0.9)}}
	s := newTestSearch(store, &stubEmbedder{vec: []float32{1, 0}}, nil)
	ctx := context.Background()

	if _, err := s.Search(ctx, Request{Query: "q", Scope: "user-1"}); err != nil {
		t.Fatalf("Search: %v", err)
	}
	resp, err := s.Search(ctx, Request{Query: "q", Scope: "user-2"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.Cache.Hit {
		t.Error("different scope must not share cache entries")
	}
}

func TestSearchSemanticFailureFatal(t *testing.T) {
	store := &mockSearcher{
		supportsText: true,
		vectorErr:    errors.New("index offline"),
		textHits:     []db.QueryHit{hit("a", 1.0)},
	}
	s := newTestSearch(store, &stubEmbedder{vec: []float32{1, 0}}, nil)

	if _, err := s.Search(context.Background(), Request{Query: "q"}); err == nil {
		t.Fatal("semantic failure must fail the call, not fall back to keyword results")
	}
}

func TestSearchKeywordFailureNonFatal(t *testing.T) {
	store := &mockSearcher{
		supportsText: true,
		vectorHits:   []db.QueryHit{hit("a", 0.9)},
		textErr:      errors.New("text index offline"),
	}
	s := newTestSearch(store, &stubEmbedder{vec: []float32{1, 0}}, nil)

	resp, err := s.Search(context.Background(), Request{Query: "q"})
	if err != nil {
		t.Fatalf("keyword failure must be non-fatal, got %v", err)
	}
	if resp.TotalFound != 1 || resp.Results[0].ID != "a" {
		t.Errorf("expected semantic results to survive, got %+v", resp.Results)
	}
}

func TestSearchEmbedFailureFatal(t *testing.T) {
	store := &mockSearcher{vectorHits: []db.QueryHit{hit("a", 0.9)}}
	s := newTestSearch(store, &stubEmbedder{err: errors.New("provider down")}, nil)

	if _, err := s.Search(context.Background(), Request{Query: "q"}); err == nil {
		t.Fatal("embedding failure must fail the call")
	}
}

func TestSearchTouchesReturnedIDs(t *testing.T) {
	store := &mockSearcher{vectorHits: []db.QueryHit{hit("a", 0.9), hit("b", 0.8)}}
	spy := &touchSpy{}
	s := newTestSearch(store, &stubEmbedder{vec: []float32{1, 0}}, spy)

	if _, err := s.Search(context.Background(), Request{Query: "q"}); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(spy.ids) != 2 {
		t.Errorf("touched %d ids, want 2", len(spy.ids))
	}
}

func TestQueryOptimizerNormalizes(t *testing.T) {
	q := newQueryOptimizer()

	got := q.optimize("  The Quick BROWN fox and the dog  ")
	want := "quick brown fox dog"
	if got != want {
		t.Errorf("optimize = %q, want %q", got, want)
	}

	// All-stop-word queries keep their lowercased text.
	if got := q.optimize("The And Of"); got != "the and of" {
		t.Errorf("all-stop-word optimize = %q", got)
	}
}

func TestGateFIFOOrder(t *testing.T) {
	g := newGate(1)
	ctx := context.Background()

	if err := g.acquire(ctx); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	order := make(chan int, 2)
	ready := make(chan struct{}, 2)
	var wg sync.WaitGroup
	for i := 1; i <= 2; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			ready <- struct{}{}
			if err := g.acquire(ctx); err != nil {
				t.Errorf("waiter %d: %v", n, err)
				return
			}
			order <- n
			g.release()
		}(i)
		<-ready
		// Let waiter n queue before starting n+1.
		time.Sleep(20 * time.Millisecond)
	}

	g.release()
	wg.Wait()
	close(order)

	var got []int
	for n := range order {
		got = append(got, n)
	}
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("grant order = %v, want [1 2] (FIFO)", got)
	}
}

func TestGateCancelledWaiter(t *testing.T) {
	g := newGate(1)
	if err := g.acquire(context.Background()); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	if err := g.acquire(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("acquire = %v, want DeadlineExceeded", err)
	}

	// The slot still works after the waiter gave up.
	g.release()
	if err := g.acquire(context.Background()); err != nil {
		t.Errorf("acquire after cancelled waiter: %v", err)
	}
}

func TestResponseCacheTTLAndLRU(t *testing.T) {
	c := newResponseCache(time.Minute, 2, zap.NewNop())
	base := time.Now()
	c.now = func() time.Time { return base }

	c.put("k1", domain.SearchResponse{Query: "one"})
	c.put("k2", domain.SearchResponse{Query: "two"})

	// Touch k1 so k2 is the LRU victim.
	base = base.Add(time.Second)
	if _, _, ok := c.get("k1"); !ok {
		t.Fatal("k1 must be cached")
	}

	base = base.Add(time.Second)
	c.put("k3", domain.SearchResponse{Query: "three"})

	if c.len() != 2 {
		t.Fatalf("len = %d, want 2 after LRU trim", c.len())
	}
	if _, _, ok := c.get("k2"); ok {
		t.Error("k2 must be evicted as least recently accessed")
	}

	// TTL expiry.
	base = base.Add(2 * time.Minute)
	if _, _, ok := c.get("k1"); ok {
		t.Error("k1 must be expired after TTL")
	}
}
