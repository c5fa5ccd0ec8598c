// Package memory provides an in-process db.Backend for tests and embedded
// use. Similarity search is a brute-force cosine scan; text scoring is a
// content-word overlap heuristic standing in for server-side BM25.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kailas-cloud/ragpipe/internal/db"
	"github.com/kailas-cloud/ragpipe/internal/domain/text"
	"github.com/kailas-cloud/ragpipe/internal/domain/vectormath"
)

// Compile-time check: Store implements db.Backend.
var _ db.Backend = (*Store)(nil)

type collection struct {
	dim   int
	items map[string]db.VectorItem
}

type kvEntry struct {
	value     []byte
	expiresAt time.Time
}

// Store is an in-memory vector store backend.
type Store struct {
	mu          sync.RWMutex
	collections map[string]*collection
	kv          map[string]kvEntry
}

// NewStore creates an empty in-memory backend.
func NewStore() *Store {
	return &Store{
		collections: make(map[string]*collection),
		kv:          make(map[string]kvEntry),
	}
}

// Ping always succeeds.
func (s *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() {}

// WaitForReady always succeeds.
func (s *Store) WaitForReady(_ context.Context, _ time.Duration) error { return nil }

// EnsureCollection creates a collection if it does not exist.
func (s *Store) EnsureCollection(_ context.Context, name string, dim int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[name]; !ok {
		s.collections[name] = &collection{dim: dim, items: make(map[string]db.VectorItem)}
	}
	return nil
}

// DropCollection removes a collection and its items.
func (s *Store) DropCollection(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[name]; !ok {
		return db.ErrCollectionNotFound
	}
	delete(s.collections, name)
	return nil
}

// Count returns the number of items in a collection.
func (s *Store) Count(_ context.Context, name string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	col, ok := s.collections[name]
	if !ok {
		return 0, db.ErrCollectionNotFound
	}
	return len(col.items), nil
}

// Add stores items, overwriting by id. Every vector must match the dimension
// the collection was created with.
func (s *Store) Add(_ context.Context, name string, items []db.VectorItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	col, ok := s.collections[name]
	if !ok {
		return db.ErrCollectionNotFound
	}
	for _, item := range items {
		if col.dim > 0 && len(item.Vector) != col.dim {
			return fmt.Errorf("item %s has %d dimensions, collection %s expects %d: %w",
				item.ID, len(item.Vector), name, col.dim, db.ErrVectorDimMismatch)
		}
	}
	for _, item := range items {
		stored := db.VectorItem{
			ID:     item.ID,
			Vector: append([]float32(nil), item.Vector...),
			Fields: cloneFields(item.Fields),
		}
		col.items[item.ID] = stored
	}
	return nil
}

// Delete removes items by id.
func (s *Store) Delete(_ context.Context, name string, ids ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	col, ok := s.collections[name]
	if !ok {
		return db.ErrCollectionNotFound
	}
	for _, id := range ids {
		delete(col.items, id)
	}
	return nil
}

// Fetch retrieves a single item by id.
func (s *Store) Fetch(_ context.Context, name, id string) (db.VectorItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	col, ok := s.collections[name]
	if !ok {
		return db.VectorItem{}, db.ErrCollectionNotFound
	}
	item, ok := col.items[id]
	if !ok {
		return db.VectorItem{}, db.ErrKeyNotFound
	}
	return db.VectorItem{
		ID:     item.ID,
		Vector: append([]float32(nil), item.Vector...),
		Fields: cloneFields(item.Fields),
	}, nil
}

// QueryByVector scans the collection and returns the topK nearest by cosine.
func (s *Store) QueryByVector(
	_ context.Context, name string,
	vector []float32, topK int, tags map[string]string,
) ([]db.QueryHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	col, ok := s.collections[name]
	if !ok {
		return nil, db.ErrCollectionNotFound
	}

	hits := make([]db.QueryHit, 0, len(col.items))
	for _, item := range col.items {
		if !matchesTags(item.Fields, tags) {
			continue
		}
		sim := vectormath.Cosine(vector, item.Vector)
		hits = append(hits, db.QueryHit{
			ID:       item.ID,
			Distance: 1 - sim,
			Score:    clamp01(sim),
			Fields:   cloneFields(item.Fields),
		})
	}

	sortHits(hits)
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// TextScores scores items by content-word overlap with the query.
func (s *Store) TextScores(
	_ context.Context, name string,
	query string, topK int, tags map[string]string,
) ([]db.QueryHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	col, ok := s.collections[name]
	if !ok {
		return nil, db.ErrCollectionNotFound
	}

	var hits []db.QueryHit
	for _, item := range col.items {
		if !matchesTags(item.Fields, tags) {
			continue
		}
		score := text.Overlap(query, item.Fields["content"])
		if score == 0 {
			continue
		}
		hits = append(hits, db.QueryHit{
			ID:     item.ID,
			Score:  score,
			Fields: cloneFields(item.Fields),
		})
	}

	sortHits(hits)
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// SupportsTextSearch reports that in-process text scoring is available.
func (s *Store) SupportsTextSearch(_ context.Context) bool { return true }

// Get retrieves a KV value, honoring expiry.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.kv[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		return nil, db.ErrKeyNotFound
	}
	return append([]byte(nil), e.value...), nil
}

// Set stores a KV value without expiry.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kv[key] = kvEntry{value: append([]byte(nil), value...)}
	return nil
}

// SetWithTTL stores a KV value with an expiry.
func (s *Store) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kv[key] = kvEntry{value: append([]byte(nil), value...), expiresAt: time.Now().Add(ttl)}
	return nil
}

func matchesTags(fields, tags map[string]string) bool {
	for k, v := range tags {
		if !strings.EqualFold(fields[k], v) {
			return false
		}
	}
	return true
}

func sortHits(hits []db.QueryHit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
}

func cloneFields(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	c := make(map[string]string, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
