package db

import (
	"context"
	"time"
)

// Backend is the vector store facade combining all sub-interfaces.
// Consumers depend on the narrow sub-interfaces; the composition root wires a
// single implementation. Writes are at-least-once and reads are eventually
// consistent, so callers use idempotent ids and never rely on
// read-your-writes.
type Backend interface {
	Pinger
	CollectionManager
	VectorWriter
	VectorReader
	VectorSearcher
	KVStore
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks backend connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CollectionManager handles collection lifecycle.
type CollectionManager interface {
	EnsureCollection(ctx context.Context, name string, dim int) error
	DropCollection(ctx context.Context, name string) error
	Count(ctx context.Context, collection string) (int, error)
}

// VectorItem is one stored vector with its flat field map.
type VectorItem struct {
	ID     string
	Vector []float32
	Fields map[string]string
}

// VectorWriter writes and deletes vectors in a collection.
type VectorWriter interface {
	Add(ctx context.Context, collection string, items []VectorItem) error
	Delete(ctx context.Context, collection string, ids ...string) error
}

// VectorReader fetches single stored items by id.
type VectorReader interface {
	Fetch(ctx context.Context, collection, id string) (VectorItem, error)
}

// QueryHit is a single backend search hit.
type QueryHit struct {
	ID       string
	Distance float64
	Score    float64
	Fields   map[string]string
}

// VectorSearcher runs similarity and text queries over a collection.
type VectorSearcher interface {
	QueryByVector(
		ctx context.Context, collection string,
		vector []float32, topK int, tags map[string]string,
	) ([]QueryHit, error)

	TextScores(
		ctx context.Context, collection string,
		query string, topK int, tags map[string]string,
	) ([]QueryHit, error)

	SupportsTextSearch(ctx context.Context) bool
}

// KVStore provides simple key-value operations (embedding cache, counters).
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
