package redis

import (
	"context"
	"strconv"

	"github.com/kailas-cloud/ragpipe/internal/db"
)

// HNSW build parameters, tuned for recall-heavy workloads.
const (
	hnswM           = 32
	hnswEFConstruct = 400
)

// EnsureCollection creates the FT index for a collection if it does not exist.
func (s *Store) EnsureCollection(ctx context.Context, name string, dim int) error {
	args := []string{
		indexName(name),
		"ON", "HASH",
		"PREFIX", "1", docKeyPrefix(name),
		"SCHEMA",
		"content", "TEXT",
		"documentId", "TAG",
		"chunkId", "TAG",
		"tier", "TAG",
		"vector", "VECTOR", "HNSW", "12",
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(dim),
		"DISTANCE_METRIC", "COSINE",
		"M", strconv.Itoa(hnswM),
		"EF_CONSTRUCTION", strconv.Itoa(hnswEFConstruct),
	}

	cmd := s.b().Arbitrary("FT.CREATE").Args(args...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "index already exists") {
			s.rememberDim(name, dim)
			return nil
		}
		return &db.Error{Op: db.OpCreateIndex, Err: err}
	}
	s.rememberDim(name, dim)
	return nil
}

func (s *Store) rememberDim(name string, dim int) {
	if dim <= 0 {
		return
	}
	s.dimsMu.Lock()
	s.dims[name] = dim
	s.dimsMu.Unlock()
}

func (s *Store) collectionDim(name string) int {
	s.dimsMu.Lock()
	defer s.dimsMu.Unlock()
	return s.dims[name]
}

// DropCollection removes the index and all indexed documents.
func (s *Store) DropCollection(ctx context.Context, name string) error {
	cmd := s.b().Arbitrary("FT.DROPINDEX").Args(indexName(name), "DD").Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "unknown index") || isRedisErr(err, "no such index") {
			return db.ErrCollectionNotFound
		}
		return &db.Error{Op: db.OpDropIndex, Err: err}
	}
	s.dimsMu.Lock()
	delete(s.dims, name)
	s.dimsMu.Unlock()
	return nil
}

// Count returns the number of documents in a collection.
func (s *Store) Count(ctx context.Context, collection string) (int, error) {
	cmd := s.b().Arbitrary("FT.SEARCH").Args(indexName(collection), "*", "LIMIT", "0", "0").Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		if isRedisErr(err, "unknown index") || isRedisErr(err, "no such index") {
			return 0, db.ErrCollectionNotFound
		}
		return 0, &db.Error{Op: db.OpSearch, Err: err}
	}
	if len(raw) == 0 {
		return 0, nil
	}
	total, err := raw[0].AsInt64()
	if err != nil {
		return 0, &db.Error{Op: db.OpSearch, Err: err}
	}
	return int(total), nil
}
