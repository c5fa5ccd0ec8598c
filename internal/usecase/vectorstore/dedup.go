package vectorstore

import (
	"strconv"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/kailas-cloud/ragpipe/internal/domain/record"
	"github.com/kailas-cloud/ragpipe/internal/domain/vectormath"
)

// DedupStage identifies which detection stage matched a duplicate.
type DedupStage string

const (
	// StageContentHash is an exact match on normalized content.
	StageContentHash DedupStage = "content_hash"
	// StageVectorHash is an exact match on the rounded vector.
	StageVectorHash DedupStage = "vector_hash"
	// StageSemantic is an approximate cosine match against recent vectors.
	StageSemantic DedupStage = "semantic"
)

// recentWindowSize bounds the semantic comparison window. Larger windows
// catch more duplicates but make every store linear in the window size.
const recentWindowSize = 512

type recentVector struct {
	id  string
	vec []float32
}

// deduper runs the three detection stages in order of increasing cost:
// content hash, vector hash, then cosine against a bounded recent window.
// Safe for concurrent use.
type deduper struct {
	mu        sync.Mutex
	threshold float64

	contentHashes map[uint64]string
	vectorHashes  map[uint64]string
	recent        []recentVector
	next          int
}

func newDeduper(threshold float64) *deduper {
	return &deduper{
		threshold:     threshold,
		contentHashes: make(map[uint64]string),
		vectorHashes:  make(map[uint64]string),
		recent:        make([]recentVector, 0, recentWindowSize),
	}
}

// check reports whether rec duplicates an already-seen record. A miss
// registers rec in all caches so later items in the same batch are checked
// against it.
func (d *deduper) check(rec *record.Record) (dupOf string, stage DedupStage, isDup bool) {
	ch := contentHash(rec.Content())
	vh := vectorHash(rec.Vector())

	d.mu.Lock()
	defer d.mu.Unlock()

	if id, ok := d.contentHashes[ch]; ok {
		return id, StageContentHash, true
	}
	if id, ok := d.vectorHashes[vh]; ok {
		return id, StageVectorHash, true
	}
	for _, rv := range d.recent {
		if vectormath.Cosine(rec.Vector(), rv.vec) >= d.threshold {
			return rv.id, StageSemantic, true
		}
	}

	d.contentHashes[ch] = rec.ID()
	d.vectorHashes[vh] = rec.ID()
	d.remember(rec.ID(), rec.Vector())
	return "", "", false
}

// remember appends to the recent-window ring. Caller holds d.mu.
func (d *deduper) remember(id string, vec []float32) {
	cp := make([]float32, len(vec))
	copy(cp, vec)

	if len(d.recent) < recentWindowSize {
		d.recent = append(d.recent, recentVector{id: id, vec: cp})
		return
	}
	d.recent[d.next] = recentVector{id: id, vec: cp}
	d.next = (d.next + 1) % recentWindowSize
}

// contentHash normalizes whitespace and case before hashing, so that
// reflowed copies of the same text collide.
func contentHash(content string) uint64 {
	normalized := strings.Join(strings.Fields(strings.ToLower(content)), " ")
	return xxhash.Sum64String(normalized)
}

// vectorHash rounds every component to 3 decimals and hashes the joined
// string. Catches numerically identical embeddings with different content
// framing.
func vectorHash(vec []float32) uint64 {
	h := xxhash.New()
	buf := make([]byte, 0, 16)
	for _, f := range vec {
		buf = strconv.AppendFloat(buf[:0], float64(f), 'f', 3, 64)
		buf = append(buf, ',')
		_, _ = h.Write(buf)
	}
	return h.Sum64()
}
