package record

import (
	"errors"
	"fmt"
	"time"
)

// MaxContentSize is the maximum record content size in bytes.
const MaxContentSize = 163840 // 160KB

// Validation sentinels. The domain package re-exports them so callers can
// match with errors.Is at any layer.
var (
	// ErrMissingEmbedding signals a record without an embedding vector.
	ErrMissingEmbedding = errors.New("missing embedding")
	// ErrMissingContent signals a record without source content.
	ErrMissingContent = errors.New("missing content")
)

// Tier classifies a stored record by access frequency.
type Tier string

const (
	// TierHot marks frequently accessed records.
	TierHot Tier = "hot"
	// TierCold marks records scheduled for heavier compression.
	TierCold Tier = "cold"
)

// Algorithm identifies the vector compression algorithm applied to a record.
type Algorithm string

const (
	// AlgorithmNone marks an uncompressed vector.
	AlgorithmNone Algorithm = "none"
	// AlgorithmQuantization maps components onto a fixed bucket grid.
	AlgorithmQuantization Algorithm = "quantization"
	// AlgorithmReduction zeroes the lowest-magnitude dimensions.
	AlgorithmReduction Algorithm = "reduction"
	// AlgorithmHybrid applies reduction then quantization.
	AlgorithmHybrid Algorithm = "hybrid"
)

// Metadata is the explicit, versioned metadata schema for embedding records.
type Metadata struct {
	Source    string            `json:"source,omitempty"`
	Title     string            `json:"title,omitempty"`
	DocType   string            `json:"docType,omitempty"`
	FileName  string            `json:"fileName,omitempty"`
	CreatedAt time.Time         `json:"createdAt,omitempty"`
	Tags      map[string]string `json:"tags,omitempty"`
	Version   int               `json:"version"`
}

// Record is the embedding record aggregate. Immutable after storage except
// for the optimization fields (compression flag, tier, duplicate pointer),
// which only the vector store optimizer mutates.
type Record struct {
	id          string
	documentID  string
	chunkID     string
	vector      []float32
	content     string
	meta        Metadata
	compressed  bool
	algorithm   Algorithm
	quality     float64
	tier        Tier
	duplicateOf string
	accessCount int
	lastAccess  time.Time
}

// New validates and creates a Record. Every record must carry both an
// embedding vector and source content.
func New(id, documentID, chunkID string, vector []float32, content string, meta Metadata) (Record, error) {
	if id == "" {
		return Record{}, fmt.Errorf("record ID is required")
	}
	if len(vector) == 0 {
		return Record{}, fmt.Errorf("record %s: %w", id, ErrMissingEmbedding)
	}
	if content == "" {
		return Record{}, fmt.Errorf("record %s: %w", id, ErrMissingContent)
	}
	if len(content) > MaxContentSize {
		return Record{}, fmt.Errorf("record %s content too large (max %d bytes)", id, MaxContentSize)
	}
	if meta.Version == 0 {
		meta.Version = 1
	}

	return Record{
		id:         id,
		documentID: documentID,
		chunkID:    chunkID,
		vector:     vector,
		content:    content,
		meta:       meta,
		algorithm:  AlgorithmNone,
		tier:       TierHot,
	}, nil
}

// Reconstruct creates a Record without validation (storage hydration).
func Reconstruct(
	id, documentID, chunkID string, vector []float32, content string, meta Metadata,
	compressed bool, algorithm Algorithm, quality float64, tier Tier, duplicateOf string,
	accessCount int, lastAccess time.Time,
) Record {
	return Record{
		id: id, documentID: documentID, chunkID: chunkID,
		vector: vector, content: content, meta: meta,
		compressed: compressed, algorithm: algorithm, quality: quality,
		tier: tier, duplicateOf: duplicateOf,
		accessCount: accessCount, lastAccess: lastAccess,
	}
}

// ID returns the record identifier.
func (r *Record) ID() string { return r.id }

// DocumentID returns the owning document identifier.
func (r *Record) DocumentID() string { return r.documentID }

// ChunkID returns the source chunk identifier.
func (r *Record) ChunkID() string { return r.chunkID }

// Vector returns the embedding vector.
func (r *Record) Vector() []float32 { return r.vector }

// Content returns the source content.
func (r *Record) Content() string { return r.content }

// Meta returns the record metadata.
func (r *Record) Meta() Metadata { return r.meta }

// Compressed reports whether the stored vector was replaced by a compressed one.
func (r *Record) Compressed() bool { return r.compressed }

// Algorithm returns the compression algorithm applied.
func (r *Record) Algorithm() Algorithm { return r.algorithm }

// CompressionQuality returns the cosine similarity between the original and stored vector.
func (r *Record) CompressionQuality() float64 { return r.quality }

// StorageTier returns the hot/cold storage classification.
func (r *Record) StorageTier() Tier { return r.tier }

// DuplicateOf returns the ID of the record this one duplicates, if any.
func (r *Record) DuplicateOf() string { return r.duplicateOf }

// AccessCount returns the number of recorded reads.
func (r *Record) AccessCount() int { return r.accessCount }

// LastAccess returns the time of the last recorded read.
func (r *Record) LastAccess() time.Time { return r.lastAccess }

// SetCompressed replaces the vector with its compressed form and records the
// algorithm and measured quality.
func (r *Record) SetCompressed(vector []float32, algorithm Algorithm, quality float64) {
	r.vector = vector
	r.compressed = true
	r.algorithm = algorithm
	r.quality = quality
}

// MarkUncompressed flags that compression was attempted and rejected, keeping
// the original vector.
func (r *Record) MarkUncompressed(quality float64) {
	r.compressed = false
	r.algorithm = AlgorithmNone
	r.quality = quality
}

// SetTier re-tags the storage class. Migration never alters stored bytes.
func (r *Record) SetTier(t Tier) { r.tier = t }

// Touch records a read for tiering decisions.
func (r *Record) Touch(now time.Time) {
	r.accessCount++
	r.lastAccess = now
}
