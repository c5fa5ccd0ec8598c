package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragpipe/internal/db"
	"github.com/kailas-cloud/ragpipe/internal/domain"
	"github.com/kailas-cloud/ragpipe/internal/domain/record"
	"github.com/kailas-cloud/ragpipe/internal/domain/vectormath"
	"github.com/kailas-cloud/ragpipe/internal/metrics"
)

// compressionAcceptQuality is the minimum cosine similarity between the
// original and compressed vector for the compressed form to be stored.
const compressionAcceptQuality = 0.8

// maxSubBatch is the write size for batch-method persistence.
const maxSubBatch = 100

// Options configures the optimizer.
type Options struct {
	// Dimension is the embedding dimension of the target collections.
	// Records with any other vector length are rejected. Zero disables the
	// check.
	Dimension int

	EnableDeduplication bool
	EnableCompression   bool
	CompressionLevel    int
	Algorithm           record.Algorithm
	DuplicateThreshold  float64

	HotAccessThreshold int
	ColdAfter          time.Duration
	SweepInterval      time.Duration
}

// Service is the vector store optimizer. It deduplicates, compresses, and
// tiers embedding records before handing them to the backend writer.
type Service struct {
	writer Writer
	reader Reader
	opts   Options
	dedup  *deduper
	tiers  *tierTracker
	logger *zap.Logger

	now func() time.Time
}

// New creates the optimizer service.
func New(writer Writer, reader Reader, opts Options, logger *zap.Logger) *Service {
	if opts.CompressionLevel < 1 || opts.CompressionLevel > 9 {
		opts.CompressionLevel = 5
	}
	if opts.Algorithm == "" {
		opts.Algorithm = record.AlgorithmQuantization
	}
	if opts.DuplicateThreshold <= 0 {
		opts.DuplicateThreshold = 0.95
	}
	if opts.HotAccessThreshold <= 0 {
		opts.HotAccessThreshold = 10
	}
	if opts.ColdAfter <= 0 {
		opts.ColdAfter = 30 * 24 * time.Hour
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = time.Hour
	}

	s := &Service{
		writer: writer,
		reader: reader,
		opts:   opts,
		dedup:  newDeduper(opts.DuplicateThreshold),
		logger: logger,
		now:    time.Now,
	}
	s.tiers = newTierTracker(opts.HotAccessThreshold, opts.ColdAfter)
	return s
}

// StoreVectors deduplicates, compresses, and persists a batch of records.
// Duplicates are dropped (counted, not errored); persistence failures are
// captured per item. The call itself fails only on empty input.
func (s *Service) StoreVectors(
	ctx context.Context, collection string, records []record.Record, method Method,
) (StorageResult, error) {
	if len(records) == 0 {
		return StorageResult{}, fmt.Errorf("store vectors: %w", domain.ErrEmptyBatch)
	}

	results := make([]Result, len(records))

	type pending struct {
		index int
		item  db.VectorItem
	}
	valid := make([]pending, 0, len(records))

	for i := range records {
		rec := &records[i]

		if s.opts.Dimension > 0 && len(rec.Vector()) != s.opts.Dimension {
			results[i] = invalid(i, rec.ID(), fmt.Errorf(
				"vector has %d dimensions, want %d: %w",
				len(rec.Vector()), s.opts.Dimension, domain.ErrVectorDimMismatch))
			metrics.VectorsStoredTotal.WithLabelValues(string(method), "failed").Inc()
			continue
		}

		if s.opts.EnableDeduplication {
			if dupOf, stage, isDup := s.dedup.check(rec); isDup {
				metrics.DuplicatesDetectedTotal.WithLabelValues(string(stage)).Inc()
				results[i] = duplicate(i, rec.ID(), dupOf)
				s.logger.Debug("Dropped duplicate record",
					zap.String("id", rec.ID()),
					zap.String("duplicateOf", dupOf),
					zap.String("stage", string(stage)),
				)
				continue
			}
		}

		if s.opts.EnableCompression {
			s.compress(rec)
		}

		valid = append(valid, pending{index: i, item: s.toItem(rec)})
	}

	persist := func(batch []pending) error {
		items := make([]db.VectorItem, len(batch))
		for i, p := range batch {
			items[i] = p.item
		}
		return s.writer.Add(ctx, collection, items)
	}

	markBatch := func(batch []pending, err error) {
		for _, p := range batch {
			if err != nil {
				results[p.index] = failed(p.index, p.item.ID, fmt.Errorf("add vectors: %w", err))
				metrics.VectorsStoredTotal.WithLabelValues(string(method), "failed").Inc()
				continue
			}
			results[p.index] = stored(p.index, p.item.ID)
			metrics.VectorsStoredTotal.WithLabelValues(string(method), "stored").Inc()
		}
	}

	switch method {
	case MethodStream:
		for _, p := range valid {
			markBatch([]pending{p}, persist([]pending{p}))
		}
	case MethodBatch:
		for start := 0; start < len(valid); start += maxSubBatch {
			end := start + maxSubBatch
			if end > len(valid) {
				end = len(valid)
			}
			chunk := valid[start:end]
			markBatch(chunk, persist(chunk))
		}
	case MethodBulk:
		fallthrough
	default:
		// Bulk is the default for an unset method, matching the HTTP layer.
		// Atomic: one failing element fails the whole batch.
		if len(valid) > 0 {
			markBatch(valid, persist(valid))
		}
	}

	return summarize(results), nil
}

// compress attempts the configured algorithm and substitutes the compressed
// vector only when quality clears the acceptance bar. Rejected vectors stay
// bit-for-bit original.
func (s *Service) compress(rec *record.Record) {
	var c vectormath.Compressed
	switch s.opts.Algorithm {
	case record.AlgorithmReduction:
		c = vectormath.Reduce(rec.Vector(), s.opts.CompressionLevel)
	case record.AlgorithmHybrid:
		c = vectormath.Hybrid(rec.Vector(), s.opts.CompressionLevel)
	case record.AlgorithmQuantization:
		fallthrough
	default:
		c = vectormath.Quantize(rec.Vector(), s.opts.CompressionLevel)
	}

	if c.Quality > compressionAcceptQuality {
		rec.SetCompressed(c.Vector, s.opts.Algorithm, c.Quality)
		metrics.CompressionTotal.WithLabelValues(string(s.opts.Algorithm), "accepted").Inc()
		return
	}
	rec.MarkUncompressed(c.Quality)
	metrics.CompressionTotal.WithLabelValues(string(s.opts.Algorithm), "rejected").Inc()
}

// toItem flattens a record into the backend field map.
func (s *Service) toItem(rec *record.Record) db.VectorItem {
	fields := map[string]string{
		"content":    rec.Content(),
		"documentId": rec.DocumentID(),
		"chunkId":    rec.ChunkID(),
		"tier":       string(rec.StorageTier()),
		"compressed": strconv.FormatBool(rec.Compressed()),
		"algorithm":  string(rec.Algorithm()),
	}
	if rec.CompressionQuality() > 0 {
		fields["quality"] = strconv.FormatFloat(rec.CompressionQuality(), 'f', 4, 64)
	}
	if meta, err := json.Marshal(rec.Meta()); err == nil {
		fields["meta"] = string(meta)
	}

	return db.VectorItem{
		ID:     rec.ID(),
		Vector: rec.Vector(),
		Fields: fields,
	}
}
