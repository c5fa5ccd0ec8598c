package vectorstore

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragpipe/internal/db"
	"github.com/kailas-cloud/ragpipe/internal/domain/record"
)

type accessInfo struct {
	count int
	last  time.Time
}

// tierTracker keeps in-process access statistics for stored records.
// Classification: hot when the access counter clears the threshold, cold
// after the idle window. Safe for concurrent use.
type tierTracker struct {
	mu        sync.Mutex
	access    map[string]accessInfo
	threshold int
	coldAfter time.Duration
}

func newTierTracker(threshold int, coldAfter time.Duration) *tierTracker {
	return &tierTracker{
		access:    make(map[string]accessInfo),
		threshold: threshold,
		coldAfter: coldAfter,
	}
}

func (t *tierTracker) touch(now time.Time, ids ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, id := range ids {
		info := t.access[id]
		info.count++
		info.last = now
		t.access[id] = info
	}
}

// coldIDs returns the ids idle past the cold window with counters below the
// hot threshold, and drops them from tracking. A later touch re-registers.
func (t *tierTracker) coldIDs(now time.Time) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var cold []string
	for id, info := range t.access {
		if info.count < t.threshold && now.Sub(info.last) >= t.coldAfter {
			cold = append(cold, id)
			delete(t.access, id)
		}
	}
	return cold
}

// Touch records reads for tiering decisions. Called by the search layer on
// every returned result.
func (s *Service) Touch(ids ...string) {
	s.tiers.touch(s.now(), ids...)
}

// StartTierSweep launches the periodic cold migration until ctx is done.
func (s *Service) StartTierSweep(ctx context.Context, collection string) {
	go func() {
		ticker := time.NewTicker(s.opts.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweepTiers(ctx, collection)
			}
		}
	}()
}

// sweepTiers re-tags idle records as cold. Migration only changes the
// storage class field; already-compressed bytes are left untouched.
func (s *Service) sweepTiers(ctx context.Context, collection string) {
	cold := s.tiers.coldIDs(s.now())
	if len(cold) == 0 {
		return
	}

	migrated := 0
	for _, id := range cold {
		item, err := s.reader.Fetch(ctx, collection, id)
		if err != nil {
			s.logger.Warn("Tier sweep fetch failed", zap.String("id", id), zap.Error(err))
			continue
		}
		if item.Fields == nil {
			item.Fields = make(map[string]string)
		}
		item.Fields["tier"] = string(record.TierCold)

		if err := s.writer.Add(ctx, collection, []db.VectorItem{item}); err != nil {
			s.logger.Warn("Tier sweep re-tag failed", zap.String("id", id), zap.Error(err))
			continue
		}
		migrated++
	}

	if migrated > 0 {
		s.logger.Info("Migrated records to cold tier",
			zap.String("collection", collection),
			zap.Int("count", migrated),
		)
	}
}
